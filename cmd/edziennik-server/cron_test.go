package main

import (
	"context"
	"testing"

	"edziennik-backend/internal/app"

	"github.com/stretchr/testify/require"
)

type fakeCron struct {
	specs     []string
	callbacks []func()
}

func (f *fakeCron) Cron(spec string, callback func()) error {
	f.specs = append(f.specs, spec)
	f.callbacks = append(f.callbacks, callback)
	return nil
}

type fakeDetector struct {
	fast, deep int
}

func (f *fakeDetector) AnyChanges(context.Context) (bool, error) {
	f.fast++
	return true, nil
}

func (f *fakeDetector) DeepChanges(context.Context) (bool, error) {
	f.deep++
	return false, nil
}

func TestScheduleChecks(t *testing.T) {
	cron := &fakeCron{}
	detector := &fakeDetector{}
	err := ScheduleChecks(context.Background(), cron, app.CronConfig{}, detector)
	require.NoError(t, err)
	require.Equal(t, []string{app.DefaultFastSchedule, app.DefaultDeepSchedule}, cron.specs)

	cron.callbacks[0]()
	cron.callbacks[1]()
	cron.callbacks[1]()
	require.Equal(t, 1, detector.fast)
	require.Equal(t, 2, detector.deep)
}

func TestScheduleChecksDisabled(t *testing.T) {
	cron := &fakeCron{}
	empty := ""
	err := ScheduleChecks(context.Background(), cron, app.CronConfig{Fast: &empty}, &fakeDetector{})
	require.NoError(t, err)
	require.Equal(t, []string{app.DefaultDeepSchedule}, cron.specs)
}
