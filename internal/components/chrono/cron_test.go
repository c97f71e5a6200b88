package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	Job(context.Background(), time.Minute, func(ctx context.Context) {
		deadline, ok = ctx.Deadline()
	})()

	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestFixedTimeInWarsaw(t *testing.T) {
	at := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	now := FixedTime{At: at}.Now()

	require.Equal(t, "Europe/Warsaw", now.Location().String())
	require.True(t, now.Equal(at))
	require.Equal(t, 13, now.Hour())
}

func TestCronRejectsBadSpec(t *testing.T) {
	c := NewStandardCron(noopTel{})
	defer c.Stop(context.Background())

	require.Error(t, c.Cron("not a spec", func() {}))
	require.NoError(t, c.Cron("*/5 * * * *", func() {}))
}

type noopTel struct{}

func (noopTel) ReportBroken(string, ...any)  {}
func (noopTel) ReportWarning(string, ...any) {}
func (noopTel) ReportDebug(string, ...any)   {}
func (noopTel) ReportCount(string, int64)    {}
