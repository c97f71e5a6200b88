package main

import (
	"context"
	"fmt"
	"log/slog"

	"edziennik-backend/internal/app"
	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/internal/service"
)

// ScheduleChecks registers both change detection phases, a phase with an
// empty schedule is left to the http triggers.
func ScheduleChecks(ctx context.Context, cron chrono.CronAPI, cfg app.CronConfig, detector service.DetectorAPI) error {
	phases := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) (bool, error)
	}{
		{name: "fast", schedule: cfg.FastSchedule(), run: detector.AnyChanges},
		{name: "deep", schedule: cfg.DeepSchedule(), run: detector.DeepChanges},
	}

	for _, phase := range phases {
		if phase.schedule == "" {
			slog.Info("change check disabled", "phase", phase.name)
			continue
		}
		err := cron.Cron(phase.schedule, chrono.Job(ctx, cfg.Timeout(), func(ctx context.Context) {
			changed, err := phase.run(ctx)
			if err != nil {
				slog.Warn("change check failed", "phase", phase.name, "err", err)
				return
			}
			slog.Debug("change check done", "phase", phase.name, "changed", changed)
		}))
		if err != nil {
			return fmt.Errorf("%s check schedule %q: %w", phase.name, phase.schedule, err)
		}
	}
	return nil
}
