package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"edziennik-backend/internal/app"
	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/lib/configutil"
	"edziennik-backend/lib/util/serviceutil"

	"go.opentelemetry.io/otel"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging.")
	configPath := flag.String("config", "config.json5", "Path to the json5 config file.")
	checkNow := flag.Bool("check", false, "Run a fast change check immediately on start.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	cfg, err := configutil.ReadConfig[app.Config](*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	if *verbose && cfg.Portal.DumpDir == "" {
		cfg.Portal.DumpDir = ".dev/resty/portal"
	}

	tel, shutdownTelemetry := InitTelemetry(ctx, *verbose, cfg)
	defer shutdownTelemetry()

	timeAPI := chrono.NewStandardTime()
	a, err := app.New(ctx, cfg, timeAPI, tel)
	if err != nil {
		serviceutil.Fatal("init app", err)
	}
	defer a.Close()

	cron := chrono.NewStandardCron(tel)
	err = ScheduleChecks(ctx, cron, cfg.Cron, a.Detector)
	if err != nil {
		serviceutil.Fatal("schedule change checks", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cron.Stop(stopCtx)
	}()

	if *checkNow {
		go chrono.Job(ctx, cfg.Cron.Timeout(), func(ctx context.Context) {
			_, _ = a.Detector.AnyChanges(ctx)
		})()
	}

	handler := serviceutil.Traced(otel.Tracer("edziennik-server"), a.Service.Handler())
	err = serviceutil.StartHttpServer(ctx, cfg.Http.ListenAddr(), handler)
	if err != nil {
		slog.Error("http server", "err", err)
	}
}
