package main

import (
	"context"
	"log/slog"
	"time"

	"edziennik-backend/internal/app"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/lib/util/serviceutil"
)

// InitTelemetry sets up logging and the otlp exporters, reports are also
// recorded as metrics when a metrics endpoint is configured.
func InitTelemetry(ctx context.Context, verbose bool, cfg app.Config) (telemetry.API, func()) {
	telemetry.InitSlog(verbose)
	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	providers, err := telemetry.Setup(ctx, "edziennik-server", cfg.Telemetry)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := providers.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}

	var tel telemetry.API = telemetry.SlogAPI{}
	if providers.MeterProvider == nil {
		return tel, shutdown
	}
	meter := providers.MeterProvider.Meter("edziennik-server")
	otelAPI, err := telemetry.NewOtelAPI(tel, meter)
	if err != nil {
		serviceutil.Fatal("setup telemetry metrics", err)
	}
	err = telemetry.InstrumentPerfStats(ctx, meter, 30*time.Second, otelAPI)
	if err != nil {
		serviceutil.Fatal("setup perf stats", err)
	}
	return otelAPI, shutdown
}
