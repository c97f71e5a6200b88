package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel/metric"
)

type perfStats struct {
	tel         API
	cpu         metric.Float64Gauge
	memory      metric.Int64Gauge
	liveObjects metric.Int64Gauge
	goroutines  metric.Int64Gauge
}

func newPerfStats(meter metric.Meter, tel API) (perfStats, error) {
	var p perfStats
	var err error
	p.tel = tel
	if p.cpu, err = meter.Float64Gauge("process.cpu_usage"); err != nil {
		return p, err
	}
	if p.memory, err = meter.Int64Gauge("process.allocated_mb"); err != nil {
		return p, err
	}
	if p.liveObjects, err = meter.Int64Gauge("process.live_objects"); err != nil {
		return p, err
	}
	if p.goroutines, err = meter.Int64Gauge("process.goroutines"); err != nil {
		return p, err
	}
	return p, nil
}

func (p perfStats) record(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// 0 interval compares against the previous call
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(usage) > 0 {
		p.cpu.Record(ctx, usage[0])
	} else if err != nil {
		p.tel.ReportWarning("telemetry.perf_stats", err)
	}

	p.memory.Record(ctx, int64(memStats.Alloc/1_000_000))
	p.liveObjects.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
	p.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
}

// InstrumentPerfStats records process cpu, memory and goroutine gauges every
// interval until ctx is done.
func InstrumentPerfStats(ctx context.Context, meter metric.Meter, interval time.Duration, tel API) error {
	stats, err := newPerfStats(meter, tel)
	if err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats.record(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
