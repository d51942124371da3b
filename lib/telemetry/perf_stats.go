package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var perfMeter = otel.Meter("go.perf_stats")

// InstrumentPerfStats samples process health every interval until ctx is
// cancelled. Pass 0 for the default of 30 seconds.
func InstrumentPerfStats(ctx context.Context, interval ...time.Duration) {
	sampleEvery := time.Second * 30
	if len(interval) > 0 && interval[0] > 0 {
		sampleEvery = interval[0]
	}

	cpuGauge, _ := perfMeter.Float64Gauge("cpu_usage")
	heapGauge, _ := perfMeter.Int64Gauge("heap_alloc_mb")
	liveObjectsGauge, _ := perfMeter.Int64Gauge("live_objects")
	goroutineGauge, _ := perfMeter.Int64Gauge("goroutine_count")

	go func() {
		ticker := time.NewTicker(sampleEvery)
		defer ticker.Stop()

		var memStats runtime.MemStats
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			runtime.ReadMemStats(&memStats)
			heapGauge.Record(ctx, int64(memStats.HeapAlloc/1_000_000))
			liveObjectsGauge.Record(ctx, int64(memStats.Mallocs-memStats.Frees))
			goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

			usage, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil || len(usage) == 0 {
				slog.WarnContext(ctx, "failed to read cpu usage", "err", err)
				continue
			}
			cpuGauge.Record(ctx, usage[0])
		}
	}()
}
