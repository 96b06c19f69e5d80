package ksysmetrics

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"go.opencensus.io/metric"
	"go.opencensus.io/metric/metricdata"
)

// SysMetrics samples Go runtime stats into derived gauges of its own opencensus registry.
// Values are refreshed by Sample (or the collector loop); scraping only reads the last sample.
type SysMetrics struct {
	registry *metric.Registry
	version  string

	heapAlloc    atomic.Int64
	stackInuse   atomic.Int64
	sysMem       atomic.Int64
	goroutines   atomic.Int64
	gcPauseTotal atomic.Int64
	numGC        atomic.Int64
	lastGcAgoMs  atomic.Int64
	uptimeMs     atomic.Int64
	startedAt    time.Time
}

func NewSysMetrics(version string) *SysMetrics {
	sm := &SysMetrics{
		registry:  metric.NewRegistry(),
		version:   version,
		startedAt: time.Now(),
	}
	sm.addGauge("process_heap_bytes", "heap bytes allocated and in use", metricdata.UnitBytes, &sm.heapAlloc)
	sm.addGauge("process_stack_bytes", "stack bytes in use", metricdata.UnitBytes, &sm.stackInuse)
	sm.addGauge("process_sys_memory_bytes", "bytes obtained from the OS", metricdata.UnitBytes, &sm.sysMem)
	sm.addGauge("process_goroutines", "number of goroutines", metricdata.UnitDimensionless, &sm.goroutines)
	sm.addGauge("process_gc_pause_total_ns", "cumulative GC stop-the-world pause", metricdata.UnitDimensionless, &sm.gcPauseTotal)
	sm.addGauge("process_gc_count", "completed GC cycles", metricdata.UnitDimensionless, &sm.numGC)
	sm.addGauge("process_last_gc_ago_ms", "time since the last GC", metricdata.UnitMilliseconds, &sm.lastGcAgoMs)
	sm.addGauge("process_uptime_ms", "time since start", metricdata.UnitMilliseconds, &sm.uptimeMs)
	return sm
}

func (sm *SysMetrics) addGauge(name, description string, unit metricdata.Unit, value *atomic.Int64) {
	gauge, err := sm.registry.AddInt64DerivedGauge(name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
		metric.WithLabelKeys("version"))
	if err != nil {
		panic(kerror.Wrap(err, "GaugeRegisterError", "failed to add derived gauge", false).With("name", name))
	}
	if err := gauge.UpsertEntry(value.Load, metricdata.NewLabelValue(sm.version)); err != nil {
		panic(kerror.Wrap(err, "GaugeRegisterError", "failed to upsert gauge entry", false).With("name", name))
	}
}

// GetRegistry is the metricproducer.Producer to register with the exporter.
func (sm *SysMetrics) GetRegistry() *metric.Registry {
	return sm.registry
}

func (sm *SysMetrics) Sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := time.Now()
	sm.heapAlloc.Store(int64(ms.HeapAlloc))
	sm.stackInuse.Store(int64(ms.StackInuse))
	sm.sysMem.Store(int64(ms.Sys))
	sm.goroutines.Store(int64(runtime.NumGoroutine()))
	sm.gcPauseTotal.Store(int64(ms.PauseTotalNs))
	sm.numGC.Store(int64(ms.NumGC))
	if ms.LastGC > 0 {
		sm.lastGcAgoMs.Store(now.Sub(time.Unix(0, int64(ms.LastGC))).Milliseconds())
	}
	sm.uptimeMs.Store(now.Sub(sm.startedAt).Milliseconds())
}

// StartCollector samples every interval until ctx is done. The returned WaitGroup completes when
// the loop exited.
func (sm *SysMetrics) StartCollector(ctx context.Context, interval time.Duration) *sync.WaitGroup {
	sm.Sample()
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				klogging.Debug(ctx).Log("SysMetricsCollectorExit", "")
				return
			case <-ticker.C:
				sm.Sample()
			}
		}
	}()
	return wg
}
