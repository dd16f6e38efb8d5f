package system

import (
	"runtime"
	"time"

	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/core/scheduler"
	"go.uber.org/zap"
)

// PerformanceSource reports the scheduler's measured rate.
type PerformanceSource interface {
	PerformanceData() scheduler.Performance
}

// Diagnostics logs the frame rate and runtime memory figures once per
// interval of wall time and warns when the bus reports a rate drop.
type Diagnostics struct {
	lifecycle.Base
	source   PerformanceSource
	bus      *event.Bus
	log      *zap.Logger
	interval time.Duration
	readMem  func(*runtime.MemStats)

	handles []event.Handle
	wall    frameTime
	last    runtime.MemStats
	reports int
}

func NewDiagnostics(source PerformanceSource, bus *event.Bus, interval time.Duration, log *zap.Logger) *Diagnostics {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Diagnostics{
		Base:     lifecycle.NewBase("diagnostics"),
		source:   source,
		bus:      bus,
		log:      log,
		interval: interval,
		readMem:  runtime.ReadMemStats,
	}
}

// Reports returns how many periodic reports have been logged.
func (d *Diagnostics) Reports() int { return d.reports }

func (d *Diagnostics) Awake() error {
	d.handles = append(d.wall.subscribe(d.bus),
		event.On(d.bus, event.FPSDrop, func(p event.FPSDropPayload) {
			d.log.Warn("frame rate dropped",
				zap.Float64("fps", p.Current),
				zap.Float64("previous", p.Previous))
		}))
	return nil
}

func (d *Diagnostics) Start() error {
	d.readMem(&d.last)
	return nil
}

func (d *Diagnostics) Update(float32) error {
	if d.wall.elapsed < d.interval {
		return nil
	}
	secs := d.wall.elapsed.Seconds()
	d.wall.reset()
	d.report(secs)
	return nil
}

func (d *Diagnostics) report(secs float64) {
	var m runtime.MemStats
	d.readMem(&m)
	perf := d.source.PerformanceData()

	allocRate := 0.0
	if secs > 0 && m.TotalAlloc >= d.last.TotalAlloc {
		allocRate = float64(m.TotalAlloc-d.last.TotalAlloc) / secs
	}
	var pause time.Duration
	if m.NumGC > d.last.NumGC {
		pause = time.Duration(m.PauseTotalNs - d.last.PauseTotalNs)
	}

	d.log.Info("frame diagnostics",
		zap.Float64("fps", perf.Current),
		zap.Float64("fps_avg", perf.Average),
		zap.Uint64("frames", perf.Frames),
		zap.Uint64("skipped", perf.Skipped),
		zap.Uint64("heap_bytes", m.HeapAlloc),
		zap.Float64("alloc_bytes_per_sec", allocRate),
		zap.Uint32("gc_cycles", m.NumGC-d.last.NumGC),
		zap.Duration("gc_pause", pause))
	d.last = m
	d.reports++
}

func (d *Diagnostics) Destroy() error {
	for _, h := range d.handles {
		d.bus.Off(h)
	}
	d.handles = nil
	return nil
}
