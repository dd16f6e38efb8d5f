package system

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/framecore/framecore/internal/config"
	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/jobs"
	"github.com/framecore/framecore/internal/core/scheduler"
	"github.com/framecore/framecore/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]persist.SampleRow
	err     error
}

func (s *memorySink) InsertSamples(_ context.Context, rows []persist.SampleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, rows)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// inline runs spawned work immediately.
type inline struct{ errs []error }

func (i *inline) Go(_ string, fn func() error) {
	if err := fn(); err != nil {
		i.errs = append(i.errs, err)
	}
}

func newTelemetry(t *testing.T, batch int, every time.Duration) (*Telemetry, *event.Bus, *memorySink) {
	t.Helper()
	bus := event.NewBus(nil)
	sink := &memorySink{}
	cfg := config.TelemetryConfig{Enabled: true, BatchSize: batch, FlushEvery: every, Session: "test"}
	tel := NewTelemetry(cfg, bus, sink, &inline{}, nil)
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tel.now = func() time.Time { return stamp }
	require.NoError(t, tel.Awake())
	return tel, bus, sink
}

func TestTelemetryFlushesFullBatch(t *testing.T) {
	tel, bus, sink := newTelemetry(t, 2, time.Hour)

	event.Emit(bus, event.FPSSample, event.FPSSamplePayload{FPS: 60})
	require.NoError(t, tel.Update(0.016))
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 1, tel.Pending())

	event.Emit(bus, event.FPSDrop, event.FPSDropPayload{Current: 20, Previous: 60})
	require.NoError(t, tel.Update(0.016))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, 0, tel.Pending())

	rows := sink.batches[0]
	require.Len(t, rows, 2)
	assert.Equal(t, persist.SampleRow{
		Session:    "test",
		Kind:       persist.KindSample,
		FPS:        60,
		Frame:      0,
		RecordedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, rows[0])
	assert.Equal(t, persist.KindDrop, rows[1].Kind)
	assert.Equal(t, 20.0, rows[1].FPS)
	assert.Equal(t, 60.0, rows[1].Previous)
	assert.Equal(t, uint64(1), rows[1].Frame)
}

// frameAt emits the frame event the scheduler sends before its phases.
func frameAt(bus *event.Bus, ts time.Duration) {
	event.Emit(bus, event.Frame, &event.FramePayload{DeltaTime: 0.016, Timestamp: ts})
}

func TestTelemetryFlushesOnInterval(t *testing.T) {
	tel, bus, sink := newTelemetry(t, 100, 100*time.Millisecond)
	event.Emit(bus, event.RenderStart, event.RenderPayload{})

	event.Emit(bus, event.FPSSample, event.FPSSamplePayload{FPS: 58})
	frameAt(bus, 50*time.Millisecond)
	require.NoError(t, tel.Update(0.016))
	assert.Equal(t, 0, sink.count())
	frameAt(bus, 110*time.Millisecond)
	require.NoError(t, tel.Update(0.016))
	assert.Equal(t, 1, sink.count())

	// nothing buffered, nothing written
	frameAt(bus, 400*time.Millisecond)
	require.NoError(t, tel.Update(0.016))
	assert.Equal(t, 1, sink.count())
}

func TestTelemetryIntervalFollowsWallTimeAt30FPS(t *testing.T) {
	frames := scheduler.NewManualFrames()
	s := scheduler.New(frames, nil,
		scheduler.WithTargetFPS(30),
		scheduler.WithSampleInterval(250*time.Millisecond))
	sink := &memorySink{}
	cfg := config.TelemetryConfig{BatchSize: 1000, FlushEvery: time.Second, Session: "slow"}
	tel := NewTelemetry(cfg, s.Bus(), sink, &inline{}, nil)
	require.NoError(t, s.AddComponent(tel, nil))

	s.Start()
	for i := 1; i <= 90; i++ {
		require.NoError(t, frames.Fire(time.Duration(i)*time.Second/30))
	}

	// three seconds of 33ms frames, each clamped to a 16ms delta
	assert.Equal(t, 3, sink.count())
	require.NoError(t, s.Dispose())
}

func TestTelemetryDestroyFlushesAndUnsubscribes(t *testing.T) {
	tel, bus, sink := newTelemetry(t, 100, time.Hour)

	event.Emit(bus, event.FPSSample, event.FPSSamplePayload{FPS: 61})
	require.NoError(t, tel.Destroy())
	assert.Equal(t, 1, sink.count())
	assert.Zero(t, bus.Count(event.FPSSample.Name()))
	assert.Zero(t, bus.Count(event.FPSDrop.Name()))

	event.Emit(bus, event.FPSSample, event.FPSSamplePayload{FPS: 61})
	assert.Equal(t, 0, tel.Pending())
}

func TestTelemetryDestroyReportsSinkError(t *testing.T) {
	tel, bus, sink := newTelemetry(t, 100, time.Hour)
	sink.err = errors.New("db down")

	event.Emit(bus, event.FPSSample, event.FPSSamplePayload{FPS: 61})
	assert.EqualError(t, tel.Destroy(), "db down")
}

func TestTelemetryBackgroundFlushLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	pool := jobs.New(1, zap.New(core))
	bus := event.NewBus(nil)
	sink := &memorySink{err: errors.New("db down")}
	tel := NewTelemetry(config.TelemetryConfig{BatchSize: 1}, bus, sink, pool, nil)
	require.NoError(t, tel.Awake())

	event.Emit(bus, event.FPSSample, event.FPSSamplePayload{FPS: 30})
	require.NoError(t, tel.Update(0.016))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("background job failed").Len() == 1
	}, time.Second, 5*time.Millisecond)
	entry := logs.FilterMessage("background job failed").All()[0]
	assert.Equal(t, "telemetry flush", entry.ContextMap()["job"])
}

func TestTelemetryPrepareRunsInBackground(t *testing.T) {
	tel, _, _ := newTelemetry(t, 1, time.Hour)
	require.NoError(t, tel.StartBackground())

	ran := false
	tel.OnPrepare(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		ran = ok
		return nil
	})
	require.NoError(t, tel.StartBackground())
	assert.True(t, ran)
}

func TestTelemetryUnderScheduler(t *testing.T) {
	frames := scheduler.NewManualFrames()
	s := scheduler.New(frames, nil,
		scheduler.WithSampleInterval(100*time.Millisecond),
		scheduler.WithBackground(jobs.New(1, nil)))
	sink := &memorySink{}
	spawn := &inline{}
	tel := NewTelemetry(config.TelemetryConfig{BatchSize: 1, Session: "loop"}, s.Bus(), sink, spawn, nil)
	require.NoError(t, s.AddComponent(tel, nil))

	s.Start()
	require.Eventually(t, func() bool {
		assert.NoError(t, frames.Advance(16*time.Millisecond))
		return sink.count() > 0
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "loop", sink.batches[0][0].Session)
	require.NoError(t, s.Dispose())
	assert.Empty(t, spawn.errs)
}

type fixedPerf struct{ perf scheduler.Performance }

func (f fixedPerf) PerformanceData() scheduler.Performance { return f.perf }

func TestDiagnosticsReportsPerInterval(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := event.NewBus(nil)
	d := NewDiagnostics(fixedPerf{scheduler.Performance{Current: 59.5, Frames: 120}}, bus, time.Second, zap.New(core))
	heap := uint64(1 << 20)
	d.readMem = func(m *runtime.MemStats) {
		m.HeapAlloc = heap
		m.TotalAlloc = heap * 2
		m.NumGC = uint32(heap >> 20)
		m.PauseTotalNs = heap
	}
	require.NoError(t, d.Awake())
	require.NoError(t, d.Start())
	event.Emit(bus, event.RenderStart, event.RenderPayload{})

	heap = 3 << 20
	frameAt(bus, 500*time.Millisecond)
	require.NoError(t, d.Update(0.016))
	assert.Equal(t, 0, d.Reports())
	frameAt(bus, time.Second)
	require.NoError(t, d.Update(0.016))
	assert.Equal(t, 1, d.Reports())

	entries := logs.FilterMessage("frame diagnostics").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, 59.5, fields["fps"])
	assert.Equal(t, uint64(120), fields["frames"])
	assert.Equal(t, uint64(3<<20), fields["heap_bytes"])
	assert.Equal(t, float64(4<<20), fields["alloc_bytes_per_sec"])
	assert.Equal(t, uint32(2), fields["gc_cycles"])
}

func TestDiagnosticsReportsOncePerSecondAt30FPS(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	frames := scheduler.NewManualFrames()
	s := scheduler.New(frames, nil, scheduler.WithTargetFPS(30))
	d := NewDiagnostics(s, s.Bus(), time.Second, zap.New(core))
	require.NoError(t, s.AddComponent(d, nil))

	s.Start()
	for i := 1; i <= 90; i++ {
		require.NoError(t, frames.Fire(time.Duration(i)*time.Second/30))
	}

	assert.Equal(t, 3, d.Reports())
	assert.Equal(t, 3, logs.FilterMessage("frame diagnostics").Len())
	require.NoError(t, s.Dispose())
}

func TestDiagnosticsWarnsOnDrop(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := event.NewBus(nil)
	d := NewDiagnostics(fixedPerf{}, bus, 0, zap.New(core))
	require.NoError(t, d.Awake())

	event.Emit(bus, event.FPSDrop, event.FPSDropPayload{Current: 25, Previous: 60})
	require.Equal(t, 1, logs.FilterMessage("frame rate dropped").Len())

	require.NoError(t, d.Destroy())
	event.Emit(bus, event.FPSDrop, event.FPSDropPayload{Current: 25, Previous: 60})
	assert.Equal(t, 1, logs.FilterMessage("frame rate dropped").Len())
}
