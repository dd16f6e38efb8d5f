package system

import (
	"context"
	"time"

	"github.com/framecore/framecore/internal/config"
	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/persist"
	"go.uber.org/zap"
)

// SampleSink stores frame-rate rows. persist.SampleRepo implements it.
type SampleSink interface {
	InsertSamples(ctx context.Context, rows []persist.SampleRow) error
}

// Spawner runs named work off the frame goroutine. jobs.Pool implements it.
type Spawner interface {
	Go(name string, fn func() error)
}

const sinkTimeout = 5 * time.Second

// Telemetry buffers rate samples and drop warnings from the bus and writes
// them to a sink in batches. Writes run on the worker pool; the final flush
// at Destroy runs inline so nothing is lost at shutdown.
type Telemetry struct {
	lifecycle.Base
	bus        *event.Bus
	sink       SampleSink
	spawn      Spawner
	log        *zap.Logger
	session    string
	batchSize  int
	flushEvery time.Duration
	prepare    func(ctx context.Context) error
	now        func() time.Time

	handles []event.Handle
	rows    []persist.SampleRow
	frames  uint64
	wall    frameTime
}

func NewTelemetry(cfg config.TelemetryConfig, bus *event.Bus, sink SampleSink, spawn Spawner, log *zap.Logger) *Telemetry {
	if log == nil {
		log = zap.NewNop()
	}
	batch := cfg.BatchSize
	if batch < 1 {
		batch = 1
	}
	return &Telemetry{
		Base:       lifecycle.NewBase("telemetry"),
		bus:        bus,
		sink:       sink,
		spawn:      spawn,
		log:        log,
		session:    cfg.Session,
		batchSize:  batch,
		flushEvery: cfg.FlushEvery,
		now:        time.Now,
		rows:       make([]persist.SampleRow, 0, batch),
	}
}

// OnPrepare sets work run once on the worker pool before the first update,
// such as schema migrations.
func (t *Telemetry) OnPrepare(fn func(ctx context.Context) error) { t.prepare = fn }

// Pending returns the number of buffered rows.
func (t *Telemetry) Pending() int { return len(t.rows) }

func (t *Telemetry) Awake() error {
	t.handles = append(t.wall.subscribe(t.bus),
		event.On(t.bus, event.FPSSample, func(p event.FPSSamplePayload) {
			t.record(persist.KindSample, p.FPS, 0)
		}),
		event.On(t.bus, event.FPSDrop, func(p event.FPSDropPayload) {
			t.record(persist.KindDrop, p.Current, p.Previous)
		}),
	)
	return nil
}

func (t *Telemetry) StartBackground() error {
	if t.prepare == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return t.prepare(ctx)
}

func (t *Telemetry) record(kind persist.SampleKind, fps, previous float64) {
	t.rows = append(t.rows, persist.SampleRow{
		Session:    t.session,
		Kind:       kind,
		FPS:        fps,
		Previous:   previous,
		Frame:      t.frames,
		RecordedAt: t.now(),
	})
}

func (t *Telemetry) Update(float32) error {
	t.frames++
	if len(t.rows) >= t.batchSize || (t.flushEvery > 0 && t.wall.elapsed >= t.flushEvery && len(t.rows) > 0) {
		t.flush()
	}
	return nil
}

// flush hands the buffered rows to the worker pool.
func (t *Telemetry) flush() {
	t.wall.reset()
	batch := t.take()
	if len(batch) == 0 {
		return
	}
	t.spawn.Go("telemetry flush", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		return t.sink.InsertSamples(ctx, batch)
	})
}

func (t *Telemetry) take() []persist.SampleRow {
	if len(t.rows) == 0 {
		return nil
	}
	batch := make([]persist.SampleRow, len(t.rows))
	copy(batch, t.rows)
	t.rows = t.rows[:0]
	return batch
}

func (t *Telemetry) Destroy() error {
	for _, h := range t.handles {
		t.bus.Off(h)
	}
	t.handles = nil

	batch := t.take()
	if len(batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := t.sink.InsertSamples(ctx, batch); err != nil {
		return err
	}
	t.log.Debug("telemetry flushed", zap.Int("rows", len(batch)))
	return nil
}
