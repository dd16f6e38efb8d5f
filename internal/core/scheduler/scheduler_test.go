package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/framecore/framecore/internal/config"
	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/core/system"
	"github.com/framecore/framecore/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const frame16 = 16 * time.Millisecond

// worker only updates.
type worker struct {
	lifecycle.Base
	journal *[]string
	deltas  []float32
	fail    error
	panics  bool
}

func newWorker(name string, journal *[]string) *worker {
	return &worker{Base: lifecycle.NewBase(name), journal: journal}
}

func (w *worker) Update(dt float32) error {
	*w.journal = append(*w.journal, w.Name()+".update")
	w.deltas = append(w.deltas, dt)
	if w.panics {
		panic("update exploded")
	}
	return w.fail
}

// starting adds a synchronous start hook.
type starting struct {
	*worker
}

func (s starting) Start() error {
	*s.journal = append(*s.journal, s.Name()+".start")
	return nil
}

type loading struct {
	*worker
	pending *lifecycle.Pending
}

func (l *loading) StartAsync() *lifecycle.Pending {
	*l.journal = append(*l.journal, l.Name()+".start")
	return l.pending
}

// phases records every per-frame hook.
type phases struct {
	lifecycle.Base
	journal *[]string
}

func (p *phases) record(h string) error {
	*p.journal = append(*p.journal, h)
	return nil
}

func (p *phases) FixedUpdate(float32) error { return p.record("fixedUpdate") }
func (p *phases) Update(float32) error      { return p.record("update") }
func (p *phases) OnPreRender() error        { return p.record("onPreRender") }
func (p *phases) LateUpdate(float32) error  { return p.record("lateUpdate") }
func (p *phases) OnPostRender() error       { return p.record("onPostRender") }
func (p *phases) OnResize(w, h int) error   { return p.record("onResize") }
func (p *phases) Destroy() error            { return p.record("destroy") }

type fakeRenderer struct {
	journal *[]string
	err     error
	root    *scene.Node
	camera  *scene.Node
	w, h    int
}

func (r *fakeRenderer) Render(root, camera *scene.Node) error {
	*r.journal = append(*r.journal, "render")
	r.root, r.camera = root, camera
	return r.err
}

func (r *fakeRenderer) SetSize(w, h int) { r.w, r.h = w, h }

type fakePipeline struct {
	journal  *[]string
	enabled  bool
	err      error
	w, h     int
	disposed bool
}

func (p *fakePipeline) Enabled() bool { return p.enabled }
func (p *fakePipeline) Render() error {
	*p.journal = append(*p.journal, "pipeline")
	return p.err
}
func (p *fakePipeline) SetSize(w, h int) { p.w, p.h = w, h }
func (p *fakePipeline) Dispose() error {
	p.disposed = true
	return nil
}

func newScheduler(t *testing.T, opts ...Option) (*Scheduler, *ManualFrames) {
	t.Helper()
	frames := NewManualFrames()
	return New(frames, zap.NewNop(), opts...), frames
}

func advance(t *testing.T, frames *ManualFrames, n int, d time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, frames.Advance(d))
	}
}

func TestStartedAndUnstartedComponentsAcrossFrames(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	x := starting{newWorker("X", &journal)}
	y := newWorker("Y", &journal)
	require.NoError(t, s.AddComponent(x, nil))
	require.NoError(t, s.AddComponent(y, nil))
	s.Start()

	require.NoError(t, frames.Advance(frame16))
	assert.Equal(t, []string{"X.start", "Y.update"}, journal)

	journal = journal[:0]
	advance(t, frames, 2, frame16)
	assert.Equal(t, []string{"X.update", "Y.update", "X.update", "Y.update"}, journal)
	assert.True(t, s.Started(x))
}

func TestUpdateWaitsForAsyncStart(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	l := &loading{worker: newWorker("L", &journal), pending: lifecycle.NewPending()}
	require.NoError(t, s.AddComponent(l, nil))
	s.Start()

	advance(t, frames, 3, frame16)
	assert.Equal(t, []string{"L.start"}, journal)
	assert.Equal(t, lifecycle.StateStarting, s.State(l))

	l.pending.Resolve()
	advance(t, frames, 3, frame16)
	assert.Equal(t, []string{"L.start", "L.update", "L.update", "L.update"}, journal)
}

func TestFailedAsyncStartStaysInert(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	l := &loading{worker: newWorker("L", &journal), pending: lifecycle.Rejected(errors.New("no asset"))}
	require.NoError(t, s.AddComponent(l, nil))
	s.Start()

	advance(t, frames, 4, frame16)
	assert.Equal(t, []string{"L.start"}, journal)
	assert.Equal(t, lifecycle.StateStartFailed, s.State(l))
}

func TestHookFailureIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	frames := NewManualFrames()
	s := New(frames, zap.New(core))
	var journal []string
	bad := newWorker("bad", &journal)
	bad.fail = errors.New("nan position")
	worse := newWorker("worse", &journal)
	worse.panics = true
	good := newWorker("good", &journal)
	require.NoError(t, s.AddComponent(bad, nil))
	require.NoError(t, s.AddComponent(worse, nil))
	require.NoError(t, s.AddComponent(good, nil))

	var failures []string
	event.On(s.Bus(), event.ComponentError, func(p event.ComponentErrorPayload) {
		failures = append(failures, p.Component.Name()+":"+p.Hook.String())
	})
	s.Start()
	advance(t, frames, 2, frame16)

	assert.Equal(t, []string{
		"bad.update", "worse.update", "good.update",
		"bad.update", "worse.update", "good.update",
	}, journal)
	assert.Equal(t, []string{"bad:update", "worse:update", "bad:update", "worse:update"}, failures)
	assert.Equal(t, 4, logs.FilterMessage("component hook failed").Len())
	assert.Equal(t, 1, frames.Pending(), "next frame still requested")
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	s, frames := newScheduler(t)
	starts, stops := 0, 0
	event.On(s.Bus(), event.RenderStart, func(event.RenderPayload) { starts++ })
	event.On(s.Bus(), event.RenderStop, func(event.RenderPayload) { stops++ })

	s.Start()
	s.Start()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, frames.Pending())
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.Equal(t, 1, stops)
	assert.Zero(t, frames.Pending())
	assert.False(t, s.Running())
}

func TestStopFromInsideFrameCompletesIt(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	p := &phases{Base: lifecycle.NewBase("p"), journal: &journal}
	require.NoError(t, s.AddComponent(p, nil))
	event.On(s.Bus(), event.Frame, func(*event.FramePayload) { s.Stop() })
	s.Start()

	require.NoError(t, frames.Advance(frame16))
	assert.Contains(t, journal, "onPostRender")
	assert.Zero(t, frames.Pending())
}

func TestDeltaTimeIsClamped(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	w := newWorker("w", &journal)
	require.NoError(t, s.AddComponent(w, nil))

	var frameDelta float32
	event.On(s.Bus(), event.Frame, func(p *event.FramePayload) { frameDelta = p.DeltaTime })
	s.Start()

	require.NoError(t, frames.Advance(500*time.Millisecond))
	require.Len(t, w.deltas, 1)
	assert.Equal(t, float32(0.016), w.deltas[0])
	assert.Equal(t, float32(0.016), frameDelta)

	require.NoError(t, frames.Advance(20*time.Millisecond))
	require.Len(t, w.deltas, 2)
	assert.Equal(t, float32(0.016), w.deltas[1], "20ms is still clamped")
}

func TestPhaseOrder(t *testing.T) {
	r := &fakeRenderer{}
	s, frames := newScheduler(t, WithRenderer(r))
	var journal []string
	r.journal = &journal
	require.NoError(t, s.AddComponent(&phases{Base: lifecycle.NewBase("p"), journal: &journal}, nil))
	s.Start()

	// fixedUpdate runs before the batch that starts the component
	require.NoError(t, frames.Advance(frame16))
	assert.Equal(t, []string{"update", "onPreRender", "lateUpdate", "render", "onPostRender"}, journal)

	journal = journal[:0]
	require.NoError(t, frames.Advance(frame16))
	assert.Equal(t, []string{
		"fixedUpdate", "update", "onPreRender", "lateUpdate", "render", "onPostRender",
	}, journal)

	perf := s.PerformanceData()
	assert.Equal(t, uint64(2), perf.Frames)
	for _, ph := range system.Phases() {
		assert.Contains(t, perf.Timings, ph.String())
	}
}

func TestPacingSkipsEarlyCallbacksUpToCap(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	require.NoError(t, s.AddComponent(newWorker("w", &journal), nil))
	s.Start()

	advance(t, frames, 2, 5*time.Millisecond)
	assert.Empty(t, journal, "two early callbacks are skipped")
	assert.Equal(t, 1, frames.Pending())

	require.NoError(t, frames.Advance(5*time.Millisecond))
	assert.Len(t, journal, 1, "the cap forces the third")

	require.NoError(t, frames.Advance(5*time.Millisecond))
	assert.Len(t, journal, 1)
	assert.Equal(t, uint64(3), s.PerformanceData().Skipped)
}

func TestPacingCanBeDisabled(t *testing.T) {
	s, frames := newScheduler(t, WithMaxSkippedFrames(0))
	var journal []string
	require.NoError(t, s.AddComponent(newWorker("w", &journal), nil))
	s.Start()

	advance(t, frames, 3, time.Millisecond)
	assert.Len(t, journal, 3)
}

func TestSetTargetFPS(t *testing.T) {
	s, frames := newScheduler(t)
	var journal []string
	require.NoError(t, s.AddComponent(newWorker("w", &journal), nil))
	s.SetTargetFPS(30)
	assert.Equal(t, time.Second/30, s.FrameInterval())
	s.Start()

	require.NoError(t, frames.Advance(frame16))
	assert.Empty(t, journal)
	require.NoError(t, frames.Advance(frame16+2*time.Millisecond))
	assert.Len(t, journal, 1)

	s.SetTargetFPS(0)
	assert.Equal(t, 30.0, s.TargetFPS())
}

func TestRenderErrorPropagatesAndReschedules(t *testing.T) {
	var journal []string
	boom := errors.New("surface lost")
	r := &fakeRenderer{journal: &journal, err: boom}
	s, frames := newScheduler(t, WithRenderer(r))
	require.NoError(t, s.AddComponent(&phases{Base: lifecycle.NewBase("p"), journal: &journal}, nil))
	s.Start()

	err := frames.Advance(frame16)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, journal, "onPostRender")
	assert.Equal(t, 1, frames.Pending(), "next frame requested despite the failure")

	r.err = nil
	journal = journal[:0]
	require.NoError(t, frames.Advance(frame16))
	assert.Contains(t, journal, "onPostRender")
}

func TestPipelineReplacesDirectDraw(t *testing.T) {
	var journal []string
	r := &fakeRenderer{journal: &journal}
	p := &fakePipeline{journal: &journal, enabled: true}
	s, frames := newScheduler(t, WithRenderer(r), WithPipeline(p))
	s.Start()

	require.NoError(t, frames.Advance(frame16))
	assert.Equal(t, []string{"pipeline"}, journal)

	p.enabled = false
	require.NoError(t, frames.Advance(frame16))
	assert.Equal(t, []string{"pipeline", "render"}, journal)

	p.enabled = true
	p.err = errors.New("no terminal")
	assert.ErrorContains(t, frames.Advance(frame16), "render pipeline")
}

func TestFramePayloadIsPooled(t *testing.T) {
	s, frames := newScheduler(t)
	var seen []*event.FramePayload
	var stamps []time.Duration
	event.On(s.Bus(), event.Frame, func(p *event.FramePayload) {
		seen = append(seen, p)
		stamps = append(stamps, p.Timestamp)
	})
	s.Start()

	advance(t, frames, 2, frame16)
	require.Len(t, seen, 2)
	assert.Same(t, seen[0], seen[1])
	assert.Equal(t, []time.Duration{frame16, 2 * frame16}, stamps)
	assert.Zero(t, seen[0].DeltaTime, "payload is reset once released")
}

func TestRateSamplesAndDrops(t *testing.T) {
	s, frames := newScheduler(t, WithSampleInterval(100*time.Millisecond))
	var samples []float64
	var drops []event.FPSDropPayload
	event.On(s.Bus(), event.FPSSample, func(p event.FPSSamplePayload) { samples = append(samples, p.FPS) })
	event.On(s.Bus(), event.FPSDrop, func(p event.FPSDropPayload) { drops = append(drops, p) })
	s.Start()

	advance(t, frames, 7, frame16)
	require.Len(t, samples, 1)
	assert.InDelta(t, 62.5, samples[0], 1e-9)
	assert.Empty(t, drops)

	advance(t, frames, 2, 50*time.Millisecond)
	require.Len(t, samples, 2)
	assert.InDelta(t, 20, samples[1], 1e-9)
	require.Len(t, drops, 1)
	assert.InDelta(t, 20, drops[0].Current, 1e-9)
	assert.InDelta(t, 62.5, drops[0].Previous, 1e-9)

	perf := s.PerformanceData()
	assert.InDelta(t, 20, perf.Current, 1e-9)
	assert.InDelta(t, 20, perf.Min, 1e-9)
	assert.InDelta(t, 62.5, perf.Max, 1e-9)
	assert.Greater(t, perf.Average, 0.0)
}

func TestComponentEventsAndHost(t *testing.T) {
	s, _ := newScheduler(t)
	var added, removed []string
	event.On(s.Bus(), event.ComponentAdded, func(p event.ComponentPayload) { added = append(added, p.Component.Name()) })
	event.On(s.Bus(), event.ComponentRemoved, func(p event.ComponentPayload) { removed = append(removed, p.Component.Name()) })

	var journal []string
	w := newWorker("w", &journal)
	require.NoError(t, s.AddComponent(w, nil))
	assert.Equal(t, "scheduler", w.Host().HostName())

	err := s.AddComponent(w, nil)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyRegistered)

	assert.True(t, s.RemoveComponent(w))
	assert.False(t, s.RemoveComponent(w))
	assert.Nil(t, w.Host())
	assert.Equal(t, []string{"w"}, added)
	assert.Equal(t, []string{"w"}, removed)
	assert.Equal(t, lifecycle.StateUnregistered, s.State(w))
}

func TestResize(t *testing.T) {
	var journal []string
	r := &fakeRenderer{journal: &journal}
	s, _ := newScheduler(t, WithRenderer(r))
	require.NoError(t, s.AddComponent(&phases{Base: lifecycle.NewBase("p"), journal: &journal}, nil))
	var sizes []event.ResizePayload
	event.On(s.Bus(), event.Resize, func(p event.ResizePayload) { sizes = append(sizes, p) })

	s.Resize(80, 24)
	s.Resize(80, 24)
	s.Resize(0, 10)

	assert.Equal(t, []string{"onResize"}, journal, "resize reaches components that have not started")
	assert.Equal(t, []event.ResizePayload{{Width: 80, Height: 24}}, sizes)
	assert.Equal(t, 80, r.w)

	p := &fakePipeline{journal: &journal}
	s.SetPipeline(p)
	assert.Equal(t, 24, p.h, "a late pipeline gets the current size")
}

func TestSceneComponentsAndDeferredDestruction(t *testing.T) {
	g := scene.NewGraph()
	camera := g.NewNode("camera", nil)
	var journal []string
	r := &fakeRenderer{journal: &journal}
	s, frames := newScheduler(t, WithScene(g, camera), WithRenderer(r))

	ship := g.NewNode("ship", nil)
	p := &phases{Base: lifecycle.NewBase("engine"), journal: &journal}
	require.NoError(t, ship.AddComponent(p))
	assert.Same(t, ship, p.Host())
	s.Start()

	require.NoError(t, frames.Advance(frame16))
	assert.Same(t, g.Root(), r.root)
	assert.Same(t, camera, r.camera)

	g.MarkForDestruction(ship)
	journal = journal[:0]
	require.NoError(t, frames.Advance(frame16))
	assert.Equal(t, "destroy", journal[len(journal)-1], "queued nodes are flushed after post-render")
	assert.Equal(t, lifecycle.StateUnregistered, s.State(p))
	assert.False(t, ship.Alive())
}

func TestRemoveComponentDetachesFromNode(t *testing.T) {
	g := scene.NewGraph()
	s, _ := newScheduler(t, WithScene(g, nil))
	var journal []string
	w := newWorker("drone", &journal)
	ship := g.NewNode("ship", nil)

	require.NoError(t, ship.AddComponent(w))
	require.True(t, s.RemoveComponent(w))
	assert.Empty(t, ship.Components())
	assert.Nil(t, w.Host())

	require.NoError(t, ship.AddComponent(w))
	assert.Len(t, ship.Components(), 1)
	assert.Len(t, s.Components(), 1)
	assert.Same(t, ship, w.Host())

	g.MarkForDestruction(ship)
	assert.Equal(t, 1, g.FlushDestroyQueue())
	assert.Empty(t, s.Components())
	assert.Equal(t, lifecycle.StateUnregistered, s.State(w))
}

func TestDispose(t *testing.T) {
	var journal []string
	p := &fakePipeline{journal: &journal, enabled: true}
	g := scene.NewGraph()
	s, frames := newScheduler(t, WithPipeline(p), WithScene(g, nil))

	first := newWorker("first", &journal)
	second := newWorker("second", &journal)
	require.NoError(t, s.AddComponent(first, nil))
	require.NoError(t, g.NewNode("n", nil).AddComponent(second))
	var removed []string
	event.On(s.Bus(), event.ComponentRemoved, func(c event.ComponentPayload) { removed = append(removed, c.Component.Name()) })
	s.Start()

	require.NoError(t, s.Dispose())
	assert.False(t, s.Running())
	assert.Zero(t, frames.Pending())
	assert.Equal(t, []string{"second", "first"}, removed)
	assert.True(t, p.disposed)
	assert.Empty(t, s.Components())
	for _, name := range event.Names {
		assert.Zero(t, s.Bus().Count(name))
	}
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default().Engine
	cfg.TargetFPS = 120
	cfg.MaxSkippedFrames = 0
	cfg.MaxDelta = 0.05
	s, frames := newScheduler(t, WithConfig(cfg))
	var journal []string
	w := newWorker("w", &journal)
	require.NoError(t, s.AddComponent(w, nil))
	s.Start()

	require.NoError(t, frames.Advance(30*time.Millisecond))
	assert.Equal(t, 120.0, s.TargetFPS())
	assert.InDelta(t, 0.03, w.deltas[0], 1e-6)
}
