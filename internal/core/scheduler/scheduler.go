package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/core/pool"
	"github.com/framecore/framecore/internal/core/system"
	"github.com/framecore/framecore/internal/scene"
	"go.uber.org/zap"
)

// Renderer is the graphics backend's direct draw and resize primitive.
type Renderer interface {
	Render(root, camera *scene.Node) error
	SetSize(width, height int)
}

// Pipeline is an effect pipeline as the scheduler sees it: an opaque
// terminal step.
type Pipeline interface {
	Enabled() bool
	Render() error
	SetSize(width, height int)
}

// Scheduler drives the frame loop: it paces callbacks against the target
// rate, runs every lifecycle phase over the registered components, renders,
// and requests the next frame. All methods must be called from the frame
// goroutine.
type Scheduler struct {
	frames FrameSource
	log    *zap.Logger
	bus    *event.Bus
	runner *system.Runner
	clock  *FrameClock

	payloads *pool.Pool[*event.FramePayload]
	timer    phaseTimer
	callback FrameCallback

	renderer Renderer
	pipeline Pipeline
	graph    *scene.Graph
	camera   *scene.Node

	running         bool
	frameID         FrameID
	frameInterval   time.Duration
	targetFPS       float64
	pacingTolerance time.Duration
	maxSkipped      int
	skipCount       int
	skipped         uint64
	fixedStep       float32
	maxDelta        float32
	lastFrameTime   time.Duration
	width, height   int
}

func New(frames FrameSource, log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	bus := cfg.bus
	if bus == nil {
		bus = event.NewBus(log)
	}

	s := &Scheduler{
		frames:          frames,
		log:             log,
		bus:             bus,
		runner:          system.NewRunner(bus, log),
		clock:           NewFrameClock(cfg.rateWindow, cfg.sampleInterval, cfg.dropRatio),
		renderer:        cfg.renderer,
		pipeline:        cfg.pipeline,
		camera:          cfg.camera,
		pacingTolerance: cfg.pacingTolerance,
		maxSkipped:      cfg.maxSkipped,
		fixedStep:       cfg.fixedStep,
		maxDelta:        cfg.maxDelta,
	}
	s.payloads = pool.New(
		func() *event.FramePayload { return &event.FramePayload{} },
		(*event.FramePayload).Reset,
		cfg.framePoolSize,
	)
	s.payloads.Prewarm(1)
	s.callback = s.frame
	s.SetTargetFPS(cfg.targetFPS)
	if cfg.background != nil {
		s.runner.SetBackground(cfg.background)
	}
	if cfg.graph != nil {
		s.SetScene(cfg.graph, cfg.camera)
	}
	return s
}

func (s *Scheduler) HostName() string { return "scheduler" }

// Bus returns the scheduler's event bus.
func (s *Scheduler) Bus() *event.Bus { return s.bus }

func (s *Scheduler) Running() bool { return s.running }

// Clock exposes the frame clock for diagnostics.
func (s *Scheduler) Clock() *FrameClock { return s.clock }

// SetScene binds g so node components register here, and draws it from
// camera.
func (s *Scheduler) SetScene(g *scene.Graph, camera *scene.Node) {
	s.graph = g
	s.camera = camera
	g.Bind(s)
}

func (s *Scheduler) Scene() *scene.Graph { return s.graph }

// SetRenderer replaces the direct draw backend.
func (s *Scheduler) SetRenderer(r Renderer) {
	s.renderer = r
	if r != nil && s.width > 0 && s.height > 0 {
		r.SetSize(s.width, s.height)
	}
}

// SetPipeline replaces the effect pipeline. A nil pipeline renders
// directly.
func (s *Scheduler) SetPipeline(p Pipeline) {
	s.pipeline = p
	if p != nil && s.width > 0 && s.height > 0 {
		p.SetSize(s.width, s.height)
	}
}

// Start resets the frame clock, announces render start and requests the
// first frame. It does nothing when already running.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	now := s.frames.Now()
	s.clock.Reset(now)
	s.lastFrameTime = now
	s.skipCount = 0
	s.skipped = 0

	s.log.Info("render loop started",
		zap.Float64("target_fps", s.targetFPS),
		zap.Int("components", s.runner.Len()))
	event.Emit(s.bus, event.RenderStart, event.RenderPayload{Timestamp: now})
	s.request()
}

// Stop cancels the next frame and announces render stop. A frame already
// running completes. It does nothing when not running.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	if s.frameID != 0 {
		s.frames.CancelFrame(s.frameID)
		s.frameID = 0
	}
	now := s.frames.Now()
	s.log.Info("render loop stopped", zap.Uint64("frames", s.clock.Frames()))
	event.Emit(s.bus, event.RenderStop, event.RenderPayload{Timestamp: now})
}

func (s *Scheduler) request() {
	if !s.running || s.frameID != 0 {
		return
	}
	s.frameID = s.frames.RequestFrame(s.callback)
}

// frame is the frame callback. Hook and event failures are handled by the
// runner and the bus. A render error ends the frame before post-render and
// is returned to the frame source after the next frame has been requested.
func (s *Scheduler) frame(t time.Duration) error {
	s.frameID = 0
	if !s.running {
		return nil
	}

	elapsed := t - s.lastFrameTime
	if elapsed < s.frameInterval-s.pacingTolerance && s.skipCount < s.maxSkipped {
		s.skipCount++
		s.skipped++
		s.request()
		return nil
	}
	defer s.request()

	s.skipCount = 0
	dt := float32(elapsed.Seconds())
	if dt > s.maxDelta {
		dt = s.maxDelta
	}
	if dt < 0 {
		dt = 0
	}
	s.lastFrameTime = t

	if sample, ok := s.clock.Tick(t); ok {
		event.Emit(s.bus, event.FPSSample, event.FPSSamplePayload{FPS: sample.FPS})
		if sample.Drop {
			event.Emit(s.bus, event.FPSDrop, event.FPSDropPayload{
				Current:  sample.FPS,
				Previous: sample.Previous,
			})
		}
	}

	payload := s.payloads.Acquire()
	payload.DeltaTime = dt
	payload.Timestamp = t
	event.Emit(s.bus, event.Frame, payload)
	s.payloads.Release(payload)

	s.timer.begin()
	s.runner.RunFixed(s.fixedStep)
	s.timer.lap(system.PhaseFixedUpdate)
	s.runner.RunUpdate(dt)
	s.timer.lap(system.PhaseUpdate)
	s.runner.RunPreRender()
	s.timer.lap(system.PhasePreRender)
	s.runner.RunLate(dt)
	s.timer.lap(system.PhaseLateUpdate)

	if err := s.render(); err != nil {
		return err
	}
	s.timer.lap(system.PhaseRender)

	s.runner.RunPostRender()
	s.timer.lap(system.PhasePostRender)
	if s.graph != nil {
		s.graph.FlushDestroyQueue()
	}
	s.timer.lap(system.PhaseCleanup)
	return nil
}

func (s *Scheduler) render() error {
	if s.pipeline != nil && s.pipeline.Enabled() {
		if err := s.pipeline.Render(); err != nil {
			return fmt.Errorf("render pipeline: %w", err)
		}
		return nil
	}
	if s.renderer == nil {
		return nil
	}
	var root *scene.Node
	if s.graph != nil {
		root = s.graph.Root()
	}
	if err := s.renderer.Render(root, s.camera); err != nil {
		return fmt.Errorf("render scene: %w", err)
	}
	return nil
}

// SetTargetFPS changes the frame interval. The frame in flight keeps the
// old one.
func (s *Scheduler) SetTargetFPS(fps float64) {
	if fps <= 0 {
		return
	}
	s.targetFPS = fps
	s.frameInterval = time.Duration(float64(time.Second) / fps)
}

func (s *Scheduler) TargetFPS() float64 { return s.targetFPS }

// FrameInterval returns the minimum spacing between processed frames.
func (s *Scheduler) FrameInterval() time.Duration { return s.frameInterval }

// PerformanceData reports the measured rate and the last frame's phase
// timings.
func (s *Scheduler) PerformanceData() Performance {
	return Performance{
		Current: s.clock.Current(),
		Average: s.clock.Average(),
		Min:     s.clock.Min(),
		Max:     s.clock.Max(),
		Frames:  s.clock.Frames(),
		Skipped: s.skipped,
		Timings: s.timer.snapshot(),
	}
}

// AddComponent registers c on host, or on the scheduler itself when host is
// nil, and announces it.
func (s *Scheduler) AddComponent(c lifecycle.Component, host lifecycle.Host) error {
	if host == nil {
		host = s
	}
	if _, err := s.runner.Register(c, host); err != nil {
		return err
	}
	event.Emit(s.bus, event.ComponentAdded, event.ComponentPayload{Component: c})
	return nil
}

// RemoveComponent unregisters c, drops it from its scene node and
// announces it. It reports whether c was registered.
func (s *Scheduler) RemoveComponent(c lifecycle.Component) bool {
	host := c.Host()
	if !s.runner.Unregister(c) {
		return false
	}
	if n, ok := host.(*scene.Node); ok {
		n.Detach(c)
	}
	event.Emit(s.bus, event.ComponentRemoved, event.ComponentPayload{Component: c})
	return true
}

// SetEnabled switches c on or off, running OnEnable or OnDisable.
func (s *Scheduler) SetEnabled(c lifecycle.Component, on bool) bool {
	return s.runner.SetEnabled(c, on)
}

// Started reports whether c has completed its start phase.
func (s *Scheduler) Started(c lifecycle.Component) bool { return s.runner.Started(c) }

// State returns c's lifecycle state.
func (s *Scheduler) State(c lifecycle.Component) lifecycle.State {
	e, ok := s.runner.Entry(c)
	if !ok {
		return lifecycle.StateUnregistered
	}
	return e.State
}

// Components returns the registered components in registration order.
func (s *Scheduler) Components() []lifecycle.Component { return s.runner.Components() }

// Resize propagates new output dimensions to the backend, the pipeline and
// every registered component. Unchanged dimensions are ignored.
func (s *Scheduler) Resize(width, height int) {
	if width <= 0 || height <= 0 || (width == s.width && height == s.height) {
		return
	}
	s.width, s.height = width, height
	if s.renderer != nil {
		s.renderer.SetSize(width, height)
	}
	if s.pipeline != nil {
		s.pipeline.SetSize(width, height)
	}
	s.runner.Resize(width, height)
	event.Emit(s.bus, event.Resize, event.ResizePayload{Width: width, Height: height})
}

// Size returns the last dimensions passed to Resize.
func (s *Scheduler) Size() (int, int) { return s.width, s.height }

// Dispose stops the loop, destroys the scene, removes every remaining
// component newest first, and releases the pipeline, the bus and the
// payload pool.
func (s *Scheduler) Dispose() error {
	s.Stop()
	if s.graph != nil {
		s.graph.Clear()
	}
	comps := s.runner.Components()
	for i := len(comps) - 1; i >= 0; i-- {
		s.RemoveComponent(comps[i])
	}

	var errs []error
	if d, ok := s.pipeline.(interface{ Dispose() error }); ok {
		if err := d.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose pipeline: %w", err))
		}
	}
	s.pipeline = nil
	s.bus.Clear()
	s.payloads.Clear()
	return errors.Join(errs...)
}
