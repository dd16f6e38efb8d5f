package scheduler

import (
	"time"

	"github.com/framecore/framecore/internal/config"
	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/system"
	"github.com/framecore/framecore/internal/scene"
)

type settings struct {
	targetFPS       float64
	maxSkipped      int
	pacingTolerance time.Duration
	fixedStep       float32
	maxDelta        float32
	sampleInterval  time.Duration
	rateWindow      int
	dropRatio       float64
	framePoolSize   int

	bus        *event.Bus
	renderer   Renderer
	pipeline   Pipeline
	graph      *scene.Graph
	camera     *scene.Node
	background system.BackgroundSubmitter
}

func defaultSettings() settings {
	return settings{
		targetFPS:       60,
		maxSkipped:      2,
		pacingTolerance: time.Millisecond,
		fixedStep:       1.0 / 60.0,
		maxDelta:        0.016,
		sampleInterval:  time.Second,
		rateWindow:      60,
		dropRatio:       0.75,
		framePoolSize:   4,
	}
}

type Option func(*settings)

// WithConfig applies the [engine] section.
func WithConfig(cfg config.EngineConfig) Option {
	return func(s *settings) {
		if cfg.TargetFPS > 0 {
			s.targetFPS = cfg.TargetFPS
		}
		if cfg.MaxSkippedFrames >= 0 {
			s.maxSkipped = cfg.MaxSkippedFrames
		}
		if cfg.PacingTolerance >= 0 {
			s.pacingTolerance = cfg.PacingTolerance
		}
		if cfg.FixedStep > 0 {
			s.fixedStep = float32(cfg.FixedStep)
		}
		if cfg.MaxDelta > 0 {
			s.maxDelta = float32(cfg.MaxDelta)
		}
		if cfg.SampleInterval > 0 {
			s.sampleInterval = cfg.SampleInterval
		}
		if cfg.RateWindow > 0 {
			s.rateWindow = cfg.RateWindow
		}
		if cfg.DropRatio > 0 {
			s.dropRatio = cfg.DropRatio
		}
		if cfg.FramePoolSize > 0 {
			s.framePoolSize = cfg.FramePoolSize
		}
	}
}

func WithTargetFPS(fps float64) Option {
	return func(s *settings) {
		if fps > 0 {
			s.targetFPS = fps
		}
	}
}

// WithMaxSkippedFrames caps consecutive paced-out callbacks. Zero disables
// pacing.
func WithMaxSkippedFrames(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxSkipped = n
		}
	}
}

// WithPacingTolerance lets callbacks this much early of the frame interval
// still count as due.
func WithPacingTolerance(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.pacingTolerance = d
		}
	}
}

// WithSampleInterval sets how long each rate sample spans.
func WithSampleInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.sampleInterval = d
		}
	}
}

// WithBus shares an existing bus instead of creating one.
func WithBus(b *event.Bus) Option {
	return func(s *settings) { s.bus = b }
}

// WithRenderer sets the direct draw used when no pipeline is enabled.
func WithRenderer(r Renderer) Option {
	return func(s *settings) { s.renderer = r }
}

func WithPipeline(p Pipeline) Option {
	return func(s *settings) { s.pipeline = p }
}

// WithScene binds g to the scheduler and draws it from camera.
func WithScene(g *scene.Graph, camera *scene.Node) Option {
	return func(s *settings) {
		s.graph = g
		s.camera = camera
	}
}

// WithBackground runs BackgroundStarter components on b.
func WithBackground(b system.BackgroundSubmitter) Option {
	return func(s *settings) { s.background = b }
}
