package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framecore/framecore/internal/config"
	"github.com/framecore/framecore/internal/core/effect"
	"github.com/framecore/framecore/internal/core/jobs"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/core/scheduler"
	"github.com/framecore/framecore/internal/data"
	"github.com/framecore/framecore/internal/persist"
	"github.com/framecore/framecore/internal/render/terminal"
	"github.com/framecore/framecore/internal/scene"
	"github.com/framecore/framecore/internal/scripting"
	"github.com/framecore/framecore/internal/system"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	diagnosticsInterval = 5 * time.Second
	fpsStep             = 10
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Terminal screen
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	// 4. Scripts
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	log.Info("scripts loaded", zap.Strings("scripts", engine.Scripts()))

	// 5. Connect to PostgreSQL when telemetry is on
	var db *persist.DB
	if cfg.Telemetry.Enabled {
		db, err = persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
	}

	// 6. Scheduler, worker pool and frame source. The scheduler is disposed
	// first, then the pool stops, then the engine and the database close.
	pool := jobs.New(cfg.Engine.StartWorkers, log)
	defer pool.Close()
	frames := scheduler.NewTickerFrames(cfg.Display.RefreshRate, log)
	graph := scene.NewGraph()
	sched := scheduler.New(frames, log,
		scheduler.WithConfig(cfg.Engine),
		scheduler.WithRenderer(terminal.NewBackend(screen)),
		scheduler.WithScene(graph, nil),
		scheduler.WithBackground(pool),
	)
	defer func() {
		if err := sched.Dispose(); err != nil {
			log.Error("dispose scheduler", zap.Error(err))
		}
	}()

	// 7. Scene
	camera, err := loadScene(cfg.Scene, graph, engine)
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	sched.SetScene(graph, camera)
	log.Info("scene built", zap.Int("nodes", graph.Len()), zap.Int("components", len(sched.Components())))

	if cfg.Scripting.HotReload {
		if err := sched.AddComponent(scripting.NewWatcher(engine, log), nil); err != nil {
			return fmt.Errorf("script watcher: %w", err)
		}
	}

	// 8. Effect pipeline
	pipeline, err := newPipeline(cfg.Effects, screen, graph, camera, sched)
	if err != nil {
		return fmt.Errorf("effects: %w", err)
	}
	if !cfg.Effects.Enabled {
		pipeline.Disable()
	}
	sched.SetPipeline(pipeline)

	// 9. Telemetry and diagnostics
	if db != nil {
		tel := system.NewTelemetry(cfg.Telemetry, sched.Bus(), persist.NewSampleRepo(db), pool, log)
		tel.OnPrepare(func(ctx context.Context) error {
			return persist.RunMigrations(ctx, db.Pool, log)
		})
		if err := sched.AddComponent(tel, nil); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	if err := sched.AddComponent(system.NewDiagnostics(sched, sched.Bus(), diagnosticsInterval, log), nil); err != nil {
		return fmt.Errorf("diagnostics: %w", err)
	}

	// 10. Input
	ctx, quit := context.WithCancel(ctx)
	defer quit()
	input := terminal.NewInputPump(screen, sched.Resize, quit)
	input.OnKey(func(ev *tcell.EventKey) { handleKey(ev, sched, pipeline, log) })
	if err := sched.AddComponent(input, nil); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	sched.Resize(screen.Size())

	// 11. Frame loop
	sched.Start()
	log.Info("framecore running",
		zap.Float64("target_fps", sched.TargetFPS()),
		zap.Duration("refresh", frames.Interval()))
	if err := frames.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("frame loop: %w", err)
	}
	sched.Stop()

	perf := sched.PerformanceData()
	log.Info("framecore stopped",
		zap.Uint64("frames", perf.Frames),
		zap.Uint64("skipped", perf.Skipped),
		zap.Float64("fps_avg", perf.Average))
	return nil
}

// loadScene builds the manifest's scene, attaching a scripted component per
// script entry. A missing manifest leaves the scene empty.
func loadScene(cfg config.SceneConfig, graph *scene.Graph, engine *scripting.Engine) (*scene.Node, error) {
	if cfg.Manifest == "" {
		return nil, nil
	}
	manifest, err := data.LoadManifest(cfg.Manifest)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return manifest.Build(graph, func(script string, props map[string]any) (lifecycle.Component, error) {
		c, err := engine.New(script, props)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func newPipeline(cfg config.EffectsConfig, screen tcell.Screen, graph *scene.Graph, camera *scene.Node, stats terminal.StatsSource) (*effect.Pipeline[*terminal.Buffer], error) {
	p := terminal.NewPipeline(effect.WithOutputScale[*terminal.Buffer](cfg.OutputScale))
	stages := []effect.Stage[*terminal.Buffer]{terminal.NewScenePass(graph, camera)}
	if cfg.Fade > 0 {
		stages = append(stages, terminal.NewFade(cfg.Fade))
	}
	if cfg.HUD {
		stages = append(stages, terminal.NewStatsOverlay(stats))
	}
	stages = append(stages, terminal.NewOutput(screen))
	for _, s := range stages {
		if err := p.AddStage(s, false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// handleKey toggles effects with 'e' and steps the target rate with '+'
// and '-'.
func handleKey(ev *tcell.EventKey, sched *scheduler.Scheduler, pipeline *effect.Pipeline[*terminal.Buffer], log *zap.Logger) {
	switch ev.Rune() {
	case 'e':
		if pipeline.Enabled() {
			pipeline.Disable()
		} else {
			pipeline.Enable()
		}
		log.Info("effects toggled", zap.Bool("enabled", pipeline.Enabled()))
	case '+':
		sched.SetTargetFPS(sched.TargetFPS() + fpsStep)
		log.Info("target fps changed", zap.Float64("target_fps", sched.TargetFPS()))
	case '-':
		if sched.TargetFPS() > fpsStep {
			sched.SetTargetFPS(sched.TargetFPS() - fpsStep)
			log.Info("target fps changed", zap.Float64("target_fps", sched.TargetFPS()))
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	// the screen owns the terminal
	if cfg.File != "" {
		if cfg.Format != "json" {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	return zapCfg.Build()
}
