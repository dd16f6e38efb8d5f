package scripting

import (
	"fmt"
	"path/filepath"

	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher is a component that reloads scripts when their files change.
// Events are drained on the frame goroutine, so reloads never race the
// hooks that call into the VM.
type Watcher struct {
	lifecycle.Base
	engine   *Engine
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	onReload func(name string)
}

// NewWatcher returns a watcher for engine's scripts directory.
func NewWatcher(engine *Engine, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		Base:   lifecycle.NewBase("script-watcher"),
		engine: engine,
		log:    log,
	}
}

// OnReload sets a callback run after each successful reload.
func (w *Watcher) OnReload(fn func(name string)) { w.onReload = fn }

func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("script watcher: %w", err)
	}
	if err := watcher.Add(w.engine.Dir()); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.engine.Dir(), err)
	}
	w.watcher = watcher
	w.log.Info("watching scripts", zap.String("dir", w.engine.Dir()))
	return nil
}

func (w *Watcher) Update(float32) error {
	if w.watcher == nil {
		return nil
	}
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("script watcher error", zap.Error(err))
		default:
			return nil
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Ext(ev.Name) != ".lua" {
		return
	}
	if ev.Op&fsnotify.Write != fsnotify.Write && ev.Op&fsnotify.Create != fsnotify.Create {
		return
	}
	if err := w.engine.Reload(ev.Name); err != nil {
		// keep the previous version running
		w.log.Warn("script reload failed", zap.String("file", ev.Name), zap.Error(err))
		return
	}
	name := ScriptName(ev.Name)
	w.log.Info("script reloaded", zap.String("script", name))
	if w.onReload != nil {
		w.onReload(name)
	}
}

func (w *Watcher) Destroy() error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
