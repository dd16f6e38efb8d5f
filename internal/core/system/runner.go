package system

import (
	"fmt"

	"github.com/framecore/framecore/internal/core/event"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/core/safe"
	"go.uber.org/zap"
)

// BackgroundSubmitter runs start-up work off the frame goroutine.
type BackgroundSubmitter interface {
	Submit(fn func() error) *lifecycle.Pending
}

// Runner owns the active set and the Started-set and dispatches lifecycle
// hooks to them in batches. Every batch iterates a snapshot of the active
// set taken when the batch begins, in registration order; an entry removed
// during a batch is skipped for the rest of it.
//
// Runner is not safe for concurrent use.
type Runner struct {
	entries  []*lifecycle.Entry
	byID     map[uint64]*lifecycle.Entry
	snapshot []*lifecycle.Entry
	depth    int
	seq      uint64

	bus        *event.Bus
	log        *zap.Logger
	background BackgroundSubmitter
}

func NewRunner(bus *event.Bus, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		entries:  make([]*lifecycle.Entry, 0, 64),
		byID:     make(map[uint64]*lifecycle.Entry, 64),
		snapshot: make([]*lifecycle.Entry, 0, 64),
		bus:      bus,
		log:      log,
	}
}

// SetBackground installs the submitter used for BackgroundStarter
// components. Without one, background starts run synchronously.
func (r *Runner) SetBackground(b BackgroundSubmitter) {
	r.background = b
}

// Register attaches c to host, runs Awake then OnEnable, and adds c to the
// active set. Hook failures are logged and do not block registration.
func (r *Runner) Register(c lifecycle.Component, host lifecycle.Host) (*lifecycle.Entry, error) {
	if _, ok := r.byID[c.ID()]; ok || c.Host() != nil {
		return nil, fmt.Errorf("register %s#%d: %w", c.Name(), c.ID(), lifecycle.ErrAlreadyRegistered)
	}
	r.seq++
	e := lifecycle.NewEntry(c, r.seq)
	c.SetHost(host)

	e.State = lifecycle.StateAwake
	if e.Hooks.Has(lifecycle.HookAwake) {
		r.check(e, lifecycle.HookAwake, safe.Call1(lifecycle.CallAwake, e))
	}
	e.State = lifecycle.StateEnabled
	if e.Hooks.Has(lifecycle.HookEnable) && c.Enabled() {
		r.check(e, lifecycle.HookEnable, safe.Call1(lifecycle.CallEnable, e))
	}

	r.entries = append(r.entries, e)
	r.byID[c.ID()] = e
	return e, nil
}

// Unregister runs OnDisable if c is enabled, then Destroy. It drops c from
// the active set and the Started-set and detaches its host. It reports
// whether c was registered.
func (r *Runner) Unregister(c lifecycle.Component) bool {
	e, ok := r.byID[c.ID()]
	if !ok {
		return false
	}
	delete(r.byID, c.ID())
	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}

	if c.Enabled() && e.Hooks.Has(lifecycle.HookDisable) {
		r.check(e, lifecycle.HookDisable, safe.Call1(lifecycle.CallDisable, e))
	}
	e.State = lifecycle.StateDisabled
	if e.Hooks.Has(lifecycle.HookDestroy) {
		r.check(e, lifecycle.HookDestroy, safe.Call1(lifecycle.CallDestroy, e))
	}
	e.State = lifecycle.StateDestroyed
	c.SetHost(nil)
	return true
}

// SetEnabled flips c's enabled flag and runs OnEnable or OnDisable. It
// reports false when c is not registered, cannot be toggled, or already has
// the requested state.
func (r *Runner) SetEnabled(c lifecycle.Component, on bool) bool {
	e, ok := r.byID[c.ID()]
	if !ok || c.Enabled() == on {
		return false
	}
	t, ok := c.(lifecycle.Toggler)
	if !ok {
		return false
	}
	t.SetEnabledFlag(on)
	if on && e.Hooks.Has(lifecycle.HookEnable) {
		r.check(e, lifecycle.HookEnable, safe.Call1(lifecycle.CallEnable, e))
	}
	if !on && e.Hooks.Has(lifecycle.HookDisable) {
		r.check(e, lifecycle.HookDisable, safe.Call1(lifecycle.CallDisable, e))
	}
	return true
}

// Entry returns the record for c.
func (r *Runner) Entry(c lifecycle.Component) (*lifecycle.Entry, bool) {
	e, ok := r.byID[c.ID()]
	return e, ok
}

// Started reports whether c is in the Started-set.
func (r *Runner) Started(c lifecycle.Component) bool {
	e, ok := r.byID[c.ID()]
	return ok && e.Started()
}

// Len returns the size of the active set.
func (r *Runner) Len() int { return len(r.entries) }

// Components returns the registered components in registration order.
func (r *Runner) Components() []lifecycle.Component {
	out := make([]lifecycle.Component, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Component
	}
	return out
}

// takeSnapshot copies the active set for one batch. The shared buffer is
// only used by the outermost batch; a hook that starts another batch (a
// resize from inside Update, say) gets its own copy.
func (r *Runner) takeSnapshot() []*lifecycle.Entry {
	r.depth++
	if r.depth > 1 {
		return append([]*lifecycle.Entry(nil), r.entries...)
	}
	r.snapshot = append(r.snapshot[:0], r.entries...)
	return r.snapshot
}

func (r *Runner) releaseSnapshot() {
	r.depth--
	if r.depth > 0 {
		return
	}
	for i := range r.snapshot {
		r.snapshot[i] = nil
	}
	r.snapshot = r.snapshot[:0]
}

// RunFixed runs FixedUpdate on every active started component.
func (r *Runner) RunFixed(step float32) {
	r.runDelta(lifecycle.HookFixedUpdate, lifecycle.CallFixedUpdate, step)
}

// RunLate runs LateUpdate on every active started component.
func (r *Runner) RunLate(dt float32) {
	r.runDelta(lifecycle.HookLateUpdate, lifecycle.CallLateUpdate, dt)
}

// RunPreRender runs OnPreRender on every active started component.
func (r *Runner) RunPreRender() {
	r.run(lifecycle.HookPreRender, lifecycle.CallPreRender)
}

// RunPostRender runs OnPostRender on every active started component.
func (r *Runner) RunPostRender() {
	r.run(lifecycle.HookPostRender, lifecycle.CallPostRender)
}

func (r *Runner) run(h lifecycle.Hook, call func(*lifecycle.Entry) error) {
	batch := r.takeSnapshot()
	defer r.releaseSnapshot()
	for _, e := range batch {
		if !e.Hooks.Has(h) || !e.Registered() || !e.Active() {
			continue
		}
		r.check(e, h, safe.Call1(call, e))
	}
}

func (r *Runner) runDelta(h lifecycle.Hook, call func(*lifecycle.Entry, float32) error, dt float32) {
	batch := r.takeSnapshot()
	defer r.releaseSnapshot()
	for _, e := range batch {
		if !e.Hooks.Has(h) || !e.Registered() || !e.Active() {
			continue
		}
		r.check(e, h, safe.Call2(call, e, dt))
	}
}

// RunUpdate settles pending starts, begins start for components seen for
// the first time, then runs Update on every active started component.
//
// A component with a start hook joins the Started-set when a later batch
// observes its start as settled, so its first Update is never in the same
// batch that began its start. Components without a start hook are started
// on sight.
func (r *Runner) RunUpdate(dt float32) {
	batch := r.takeSnapshot()
	defer r.releaseSnapshot()

	for _, e := range batch {
		if e.State == lifecycle.StateStarting {
			r.settle(e)
		}
	}

	for _, e := range batch {
		if !e.Registered() {
			continue
		}
		if e.State == lifecycle.StateEnabled {
			if !e.Component.Enabled() {
				continue
			}
			r.begin(e)
			if e.State != lifecycle.StateStarted {
				continue
			}
		}
		if !e.Active() || !e.Hooks.Has(lifecycle.HookUpdate) {
			continue
		}
		r.check(e, lifecycle.HookUpdate, safe.Call2(lifecycle.CallUpdate, e, dt))
	}
}

func (r *Runner) begin(e *lifecycle.Entry) {
	switch e.StartMode() {
	case lifecycle.StartNone:
		e.State = lifecycle.StateStarted
		return
	case lifecycle.StartSync:
		if err := safe.Call1(lifecycle.CallStart, e); err != nil {
			e.SetPending(lifecycle.Rejected(err))
		} else {
			e.SetPending(lifecycle.Resolved())
		}
	case lifecycle.StartAsync:
		if err := safe.Call1(lifecycle.CallStartAsync, e); err != nil {
			e.SetPending(lifecycle.Rejected(err))
		}
	case lifecycle.StartBackground:
		if r.background != nil {
			e.SetPending(r.background.Submit(func() error {
				return safe.Call1(lifecycle.CallStartBackground, e)
			}))
		} else if err := safe.Call1(lifecycle.CallStartBackground, e); err != nil {
			e.SetPending(lifecycle.Rejected(err))
		} else {
			e.SetPending(lifecycle.Resolved())
		}
	}
	e.State = lifecycle.StateStarting
}

func (r *Runner) settle(e *lifecycle.Entry) {
	settled, err := e.Pending().Poll()
	if !settled {
		return
	}
	e.SetPending(nil)
	if err != nil {
		e.State = lifecycle.StateStartFailed
		r.check(e, lifecycle.HookStart, err)
		return
	}
	e.State = lifecycle.StateStarted
}

// Resize runs OnResize on every registered component, started or not.
func (r *Runner) Resize(width, height int) {
	batch := r.takeSnapshot()
	defer r.releaseSnapshot()
	size := [2]int{width, height}
	for _, e := range batch {
		if !e.Hooks.Has(lifecycle.HookResize) || !e.Registered() {
			continue
		}
		r.check(e, lifecycle.HookResize, safe.Call2(lifecycle.CallResize, e, size))
	}
}

// Clear unregisters every component, newest first.
func (r *Runner) Clear() {
	for len(r.entries) > 0 {
		r.Unregister(r.entries[len(r.entries)-1].Component)
	}
}

// check logs a failed hook and publishes it on the bus.
func (r *Runner) check(e *lifecycle.Entry, h lifecycle.Hook, err error) {
	if err == nil {
		return
	}
	r.log.Error("component hook failed",
		zap.Uint64("component_id", e.Component.ID()),
		zap.String("component", e.Component.Name()),
		zap.Stringer("hook", h),
		zap.Error(err))
	if r.bus != nil {
		event.Emit(r.bus, event.ComponentError, event.ComponentErrorPayload{
			Component: e.Component,
			Hook:      h,
			Err:       err,
		})
	}
}
