package lifecycle

// Entry is the scheduler's record of one registered component. The typed
// hook fields are resolved once at registration so the per-frame batches
// never repeat interface assertions.
type Entry struct {
	Component Component
	Hooks     Hook
	State     State

	// Index is the registration sequence number; batches run in this order.
	Index uint64

	pending *Pending

	awake       Awaker
	enable      Enabler
	start       Starter
	startAsync  AsyncStarter
	startBg     BackgroundStarter
	update      Updater
	lateUpdate  LateUpdater
	fixedUpdate FixedUpdater
	preRender   PreRenderer
	postRender  PostRenderer
	resize      Resizer
	disable     Disabler
	destroy     Destroyer
}

// NewEntry resolves c's hooks.
func NewEntry(c Component, index uint64) *Entry {
	e := &Entry{
		Component: c,
		Hooks:     Capabilities(c),
		State:     StateUnregistered,
		Index:     index,
	}
	if e.Hooks.Has(HookAwake) {
		e.awake = c.(Awaker)
	}
	if e.Hooks.Has(HookEnable) {
		e.enable = c.(Enabler)
	}
	if e.Hooks.Has(HookStart) {
		switch s := c.(type) {
		case AsyncStarter:
			e.startAsync = s
		case BackgroundStarter:
			e.startBg = s
		case Starter:
			e.start = s
		}
	}
	if e.Hooks.Has(HookUpdate) {
		e.update = c.(Updater)
	}
	if e.Hooks.Has(HookLateUpdate) {
		e.lateUpdate = c.(LateUpdater)
	}
	if e.Hooks.Has(HookFixedUpdate) {
		e.fixedUpdate = c.(FixedUpdater)
	}
	if e.Hooks.Has(HookPreRender) {
		e.preRender = c.(PreRenderer)
	}
	if e.Hooks.Has(HookPostRender) {
		e.postRender = c.(PostRenderer)
	}
	if e.Hooks.Has(HookResize) {
		e.resize = c.(Resizer)
	}
	if e.Hooks.Has(HookDisable) {
		e.disable = c.(Disabler)
	}
	if e.Hooks.Has(HookDestroy) {
		e.destroy = c.(Destroyer)
	}
	return e
}

// Registered reports whether the entry is still part of the active set.
func (e *Entry) Registered() bool {
	return e.State != StateUnregistered && e.State != StateDestroyed
}

// Started reports membership of the Started-set.
func (e *Entry) Started() bool { return e.State == StateStarted }

// Active reports whether per-frame hooks should run for e this batch.
func (e *Entry) Active() bool {
	return e.State == StateStarted && e.Component.Enabled()
}

// Pending returns the in-flight start result, if any.
func (e *Entry) Pending() *Pending { return e.pending }

func (e *Entry) SetPending(p *Pending) { e.pending = p }

// Hook calls. Each is a plain function of the entry so callers can pass them
// around without allocating closures.

func CallAwake(e *Entry) error           { return e.awake.Awake() }
func CallEnable(e *Entry) error          { return e.enable.OnEnable() }
func CallStart(e *Entry) error           { return e.start.Start() }
func CallPreRender(e *Entry) error       { return e.preRender.OnPreRender() }
func CallPostRender(e *Entry) error      { return e.postRender.OnPostRender() }
func CallDisable(e *Entry) error         { return e.disable.OnDisable() }
func CallDestroy(e *Entry) error         { return e.destroy.Destroy() }
func CallStartBackground(e *Entry) error { return e.startBg.StartBackground() }

func CallUpdate(e *Entry, dt float32) error      { return e.update.Update(dt) }
func CallLateUpdate(e *Entry, dt float32) error  { return e.lateUpdate.LateUpdate(dt) }
func CallFixedUpdate(e *Entry, dt float32) error { return e.fixedUpdate.FixedUpdate(dt) }

func CallResize(e *Entry, size [2]int) error { return e.resize.OnResize(size[0], size[1]) }

// StartMode tells how an entry's start hook must be run.
type StartMode uint8

const (
	StartNone StartMode = iota
	StartSync
	StartAsync
	StartBackground
)

func (e *Entry) StartMode() StartMode {
	switch {
	case e.startAsync != nil:
		return StartAsync
	case e.startBg != nil:
		return StartBackground
	case e.start != nil:
		return StartSync
	}
	return StartNone
}

// CallStartAsync invokes StartAsync and records the result on the entry. A
// nil result is treated as already resolved.
func CallStartAsync(e *Entry) error {
	p := e.startAsync.StartAsync()
	if p == nil {
		p = Resolved()
	}
	e.pending = p
	return nil
}
