package lifecycle

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyRegistered is returned when a component that already has a host
// is registered again without being removed first.
var ErrAlreadyRegistered = errors.New("component already registered")

// Host is anything a component can be attached to: a scene node, the
// graphics context, or the scheduler itself.
type Host interface {
	HostName() string
}

// Component is the unit of behaviour driven by the scheduler. Lifecycle
// hooks are optional and declared by implementing the hook interfaces in
// hooks.go.
type Component interface {
	ID() uint64
	Name() string
	Enabled() bool
	Host() Host
	SetHost(h Host)
}

// Toggler is implemented by components whose enabled flag the scheduler may
// flip. Base implements it.
type Toggler interface {
	SetEnabledFlag(on bool)
}

var nextID atomic.Uint64

// NewID returns a process-unique component identifier.
func NewID() uint64 {
	return nextID.Add(1)
}

// Base provides the bookkeeping half of Component. Embed it and implement
// only the hooks you need.
type Base struct {
	id       uint64
	name     string
	disabled bool
	host     Host
}

// NewBase returns a Base with a fresh id.
func NewBase(name string) Base {
	return Base{id: NewID(), name: name}
}

func (b *Base) ID() uint64 {
	if b.id == 0 {
		b.id = NewID()
	}
	return b.id
}

func (b *Base) Name() string { return b.name }

func (b *Base) SetName(name string) { b.name = name }

func (b *Base) Enabled() bool { return !b.disabled }

// SetEnabledFlag flips the flag without running OnEnable/OnDisable; use
// Scheduler.SetEnabled to get the hooks.
func (b *Base) SetEnabledFlag(on bool) { b.disabled = !on }

func (b *Base) Host() Host { return b.host }

func (b *Base) SetHost(h Host) { b.host = h }
