package lifecycle

import "strings"

// Awaker runs once at registration, before OnEnable.
type Awaker interface {
	Awake() error
}

// Enabler runs at registration after Awake, and whenever the component is
// re-enabled.
type Enabler interface {
	OnEnable() error
}

// Starter runs once, before the first Update.
type Starter interface {
	Start() error
}

// AsyncStarter begins start-up work that settles later. The scheduler polls
// the returned Pending once per frame and keeps the component out of the
// update batches until it resolves.
type AsyncStarter interface {
	StartAsync() *Pending
}

// BackgroundStarter start-up work runs on the scheduler's worker pool, off
// the frame goroutine. It must not touch the scene or other components.
type BackgroundStarter interface {
	StartBackground() error
}

type Updater interface {
	Update(deltaTime float32) error
}

type LateUpdater interface {
	LateUpdate(deltaTime float32) error
}

type FixedUpdater interface {
	FixedUpdate(step float32) error
}

type PreRenderer interface {
	OnPreRender() error
}

type PostRenderer interface {
	OnPostRender() error
}

type Resizer interface {
	OnResize(width, height int) error
}

type Disabler interface {
	OnDisable() error
}

type Destroyer interface {
	Destroy() error
}

// HookSet lets a component narrow the hooks it reports. Components whose
// hooks are only known at runtime (scripts) implement every hook method
// and declare the real set here.
type HookSet interface {
	Hooks() Hook
}

// Hook is a bit set of lifecycle hooks.
type Hook uint16

const (
	HookAwake Hook = 1 << iota
	HookEnable
	HookStart
	HookUpdate
	HookLateUpdate
	HookFixedUpdate
	HookPreRender
	HookPostRender
	HookResize
	HookDisable
	HookDestroy

	HookNone Hook = 0
	HookAll       = HookAwake | HookEnable | HookStart | HookUpdate | HookLateUpdate |
		HookFixedUpdate | HookPreRender | HookPostRender | HookResize | HookDisable | HookDestroy
)

var hookNames = [...]string{
	"awake",
	"onEnable",
	"start",
	"update",
	"lateUpdate",
	"fixedUpdate",
	"onPreRender",
	"onPostRender",
	"onResize",
	"onDisable",
	"destroy",
}

// Has reports whether every hook in other is set in h.
func (h Hook) Has(other Hook) bool { return h&other == other }

func (h Hook) String() string {
	if h == HookNone {
		return "none"
	}
	var parts []string
	for i, name := range hookNames {
		if h&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Capabilities returns the hooks c implements, narrowed by HookSet.
func Capabilities(c Component) Hook {
	var h Hook
	if _, ok := c.(Awaker); ok {
		h |= HookAwake
	}
	if _, ok := c.(Enabler); ok {
		h |= HookEnable
	}
	switch c.(type) {
	case Starter, AsyncStarter, BackgroundStarter:
		h |= HookStart
	}
	if _, ok := c.(Updater); ok {
		h |= HookUpdate
	}
	if _, ok := c.(LateUpdater); ok {
		h |= HookLateUpdate
	}
	if _, ok := c.(FixedUpdater); ok {
		h |= HookFixedUpdate
	}
	if _, ok := c.(PreRenderer); ok {
		h |= HookPreRender
	}
	if _, ok := c.(PostRenderer); ok {
		h |= HookPostRender
	}
	if _, ok := c.(Resizer); ok {
		h |= HookResize
	}
	if _, ok := c.(Disabler); ok {
		h |= HookDisable
	}
	if _, ok := c.(Destroyer); ok {
		h |= HookDestroy
	}
	if hs, ok := c.(HookSet); ok {
		h &= hs.Hooks()
	}
	return h
}
