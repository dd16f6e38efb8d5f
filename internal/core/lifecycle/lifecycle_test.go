package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateOnly struct {
	Base
}

func (*updateOnly) Update(float32) error { return nil }

type full struct {
	Base
}

func (*full) Awake() error              { return nil }
func (*full) OnEnable() error           { return nil }
func (*full) Start() error              { return nil }
func (*full) Update(float32) error      { return nil }
func (*full) LateUpdate(float32) error  { return nil }
func (*full) FixedUpdate(float32) error { return nil }
func (*full) OnPreRender() error        { return nil }
func (*full) OnPostRender() error       { return nil }
func (*full) OnResize(int, int) error   { return nil }
func (*full) OnDisable() error          { return nil }
func (*full) Destroy() error            { return nil }

type narrowed struct {
	full
	hooks Hook
}

func (n *narrowed) Hooks() Hook { return n.hooks }

type asyncStart struct {
	Base
	p *Pending
}

func (a *asyncStart) StartAsync() *Pending { return a.p }

func TestCapabilities(t *testing.T) {
	assert.Equal(t, HookUpdate, Capabilities(&updateOnly{}))
	assert.Equal(t, HookAll, Capabilities(&full{}))
	assert.Equal(t, HookStart, Capabilities(&asyncStart{}))
}

func TestCapabilitiesNarrowedByHookSet(t *testing.T) {
	c := &narrowed{hooks: HookUpdate | HookDestroy}
	h := Capabilities(c)

	assert.True(t, h.Has(HookUpdate))
	assert.True(t, h.Has(HookDestroy))
	assert.False(t, h.Has(HookStart))

	e := NewEntry(c, 1)
	assert.Equal(t, StartNone, e.StartMode())
}

func TestEntryStartMode(t *testing.T) {
	assert.Equal(t, StartSync, NewEntry(&full{}, 1).StartMode())
	assert.Equal(t, StartAsync, NewEntry(&asyncStart{}, 2).StartMode())
	assert.Equal(t, StartNone, NewEntry(&updateOnly{}, 3).StartMode())
}

func TestCallStartAsyncNilIsResolved(t *testing.T) {
	e := NewEntry(&asyncStart{}, 1)
	require.NoError(t, CallStartAsync(e))

	settled, err := e.Pending().Poll()
	assert.True(t, settled)
	assert.NoError(t, err)
}

func TestPendingSettlesOnce(t *testing.T) {
	p := NewPending()
	settled, _ := p.Poll()
	assert.False(t, settled)

	boom := errors.New("boom")
	p.Reject(boom)
	p.Resolve()

	settled, err := p.Poll()
	assert.True(t, settled)
	assert.ErrorIs(t, err, boom)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after settling")
	}
}

func TestBaseIDsAreUnique(t *testing.T) {
	a := NewBase("a")
	b := NewBase("b")
	var lazy Base

	assert.NotZero(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotZero(t, lazy.ID())
	assert.Equal(t, lazy.ID(), lazy.ID())
}

func TestBaseEnabledDefault(t *testing.T) {
	b := NewBase("x")
	assert.True(t, b.Enabled())
	b.SetEnabledFlag(false)
	assert.False(t, b.Enabled())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "update|destroy", (HookUpdate | HookDestroy).String())
	assert.Equal(t, "none", HookNone.String())
	assert.Equal(t, "start-failed", StateStartFailed.String())
	assert.Equal(t, "unknown", State(200).String())
}
