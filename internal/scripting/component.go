package scripting

import (
	"fmt"

	"github.com/framecore/framecore/internal/core/lifecycle"
	lua "github.com/yuin/gopher-lua"
)

// hookFuncs maps lifecycle hooks to the function names a script defines.
var hookFuncs = []struct {
	hook lifecycle.Hook
	name string
}{
	{lifecycle.HookAwake, "awake"},
	{lifecycle.HookEnable, "on_enable"},
	{lifecycle.HookStart, "start"},
	{lifecycle.HookUpdate, "update"},
	{lifecycle.HookLateUpdate, "late_update"},
	{lifecycle.HookFixedUpdate, "fixed_update"},
	{lifecycle.HookPreRender, "on_pre_render"},
	{lifecycle.HookPostRender, "on_post_render"},
	{lifecycle.HookResize, "on_resize"},
	{lifecycle.HookDisable, "on_disable"},
	{lifecycle.HookDestroy, "destroy"},
}

// Component is a scripted behaviour: one instance table per component
// whose metatable indexes the script's prototype. Hooks are called as
// methods, e.g. update(self, dt).
type Component struct {
	lifecycle.Base
	engine *Engine
	script string
	proto  *lua.LTable
	self   *lua.LTable
}

// New instantiates script with props copied into the instance table.
func (e *Engine) New(script string, props map[string]any) (*Component, error) {
	proto, ok := e.protos[script]
	if !ok {
		return nil, fmt.Errorf("new %s: %w", script, ErrUnknownScript)
	}
	c := &Component{
		Base:   lifecycle.NewBase(script),
		engine: e,
		script: script,
		proto:  proto,
	}

	self := e.vm.NewTable()
	for k, v := range props {
		self.RawSetString(k, e.toLua(v))
	}
	meta := e.vm.NewTable()
	meta.RawSetString("__index", proto)
	e.vm.SetMetatable(self, meta)

	host := e.vm.NewUserData()
	host.Value = c
	e.vm.SetMetatable(host, e.vm.GetTypeMetatable(hostTypeName))
	self.RawSetString("host", host)

	c.self = self
	return c, nil
}

// Script returns the script name.
func (c *Component) Script() string { return c.script }

// Self returns the instance table.
func (c *Component) Self() *lua.LTable { return c.self }

// Hooks reports the hook functions the script defines at registration.
func (c *Component) Hooks() lifecycle.Hook {
	var h lifecycle.Hook
	for _, f := range hookFuncs {
		if _, ok := c.proto.RawGetString(f.name).(*lua.LFunction); ok {
			h |= f.hook
		}
	}
	return h
}

// call invokes the script's method name with self and args. A function
// that a reload removed is skipped.
func (c *Component) call(name string, args ...lua.LValue) error {
	fn, ok := c.proto.RawGetString(name).(*lua.LFunction)
	if !ok {
		return nil
	}
	vm := c.engine.vm
	params := make([]lua.LValue, 0, len(args)+1)
	params = append(params, c.self)
	params = append(params, args...)
	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, params...); err != nil {
		return fmt.Errorf("lua %s.%s: %w", c.script, name, err)
	}
	return nil
}

func (c *Component) Awake() error    { return c.call("awake") }
func (c *Component) OnEnable() error { return c.call("on_enable") }
func (c *Component) Start() error    { return c.call("start") }

func (c *Component) Update(dt float32) error {
	return c.call("update", lua.LNumber(dt))
}

func (c *Component) LateUpdate(dt float32) error {
	return c.call("late_update", lua.LNumber(dt))
}

func (c *Component) FixedUpdate(step float32) error {
	return c.call("fixed_update", lua.LNumber(step))
}

func (c *Component) OnPreRender() error  { return c.call("on_pre_render") }
func (c *Component) OnPostRender() error { return c.call("on_post_render") }

func (c *Component) OnResize(w, h int) error {
	return c.call("on_resize", lua.LNumber(w), lua.LNumber(h))
}

func (c *Component) OnDisable() error { return c.call("on_disable") }
func (c *Component) Destroy() error   { return c.call("destroy") }
