package scripting

import (
	"unicode/utf8"

	"github.com/framecore/framecore/internal/scene"
	lua "github.com/yuin/gopher-lua"
)

// registerHostType installs the metatable for self.host. Methods that need
// a scene node raise a Lua error when the component is hosted elsewhere.
func (e *Engine) registerHostType() {
	mt := e.vm.NewTypeMetatable(hostTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"name":         hostName,
		"position":     hostPosition,
		"set_position": hostSetPosition,
		"translate":    hostTranslate,
		"rotation":     hostRotation,
		"set_rotation": hostSetRotation,
		"set_scale":    hostSetScale,
		"set_glyph":    hostSetGlyph,
		"set_color":    hostSetColor,
		"set_visible":  hostSetVisible,
		"destroy":      hostDestroy,
	}))
}

func checkComponent(L *lua.LState) *Component {
	ud := L.CheckUserData(1)
	c, ok := ud.Value.(*Component)
	if !ok {
		L.ArgError(1, "host expected")
	}
	return c
}

func checkNode(L *lua.LState) *scene.Node {
	c := checkComponent(L)
	n, ok := c.Host().(*scene.Node)
	if !ok {
		L.RaiseError("%s is not attached to a scene node", c.Name())
	}
	return n
}

func hostName(L *lua.LState) int {
	c := checkComponent(L)
	if h := c.Host(); h != nil {
		L.Push(lua.LString(h.HostName()))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}

func hostPosition(L *lua.LState) int {
	n := checkNode(L)
	L.Push(lua.LNumber(n.Transform.X))
	L.Push(lua.LNumber(n.Transform.Y))
	return 2
}

func hostSetPosition(L *lua.LState) int {
	n := checkNode(L)
	n.Transform.X = float32(L.CheckNumber(2))
	n.Transform.Y = float32(L.CheckNumber(3))
	return 0
}

func hostTranslate(L *lua.LState) int {
	n := checkNode(L)
	n.Transform.X += float32(L.CheckNumber(2))
	n.Transform.Y += float32(L.CheckNumber(3))
	return 0
}

func hostRotation(L *lua.LState) int {
	n := checkNode(L)
	L.Push(lua.LNumber(n.Transform.Rotation))
	return 1
}

func hostSetRotation(L *lua.LState) int {
	n := checkNode(L)
	n.Transform.Rotation = float32(L.CheckNumber(2))
	return 0
}

func hostSetScale(L *lua.LState) int {
	n := checkNode(L)
	n.Transform.Scale = float32(L.CheckNumber(2))
	return 0
}

func hostSetGlyph(L *lua.LState) int {
	n := checkNode(L)
	s := L.CheckString(2)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		L.ArgError(2, "glyph must be a single character")
	}
	n.Glyph = r
	return 0
}

func hostSetColor(L *lua.LState) int {
	n := checkNode(L)
	n.Color = uint32(L.CheckInt64(2)) & 0xFFFFFF
	return 0
}

func hostSetVisible(L *lua.LState) int {
	n := checkNode(L)
	n.Visible = L.CheckBool(2)
	return 0
}

func hostDestroy(L *lua.LState) int {
	checkNode(L).Destroy()
	return 0
}
