package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrUnknownScript is returned when a component names a script that was
// never loaded.
var ErrUnknownScript = errors.New("unknown script")

const hostTypeName = "framecore.host"

// Engine wraps a single gopher-lua VM holding one prototype table per
// script. Single-goroutine access only (frame loop).
type Engine struct {
	vm     *lua.LState
	log    *zap.Logger
	dir    string
	protos map[string]*lua.LTable
}

// NewEngine creates a Lua engine and loads every script in scriptsDir. A
// missing directory yields an engine with no scripts.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:     vm,
		log:    log,
		dir:    scriptsDir,
		protos: make(map[string]*lua.LTable),
	}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	e.registerHostType()

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.load(filepath.Join(e.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ScriptName returns the script name for a file: its base name without
// the extension.
func ScriptName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// load runs the file and stores the table it returns as the script's
// prototype. Reloading a known script replaces the prototype's fields in
// place, so live instances pick up the new functions.
func (e *Engine) load(path string) error {
	fn, err := e.vm.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	t, ok := result.(*lua.LTable)
	if !ok {
		return fmt.Errorf("script %s returned %s, want table", path, result.Type())
	}

	name := ScriptName(path)
	proto, ok := e.protos[name]
	if !ok {
		e.protos[name] = t
		e.log.Debug("loaded lua script", zap.String("file", path))
		return nil
	}
	var keys []lua.LValue
	proto.ForEach(func(k, _ lua.LValue) { keys = append(keys, k) })
	for _, k := range keys {
		proto.RawSet(k, lua.LNil)
	}
	t.ForEach(func(k, v lua.LValue) { proto.RawSet(k, v) })
	e.log.Debug("reloaded lua script", zap.String("file", path))
	return nil
}

// Reload re-runs the script at path, adding it if it is new.
func (e *Engine) Reload(path string) error {
	return e.load(path)
}

// Has reports whether a script is loaded.
func (e *Engine) Has(name string) bool {
	_, ok := e.protos[name]
	return ok
}

// Scripts returns the loaded script names, sorted.
func (e *Engine) Scripts() []string {
	out := make([]string, 0, len(e.protos))
	for name := range e.protos {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dir returns the scripts directory.
func (e *Engine) Dir() string { return e.dir }

// luaLog is the log(msg) global.
func (e *Engine) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	e.log.Info("lua", zap.String("where", strings.TrimSuffix(L.Where(1), ":")), zap.String("msg", msg))
	return 0
}

// toLua converts a manifest property to a Lua value.
func (e *Engine) toLua(v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		t := e.vm.NewTable()
		for _, item := range v {
			t.Append(e.toLua(item))
		}
		return t
	case map[string]any:
		t := e.vm.NewTable()
		for k, item := range v {
			t.RawSetString(k, e.toLua(item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
