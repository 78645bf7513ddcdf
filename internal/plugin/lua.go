package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/taskforge/taskforge/internal/task"
)

// LuaResolver loads file-based plugins written in Lua. A plugin script runs
// in a sandboxed state (no io, os, debug or package libraries) and must set
// a global `plugin` table:
//
//	plugin = {
//	  name = "builtin-extras",
//	  version = "1.0.0",
//	  description = "extra task types",
//	  initialize = function(settings) ... end, -- optional
//	  destroy = function() ... end,            -- optional
//	  task_types = {
//	    { name = "upper", description = "...", version = "1.0.0",
//	      priority = 2, execute = function(inputs) ... end },
//	  },
//	}
type LuaResolver struct{}

// NewLuaResolver creates a resolver for .lua plugin files.
func NewLuaResolver() *LuaResolver {
	return &LuaResolver{}
}

// CanResolve reports whether the path names a Lua plugin file.
func (r *LuaResolver) CanResolve(path string) bool {
	return strings.HasSuffix(path, ".lua")
}

// Resolve executes the script and validates the plugin table shape.
func (r *LuaResolver) Resolve(path string) (Plugin, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("executing plugin script %q: %w", path, err)
	}

	p, err := parseLuaPlugin(L)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("plugin script %q: %w", path, err)
	}
	return p, nil
}

// openSafeLibraries opens only safe Lua standard libraries. io, os, debug
// and package stay closed so a plugin cannot reach the host system.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// parseLuaPlugin validates the global plugin table and builds the provider.
func parseLuaPlugin(L *lua.LState) (*luaPlugin, error) {
	tbl, ok := L.GetGlobal("plugin").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("no global plugin table: %w", ErrInvalidPlugin)
	}

	p := &luaPlugin{L: L}
	for field, dst := range map[string]*string{
		"name":        &p.name,
		"version":     &p.version,
		"description": &p.description,
	} {
		s, ok := tbl.RawGetString(field).(lua.LString)
		if !ok || string(s) == "" {
			return nil, fmt.Errorf("missing string field %q: %w", field, ErrInvalidPlugin)
		}
		*dst = string(s)
	}

	if fn, ok := tbl.RawGetString("initialize").(*lua.LFunction); ok {
		p.initFn = fn
	}
	if fn, ok := tbl.RawGetString("destroy").(*lua.LFunction); ok {
		p.destroyFn = fn
	}

	typesTbl, ok := tbl.RawGetString("task_types").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("missing task_types table: %w", ErrInvalidPlugin)
	}

	var parseErr error
	typesTbl.ForEach(func(_, v lua.LValue) {
		if parseErr != nil {
			return
		}
		entry, ok := v.(*lua.LTable)
		if !ok {
			parseErr = fmt.Errorf("task_types entries must be tables: %w", ErrInvalidPlugin)
			return
		}
		typ, err := p.parseTaskType(entry)
		if err != nil {
			parseErr = err
			return
		}
		p.types = append(p.types, typ)
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(p.types) == 0 {
		return nil, fmt.Errorf("plugin contributes no task types: %w", ErrInvalidPlugin)
	}
	return p, nil
}

// luaPlugin adapts a parsed Lua script to the Plugin contract. All task
// instances of a plugin share its Lua state, which is not goroutine safe;
// the plugin mutex serializes every call into it.
type luaPlugin struct {
	mu sync.Mutex
	L  *lua.LState

	name        string
	version     string
	description string

	initFn    *lua.LFunction
	destroyFn *lua.LFunction
	types     []*task.Type

	closed bool
}

func (p *luaPlugin) Name() string        { return p.name }
func (p *luaPlugin) Version() string     { return p.version }
func (p *luaPlugin) Description() string { return p.description }

func (p *luaPlugin) Initialize(ctx *InitContext) error {
	if p.initFn == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	settings := toLua(p.L, ctx.Config.Settings)
	if err := p.L.CallByParam(lua.P{Fn: p.initFn, NRet: 0, Protect: true}, settings); err != nil {
		return fmt.Errorf("plugin %q initialize: %w", p.name, err)
	}
	return nil
}

func (p *luaPlugin) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	var err error
	if p.destroyFn != nil {
		if callErr := p.L.CallByParam(lua.P{Fn: p.destroyFn, NRet: 0, Protect: true}); callErr != nil {
			err = fmt.Errorf("plugin %q destroy: %w", p.name, callErr)
		}
	}
	p.L.Close()
	p.closed = true
	return err
}

func (p *luaPlugin) TaskTypes() []*task.Type {
	out := make([]*task.Type, len(p.types))
	copy(out, p.types)
	return out
}

// parseTaskType builds a task.Type descriptor from one task_types entry.
func (p *luaPlugin) parseTaskType(entry *lua.LTable) (*task.Type, error) {
	name, ok := entry.RawGetString("name").(lua.LString)
	if !ok || string(name) == "" {
		return nil, fmt.Errorf("task type missing name: %w", ErrInvalidPlugin)
	}
	execFn, ok := entry.RawGetString("execute").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("task type %q missing execute function: %w", name, ErrInvalidPlugin)
	}

	typ := &task.Type{
		Name:    string(name),
		Version: p.version,
	}
	if s, ok := entry.RawGetString("description").(lua.LString); ok {
		typ.Description = string(s)
	}
	if s, ok := entry.RawGetString("version").(lua.LString); ok {
		typ.Version = string(s)
	}
	if n, ok := entry.RawGetString("priority").(lua.LNumber); ok {
		typ.DefaultPriority = int(n)
	}

	typeName := typ.Name
	priority := typ.DefaultPriority
	typ.New = func(id string, inputs map[string]any) (task.Task, error) {
		return &luaTask{
			plugin:   p,
			id:       id,
			typeName: typeName,
			priority: priority,
			inputs:   inputs,
			execFn:   execFn,
		}, nil
	}
	return typ, nil
}

// luaTask executes one task type's Lua function.
type luaTask struct {
	plugin   *luaPlugin
	id       string
	typeName string
	priority int
	inputs   map[string]any
	execFn   *lua.LFunction

	mu       sync.Mutex
	progress float64
	metrics  task.Metrics
}

func (t *luaTask) ID() string       { return t.id }
func (t *luaTask) TypeName() string { return t.typeName }
func (t *luaTask) Priority() int    { return t.priority }

func (t *luaTask) Execute(ctx context.Context, tc *task.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tc.Cancel != nil && tc.Cancel.Cancelled() {
		return nil, fmt.Errorf("task %q cancelled: %s", t.id, tc.Cancel.Reason())
	}

	inputs := tc.Inputs
	if inputs == nil {
		inputs = t.inputs
	}

	t.mu.Lock()
	t.metrics.StartedAt = time.Now()
	t.metrics.Attempts++
	t.mu.Unlock()

	t.plugin.mu.Lock()
	if t.plugin.closed {
		t.plugin.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", t.plugin.name, ErrNotLoaded)
	}
	L := t.plugin.L
	err := L.CallByParam(lua.P{Fn: t.execFn, NRet: 1, Protect: true}, toLua(L, inputs))
	var result any
	if err == nil {
		result = fromLua(L.Get(-1))
		L.Pop(1)
	}
	t.plugin.mu.Unlock()

	t.mu.Lock()
	t.metrics.FinishedAt = time.Now()
	t.metrics.Duration = t.metrics.FinishedAt.Sub(t.metrics.StartedAt)
	if err == nil {
		t.progress = 1
	}
	t.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("task %q execute: %w", t.id, err)
	}
	return result, nil
}

func (t *luaTask) Cancel(string) error { return nil }
func (t *luaTask) Pause() error        { return nil }
func (t *luaTask) Resume() error       { return nil }

func (t *luaTask) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *luaTask) Metrics() task.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

// toLua converts a Go value to a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(toLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// fromLua converts a Lua value to a Go value. Tables with a positive array
// length become slices; everything else becomes a string-keyed map.
func fromLua(lv lua.LValue) any {
	switch val := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			out[k.String()] = fromLua(v)
		})
		return out
	default:
		return val.String()
	}
}
