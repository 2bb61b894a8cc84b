package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultCallTimeout bounds a single function invocation.
const DefaultCallTimeout = 30 * time.Second

// Env hosts Starlark modules and the functions defined in them. It
// implements capsule.Resolver: a function captured by reference is
// looked up here at rehydration time.
type Env struct {
	mu      sync.RWMutex
	modules map[string]starlark.StringDict
	sources map[string]string
	timeout time.Duration
	logger  zerolog.Logger
}

// EnvConfig configures a script environment.
type EnvConfig struct {
	// CallTimeout bounds each function invocation. Zero selects
	// DefaultCallTimeout.
	CallTimeout time.Duration

	// Logger receives evaluation diagnostics.
	Logger zerolog.Logger
}

// NewEnv creates an empty script environment.
func NewEnv(cfg EnvConfig) *Env {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Env{
		modules: make(map[string]starlark.StringDict),
		sources: make(map[string]string),
		timeout: cfg.CallTimeout,
		logger:  cfg.Logger.With().Str("component", "script-env").Logger(),
	}
}

// LoadModule executes source as a module and stores its globals under
// name. Reloading a module replaces the previous globals.
func (e *Env) LoadModule(name, source string) error {
	thread := &starlark.Thread{
		Name: "stasis/" + name,
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Debug().Str("module", name).Str("print", msg).Msg("Script output")
		},
	}

	globals, err := starlark.ExecFile(thread, name+".star", source, e.predeclared())
	if err != nil {
		return fmt.Errorf("loading module %q: %w", name, err)
	}

	e.mu.Lock()
	e.modules[name] = globals
	e.sources[name] = source
	e.mu.Unlock()

	e.logger.Debug().Str("module", name).Int("globals", len(globals)).Msg("Module loaded")
	return nil
}

// Resolve looks up a function by module and name. The returned value is
// a *Function whose underlying callable is the loaded module's global.
func (e *Env) Resolve(module, name string) (any, error) {
	e.mu.RLock()
	globals, ok := e.modules[module]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("module %q is not loaded", module)
	}
	val, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("module %q has no global %q", module, name)
	}
	fn, ok := val.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("global %q in module %q is %s, not a function", name, module, val.Type())
	}
	return e.lookupFunction(module, name, fn), nil
}

// Function returns the named function from a loaded module.
func (e *Env) Function(module, name string) (*Function, error) {
	v, err := e.Resolve(module, name)
	if err != nil {
		return nil, err
	}
	return v.(*Function), nil
}

// Modules lists the names of loaded modules.
func (e *Env) Modules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.modules))
	for name := range e.modules {
		names = append(names, name)
	}
	return names
}

// ModuleSource returns the source text a module was loaded from.
func (e *Env) ModuleSource(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	src, ok := e.sources[name]
	return src, ok
}

// DefineFunction compiles a standalone function from source text with
// the given captured bindings visible as free variables. The resulting
// function has no module path, so captures of it carry the source and
// bindings instead of a reference.
func (e *Env) DefineFunction(name, source string, captured map[string]any) (*Function, error) {
	predeclared := e.predeclared()
	for key, val := range captured {
		starlarkVal, err := ToStarlark(val)
		if err != nil {
			return nil, fmt.Errorf("converting binding %q: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	thread := &starlark.Thread{Name: "stasis/define"}
	globals, err := starlark.ExecFile(thread, name+".star", source, predeclared)
	if err != nil {
		return nil, fmt.Errorf("compiling function %q: %w", name, err)
	}
	val, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("source does not define %q", name)
	}
	fn, ok := val.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%q is %s, not a function", name, val.Type())
	}

	return &Function{
		env:      e,
		name:     name,
		source:   source,
		captured: captured,
		fn:       fn,
	}, nil
}

// lookupFunction wraps a module global in a Function carrying its
// reference path.
func (e *Env) lookupFunction(module, name string, fn *starlark.Function) *Function {
	e.mu.RLock()
	source := e.sources[module]
	e.mu.RUnlock()
	return &Function{
		env:    e,
		module: module,
		name:   name,
		source: source,
		fn:     fn,
	}
}

// predeclared builds the base environment every script sees.
func (e *Env) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct":    starlarkstruct.Default,
		"range":     starlark.NewBuiltin("range", builtinRange),
		"enumerate": starlark.NewBuiltin("enumerate", builtinEnumerate),
		"zip":       starlark.NewBuiltin("zip", builtinZip),
	}
}

// call invokes fn with a timeout, converting arguments and the result.
func (e *Env) call(ctx context.Context, fn *starlark.Function, args []any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	starlarkArgs := make(starlark.Tuple, len(args))
	for i, arg := range args {
		v, err := ToStarlark(arg)
		if err != nil {
			return nil, fmt.Errorf("converting argument %d: %w", i, err)
		}
		starlarkArgs[i] = v
	}

	type callResult struct {
		value starlark.Value
		err   error
	}
	resultCh := make(chan callResult, 1)

	go func() {
		thread := &starlark.Thread{
			Name: "stasis/call",
			Print: func(_ *starlark.Thread, msg string) {
				e.logger.Debug().Str("function", fn.Name()).Str("print", msg).Msg("Script output")
			},
		}
		value, err := starlark.Call(thread, fn, starlarkArgs, nil)
		resultCh <- callResult{value: value, err: err}
	}()

	select {
	case <-callCtx.Done():
		return nil, fmt.Errorf("function %q timed out after %v", fn.Name(), e.timeout)
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("calling %q: %w", fn.Name(), res.err)
		}
		return FromStarlark(res.value)
	}
}

// Built-in Starlark functions

// builtinRange implements the range() built-in function.
func builtinRange(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, stop, step int64 = 0, 0, 1

	switch len(args) {
	case 1:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "stop", &stop); err != nil {
			return nil, err
		}
	case 2:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop); err != nil {
			return nil, err
		}
	case 3:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "step", &step); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("range takes 1 to 3 arguments, got %d", len(args))
	}

	if step == 0 {
		return nil, fmt.Errorf("range step cannot be zero")
	}

	var list []starlark.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	} else {
		for i := start; i > stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	}

	return starlark.NewList(list), nil
}

// builtinEnumerate implements the enumerate() built-in function.
func builtinEnumerate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start int64 = 0

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var list []starlark.Value
	var x starlark.Value
	i := start
	for iter.Next(&x) {
		tuple := starlark.Tuple{starlark.MakeInt64(i), x}
		list = append(list, tuple)
		i++
	}

	return starlark.NewList(list), nil
}

// builtinZip implements the zip() built-in function.
func builtinZip(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return starlark.NewList(nil), nil
	}

	// Get iterators for all arguments
	iters := make([]starlark.Iterator, len(args))
	for i, arg := range args {
		iterable, ok := arg.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("zip argument %d is not iterable", i)
		}
		iters[i] = iterable.Iterate()
		defer iters[i].Done()
	}

	// Zip the iterables
	var list []starlark.Value
	for {
		tuple := make(starlark.Tuple, len(iters))
		for i, iter := range iters {
			if !iter.Next(&tuple[i]) {
				// One iterator is exhausted, stop
				return starlark.NewList(list), nil
			}
		}
		list = append(list, tuple)
	}
}
