package script

import (
	"context"

	"go.starlark.net/starlark"
)

// Function is a callable script value. It satisfies capsule.Callable,
// so captures of it choose between a reference to its module path and a
// full carry of its source text.
type Function struct {
	env      *Env
	module   string
	name     string
	source   string
	captured map[string]any
	fn       *starlark.Function
}

// CallablePath returns the module and global name this function was
// resolved from. Both are empty for standalone functions built with
// DefineFunction.
func (f *Function) CallablePath() (module, name string) {
	return f.module, f.name
}

// Name returns the function's global name.
func (f *Function) Name() string {
	return f.name
}

// CapturedBindings returns the free-variable bindings a standalone
// function closed over. Module functions return nil.
func (f *Function) CapturedBindings() map[string]any {
	return f.captured
}

// SourceText returns the source this function was compiled from.
func (f *Function) SourceText() string {
	return f.source
}

// Call invokes the function with the given arguments. Arguments and the
// result cross the Go/Starlark boundary through the package converters.
func (f *Function) Call(ctx context.Context, args ...any) (any, error) {
	return f.env.call(ctx, f.fn, args)
}

// SameIdentity reports whether other wraps the same underlying
// callable. Each Resolve mints a fresh wrapper, so wrappers compare by
// the compiled function they share, not by their own address.
func (f *Function) SameIdentity(other any) bool {
	o, ok := other.(*Function)
	if !ok {
		return false
	}
	return f.fn == o.fn
}
