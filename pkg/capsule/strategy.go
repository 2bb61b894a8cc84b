package capsule

import "reflect"

// Strategy names how a callable or class-like value is captured.
type Strategy string

const (
	// StrategyReference stores a stable lookup path (declaring module +
	// qualified name), reconstructed by re-resolving that path.
	StrategyReference Strategy = "reference"

	// StrategyFullCapture stores the executable body, captured bindings,
	// and declaring-context descriptor, rebuilding without any external
	// lookup.
	StrategyFullCapture Strategy = "full-capture"

	// StrategyNone applies to values that are not callable or
	// class-like.
	StrategyNone Strategy = ""
)

// Callable is a value that may qualify for reference-based capture: it
// knows its declaring module and qualified name, the bindings it
// captured from an enclosing scope, and its executable source text.
type Callable interface {
	// CallablePath returns the declaring module and qualified name.
	// Empty module means the value has no stable path (anonymous, or
	// defined inside another function's local scope).
	CallablePath() (module, name string)

	// CapturedBindings returns bindings captured from an enclosing
	// scope, keyed by name. Non-empty bindings disqualify the reference
	// strategy.
	CapturedBindings() map[string]any

	// SourceText returns the executable body for full capture.
	SourceText() string
}

// Resolver re-resolves a reference path in some environment. The script
// runtime implements it.
type Resolver interface {
	Resolve(module, name string) (any, error)
}

// IdentityComparer lets wrapper types define identity against a
// re-resolved value. Runtimes that mint a fresh wrapper per lookup
// implement it to compare the wrapped callable instead of the wrapper.
type IdentityComparer interface {
	SameIdentity(other any) bool
}

// ChooseStrategy decides, per value, between the reference strategy and
// full capture. Reference is always attempted first and is only valid
// when all three preconditions hold: the value has a stable path, the
// path re-resolves to the very same value (identity, not equality), and
// the value captures no enclosing-scope bindings. Anything else falls
// back to full capture.
func ChooseStrategy(c Callable, r Resolver) Strategy {
	if len(c.CapturedBindings()) > 0 {
		return StrategyFullCapture
	}
	module, name := c.CallablePath()
	if module == "" || name == "" || r == nil {
		return StrategyFullCapture
	}
	resolved, err := r.Resolve(module, name)
	if err != nil || resolved == nil {
		return StrategyFullCapture
	}
	// Identity check: re-resolving the path must yield this exact
	// value, not merely an equal one.
	if !sameIdentity(resolved, c) {
		return StrategyFullCapture
	}
	return StrategyReference
}

// sameIdentity compares two values by identity. Values that implement
// IdentityComparer decide for themselves; pointer values compare by
// address; anything else is conservatively treated as a different value
// (equality is not identity).
func sameIdentity(resolved, original any) bool {
	if ic, ok := original.(IdentityComparer); ok {
		return ic.SameIdentity(resolved)
	}
	if ic, ok := resolved.(IdentityComparer); ok {
		return ic.SameIdentity(original)
	}
	ra := reflect.ValueOf(resolved)
	rb := reflect.ValueOf(original)
	if ra.Kind() == reflect.Pointer && rb.Kind() == reflect.Pointer {
		return ra.Pointer() == rb.Pointer()
	}
	return false
}
