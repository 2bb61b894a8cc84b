package providers

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/script"
)

const mathModule = `
def double(x):
    return x * 2

def add(a, b):
    return a + b
`

func newScriptEngine(t *testing.T) (*capsule.Engine, *script.Env) {
	t.Helper()
	env := script.NewEnv(script.EnvConfig{})
	if err := env.LoadModule("math", mathModule); err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	return NewDefaultEngine(capsule.EngineConfig{Logger: zerolog.Nop()}, env), env
}

func TestScriptReferenceStrategy(t *testing.T) {
	engine, env := newScriptEngine(t)

	fn, err := env.Function("math", "double")
	if err != nil {
		t.Fatalf("Function failed: %v", err)
	}

	desc := engine.Describe(fn)
	if desc.WouldUse != "script.func" {
		t.Fatalf("WouldUse = %q", desc.WouldUse)
	}
	if desc.Strategy != capsule.StrategyReference {
		t.Errorf("Strategy = %v, want reference", desc.Strategy)
	}

	out := roundTrip(t, engine, fn, capsule.Options{Strict: true})
	rebuilt, ok := out.(*script.Function)
	if !ok {
		t.Fatalf("got %T, want *script.Function", out)
	}
	got, err := rebuilt.Call(context.Background(), 21)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != int64(42) {
		t.Errorf("double(21) = %v, want 42", got)
	}
}

func TestScriptFullStrategy(t *testing.T) {
	engine, env := newScriptEngine(t)

	fn, err := env.DefineFunction("scale", `
def scale(x):
    return x * factor
`, map[string]any{"factor": 3})
	if err != nil {
		t.Fatalf("DefineFunction failed: %v", err)
	}

	if desc := engine.Describe(fn); desc.Strategy != capsule.StrategyFullCapture {
		t.Errorf("Strategy = %v, want full", desc.Strategy)
	}

	out := roundTrip(t, engine, fn, capsule.Options{Strict: true})
	rebuilt := out.(*script.Function)
	got, err := rebuilt.Call(context.Background(), 5)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != int64(15) {
		t.Errorf("scale(5) = %v, want 15", got)
	}
}

func TestScriptReferenceUnresolvable(t *testing.T) {
	encEngine, env := newScriptEngine(t)
	fn, err := env.Function("math", "add")
	if err != nil {
		t.Fatal(err)
	}
	data, _, err := encEngine.Encode(context.Background(), fn, capsule.Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Decode against an environment without the module.
	bare := NewDefaultEngine(capsule.EngineConfig{Logger: zerolog.Nop()}, script.NewEnv(script.EnvConfig{}))
	_, _, err = bare.Decode(context.Background(), data, capsule.Options{Strict: true})
	if err == nil {
		t.Fatal("expected error resolving missing module")
	}
	if !capsule.IsReferenceUnresolvable(err) {
		t.Errorf("error = %v, want reference_unresolvable", err)
	}
}

func TestScriptFullCapturesModuleFunctionWithoutResolver(t *testing.T) {
	// Without a resolver the selector cannot verify the reference, so
	// the function carries its source and survives into any environment.
	env := script.NewEnv(script.EnvConfig{})
	if err := env.LoadModule("math", mathModule); err != nil {
		t.Fatal(err)
	}
	fn, err := env.Function("math", "double")
	if err != nil {
		t.Fatal(err)
	}

	encEngine := NewDefaultEngine(capsule.EngineConfig{Logger: zerolog.Nop()}, nil)
	data, _, err := encEngine.Encode(context.Background(), fn, capsule.Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decEngine := NewDefaultEngine(capsule.EngineConfig{Logger: zerolog.Nop()}, nil)
	out, _, err := decEngine.Decode(context.Background(), data, capsule.Options{Strict: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	rebuilt := out.(*script.Function)
	got, err := rebuilt.Call(context.Background(), 8)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != int64(16) {
		t.Errorf("double(8) = %v, want 16", got)
	}
}
