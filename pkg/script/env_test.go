package script

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLoadModuleAndResolve(t *testing.T) {
	env := NewEnv(EnvConfig{})

	source := `
def double(x):
    return x * 2

def greet(name):
    return "hello " + name

_internal = 42
`
	if err := env.LoadModule("mathutil", source); err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	v, err := env.Resolve("mathutil", "double")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	fn, ok := v.(*Function)
	if !ok {
		t.Fatalf("Resolve returned %T, want *Function", v)
	}

	module, name := fn.CallablePath()
	if module != "mathutil" || name != "double" {
		t.Errorf("CallablePath() = (%q, %q), want (mathutil, double)", module, name)
	}
	if fn.CapturedBindings() != nil {
		t.Errorf("module function should have no captured bindings")
	}

	result, err := fn.Call(context.Background(), int64(21))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != int64(42) {
		t.Errorf("double(21) = %v, want 42", result)
	}
}

func TestResolveErrors(t *testing.T) {
	env := NewEnv(EnvConfig{})
	if err := env.LoadModule("m", "x = 1\ndef f():\n    return x\n"); err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	tests := []struct {
		name    string
		module  string
		global  string
		wantErr string
	}{
		{"missing module", "other", "f", "not loaded"},
		{"missing global", "m", "g", "no global"},
		{"not a function", "m", "x", "not a function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Resolve(tt.module, tt.global)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadModuleSyntaxError(t *testing.T) {
	env := NewEnv(EnvConfig{})
	err := env.LoadModule("bad", "def f(:\n    pass\n")
	if err == nil {
		t.Fatal("expected syntax error, got nil")
	}
}

func TestDefineFunctionWithBindings(t *testing.T) {
	env := NewEnv(EnvConfig{})

	source := `
def scale(x):
    return x * factor
`
	fn, err := env.DefineFunction("scale", source, map[string]any{"factor": int64(3)})
	if err != nil {
		t.Fatalf("DefineFunction failed: %v", err)
	}

	module, name := fn.CallablePath()
	if module != "" {
		t.Errorf("standalone function has module %q, want empty", module)
	}
	if name != "scale" {
		t.Errorf("name = %q, want scale", name)
	}
	if fn.SourceText() != source {
		t.Errorf("SourceText does not round-trip")
	}
	bindings := fn.CapturedBindings()
	if bindings["factor"] != int64(3) {
		t.Errorf("CapturedBindings()[factor] = %v, want 3", bindings["factor"])
	}

	result, err := fn.Call(context.Background(), int64(5))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != int64(15) {
		t.Errorf("scale(5) = %v, want 15", result)
	}
}

func TestDefineFunctionMissingName(t *testing.T) {
	env := NewEnv(EnvConfig{})
	_, err := env.DefineFunction("f", "def g():\n    return 1\n", nil)
	if err == nil {
		t.Fatal("expected error for missing definition, got nil")
	}
}

func TestModuleReload(t *testing.T) {
	env := NewEnv(EnvConfig{})
	if err := env.LoadModule("m", "def f():\n    return 1\n"); err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if err := env.LoadModule("m", "def f():\n    return 2\n"); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	fn, err := env.Function("m", "f")
	if err != nil {
		t.Fatalf("Function failed: %v", err)
	}
	result, err := fn.Call(context.Background())
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != int64(2) {
		t.Errorf("reloaded f() = %v, want 2", result)
	}
}

func TestCallTimeout(t *testing.T) {
	env := NewEnv(EnvConfig{CallTimeout: 50 * time.Millisecond})

	// A deliberately slow loop. Starlark has no sleep, so spin.
	source := `
def spin():
    total = 0
    for i in range(100000000):
        total += i
    return total
`
	if err := env.LoadModule("slow", source); err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	fn, err := env.Function("slow", "spin")
	if err != nil {
		t.Fatalf("Function failed: %v", err)
	}

	_, err = fn.Call(context.Background())
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error %q does not mention timeout", err)
	}
}

func TestModules(t *testing.T) {
	env := NewEnv(EnvConfig{})
	if err := env.LoadModule("a", "x = 1"); err != nil {
		t.Fatal(err)
	}
	if err := env.LoadModule("b", "y = 2"); err != nil {
		t.Fatal(err)
	}

	names := env.Modules()
	if len(names) != 2 {
		t.Errorf("Modules() returned %d names, want 2", len(names))
	}

	src, ok := env.ModuleSource("a")
	if !ok || src != "x = 1" {
		t.Errorf("ModuleSource(a) = (%q, %v)", src, ok)
	}
}
