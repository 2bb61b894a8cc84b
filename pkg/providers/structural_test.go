package providers

import (
	"context"
	"testing"

	"github.com/stasisproject/stasis/pkg/capsule"
)

type counter struct {
	Hits  int64
	Label string
}

func (c *counter) Snapshot() map[string]any {
	return map[string]any{"hits": c.Hits, "label": c.Label}
}

func (c *counter) Restore(state map[string]any) error {
	if v, ok := state["hits"].(int64); ok {
		c.Hits = v
	}
	if v, ok := state["label"].(string); ok {
		c.Label = v
	}
	return nil
}

type address struct {
	Host string
	Port int
}

type severity int

func TestStructuralSnapshotter(t *testing.T) {
	engine := newTestEngine(t)
	engine.Types().Register(&counter{})

	src := &counter{Hits: 42, Label: "requests"}
	out := roundTrip(t, engine, src, capsule.Options{Strict: true})

	rebuilt, ok := out.(*counter)
	if !ok {
		t.Fatalf("got %T, want *counter", out)
	}
	if rebuilt.Hits != 42 || rebuilt.Label != "requests" {
		t.Errorf("rebuilt = %+v", rebuilt)
	}
}

func TestStructuralExportedFields(t *testing.T) {
	engine := newTestEngine(t)
	engine.Types().Register(address{})

	out := roundTrip(t, engine, address{Host: "db.internal", Port: 5432}, capsule.Options{Strict: true})
	rebuilt, ok := out.(address)
	if !ok {
		t.Fatalf("got %T, want address", out)
	}
	if rebuilt.Host != "db.internal" || rebuilt.Port != 5432 {
		t.Errorf("rebuilt = %+v", rebuilt)
	}
}

func TestStructuralUnregisteredType(t *testing.T) {
	// Decoding without the type registered yields a dynamic stand-in
	// that still exposes the captured fields.
	encEngine := newTestEngine(t)
	decEngine := newTestEngine(t)

	data, _, err := encEngine.Encode(context.Background(), address{Host: "h", Port: 80}, capsule.Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, _, err := decEngine.Decode(context.Background(), data, capsule.Options{Strict: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	dyn, ok := out.(*capsule.DynamicInstance)
	if !ok {
		t.Fatalf("got %T, want *capsule.DynamicInstance", out)
	}
	if v, _ := dyn.Field("Host"); v != "h" {
		t.Errorf("Host = %v, want h", v)
	}
	if v, _ := dyn.Field("Port"); v != int64(80) {
		t.Errorf("Port = %v, want 80", v)
	}
}

func TestStructuralNamedPrimitive(t *testing.T) {
	engine := newTestEngine(t)
	engine.Types().Register(severity(0))

	out := roundTrip(t, engine, severity(3), capsule.Options{Strict: true})
	if s, ok := out.(severity); !ok || s != 3 {
		t.Errorf("got %v (%T), want severity(3)", out, out)
	}
}

func TestStructuralNilPointer(t *testing.T) {
	engine := newTestEngine(t)

	var c *counter
	_, _, err := engine.Encode(context.Background(), c, capsule.Options{Strict: true})
	if err == nil {
		t.Fatal("expected error for nil pointer")
	}
}

func TestDescribe(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		value    any
		provider string
	}{
		{"snapshotter", &counter{}, "structural"},
		{"channel", make(chan int, 1), "queue.chan"},
		{"primitive wrapped", severity(1), "structural"},
		{"int", 42, capsule.WouldUsePrimitive},
		{"string", "hello", capsule.WouldUsePrimitive},
		{"slice", []any{1, "two"}, capsule.WouldUsePrimitive},
		{"map", map[string]any{"k": 1}, capsule.WouldUsePrimitive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := engine.Describe(tt.value)
			if desc.WouldUse != tt.provider {
				t.Errorf("WouldUse = %q, want %q", desc.WouldUse, tt.provider)
			}
		})
	}

	if desc := engine.Describe(func() {}); desc.WouldUse != capsule.WouldUseUnencodable {
		t.Errorf("WouldUse for func = %q, want %q", desc.WouldUse, capsule.WouldUseUnencodable)
	}
}
