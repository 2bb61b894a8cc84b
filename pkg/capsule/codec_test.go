package capsule

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestEncodingIsDeterministic(t *testing.T) {
	e := NewEngine(EngineConfig{Logger: zerolog.Nop()})

	src := map[string]any{"alpha": 1, "beta": []any{true, "x"}, "gamma": 2.5}
	first, _, err := e.Encode(context.Background(), src, Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 25; i++ {
		again, _, err := e.Encode(context.Background(), src, Options{Strict: true})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("iteration %d produced different bytes", i)
		}
	}
}

func TestEncodingIgnoresMapInsertionOrder(t *testing.T) {
	e := NewEngine(EngineConfig{Logger: zerolog.Nop()})

	a := map[string]any{}
	a["x"] = 1
	a["y"] = 2
	a["z"] = 3

	b := map[string]any{}
	b["z"] = 3
	b["x"] = 1
	b["y"] = 2

	da, _, err := e.Encode(context.Background(), a, Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	db, _, err := e.Encode(context.Background(), b, Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(da, db) {
		t.Error("logically equal maps encoded to different bytes")
	}
}

func TestNodeRoundTrip(t *testing.T) {
	root := &Node{
		Kind: NodeMap,
		Entries: []MapEntry{
			{
				Key:   &Node{Kind: NodePrimitive, Prim: "k"},
				Value: &Node{Kind: NodeEnvelope, Provider: "p", TypeName: "pkg.T", Fields: []FieldNode{{Name: "f", Value: &Node{Kind: NodePrimitive, Prim: int64(1)}}}},
			},
		},
	}
	data, err := marshalNode(root)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	back, err := unmarshalNode(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Kind != NodeMap || len(back.Entries) != 1 {
		t.Fatalf("root = %+v", back)
	}
	env := back.Entries[0].Value
	if env.Kind != NodeEnvelope || env.Provider != "p" || env.TypeName != "pkg.T" {
		t.Errorf("envelope = %+v", env)
	}
	if len(env.Fields) != 1 || env.Fields[0].Name != "f" || env.Fields[0].Value.Prim != int64(1) {
		t.Errorf("fields = %+v", env.Fields)
	}
}
