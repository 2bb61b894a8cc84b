package capsule

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newEngineWith(providers ...Provider) *Engine {
	e := NewEngine(EngineConfig{Logger: zerolog.Nop()})
	for _, p := range providers {
		e.RegisterProvider(p)
	}
	return e
}

func TestEncodePrimitives(t *testing.T) {
	e := newEngineWith()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"negative int32", int32(-7), int64(-7)},
		{"uint64", uint64(9), int64(9)},
		{"uint64 at int64 max", uint64(math.MaxInt64), int64(math.MaxInt64)},
		{"uint64 above int64 range", uint64(math.MaxInt64) + 1, uint64(math.MaxInt64) + 1},
		{"uint64 max", uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"float", 2.5, 2.5},
		{"string", "hello", "hello"},
		{"bytes", []byte{1, 2, 3}, []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, warns, err := e.Encode(context.Background(), tt.in, Options{Strict: true})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(warns) != 0 {
				t.Fatalf("warnings: %v", warns)
			}
			out, _, err := e.Decode(context.Background(), data, Options{Strict: true})
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(out, tt.want) {
				t.Errorf("round trip = %v (%T), want %v (%T)", out, out, tt.want, tt.want)
			}
		})
	}
}

func TestEncodeComposites(t *testing.T) {
	e := newEngineWith()

	src := map[string]any{
		"items": []any{int64(1), "two", 3.0},
		"inner": map[string]any{"k": true},
	}
	data, _, err := e.Encode(context.Background(), src, Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, _, err := e.Decode(context.Background(), data, Options{Strict: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(out, src) {
		t.Errorf("round trip = %#v, want %#v", out, src)
	}
}

func TestEncodeIntKeyedMap(t *testing.T) {
	e := newEngineWith()

	src := map[int]any{1: "one", 2: "two"}
	data, _, err := e.Encode(context.Background(), src, Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, _, err := e.Decode(context.Background(), data, Options{Strict: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m, ok := out.(map[any]any)
	if !ok {
		t.Fatalf("got %T, want map[any]any", out)
	}
	if m[int64(1)] != "one" || m[int64(2)] != "two" {
		t.Errorf("round trip = %v", m)
	}
}

func TestEncodeUnencodableStrict(t *testing.T) {
	e := newEngineWith()

	_, _, err := e.Encode(context.Background(), make(chan int), Options{Strict: true})
	if !IsUnencodable(err) {
		t.Fatalf("err = %v, want unencodable", err)
	}
}

func TestEncodeLenientPlaceholder(t *testing.T) {
	e := newEngineWith()

	src := []any{1, make(chan int), 3}
	data, warns, err := e.Encode(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(warns) != 1 {
		t.Fatalf("warnings = %v, want one", warns)
	}
	if !strings.Contains(warns[0].Path, "[1]") {
		t.Errorf("warning path = %q, want element index", warns[0].Path)
	}

	out, _, err := e.Decode(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	items := out.([]any)
	if items[0] != int64(1) || items[2] != int64(3) {
		t.Errorf("siblings disturbed: %v", items)
	}
	if _, ok := items[1].(*Placeholder); !ok {
		t.Errorf("items[1] = %T, want *Placeholder", items[1])
	}
}

func TestExtractFailureLenientVsStrict(t *testing.T) {
	e := newEngineWith(&extractFailer{})

	src := map[string]any{"ok": 1, "bad": stringLike{"x"}}

	if _, _, err := e.Encode(context.Background(), src, Options{Strict: true}); !IsExtractionFailed(err) {
		t.Fatalf("strict err = %v, want extraction_failed", err)
	}

	data, warns, err := e.Encode(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("lenient encode failed: %v", err)
	}
	if len(warns) != 1 {
		t.Fatalf("warnings = %v", warns)
	}

	out, _, err := e.Decode(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m := out.(map[string]any)
	if _, ok := m["bad"].(*Placeholder); !ok {
		t.Errorf("bad = %T, want *Placeholder", m["bad"])
	}
}

type extractFailer struct{}

func (p *extractFailer) Name() string      { return "failer" }
func (p *extractFailer) Priority() int     { return 10 }
func (p *extractFailer) Match(v any) bool  { _, ok := v.(stringLike); return ok }
func (p *extractFailer) Extract(ctx context.Context, v any, opts *Options) (*StateBundle, error) {
	return nil, errors.New("cannot snapshot")
}
func (p *extractFailer) Rebuild(ctx context.Context, b *StateBundle) (any, error) {
	return nil, errors.New("unreachable")
}

func TestDecodeUnregisteredProvider(t *testing.T) {
	enc := newEngineWith(&fakeProvider{
		name:     "custom",
		priority: 10,
		match:    func(v any) bool { _, ok := v.(stringLike); return ok },
	})

	data, _, err := enc.Encode(context.Background(), stringLike{"x"}, Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// The decoding side has no "custom" provider. That is corruption,
	// not a recoverable failure, in both modes.
	dec := newEngineWith()
	for _, opts := range []Options{{Strict: true}, {}} {
		if _, _, err := dec.Decode(context.Background(), data, opts); !IsEnvelopeCorrupt(err) {
			t.Errorf("err = %v, want envelope_corrupt (strict=%v)", err, opts.Strict)
		}
	}
}

func TestDecodeGarbageBytes(t *testing.T) {
	e := newEngineWith()
	if _, _, err := e.Decode(context.Background(), []byte{0xff, 0x00, 0x13}, Options{}); !IsEnvelopeCorrupt(err) {
		t.Fatalf("err = %v, want envelope_corrupt", err)
	}
}

func TestEncodeDepthLimit(t *testing.T) {
	e := newEngineWith()

	deep := any("leaf")
	for i := 0; i < 20; i++ {
		deep = []any{deep}
	}
	if _, _, err := e.Encode(context.Background(), deep, Options{Strict: true, MaxDepth: 10}); !IsUnencodable(err) {
		t.Fatalf("err = %v, want unencodable at depth limit", err)
	}
	if _, _, err := e.Encode(context.Background(), deep, Options{Strict: true}); err != nil {
		t.Fatalf("default depth should admit 20 levels: %v", err)
	}
}

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, root *Node) error {
	return fmt.Errorf("payload denied")
}

func TestGuardDeniesEncode(t *testing.T) {
	e := NewEngine(EngineConfig{Logger: zerolog.Nop(), Guard: denyAll{}})
	if _, _, err := e.Encode(context.Background(), "ok", Options{Strict: true}); err == nil {
		t.Fatal("guard denial should abort the encode")
	}
}

func TestRebuildFailureLenient(t *testing.T) {
	p := &fakeProvider{
		name:     "fragile",
		priority: 10,
		match:    func(v any) bool { _, ok := v.(stringLike); return ok },
		rebuild:  func(b *StateBundle) (any, error) { return nil, errors.New("state lost") },
	}
	e := newEngineWith(p)

	data, _, err := e.Encode(context.Background(), map[string]any{"v": stringLike{"x"}}, Options{Strict: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, _, err := e.Decode(context.Background(), data, Options{Strict: true}); !IsReconstructionFailed(err) {
		t.Fatalf("strict err = %v, want reconstruction_failed", err)
	}

	out, warns, err := e.Decode(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	if len(warns) != 1 {
		t.Fatalf("warnings = %v", warns)
	}
	m := out.(map[string]any)
	ph, ok := m["v"].(*Placeholder)
	if !ok {
		t.Fatalf("v = %T, want *Placeholder", m["v"])
	}
	if ph.Reason == "" {
		t.Error("placeholder should carry the failure reason")
	}
}

func TestDescribeClassification(t *testing.T) {
	p := &fakeProvider{
		name:     "fake.string",
		priority: 10,
		match:    func(v any) bool { _, ok := v.(stringLike); return ok },
	}
	e := newEngineWith(p)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int", 42, WouldUsePrimitive},
		{"string", "hello", WouldUsePrimitive},
		{"bytes", []byte{1, 2}, WouldUsePrimitive},
		{"slice", []any{1, "two"}, WouldUsePrimitive},
		{"map", map[string]any{"k": 1}, WouldUsePrimitive},
		{"placeholder", &Placeholder{TypeName: "x"}, WouldUsePrimitive},
		{"provider match", stringLike{"x"}, "fake.string"},
		{"no match", func() {}, WouldUseUnencodable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if desc := e.Describe(tt.in); desc.WouldUse != tt.want {
				t.Errorf("WouldUse = %q, want %q", desc.WouldUse, tt.want)
			}
		})
	}
}
