package providers

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// WeakRefProvider captures weak.Pointer values. A live referent is
// dereferenced and captured as a strong value; rehydration produces the
// referent itself, since a weak reference into a dead process has
// nothing left to be weak to. A dead referent captures as a Placeholder
// recording that the referent was already collected.
type WeakRefProvider struct{}

// NewWeakRefProvider returns the weak reference provider.
func NewWeakRefProvider() *WeakRefProvider {
	return &WeakRefProvider{}
}

func (p *WeakRefProvider) Name() string  { return "weak.ref" }
func (p *WeakRefProvider) Priority() int { return 150 }

func (p *WeakRefProvider) Match(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() == "weak" && strings.HasPrefix(t.Name(), "Pointer[")
}

func (p *WeakRefProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	method := rv.MethodByName("Value")
	if !method.IsValid() {
		return nil, fmt.Errorf("value has no Value method")
	}
	results := method.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("unexpected Value signature")
	}
	referent := results[0]

	b := capsule.NewBundle()
	b.Set("referent_type", referent.Type().Elem().String())
	if referent.IsNil() {
		b.Set("alive", false)
		return b, nil
	}
	b.Set("alive", true)
	b.Set("referent", referent.Elem().Interface())
	return b, nil
}

func (p *WeakRefProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	alive, _ := b.Bool("alive")
	typeName, _ := b.String("referent_type")
	if !alive {
		return &capsule.Placeholder{
			TypeName:    typeName,
			Description: "weak reference",
			Reason:      "referent was already collected at capture time",
		}, nil
	}
	referent, ok := b.Get("referent")
	if !ok {
		return nil, capsule.NewEnvelopeCorruptError("weak reference payload missing referent", nil)
	}
	return referent, nil
}
