package capsule

import (
	"context"
	"testing"
)

type fakeProvider struct {
	name     string
	priority int
	match    func(any) bool
	rebuild  func(*StateBundle) (any, error)
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Priority() int { return p.priority }

func (p *fakeProvider) Match(v any) bool {
	if p.match == nil {
		return false
	}
	return p.match(v)
}

func (p *fakeProvider) Extract(ctx context.Context, v any, opts *Options) (*StateBundle, error) {
	if s, ok := v.(stringLike); ok {
		return NewBundle().Set("value", s.S), nil
	}
	return NewBundle().Set("value", v), nil
}

func (p *fakeProvider) Rebuild(ctx context.Context, b *StateBundle) (any, error) {
	if p.rebuild != nil {
		return p.rebuild(b)
	}
	v, _ := b.Get("value")
	return v, nil
}

func matchString(v any) bool {
	_, ok := v.(stringLike)
	return ok
}

type stringLike struct{ S string }

func TestRegistryPriorityOrder(t *testing.T) {
	r := NewRegistry()
	all := func(any) bool { return true }
	r.Register(&fakeProvider{name: "late", priority: 200, match: all})
	r.Register(&fakeProvider{name: "early", priority: 50, match: all})
	r.Register(&fakeProvider{name: "middle", priority: 100, match: all})

	if got := r.Find("x").Name(); got != "early" {
		t.Errorf("Find selected %q, want early", got)
	}

	infos := r.List()
	want := []string{"early", "middle", "late"}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("List()[%d] = %q, want %q", i, infos[i].Name, name)
		}
	}
}

func TestRegistryTieBreakByRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	all := func(any) bool { return true }
	r.Register(&fakeProvider{name: "first", priority: 100, match: all})
	r.Register(&fakeProvider{name: "second", priority: 100, match: all})

	if got := r.Find("x").Name(); got != "first" {
		t.Errorf("Find selected %q, want first", got)
	}
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	all := func(any) bool { return true }
	r.Register(&fakeProvider{name: "a", priority: 100, match: all})
	r.Register(&fakeProvider{name: "b", priority: 100, match: all})

	// Re-registering "a" must not push it behind "b".
	r.Register(&fakeProvider{name: "a", priority: 100, match: all})

	if got := r.Find("x").Name(); got != "a" {
		t.Errorf("Find selected %q after replacement, want a", got)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "a", priority: 100})

	if !r.Unregister("a") {
		t.Error("Unregister of existing provider returned false")
	}
	if r.Unregister("a") {
		t.Error("Unregister of missing provider returned true")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after unregister, want 0", r.Len())
	}
}

func TestRegistryFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "narrow", priority: 50, match: matchString})
	r.Register(&fakeProvider{name: "broad", priority: 100, match: func(any) bool { return true }})

	if got := r.Find(stringLike{"x"}).Name(); got != "narrow" {
		t.Errorf("Find = %q, want narrow", got)
	}
	if got := r.Find(42).Name(); got != "broad" {
		t.Errorf("Find = %q, want broad", got)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "a", priority: 100})

	if _, ok := r.Lookup("a"); !ok {
		t.Error("Lookup failed for registered provider")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup succeeded for missing provider")
	}
}
