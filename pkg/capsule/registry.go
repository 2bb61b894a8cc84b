package capsule

import (
	"sort"
	"sync"
)

// Registry is the priority-ordered collection of capability providers.
// It is the only engine structure mutated outside a single encode or
// decode call: registration is a rare, short, exclusive operation,
// while lookups run under a shared lock, so readers never observe a
// partially sorted provider list.
type Registry struct {
	mu sync.RWMutex

	// providers is kept sorted by (priority, registration sequence).
	providers []Provider

	// seq records each provider's original registration order so the
	// sort is stable across re-registrations and priority ties.
	seq     map[string]int
	counter int
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{seq: make(map[string]int)}
}

// Register inserts a provider, replacing any existing provider with the
// same name in place. Replacement keeps the original registration
// position among equal priorities; registration is idempotent by name
// and never errors.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, known := r.seq[name]; !known {
		r.seq[name] = r.counter
		r.counter++
	}

	replaced := false
	for i := range r.providers {
		if r.providers[i].Name() == name {
			r.providers[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		r.providers = append(r.providers, p)
	}

	sort.SliceStable(r.providers, func(i, j int) bool {
		pi, pj := r.providers[i], r.providers[j]
		if pi.Priority() != pj.Priority() {
			return pi.Priority() < pj.Priority()
		}
		return r.seq[pi.Name()] < r.seq[pj.Name()]
	})
}

// Unregister removes the named provider and reports whether a removal
// occurred.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.providers {
		if r.providers[i].Name() == name {
			r.providers = append(r.providers[:i], r.providers[i+1:]...)
			delete(r.seq, name)
			return true
		}
	}
	return false
}

// Find scans providers in priority order and returns the first whose
// Match accepts the value, or nil. First match wins: at most one
// provider is ever selected for a value.
func (r *Registry) Find(v any) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.Match(v) {
			return p
		}
	}
	return nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// List returns read-only descriptors of all providers in dispatch
// order, for diagnostics.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, ProviderInfo{Name: p.Name(), Priority: p.Priority()})
	}
	return infos
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
