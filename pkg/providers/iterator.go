package providers

import (
	"context"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// IteratorProvider captures suspended sequences by draining their
// remaining values. Draining consumes the original iterator; a value
// captured this way cannot be iterated again in the source process.
// Rebuild yields a fresh iterator over the recorded values, so
// remaining-value semantics survive even though the exact execution
// state does not.
type IteratorProvider struct{}

// NewIteratorProvider returns the iterator provider.
func NewIteratorProvider() *IteratorProvider {
	return &IteratorProvider{}
}

func (p *IteratorProvider) Name() string  { return "iter.seq" }
func (p *IteratorProvider) Priority() int { return 200 }

func (p *IteratorProvider) Match(v any) bool {
	_, ok := v.(capsule.Iterator)
	return ok
}

func (p *IteratorProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	it := v.(capsule.Iterator)
	var items []any
	for {
		item, ok := it.Next()
		if !ok {
			break
		}
		items = append(items, item)
	}
	return capsule.NewBundle().Set("items", items), nil
}

func (p *IteratorProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	raw, _ := b.Get("items")
	items, ok := raw.([]any)
	if raw != nil && !ok {
		return nil, capsule.NewEnvelopeCorruptError("iterator payload items are not a list", nil)
	}
	return capsule.NewSliceIterator(items), nil
}
