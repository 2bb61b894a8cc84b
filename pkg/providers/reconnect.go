package providers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// DescriptorProvider re-encodes ReconnectionDescriptors. A decoded
// capsule full of descriptors may itself be captured again and shipped
// onward; without this provider such a round trip would fail at the
// descriptor.
type DescriptorProvider struct{}

// NewDescriptorProvider returns the descriptor pass-through provider.
func NewDescriptorProvider() *DescriptorProvider {
	return &DescriptorProvider{}
}

func (p *DescriptorProvider) Name() string  { return "reconnect.descriptor" }
func (p *DescriptorProvider) Priority() int { return 50 }

func (p *DescriptorProvider) Match(v any) bool {
	_, ok := v.(*capsule.ReconnectionDescriptor)
	return ok
}

func (p *DescriptorProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	d := v.(*capsule.ReconnectionDescriptor)
	if d.Claimed() {
		return nil, fmt.Errorf("descriptor for %q was already claimed", d.ResourceKind)
	}
	params := d.Params
	if params == nil {
		params = map[string]any{}
	}
	return capsule.NewBundle().
		Set("resource_kind", d.ResourceKind).
		Set("params", params), nil
}

func (p *DescriptorProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	kind, err := b.MustString("resource_kind")
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if raw, ok := b.Get("params"); ok && raw != nil {
		params, ok = raw.(map[string]any)
		if !ok {
			return nil, capsule.NewEnvelopeCorruptError("descriptor params are not a map", nil)
		}
	}
	return &capsule.ReconnectionDescriptor{
		ResourceKind: kind,
		Params:       params,
	}, nil
}

// FileReconnector reopens files from descriptors of kind "file". It is
// the explicit reconnect step: the caller invokes it, and only then
// does filesystem I/O happen.
type FileReconnector struct {
	// Flag overrides the open flags. Zero opens read-only.
	Flag int
}

// Kind returns "file".
func (r *FileReconnector) Kind() string { return "file" }

// Reconnect claims the descriptor, opens the recorded path, and seeks
// to the recorded offset.
func (r *FileReconnector) Reconnect(ctx context.Context, d *capsule.ReconnectionDescriptor) (any, error) {
	if d.ResourceKind != "file" {
		return nil, fmt.Errorf("file reconnector cannot handle kind %q", d.ResourceKind)
	}
	params, err := d.Claim()
	if err != nil {
		return nil, err
	}

	path, ok := params["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("descriptor has no path")
	}

	flag := r.Flag
	if flag == 0 {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("reopening %s: %w", path, err)
	}

	if offset := asInt64(params["offset"]); offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("restoring offset on %s: %w", path, err)
		}
	}
	return f, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
