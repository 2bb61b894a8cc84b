package providers

import (
	"context"
	"io"
	"os"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/pathutil"
)

// FileProvider captures open files as their identity, not their
// contents: a project-relative path, the current offset, and the open
// flags the caller can infer from. Rebuild performs no I/O; it returns
// a ReconnectionDescriptor of kind "file" that a FileReconnector can
// claim to reopen the file and restore the offset.
type FileProvider struct{}

// NewFileProvider returns the open-file provider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

func (p *FileProvider) Name() string  { return "os.file" }
func (p *FileProvider) Priority() int { return 100 }

func (p *FileProvider) Match(v any) bool {
	_, ok := v.(*os.File)
	return ok
}

func (p *FileProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	f := v.(*os.File)

	b := capsule.NewBundle()
	b.Set("path", pathutil.ResolveRelative(f.Name()))

	// Offset is best effort: pipes and character devices don't seek.
	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		offset = -1
	}
	b.Set("offset", offset)

	if info, err := f.Stat(); err == nil {
		b.Set("mode", int64(info.Mode()))
	}
	return b, nil
}

func (p *FileProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	path, err := b.MustString("path")
	if err != nil {
		return nil, err
	}
	offset, _ := b.Int("offset")
	params := map[string]any{
		"path":   path,
		"offset": offset,
	}
	if mode, ok := b.Int("mode"); ok {
		params["mode"] = mode
	}
	return &capsule.ReconnectionDescriptor{
		ResourceKind: "file",
		Params:       params,
	}, nil
}
