package providers

import (
	"context"
	"os"
	"os/exec"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// ProcessProvider captures OS process handles and prepared commands.
// The payload records identity (pid) or launch parameters (path, args,
// dir); the process environment is deliberately excluded because it
// routinely carries secrets. Rebuild returns a ReconnectionDescriptor
// of kind "process" and never spawns or signals anything.
type ProcessProvider struct{}

// NewProcessProvider returns the process provider.
func NewProcessProvider() *ProcessProvider {
	return &ProcessProvider{}
}

func (p *ProcessProvider) Name() string  { return "os.process" }
func (p *ProcessProvider) Priority() int { return 120 }

func (p *ProcessProvider) Match(v any) bool {
	switch v.(type) {
	case *os.Process, *exec.Cmd:
		return true
	}
	return false
}

func (p *ProcessProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	b := capsule.NewBundle()
	switch proc := v.(type) {
	case *os.Process:
		b.Set("kind", "process")
		b.Set("pid", int64(proc.Pid))
	case *exec.Cmd:
		b.Set("kind", "command")
		b.Set("path", proc.Path)
		args := make([]any, len(proc.Args))
		for i, arg := range proc.Args {
			args[i] = arg
		}
		b.Set("args", args)
		b.Set("dir", proc.Dir)
		if proc.Process != nil {
			b.Set("pid", int64(proc.Process.Pid))
		}
	}
	return b, nil
}

func (p *ProcessProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	kind, err := b.MustString("kind")
	if err != nil {
		return nil, err
	}
	params := map[string]any{"kind": kind}
	if pid, ok := b.Int("pid"); ok {
		params["pid"] = pid
	}
	if path, ok := b.String("path"); ok {
		params["path"] = path
	}
	if args, ok := b.Get("args"); ok {
		params["args"] = args
	}
	if dir, ok := b.String("dir"); ok {
		params["dir"] = dir
	}
	return &capsule.ReconnectionDescriptor{
		ResourceKind: "process",
		Params:       params,
	}, nil
}
