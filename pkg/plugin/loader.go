package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// Loader discovers plugin providers on disk and keeps them open so
// they can be closed together at shutdown. Each plugin lives in its
// own subdirectory holding a manifest.yaml next to its .wasm module.
type Loader struct {
	mu         sync.Mutex
	hostConfig *HostConfig
	logger     zerolog.Logger
	providers  []*Provider
}

// NewLoader creates a plugin loader. cfg may be nil for defaults.
func NewLoader(cfg *HostConfig, logger zerolog.Logger) *Loader {
	return &Loader{
		hostConfig: cfg,
		logger:     logger.With().Str("component", "plugin-loader").Logger(),
	}
}

// ScanDirectory loads every plugin found under dir. A broken plugin is
// logged and skipped; it never blocks the rest. A missing directory is
// not an error: plugins are optional.
func (l *Loader) ScanDirectory(ctx context.Context, dir string) ([]*Provider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	var loaded []*Provider
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifestPath := filepath.Join(dir, entry.Name(), "manifest.yaml")
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		provider, err := l.loadOne(ctx, manifestPath)
		if err != nil {
			l.logger.Warn().
				Err(err).
				Str("manifest", manifestPath).
				Msg("Skipping plugin")
			continue
		}

		loaded = append(loaded, provider)
		l.logger.Info().
			Str("provider", provider.Name()).
			Int("priority", provider.Priority()).
			Msg("Loaded plugin provider")
	}

	l.mu.Lock()
	l.providers = append(l.providers, loaded...)
	l.mu.Unlock()

	return loaded, nil
}

func (l *Loader) loadOne(ctx context.Context, manifestPath string) (*Provider, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	wasmModule, err := manifest.ReadModule()
	if err != nil {
		return nil, err
	}

	return Load(ctx, manifest, wasmModule, l.hostConfig, l.logger)
}

// RegisterAll registers the given providers with a capsule registry.
func RegisterAll(reg *capsule.Registry, providers []*Provider) {
	for _, p := range providers {
		reg.Register(p)
	}
}

// Close releases every provider this loader has opened.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	providers := l.providers
	l.providers = nil
	l.mu.Unlock()

	var firstErr error
	for _, p := range providers {
		if err := p.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
