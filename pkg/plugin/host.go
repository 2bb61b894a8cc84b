// Package plugin loads WASM capability providers. Each plugin is a
// directory with a manifest.yaml and a .wasm module; the module
// exports provider_match, provider_extract, and provider_rebuild over
// a JSON bridge and registers alongside the native providers.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// HostConfig tunes the wazero runtime a plugin provider runs in.
type HostConfig struct {
	// Timeout bounds every call into the module.
	Timeout time.Duration

	// MemoryLimitPages caps module memory in 64KB pages. Default is
	// 256 pages (16MB).
	MemoryLimitPages uint32
}

func (c *HostConfig) withDefaults() HostConfig {
	cfg := HostConfig{
		Timeout:          30 * time.Second,
		MemoryLimitPages: 256,
	}
	if c != nil {
		if c.Timeout > 0 {
			cfg.Timeout = c.Timeout
		}
		if c.MemoryLimitPages > 0 {
			cfg.MemoryLimitPages = c.MemoryLimitPages
		}
	}
	return cfg
}

// Provider is a capability provider backed by a WASM module. Values
// cross the boundary as JSON, so plugins handle data-shaped types:
// Match gates on the manifest's type names before consulting the
// module's own predicate, Extract turns the module's field list into a
// StateBundle, and Rebuild returns whatever the module reconstructs,
// decoded from JSON.
type Provider struct {
	manifest *Manifest
	runtime  wazero.Runtime
	module   api.Module
	bridge   *bridge
	types    map[string]bool
	logger   zerolog.Logger
}

var _ capsule.Provider = (*Provider)(nil)

// Load instantiates a plugin provider from a manifest and its module
// bytes. The caller owns the provider and must Close it.
func Load(ctx context.Context, manifest *Manifest, wasmModule []byte, cfg *HostConfig, logger zerolog.Logger) (*Provider, error) {
	hostCfg := cfg.withDefaults()

	log := logger.With().
		Str("component", "plugin").
		Str("provider", manifest.Name).
		Logger()

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(hostCfg.MemoryLimitPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	if err := instantiateHostFunctions(ctx, runtime, log); err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	module, err := runtime.Instantiate(ctx, wasmModule)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASM module: %w", err)
	}

	b, err := newBridge(module, hostCfg.Timeout)
	if err != nil {
		module.Close(ctx)
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to create WASM bridge: %w", err)
	}

	types := make(map[string]bool, len(manifest.TypeNames))
	for _, name := range manifest.TypeNames {
		types[name] = true
	}

	return &Provider{
		manifest: manifest,
		runtime:  runtime,
		module:   module,
		bridge:   b,
		types:    types,
		logger:   log,
	}, nil
}

// instantiateHostFunctions exposes the host side of the bridge: a
// single log function plugins use to write into the host logger.
func instantiateHostFunctions(ctx context.Context, runtime wazero.Runtime, logger zerolog.Logger) error {
	builder := runtime.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, level, msgPtr, msgLen uint32) {
			msg, ok := mod.Memory().Read(msgPtr, msgLen)
			if !ok {
				return
			}
			switch level {
			case 0:
				logger.Debug().Msg(string(msg))
			case 1:
				logger.Info().Msg(string(msg))
			case 2:
				logger.Warn().Msg(string(msg))
			default:
				logger.Error().Msg(string(msg))
			}
		}).
		Export("host_log")

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}
	return nil
}

// Name returns the manifest's provider identifier.
func (p *Provider) Name() string { return p.manifest.Name }

// Priority returns the manifest priority, defaulting between the
// built-in providers and the structural catch-all.
func (p *Provider) Priority() int { return p.manifest.EffectivePriority() }

// Match gates on the manifest's declared type names, then lets the
// module's predicate refine the decision.
func (p *Provider) Match(v any) bool {
	if v == nil {
		return false
	}
	if !p.types[reflect.TypeOf(v).String()] {
		return false
	}

	valueJSON, err := json.Marshal(v)
	if err != nil {
		return false
	}

	match, err := p.bridge.Match(context.Background(), reflect.TypeOf(v).String(), valueJSON)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Plugin predicate failed, skipping")
		return false
	}
	return match
}

// Extract crosses into the module with the value as JSON and maps the
// returned field list onto a StateBundle.
func (p *Provider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	typeName := reflect.TypeOf(v).String()

	valueJSON, err := json.Marshal(v)
	if err != nil {
		return nil, capsule.NewExtractionError(p.manifest.Name, typeName,
			fmt.Errorf("value is not JSON-encodable: %w", err))
	}

	fields, err := p.bridge.Extract(ctx, typeName, valueJSON)
	if err != nil {
		return nil, capsule.NewExtractionError(p.manifest.Name, typeName, err)
	}

	bundle := capsule.NewBundle()
	for _, f := range fields {
		var value any
		if len(f.Value) > 0 {
			if err := json.Unmarshal(f.Value, &value); err != nil {
				return nil, capsule.NewExtractionError(p.manifest.Name, typeName,
					fmt.Errorf("field %s: %w", f.Name, err)).WithField(f.Name)
			}
		}
		bundle.Set(f.Name, value)
	}

	return bundle, nil
}

// Rebuild sends the decoded fields back into the module and returns
// the value it reconstructs.
func (p *Provider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	fields := make([]fieldJSON, 0, b.Len())
	for _, f := range b.Fields() {
		valueJSON, err := json.Marshal(f.Value)
		if err != nil {
			return nil, capsule.NewReconstructionError(p.manifest.Name, "",
				fmt.Errorf("field %s is not JSON-encodable: %w", f.Name, err)).WithField(f.Name)
		}
		fields = append(fields, fieldJSON{Name: f.Name, Value: valueJSON})
	}

	// Plugins match a single family of type names; the first one
	// identifies the family to the module.
	typeName := p.manifest.TypeNames[0]

	valueJSON, err := p.bridge.Rebuild(ctx, typeName, fields)
	if err != nil {
		return nil, capsule.NewReconstructionError(p.manifest.Name, typeName, err)
	}

	var value any
	if len(valueJSON) > 0 {
		if err := json.Unmarshal(valueJSON, &value); err != nil {
			return nil, capsule.NewReconstructionError(p.manifest.Name, typeName,
				fmt.Errorf("module returned invalid JSON: %w", err))
		}
	}

	return value, nil
}

// Manifest returns the manifest this provider was loaded from.
func (p *Provider) Manifest() *Manifest { return p.manifest }

// Close releases the module and its runtime.
func (p *Provider) Close(ctx context.Context) error {
	if p.module != nil {
		if err := p.module.Close(ctx); err != nil {
			return fmt.Errorf("failed to close WASM module: %w", err)
		}
	}
	if p.runtime != nil {
		if err := p.runtime.Close(ctx); err != nil {
			return fmt.Errorf("failed to close WASM runtime: %w", err)
		}
	}
	return nil
}
