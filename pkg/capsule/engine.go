package capsule

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stasisproject/stasis/pkg/telemetry"
)

// instrumentationName identifies the engine's tracer.
const instrumentationName = "github.com/stasisproject/stasis/pkg/capsule"

// Engine is the central encoder/decoder. It owns nothing but wiring:
// the registry holds providers, the type registry holds rebuildable
// concrete types, and encode/decode calls own their envelope trees.
type Engine struct {
	registry *Registry
	types    *TypeRegistry
	guard    Guard
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

// EngineConfig wires an Engine. Zero-value fields select defaults: an
// empty registry, an empty type registry, a no-op logger, no guard, no
// metrics.
type EngineConfig struct {
	// Registry supplies the capability providers consulted during
	// dispatch. A nil registry starts empty; callers typically install
	// github.com/stasisproject/stasis/pkg/providers defaults.
	Registry *Registry

	// Types maps stable names to concrete Go types for structural
	// rebuilds.
	Types *TypeRegistry

	// Guard, when set, is consulted with the envelope tree before
	// encoded bytes are returned. A denial aborts the encode.
	Guard Guard

	// Logger receives engine diagnostics.
	Logger zerolog.Logger

	// Metrics, when set, records encode/decode and provider
	// instrumentation.
	Metrics *telemetry.Metrics

	// Tracer overrides the default OpenTelemetry tracer.
	Tracer trace.Tracer
}

// NewEngine creates an engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Types == nil {
		cfg.Types = NewTypeRegistry()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentationName)
	}
	return &Engine{
		registry: cfg.Registry,
		types:    cfg.Types,
		guard:    cfg.Guard,
		logger:   cfg.Logger.With().Str("component", "capsule-engine").Logger(),
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}
}

// Registry returns the engine's provider registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Types returns the engine's type registry.
func (e *Engine) Types() *TypeRegistry {
	return e.types
}

// RegisterProvider installs or replaces a provider.
func (e *Engine) RegisterProvider(p Provider) {
	e.registry.Register(p)
	e.logger.Debug().Str("provider", p.Name()).Int("priority", p.Priority()).Msg("Provider registered")
}

// UnregisterProvider removes the named provider and reports whether a
// removal occurred.
func (e *Engine) UnregisterProvider(name string) bool {
	removed := e.registry.Unregister(name)
	if removed {
		e.logger.Debug().Str("provider", name).Msg("Provider unregistered")
	}
	return removed
}

// ListProviders returns provider descriptors in dispatch order.
func (e *Engine) ListProviders() []ProviderInfo {
	return e.registry.List()
}

func (e *Engine) mode(opts Options) string {
	if opts.Strict {
		return "strict"
	}
	return "lenient"
}
