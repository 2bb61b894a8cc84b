package capsule

import (
	"context"
	"time"
)

// Provider is the capability-provider contract. One provider exists per
// category of problematic runtime value (sync primitives, resource
// handles, callables, iterators, weak references, and so on). All
// providers share this contract; the engine owns dispatch and
// recursion, providers own extraction and reconstruction for their
// category.
type Provider interface {
	// Name is the provider's unique identifier. Registering a second
	// provider with the same name replaces the first.
	Name() string

	// Priority orders dispatch: lower values are consulted first.
	// Catch-all providers (anything exposing an attribute map) must use
	// a high value so specialized providers get first refusal.
	Priority() int

	// Match reports whether this provider can handle the value. Match
	// must be cheap and side-effect-free; it runs once per candidate
	// value during dispatch.
	Match(v any) bool

	// Extract captures the value's state into a bundle. Field values
	// that are not primitives are recursively encoded by the engine
	// afterwards. Snapshot-style extraction must honor
	// opts.SnapshotTimeout and degrade to a best-effort partial
	// snapshot rather than block indefinitely.
	Extract(ctx context.Context, v any, opts *Options) (*StateBundle, error)

	// Rebuild reconstructs a value from a bundle whose fields have
	// already been recursively decoded. Providers for live external
	// resources must not perform network or filesystem I/O here; they
	// return a *ReconnectionDescriptor instead.
	Rebuild(ctx context.Context, b *StateBundle) (any, error)
}

// StrategyReporter is an optional Provider extension for providers that
// choose between reference and full-capture strategies. Describe uses
// it to report the strategy a dry-run encode would take.
type StrategyReporter interface {
	DescribeStrategy(v any) Strategy
}

// ProviderInfo is the read-only descriptor returned by Registry.List.
type ProviderInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// Guard is consulted with the fully built envelope tree before encoded
// bytes are returned. The policy engine implements it; a denial aborts
// the encode.
type Guard interface {
	Allow(ctx context.Context, root *Node) error
}

// Options control a single encode or decode call.
type Options struct {
	// Strict aborts the whole operation on the first failure. When
	// false (lenient mode), unmatched values and extraction or
	// reconstruction failures are substituted with Placeholders and
	// collected as warnings; corrupt envelopes still abort.
	Strict bool

	// SnapshotTimeout bounds briefly-blocking snapshot reads performed
	// by providers (queue drain/restore, lock probing). Zero selects
	// DefaultSnapshotTimeout.
	SnapshotTimeout time.Duration

	// MaxDepth bounds recursion through nested composites. Cyclic
	// graphs are unsupported; exceeding the bound fails with an
	// unencodable error instead of recursing forever. Zero selects
	// DefaultMaxDepth.
	MaxDepth int
}

// DefaultSnapshotTimeout bounds provider snapshot reads when the caller
// does not set one.
const DefaultSnapshotTimeout = time.Second

// DefaultMaxDepth bounds tree recursion when the caller does not set
// one.
const DefaultMaxDepth = 256

func (o Options) withDefaults() Options {
	if o.SnapshotTimeout <= 0 {
		o.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Warning records a locally recovered failure from a lenient-mode
// operation, one per substituted Placeholder.
type Warning struct {
	// Path locates the substituted value within the tree.
	Path string `json:"path"`

	// TypeName is the original value's type, when known.
	TypeName string `json:"type_name,omitempty"`

	// Message describes the failure that was recovered.
	Message string `json:"message"`
}
