package capsule

import (
	"context"
	"sync/atomic"
)

// ReconnectionDescriptor stands in for a live external resource
// (socket, database connection, OS pipe, process, open file). Decoding
// such a value never yields a working resource: the engine performs no
// network or filesystem I/O the caller did not request, and credentials
// are never embedded in a transportable payload. The caller inspects
// ResourceKind, supplies any missing secret or context, and activates
// the descriptor through a Reconnector exactly once.
type ReconnectionDescriptor struct {
	// ResourceKind names the category of resource ("socket", "file",
	// "database", "process", "listener", "executor").
	ResourceKind string `json:"resource_kind"`

	// Params carries the non-secret parameters recorded at capture time
	// (addresses, paths, offsets, driver names).
	Params map[string]any `json:"params"`

	claimed atomic.Bool
}

// Claim marks the descriptor consumed and returns its parameters. A
// descriptor is consumed exactly once; a second claim fails with a
// reconnection-required error so double reconnects surface loudly.
func (d *ReconnectionDescriptor) Claim() (map[string]any, error) {
	if d.claimed.Swap(true) {
		return nil, &Error{
			Kind:     KindReconnectionRequired,
			Message:  "reconnection descriptor already claimed",
			TypeName: d.ResourceKind,
		}
	}
	return d.Params, nil
}

// Claimed reports whether the descriptor has been consumed.
func (d *ReconnectionDescriptor) Claimed() bool {
	return d.claimed.Load()
}

// LiveValue always fails: the descriptor is not the resource. Callers
// that treat it as live get a classified reconnection-required error.
func (d *ReconnectionDescriptor) LiveValue() (any, error) {
	return nil, NewReconnectionRequiredError(d.ResourceKind)
}

// Reconnector activates a ReconnectionDescriptor into a live resource.
// Implementations live with the caller's environment, never inside the
// engine; they are the explicit reconnect step that supplies
// credentials and performs I/O.
type Reconnector interface {
	// Kind returns the ResourceKind this reconnector handles.
	Kind() string

	// Reconnect claims the descriptor and opens the live resource.
	Reconnect(ctx context.Context, d *ReconnectionDescriptor) (any, error)
}
