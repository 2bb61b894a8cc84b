// Package capsule implements the capture and rehydration engine: a
// priority-ordered registry of capability providers, a recursive
// encoder/decoder that walks composite values and defers to providers
// for anything non-trivial, and a strategy layer that decides between
// reference-based and full-state capture for callable values.
package capsule

import (
	"errors"
	"fmt"
)

// Kind classifies a capture or rehydration failure. The kind determines
// whether lenient mode may recover the failure into a Placeholder or
// must abort the whole operation.
type Kind string

const (
	// KindUnencodable indicates no provider matched the value at encode
	// time. Always aborts: an unrecognized value is a contract
	// violation, not a recoverable runtime condition.
	KindUnencodable Kind = "unencodable"

	// KindExtraction indicates a provider's Extract failed. Recoverable
	// into a Placeholder in lenient mode.
	KindExtraction Kind = "extraction_failed"

	// KindEnvelopeCorrupt indicates decode encountered a provider tag
	// with no registered provider, or a malformed payload shape.
	// Always aborts.
	KindEnvelopeCorrupt Kind = "envelope_corrupt"

	// KindReconstruction indicates a provider's Rebuild failed.
	// Recoverable into a Placeholder in lenient mode.
	KindReconstruction Kind = "reconstruction_failed"

	// KindReferenceUnresolvable indicates a reference-strategy path
	// could not be re-resolved in the target environment.
	KindReferenceUnresolvable Kind = "reference_unresolvable"

	// KindReconnectionRequired indicates a ReconnectionDescriptor was
	// used as though it were a live resource.
	KindReconnectionRequired Kind = "reconnection_required"
)

// Error is a classified capture/rehydration error. Every failure names
// the offending provider, type, and field where known; the engine never
// surfaces a generic "serialization failed".
type Error struct {
	// Kind is the failure classification.
	Kind Kind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// TypeName is the Go type of the offending value, if known.
	TypeName string `json:"type_name,omitempty"`

	// Provider is the identifier of the provider involved, if any.
	Provider string `json:"provider,omitempty"`

	// Field is the state-bundle field being processed, if any.
	Field string `json:"field,omitempty"`

	// Path locates the offending value within the encoded tree
	// (e.g. "$.accounts[2].lock").
	Path string `json:"path,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.TypeName != "" {
		msg += fmt.Sprintf(" (type=%s", e.TypeName)
		if e.Provider != "" {
			msg += fmt.Sprintf(", provider=%s", e.Provider)
		}
		if e.Field != "" {
			msg += fmt.Sprintf(", field=%s", e.Field)
		}
		if e.Path != "" {
			msg += fmt.Sprintf(", path=%s", e.Path)
		}
		msg += ")"
	} else if e.Provider != "" {
		msg += fmt.Sprintf(" (provider=%s)", e.Provider)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by kind so callers can use errors.Is with a bare
// kind sentinel, e.g. errors.Is(err, &Error{Kind: KindUnencodable}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithPath adds the tree path to the error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithField adds the state-bundle field name to the error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// NewUnencodableError reports that no provider matched a value.
func NewUnencodableError(typeName string) *Error {
	return &Error{
		Kind:     KindUnencodable,
		Message:  "no capability provider matched value",
		TypeName: typeName,
	}
}

// NewExtractionError reports that a provider's Extract failed.
func NewExtractionError(provider, typeName string, err error) *Error {
	return &Error{
		Kind:     KindExtraction,
		Message:  "state extraction failed",
		TypeName: typeName,
		Provider: provider,
		Err:      err,
	}
}

// NewEnvelopeCorruptError reports an undecodable envelope.
func NewEnvelopeCorruptError(message string, err error) *Error {
	return &Error{
		Kind:    KindEnvelopeCorrupt,
		Message: message,
		Err:     err,
	}
}

// NewReconstructionError reports that a provider's Rebuild failed.
func NewReconstructionError(provider, typeName string, err error) *Error {
	return &Error{
		Kind:     KindReconstruction,
		Message:  "value reconstruction failed",
		TypeName: typeName,
		Provider: provider,
		Err:      err,
	}
}

// NewReferenceUnresolvableError reports a reference-strategy path that
// cannot be found in the target environment.
func NewReferenceUnresolvableError(module, name string, err error) *Error {
	return &Error{
		Kind:    KindReferenceUnresolvable,
		Message: fmt.Sprintf("reference %s.%s cannot be resolved in target environment", module, name),
		Err:     err,
	}
}

// NewReconnectionRequiredError reports misuse of a descriptor that
// stands in for a live resource.
func NewReconnectionRequiredError(resourceKind string) *Error {
	return &Error{
		Kind:     KindReconnectionRequired,
		Message:  fmt.Sprintf("resource of kind %q requires an explicit reconnect before use", resourceKind),
		TypeName: resourceKind,
	}
}

// IsUnencodable reports whether err is classified KindUnencodable.
func IsUnencodable(err error) bool { return hasKind(err, KindUnencodable) }

// IsExtractionFailed reports whether err is classified KindExtraction.
func IsExtractionFailed(err error) bool { return hasKind(err, KindExtraction) }

// IsEnvelopeCorrupt reports whether err is classified KindEnvelopeCorrupt.
func IsEnvelopeCorrupt(err error) bool { return hasKind(err, KindEnvelopeCorrupt) }

// IsReconstructionFailed reports whether err is classified KindReconstruction.
func IsReconstructionFailed(err error) bool { return hasKind(err, KindReconstruction) }

// IsReferenceUnresolvable reports whether err is classified
// KindReferenceUnresolvable.
func IsReferenceUnresolvable(err error) bool { return hasKind(err, KindReferenceUnresolvable) }

// IsReconnectionRequired reports whether err is classified
// KindReconnectionRequired.
func IsReconnectionRequired(err error) bool { return hasKind(err, KindReconnectionRequired) }

func hasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// recoverable reports whether a failure kind may be substituted with a
// Placeholder in lenient mode. Unencodable values and corrupt envelopes
// indicate contract violations and always abort.
func recoverable(kind Kind) bool {
	return kind == KindExtraction || kind == KindReconstruction
}
