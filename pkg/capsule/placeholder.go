package capsule

import "fmt"

// Placeholder is a typed stand-in for a value that could not be
// faithfully rebuilt: the referent was already discarded, source
// material is unavailable, or extraction/reconstruction failed in
// lenient mode. It preserves enough identity to support debugging and
// raises a descriptive error if used as though rebuilt, rather than
// behaving like a partially built object.
type Placeholder struct {
	// TypeName is the original value's type.
	TypeName string `json:"type_name"`

	// Description is a best-effort rendering of the original value.
	Description string `json:"description,omitempty"`

	// Reason is the failure that produced the placeholder.
	Reason string `json:"reason"`
}

// String identifies the placeholder for debugging output.
func (p *Placeholder) String() string {
	if p.Description != "" {
		return fmt.Sprintf("<placeholder %s %q: %s>", p.TypeName, p.Description, p.Reason)
	}
	return fmt.Sprintf("<placeholder %s: %s>", p.TypeName, p.Reason)
}

// Value always fails: a placeholder has no usable value. The error
// carries the original type name and the reason the value was lost.
func (p *Placeholder) Value() (any, error) {
	return nil, &Error{
		Kind:     KindReconstruction,
		Message:  "placeholder stands in for a value that was not rebuilt: " + p.Reason,
		TypeName: p.TypeName,
	}
}
