package capsule

// NodeKind discriminates the self-describing wire tree.
type NodeKind string

const (
	// NodePrimitive is a passthrough leaf: nil, bool, int64, uint64,
	// float64, string, or raw bytes.
	NodePrimitive NodeKind = "prim"

	// NodeList is an ordered composite; children are encoded nodes.
	NodeList NodeKind = "list"

	// NodeMap is a keyed composite; entries are sorted by encoded key
	// bytes so unchanged values re-encode to identical bytes.
	NodeMap NodeKind = "map"

	// NodeEnvelope wraps a provider's state bundle with the provider
	// identifier and the original type name.
	NodeEnvelope NodeKind = "env"

	// NodeBundle is a nested untagged state bundle inside an envelope
	// payload.
	NodeBundle NodeKind = "bundle"

	// NodePlaceholder stands in for a value that could not be captured
	// or rebuilt.
	NodePlaceholder NodeKind = "ph"
)

// Node is one vertex of the transportable representation. Envelopes and
// nodes are transient: they are owned by the encode or decode call that
// created them and carry no shared mutable state.
type Node struct {
	Kind NodeKind `cbor:"k"`

	// Prim holds a primitive leaf. No omitempty: zero values (0, false,
	// "") are meaningful primitives.
	Prim any `cbor:"v"`

	// Items holds list children.
	Items []*Node `cbor:"i,omitempty"`

	// Entries holds map children in deterministic key order.
	Entries []MapEntry `cbor:"e,omitempty"`

	// Provider is the envelope's provider identifier. Decode fails with
	// an envelope-corrupt error if it does not resolve to a registered
	// provider.
	Provider string `cbor:"p,omitempty"`

	// TypeName records the original value's Go type for diagnostics and
	// placeholder identity.
	TypeName string `cbor:"t,omitempty"`

	// Fields holds envelope or nested-bundle payload fields in bundle
	// order.
	Fields []FieldNode `cbor:"f,omitempty"`

	// Message and Reason describe a placeholder: what the value was and
	// why it could not be carried.
	Message string `cbor:"m,omitempty"`
	Reason  string `cbor:"r,omitempty"`
}

// MapEntry is one key/value pair of a NodeMap.
type MapEntry struct {
	Key   *Node `cbor:"k"`
	Value *Node `cbor:"v"`
}

// FieldNode is one named payload field of an envelope or nested bundle.
type FieldNode struct {
	Name  string `cbor:"n"`
	Value *Node  `cbor:"v"`
}
