package capsule

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer encoding,
// no indefinite-length items. Together with the engine's sorted map
// entries this makes repeated encoding of an unchanged value
// byte-stable.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Integer leaves come back in CBOR's
// natural widths (uint64 for positives, int64 for negatives); the
// decoder canonicalizes them afterwards so values above MaxInt64 still
// round-trip.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("capsule: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("capsule: CBOR decoder initialization failed: " + err.Error())
	}
}

// marshalNode encodes a wire node tree to deterministic CBOR bytes.
func marshalNode(n *Node) ([]byte, error) {
	return encMode.Marshal(n)
}

// unmarshalNode decodes CBOR bytes into a wire node tree.
func unmarshalNode(data []byte) (*Node, error) {
	var n Node
	if err := decMode.Unmarshal(data, &n); err != nil {
		return nil, NewEnvelopeCorruptError("transportable representation is not a valid capture", err)
	}
	return &n, nil
}
