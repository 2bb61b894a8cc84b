package capsule

import "fmt"

// Field is one named entry of a StateBundle. Order is significant:
// bundles preserve insertion order so repeated encoding of an unchanged
// value is byte-stable.
type Field struct {
	Name  string
	Value any
}

// StateBundle is the untagged, ordered field map a provider produces
// from Extract and consumes in Rebuild. Field values may be primitives,
// further values (recursively encoded by the engine), or nested
// bundles. No type tags or provider identifiers belong here; the
// central encoder adds that metadata when it wraps the bundle in an
// envelope.
type StateBundle struct {
	fields []Field
}

// NewBundle returns an empty StateBundle.
func NewBundle() *StateBundle {
	return &StateBundle{}
}

// Set stores a field, replacing an existing field of the same name in
// place (preserving its position) or appending a new one. Returns the
// bundle for chaining.
func (b *StateBundle) Set(name string, value any) *StateBundle {
	for i := range b.fields {
		if b.fields[i].Name == name {
			b.fields[i].Value = value
			return b
		}
	}
	b.fields = append(b.fields, Field{Name: name, Value: value})
	return b
}

// Get returns the value of the named field.
func (b *StateBundle) Get(name string) (any, bool) {
	for i := range b.fields {
		if b.fields[i].Name == name {
			return b.fields[i].Value, true
		}
	}
	return nil, false
}

// Fields returns the bundle's fields in order. The returned slice is
// the bundle's backing storage; callers must not mutate it.
func (b *StateBundle) Fields() []Field {
	return b.fields
}

// Len returns the number of fields.
func (b *StateBundle) Len() int {
	return len(b.fields)
}

// String returns the named field as a string. Missing or mistyped
// fields yield the zero value and false.
func (b *StateBundle) String(name string) (string, bool) {
	v, ok := b.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the named field as an int64, converting from the integer
// widths a decoded bundle may carry.
func (b *StateBundle) Int(name string) (int64, bool) {
	v, ok := b.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Bool returns the named field as a bool.
func (b *StateBundle) Bool(name string) (bool, bool) {
	v, ok := b.Get(name)
	if !ok {
		return false, false
	}
	t, ok := v.(bool)
	return t, ok
}

// MustString returns the named field as a string or an envelope-corrupt
// error naming the field. Providers use it in Rebuild to validate
// payload shape.
func (b *StateBundle) MustString(name string) (string, error) {
	s, ok := b.String(name)
	if !ok {
		return "", NewEnvelopeCorruptError(
			fmt.Sprintf("payload field %q missing or not a string", name), nil).WithField(name)
	}
	return s, nil
}
