package capsule

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TypeRegistry maps stable type names to concrete Go types so the
// structural provider can rebuild registered types in another process.
// Types not registered in the decoding process rebuild as
// DynamicInstances carrying a definition descriptor instead.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry returns an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]reflect.Type)}
}

// Register records sample's concrete type under its canonical name
// (package path + type name). Pointer samples register the pointee.
func (r *TypeRegistry) Register(sample any) {
	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[canonicalName(t)] = t
}

// Lookup returns the type registered under name.
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// TypeName returns the canonical name of v's type, with pointers
// unwrapped. Used in envelopes, placeholders, and failure messages.
func TypeName(v any) string {
	if v == nil {
		return "nil"
	}
	t := reflect.TypeOf(v)
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	return prefix + canonicalName(t)
}

func canonicalName(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// FieldDef is one declared attribute in a definition descriptor.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DynamicInstance is the structural reconstruction of a value whose
// type is not registered in the decoding process. It carries the
// captured definition descriptor (declared fields) and the rebuilt
// field values, supporting identity and structural checks only;
// behavior attached to the original type is not carried.
type DynamicInstance struct {
	// TypeName is the original type's canonical name.
	TypeName string

	// Def lists the declared fields captured at encode time.
	Def []FieldDef

	values map[string]any
}

// NewDynamicInstance builds a structural stand-in for typeName with the
// given definition and field values.
func NewDynamicInstance(typeName string, def []FieldDef, values map[string]any) *DynamicInstance {
	if values == nil {
		values = make(map[string]any)
	}
	return &DynamicInstance{TypeName: typeName, Def: def, values: values}
}

// Field returns the named field's rebuilt value.
func (d *DynamicInstance) Field(name string) (any, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Fields returns field names in sorted order.
func (d *DynamicInstance) Fields() []string {
	names := make([]string, 0, len(d.values))
	for name := range d.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String identifies the instance for debugging.
func (d *DynamicInstance) String() string {
	return fmt.Sprintf("<dynamic %s (%d fields)>", d.TypeName, len(d.values))
}

// Iterator is the engine's view of a suspended value sequence.
// Extraction drains the remaining values into an ordered list, which
// exhausts the original. Rebuild returns a fresh Iterator over that
// list; exact execution position is not preserved.
type Iterator interface {
	// Next returns the next value, or ok=false when exhausted.
	Next() (any, bool)
}

// sliceIterator iterates over a fixed list of values.
type sliceIterator struct {
	items []any
	pos   int
}

// NewSliceIterator returns an Iterator over items.
func NewSliceIterator(items []any) Iterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next() (any, bool) {
	if it.pos >= len(it.items) {
		return nil, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}
