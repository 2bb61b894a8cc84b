package providers

import (
	"context"
	"encoding"
	"fmt"
	"reflect"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// Snapshotter lets a type hand the structural provider its own state
// map instead of having its exported fields reflected over.
type Snapshotter interface {
	Snapshot() map[string]any
}

// Restorer is the rebuild-side counterpart of Snapshotter, implemented
// on a pointer receiver. A registered type implementing Restorer is
// rebuilt by allocating a zero value and handing it the decoded state.
type Restorer interface {
	Restore(state map[string]any) error
}

// StructuralProvider is the lowest-priority catch-all for plain data:
// structs, pointers to structs, and named primitive types. Extraction
// prefers, in order: a Snapshotter implementation, a
// ToMap() map[string]any method, encoding.TextMarshaler, and finally
// exported-field reflection. Rebuild reconstructs the concrete type
// when it is registered in the engine's TypeRegistry; unregistered
// types rebuild as DynamicInstances carrying the captured definition
// descriptor.
type StructuralProvider struct {
	types *capsule.TypeRegistry
}

// NewStructuralProvider returns a structural provider rebuilding
// concrete types from the given registry.
func NewStructuralProvider(types *capsule.TypeRegistry) *StructuralProvider {
	if types == nil {
		types = capsule.NewTypeRegistry()
	}
	return &StructuralProvider{types: types}
}

func (p *StructuralProvider) Name() string  { return "structural" }
func (p *StructuralProvider) Priority() int { return 1000 }

func (p *StructuralProvider) Match(v any) bool {
	switch v.(type) {
	case Snapshotter, encoding.TextMarshaler:
		return true
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if hasToMap(reflect.ValueOf(v)) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return true
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		// Named primitives only; anonymous ones never reach dispatch.
		return t.PkgPath() != ""
	default:
		return false
	}
}

func (p *StructuralProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	b := capsule.NewBundle()
	b.Set("type", capsule.TypeName(v))

	if s, ok := v.(Snapshotter); ok {
		b.Set("mode", "snapshot")
		b.Set("state", s.Snapshot())
		return b, nil
	}

	rv := reflect.ValueOf(v)
	if m := rv.MethodByName("ToMap"); m.IsValid() && isToMapSignature(m.Type()) {
		b.Set("mode", "map")
		b.Set("state", m.Call(nil)[0].Interface())
		return b, nil
	}

	if tm, ok := v.(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshaling text form: %w", err)
		}
		b.Set("mode", "text")
		b.Set("text", string(text))
		return b, nil
	}

	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil pointer")
		}
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		// Named primitive: capture the underlying value.
		b.Set("mode", "prim")
		b.Set("value", underlyingPrimitive(rv))
		return b, nil
	}

	state := make(map[string]any)
	def := make(map[string]string)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		state[field.Name] = rv.Field(i).Interface()
		def[field.Name] = field.Type.String()
	}
	b.Set("mode", "fields")
	b.Set("state", state)
	b.Set("def", def)
	return b, nil
}

func (p *StructuralProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	typeName, err := b.MustString("type")
	if err != nil {
		return nil, err
	}
	mode, err := b.MustString("mode")
	if err != nil {
		return nil, err
	}

	switch mode {
	case "snapshot", "map", "fields":
		state := decodeStateMap(b)
		t, registered := p.types.Lookup(trimPointer(typeName))
		if !registered {
			return capsule.NewDynamicInstance(typeName, decodeDef(b), state), nil
		}
		return p.rebuildConcrete(t, typeName, state)

	case "text":
		text, err := b.MustString("text")
		if err != nil {
			return nil, err
		}
		if t, registered := p.types.Lookup(trimPointer(typeName)); registered {
			instance := reflect.New(t)
			if tu, ok := instance.Interface().(encoding.TextUnmarshaler); ok {
				if err := tu.UnmarshalText([]byte(text)); err != nil {
					return nil, fmt.Errorf("unmarshaling text form of %s: %w", typeName, err)
				}
				return derefIfValueType(instance, typeName), nil
			}
		}
		return capsule.NewDynamicInstance(typeName, nil, map[string]any{"text": text}), nil

	case "prim":
		value, _ := b.Get("value")
		if t, registered := p.types.Lookup(trimPointer(typeName)); registered {
			rv := reflect.ValueOf(value)
			if rv.IsValid() && rv.Type().ConvertibleTo(t) {
				return rv.Convert(t).Interface(), nil
			}
		}
		return value, nil

	default:
		return nil, capsule.NewEnvelopeCorruptError(
			fmt.Sprintf("unknown structural mode %q", mode), nil)
	}
}

// rebuildConcrete allocates a registered type and populates it from the
// decoded state map.
func (p *StructuralProvider) rebuildConcrete(t reflect.Type, typeName string, state map[string]any) (any, error) {
	instance := reflect.New(t)

	if r, ok := instance.Interface().(Restorer); ok {
		if err := r.Restore(state); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", typeName, err)
		}
		return derefIfValueType(instance, typeName), nil
	}

	if t.Kind() != reflect.Struct {
		return capsule.NewDynamicInstance(typeName, nil, state), nil
	}

	elem := instance.Elem()
	for name, value := range state {
		field := elem.FieldByName(name)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		if err := assignField(field, value); err != nil {
			return nil, fmt.Errorf("field %s of %s: %w", name, typeName, err)
		}
	}
	return derefIfValueType(instance, typeName), nil
}

// assignField sets a struct field from a decoded value, bridging the
// width and container differences a wire round trip introduces.
func assignField(field reflect.Value, value any) error {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)

	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	// Rebuilt composites come back behind pointers.
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().AssignableTo(field.Type()) {
		field.Set(rv.Elem())
		return nil
	}
	if rv.Type().ConvertibleTo(field.Type()) && convertiblePrimitive(rv.Kind(), field.Kind()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}

	switch field.Kind() {
	case reflect.Slice:
		if rv.Kind() != reflect.Slice {
			break
		}
		out := reflect.MakeSlice(field.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			if elem.Kind() == reflect.Interface {
				elem = elem.Elem()
			}
			if err := assignField(out.Index(i), elem.Interface()); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	case reflect.Map:
		if rv.Kind() != reflect.Map {
			break
		}
		out := reflect.MakeMapWithSize(field.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := reflect.New(field.Type().Key()).Elem()
			if err := assignField(key, iter.Key().Interface()); err != nil {
				return err
			}
			val := reflect.New(field.Type().Elem()).Elem()
			mapVal := iter.Value()
			if mapVal.Kind() == reflect.Interface {
				mapVal = mapVal.Elem()
			}
			if err := assignField(val, mapVal.Interface()); err != nil {
				return err
			}
			out.SetMapIndex(key, val)
		}
		field.Set(out)
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", rv.Type(), field.Type())
}

// convertiblePrimitive limits Convert to numeric/string widening so a
// string never silently converts to an int slice of runes and the like.
func convertiblePrimitive(from, to reflect.Kind) bool {
	return isScalar(from) && isScalar(to) &&
		(from == to || (isNumeric(from) && isNumeric(to)) ||
			(from == reflect.String && to == reflect.String))
}

func isScalar(k reflect.Kind) bool {
	return isNumeric(k) || k == reflect.Bool || k == reflect.String
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// underlyingPrimitive converts a named primitive to its anonymous base
// so the encoder treats it as a primitive leaf.
func underlyingPrimitive(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return rv.Interface()
	}
}

func decodeStateMap(b *capsule.StateBundle) map[string]any {
	raw, _ := b.Get("state")
	state, _ := raw.(map[string]any)
	if state == nil {
		state = make(map[string]any)
	}
	return state
}

func decodeDef(b *capsule.StateBundle) []capsule.FieldDef {
	raw, ok := b.Get("def")
	if !ok {
		return nil
	}
	var def []capsule.FieldDef
	switch m := raw.(type) {
	case map[string]string:
		for name, typ := range m {
			def = append(def, capsule.FieldDef{Name: name, Type: typ})
		}
	case map[string]any:
		for name, typ := range m {
			s, _ := typ.(string)
			def = append(def, capsule.FieldDef{Name: name, Type: s})
		}
	}
	return def
}

func trimPointer(typeName string) string {
	for len(typeName) > 0 && typeName[0] == '*' {
		typeName = typeName[1:]
	}
	return typeName
}

// derefIfValueType returns the instance as a value when the capture was
// of a non-pointer, otherwise as the pointer.
func derefIfValueType(instance reflect.Value, typeName string) any {
	if len(typeName) > 0 && typeName[0] == '*' {
		return instance.Interface()
	}
	return instance.Elem().Interface()
}

func hasToMap(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	m := rv.MethodByName("ToMap")
	return m.IsValid() && isToMapSignature(m.Type())
}

func isToMapSignature(t reflect.Type) bool {
	return t.NumIn() == 0 && t.NumOut() == 1 &&
		t.Out(0) == reflect.TypeOf(map[string]any(nil))
}
