package capsule

import "reflect"

// Sentinel WouldUse values for values no provider handles.
const (
	// WouldUsePrimitive marks passthrough leaves and recursable
	// composites the encoder handles without a provider.
	WouldUsePrimitive = "primitive"

	// WouldUseUnencodable marks values nothing can capture: strict
	// encodes fail, lenient encodes substitute a placeholder.
	WouldUseUnencodable = "unencodable"
)

// Description reports how a value would be captured without actually
// capturing it. WouldUse is the name of the matching provider,
// WouldUsePrimitive for values the encoder carries itself, or
// WouldUseUnencodable when nothing matches. Strategy is only meaningful
// for providers implementing StrategyReporter; everyone else reports
// StrategyNone.
type Description struct {
	TypeName string
	WouldUse string
	Strategy Strategy
	Priority int
}

// Describe answers how Encode would classify a value: passthrough,
// provider dispatch (and that provider's strategy), or unencodable. It
// never invokes Extract, so it is safe to call on values that are
// expensive or destructive to snapshot.
func (e *Engine) Describe(v any) Description {
	desc := Description{TypeName: TypeName(v), Strategy: StrategyNone}

	if _, ok := asPrimitive(v); ok {
		desc.WouldUse = WouldUsePrimitive
		return desc
	}
	if _, ok := v.(*Placeholder); ok {
		desc.WouldUse = WouldUsePrimitive
		return desc
	}

	// Mirror the encoder's composite handling: unnamed slices, arrays
	// and maps recurse without a provider; named slice types give a
	// provider first claim.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().PkgPath() != "" {
			if p := e.registry.Find(v); p != nil {
				return describeProvider(p, v, desc)
			}
		}
		desc.WouldUse = WouldUsePrimitive
		return desc
	case reflect.Map:
		desc.WouldUse = WouldUsePrimitive
		return desc
	}

	p := e.registry.Find(v)
	if p == nil {
		desc.WouldUse = WouldUseUnencodable
		return desc
	}
	return describeProvider(p, v, desc)
}

func describeProvider(p Provider, v any, desc Description) Description {
	desc.WouldUse = p.Name()
	desc.Priority = p.Priority()
	if sr, ok := p.(StrategyReporter); ok {
		desc.Strategy = sr.DescribeStrategy(v)
	}
	return desc
}
