package capsule

import (
	"context"
	"fmt"
)

// EncodeSlice applies Encode across an ordered collection of
// independent values. In lenient mode the failure of one element does
// not abort the others: its slot holds nil bytes and the failure is
// reported as a warning. In strict mode the first failure aborts the
// whole batch.
func (e *Engine) EncodeSlice(ctx context.Context, values []any, opts Options) ([][]byte, []Warning, error) {
	results := make([][]byte, len(values))
	var warnings []Warning
	for i, v := range values {
		data, warns, err := e.Encode(ctx, v, opts)
		warnings = append(warnings, prefixWarnings(warns, fmt.Sprintf("[%d]", i))...)
		if err != nil {
			if opts.Strict {
				return nil, warnings, err
			}
			warnings = append(warnings, Warning{
				Path:     fmt.Sprintf("[%d]", i),
				TypeName: TypeName(v),
				Message:  err.Error(),
			})
			continue
		}
		results[i] = data
	}
	return results, warnings, nil
}

// DecodeSlice applies Decode across an ordered collection of encoded
// elements, with the same independence semantics as EncodeSlice. Failed
// or nil elements rebuild as Placeholders in lenient mode.
func (e *Engine) DecodeSlice(ctx context.Context, encoded [][]byte, opts Options) ([]any, []Warning, error) {
	results := make([]any, len(encoded))
	var warnings []Warning
	for i, data := range encoded {
		if data == nil {
			results[i] = &Placeholder{TypeName: "unknown", Reason: "element was not captured"}
			continue
		}
		v, warns, err := e.Decode(ctx, data, opts)
		warnings = append(warnings, prefixWarnings(warns, fmt.Sprintf("[%d]", i))...)
		if err != nil {
			if opts.Strict {
				return nil, warnings, err
			}
			warnings = append(warnings, Warning{Path: fmt.Sprintf("[%d]", i), Message: err.Error()})
			results[i] = &Placeholder{TypeName: "unknown", Reason: err.Error()}
			continue
		}
		results[i] = v
	}
	return results, warnings, nil
}

// EncodeMap applies Encode across a keyed collection of independent
// values.
func (e *Engine) EncodeMap(ctx context.Context, values map[string]any, opts Options) (map[string][]byte, []Warning, error) {
	results := make(map[string][]byte, len(values))
	var warnings []Warning
	for key, v := range values {
		data, warns, err := e.Encode(ctx, v, opts)
		warnings = append(warnings, prefixWarnings(warns, "["+key+"]")...)
		if err != nil {
			if opts.Strict {
				return nil, warnings, err
			}
			warnings = append(warnings, Warning{Path: "[" + key + "]", TypeName: TypeName(v), Message: err.Error()})
			continue
		}
		results[key] = data
	}
	return results, warnings, nil
}

// DecodeMap applies Decode across a keyed collection of encoded
// elements.
func (e *Engine) DecodeMap(ctx context.Context, encoded map[string][]byte, opts Options) (map[string]any, []Warning, error) {
	results := make(map[string]any, len(encoded))
	var warnings []Warning
	for key, data := range encoded {
		v, warns, err := e.Decode(ctx, data, opts)
		warnings = append(warnings, prefixWarnings(warns, "["+key+"]")...)
		if err != nil {
			if opts.Strict {
				return nil, warnings, err
			}
			warnings = append(warnings, Warning{Path: "[" + key + "]", Message: err.Error()})
			results[key] = &Placeholder{TypeName: "unknown", Reason: err.Error()}
			continue
		}
		results[key] = v
	}
	return results, warnings, nil
}

func prefixWarnings(warns []Warning, prefix string) []Warning {
	for i := range warns {
		warns[i].Path = prefix + warns[i].Path
	}
	return warns
}
