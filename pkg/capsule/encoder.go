package capsule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// encodeState accumulates lenient-mode warnings across one encode call.
type encodeState struct {
	opts     *Options
	warnings []Warning
}

// Encode captures v into a self-describing transportable
// representation. In strict mode any failure aborts the whole
// operation; in lenient mode extraction failures and unencodable
// sub-values are substituted with Placeholders and reported as
// warnings. Repeated encoding of an unchanged value produces identical
// bytes.
func (e *Engine) Encode(ctx context.Context, v any, opts Options) ([]byte, []Warning, error) {
	opts = opts.withDefaults()
	ctx, span := e.tracer.Start(ctx, "capsule.Encode")
	defer span.End()
	start := time.Now()

	st := &encodeState{opts: &opts}
	root, err := e.encodeValue(ctx, v, st, "$", 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		e.recordFailure("encode", err)
		return nil, st.warnings, err
	}

	if e.guard != nil {
		if err := e.guard.Allow(ctx, root); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "encode denied by policy")
			e.logger.Warn().Err(err).Msg("Encode denied by policy guard")
			return nil, st.warnings, err
		}
	}

	data, err := marshalNode(root)
	if err != nil {
		return nil, st.warnings, NewEnvelopeCorruptError("failed to marshal envelope tree", err)
	}

	span.SetAttributes(
		attribute.Int("capsule.bytes", len(data)),
		attribute.Int("capsule.warnings", len(st.warnings)),
	)
	if e.metrics != nil {
		e.metrics.RecordEncode(e.mode(opts), "ok", time.Since(start), len(data))
	}
	e.logger.Debug().
		Str("type", TypeName(v)).
		Int("bytes", len(data)).
		Int("warnings", len(st.warnings)).
		Dur("duration", time.Since(start)).
		Msg("Value encoded")
	return data, st.warnings, nil
}

// encodeValue classifies one value: primitive passthrough, composite
// recursion, or provider dispatch.
func (e *Engine) encodeValue(ctx context.Context, v any, st *encodeState, path string, depth int) (*Node, error) {
	if depth > st.opts.MaxDepth {
		return nil, (&Error{
			Kind:     KindUnencodable,
			Message:  fmt.Sprintf("value graph exceeds maximum depth %d; cyclic graphs are unsupported", st.opts.MaxDepth),
			TypeName: TypeName(v),
		}).WithPath(path)
	}

	if prim, ok := asPrimitive(v); ok {
		return &Node{Kind: NodePrimitive, Prim: prim}, nil
	}

	// Re-encoding a decoded tree: placeholders pass through unchanged.
	if ph, ok := v.(*Placeholder); ok {
		return &Node{Kind: NodePlaceholder, TypeName: ph.TypeName, Message: ph.Description, Reason: ph.Reason}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		// []byte was already handled as a primitive; everything else is
		// an ordered composite recursed element-wise.
		if rv.Type().PkgPath() != "" {
			// Named slice types carry meaning beyond their elements;
			// let a provider claim them first.
			if p := e.registry.Find(v); p != nil {
				return e.encodeWithProvider(ctx, p, v, st, path, depth)
			}
		}
		items := make([]*Node, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			child, err := e.encodeValue(ctx, rv.Index(i).Interface(), st, fmt.Sprintf("%s[%d]", path, i), depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return &Node{Kind: NodeList, Items: items}, nil

	case reflect.Map:
		return e.encodeMap(ctx, rv, st, path, depth)
	}

	p := e.registry.Find(v)
	if p == nil {
		if st.opts.Strict {
			return nil, NewUnencodableError(TypeName(v)).WithPath(path)
		}
		return e.placeholderNode(v, st, path, "no capability provider matched value"), nil
	}
	return e.encodeWithProvider(ctx, p, v, st, path, depth)
}

// encodeMap emits a keyed composite with entries sorted by encoded key
// bytes so iteration order never leaks into the representation.
func (e *Engine) encodeMap(ctx context.Context, rv reflect.Value, st *encodeState, path string, depth int) (*Node, error) {
	type rawEntry struct {
		keyBytes []byte
		entry    MapEntry
	}
	raw := make([]rawEntry, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().Interface()
		prim, ok := asPrimitive(key)
		if !ok {
			return nil, (&Error{
				Kind:     KindUnencodable,
				Message:  "map keys must be primitive values",
				TypeName: TypeName(key),
			}).WithPath(path)
		}
		keyNode := &Node{Kind: NodePrimitive, Prim: prim}
		kb, err := marshalNode(keyNode)
		if err != nil {
			return nil, NewEnvelopeCorruptError("failed to marshal map key", err).WithPath(path)
		}
		valNode, err := e.encodeValue(ctx, iter.Value().Interface(), st, fmt.Sprintf("%s[%v]", path, key), depth+1)
		if err != nil {
			return nil, err
		}
		raw = append(raw, rawEntry{keyBytes: kb, entry: MapEntry{Key: keyNode, Value: valNode}})
	}

	sort.Slice(raw, func(i, j int) bool {
		return bytes.Compare(raw[i].keyBytes, raw[j].keyBytes) < 0
	})
	entries := make([]MapEntry, len(raw))
	for i := range raw {
		entries[i] = raw[i].entry
	}
	return &Node{Kind: NodeMap, Entries: entries}, nil
}

// encodeWithProvider runs one provider's Extract and recursively
// encodes every value found inside the resulting bundle.
func (e *Engine) encodeWithProvider(ctx context.Context, p Provider, v any, st *encodeState, path string, depth int) (*Node, error) {
	start := time.Now()
	bundle, err := p.Extract(ctx, v, st.opts)
	if e.metrics != nil {
		e.metrics.RecordProviderCall(p.Name(), "extract", time.Since(start))
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordProviderError(p.Name(), "extract")
		}
		cerr := classify(err, func() *Error { return NewExtractionError(p.Name(), TypeName(v), err) })
		cerr.WithPath(path)
		if !st.opts.Strict && recoverable(cerr.Kind) {
			return e.placeholderNode(v, st, path, cerr.Message+describeCause(cerr.Err)), nil
		}
		return nil, cerr
	}

	fields, err := e.encodeBundle(ctx, bundle, st, path, depth)
	if err != nil {
		return nil, err
	}
	return &Node{
		Kind:     NodeEnvelope,
		Provider: p.Name(),
		TypeName: TypeName(v),
		Fields:   fields,
	}, nil
}

// encodeBundle turns a state bundle into wire payload fields,
// recursively encoding every nested value in declaration order.
func (e *Engine) encodeBundle(ctx context.Context, b *StateBundle, st *encodeState, path string, depth int) ([]FieldNode, error) {
	fields := make([]FieldNode, 0, b.Len())
	for _, f := range b.Fields() {
		fieldPath := path + "." + f.Name
		var node *Node
		var err error
		if nested, ok := f.Value.(*StateBundle); ok {
			var inner []FieldNode
			inner, err = e.encodeBundle(ctx, nested, st, fieldPath, depth+1)
			if err == nil {
				node = &Node{Kind: NodeBundle, Fields: inner}
			}
		} else {
			node, err = e.encodeValue(ctx, f.Value, st, fieldPath, depth+1)
		}
		if err != nil {
			var cerr *Error
			if errors.As(err, &cerr) && cerr.Field == "" {
				cerr.WithField(f.Name)
			}
			return nil, err
		}
		fields = append(fields, FieldNode{Name: f.Name, Value: node})
	}
	return fields, nil
}

// placeholderNode substitutes a lenient-mode failure and records the
// warning.
func (e *Engine) placeholderNode(v any, st *encodeState, path, reason string) *Node {
	typeName := TypeName(v)
	st.warnings = append(st.warnings, Warning{Path: path, TypeName: typeName, Message: reason})
	if e.metrics != nil {
		e.metrics.RecordPlaceholder(typeName)
	}
	e.logger.Debug().Str("type", typeName).Str("path", path).Str("reason", reason).Msg("Substituted placeholder")
	return &Node{
		Kind:     NodePlaceholder,
		TypeName: typeName,
		Message:  fmt.Sprintf("%.120v", v),
		Reason:   reason,
	}
}

// recordFailure feeds error metrics for an aborted operation.
func (e *Engine) recordFailure(op string, err error) {
	if e.metrics == nil {
		return
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		e.metrics.RecordErrorKind(op, string(cerr.Kind))
	} else {
		e.metrics.RecordErrorKind(op, "internal")
	}
}

// classify keeps an already classified error's kind, or builds a fresh
// classification via fallback.
func classify(err error, fallback func() *Error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	return fallback()
}

func describeCause(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}

// asPrimitive normalizes passthrough leaves: nil, booleans, all integer
// widths (canonicalized to int64 where they fit), floats, strings, and
// raw byte sequences.
func asPrimitive(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case bool:
		return x, true
	case string:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case []byte:
		return x, true
	}
	return nil, false
}
