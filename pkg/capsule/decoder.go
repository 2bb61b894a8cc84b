package capsule

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// decodeState accumulates lenient-mode warnings across one decode call.
type decodeState struct {
	opts     *Options
	warnings []Warning
}

// Decode rebuilds a value from a transportable representation. The
// result may be the value itself, a *ReconnectionDescriptor for live
// resources, a *Placeholder for unrecoverable values, or a composite
// containing any of these. Every envelope's provider identifier must
// resolve to a currently registered provider or decoding fails with an
// envelope-corrupt error; there is no silent substitution.
func (e *Engine) Decode(ctx context.Context, data []byte, opts Options) (any, []Warning, error) {
	opts = opts.withDefaults()
	ctx, span := e.tracer.Start(ctx, "capsule.Decode")
	defer span.End()
	start := time.Now()

	root, err := unmarshalNode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		e.recordFailure("decode", err)
		return nil, nil, err
	}

	st := &decodeState{opts: &opts}
	v, err := e.decodeNode(ctx, root, st, "$", 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		e.recordFailure("decode", err)
		return nil, st.warnings, err
	}

	span.SetAttributes(attribute.Int("capsule.warnings", len(st.warnings)))
	if e.metrics != nil {
		e.metrics.RecordDecode(e.mode(opts), "ok", time.Since(start))
	}
	e.logger.Debug().
		Int("bytes", len(data)).
		Int("warnings", len(st.warnings)).
		Dur("duration", time.Since(start)).
		Msg("Value decoded")
	return v, st.warnings, nil
}

func (e *Engine) decodeNode(ctx context.Context, n *Node, st *decodeState, path string, depth int) (any, error) {
	if n == nil {
		return nil, NewEnvelopeCorruptError("missing node in envelope tree", nil).WithPath(path)
	}
	if depth > st.opts.MaxDepth {
		return nil, NewEnvelopeCorruptError(
			fmt.Sprintf("envelope tree exceeds maximum depth %d", st.opts.MaxDepth), nil).WithPath(path)
	}

	switch n.Kind {
	case NodePrimitive:
		return normalizePrim(n.Prim), nil

	case NodeList:
		items := make([]any, 0, len(n.Items))
		for i, child := range n.Items {
			v, err := e.decodeNode(ctx, child, st, fmt.Sprintf("%s[%d]", path, i), depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case NodeMap:
		return e.decodeMap(ctx, n, st, path, depth)

	case NodeBundle:
		bundle := NewBundle()
		for _, f := range n.Fields {
			v, err := e.decodeNode(ctx, f.Value, st, path+"."+f.Name, depth+1)
			if err != nil {
				return nil, err
			}
			bundle.Set(f.Name, v)
		}
		return bundle, nil

	case NodeEnvelope:
		return e.decodeEnvelope(ctx, n, st, path, depth)

	case NodePlaceholder:
		return &Placeholder{TypeName: n.TypeName, Description: n.Message, Reason: n.Reason}, nil

	default:
		return nil, NewEnvelopeCorruptError(
			fmt.Sprintf("unknown node kind %q", n.Kind), nil).WithPath(path)
	}
}

// normalizePrim canonicalizes integer leaves after CBOR decoding:
// unsigned values that fit come back as int64, values above MaxInt64
// stay uint64 so they round-trip intact.
func normalizePrim(v any) any {
	if u, ok := v.(uint64); ok && u <= math.MaxInt64 {
		return int64(u)
	}
	return v
}

// decodeMap rebuilds a keyed composite. String-keyed maps rebuild as
// map[string]any; anything else as map[any]any.
func (e *Engine) decodeMap(ctx context.Context, n *Node, st *decodeState, path string, depth int) (any, error) {
	allStrings := true
	keys := make([]any, 0, len(n.Entries))
	vals := make([]any, 0, len(n.Entries))
	for _, entry := range n.Entries {
		if entry.Key == nil || entry.Key.Kind != NodePrimitive {
			return nil, NewEnvelopeCorruptError("map key is not a primitive", nil).WithPath(path)
		}
		key := normalizePrim(entry.Key.Prim)
		if _, ok := key.(string); !ok {
			allStrings = false
		}
		v, err := e.decodeNode(ctx, entry.Value, st, fmt.Sprintf("%s[%v]", path, key), depth+1)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}

	if allStrings {
		m := make(map[string]any, len(keys))
		for i := range keys {
			m[keys[i].(string)] = vals[i]
		}
		return m, nil
	}
	m := make(map[any]any, len(keys))
	for i := range keys {
		m[keys[i]] = vals[i]
	}
	return m, nil
}

// decodeEnvelope resolves the provider tag, recursively decodes the
// payload fields, and invokes the provider's Rebuild.
func (e *Engine) decodeEnvelope(ctx context.Context, n *Node, st *decodeState, path string, depth int) (any, error) {
	p, ok := e.registry.Lookup(n.Provider)
	if !ok {
		return nil, (&Error{
			Kind:     KindEnvelopeCorrupt,
			Message:  fmt.Sprintf("envelope tagged with unregistered provider %q", n.Provider),
			TypeName: n.TypeName,
			Provider: n.Provider,
		}).WithPath(path)
	}

	bundle := NewBundle()
	for _, f := range n.Fields {
		v, err := e.decodeNode(ctx, f.Value, st, path+"."+f.Name, depth+1)
		if err != nil {
			return nil, err
		}
		bundle.Set(f.Name, v)
	}

	start := time.Now()
	v, err := p.Rebuild(ctx, bundle)
	if e.metrics != nil {
		e.metrics.RecordProviderCall(p.Name(), "rebuild", time.Since(start))
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordProviderError(p.Name(), "rebuild")
		}
		cerr := classify(err, func() *Error { return NewReconstructionError(p.Name(), n.TypeName, err) })
		if cerr.TypeName == "" {
			cerr.TypeName = n.TypeName
		}
		if cerr.Provider == "" {
			cerr.Provider = p.Name()
		}
		cerr.WithPath(path)
		if !st.opts.Strict && recoverable(cerr.Kind) {
			st.warnings = append(st.warnings, Warning{Path: path, TypeName: n.TypeName, Message: cerr.Message + describeCause(cerr.Err)})
			if e.metrics != nil {
				e.metrics.RecordPlaceholder(n.TypeName)
			}
			return &Placeholder{TypeName: n.TypeName, Reason: cerr.Message + describeCause(cerr.Err)}, nil
		}
		return nil, cerr
	}
	return v, nil
}
