package providers

import (
	"context"
	"fmt"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/script"
)

// ScriptProvider captures script functions. Per function it runs the
// strategy selector: a function with a stable module path that
// re-resolves to the same callable and captures no bindings is stored
// as a reference; everything else carries its source text and captured
// bindings for standalone recompilation.
type ScriptProvider struct {
	env *script.Env
}

// NewScriptProvider returns a script function provider resolving
// references against env.
func NewScriptProvider(env *script.Env) *ScriptProvider {
	return &ScriptProvider{env: env}
}

func (p *ScriptProvider) Name() string  { return "script.func" }
func (p *ScriptProvider) Priority() int { return 100 }

func (p *ScriptProvider) Match(v any) bool {
	_, ok := v.(*script.Function)
	return ok
}

// DescribeStrategy reports which strategy an encode would take.
func (p *ScriptProvider) DescribeStrategy(v any) capsule.Strategy {
	fn, ok := v.(*script.Function)
	if !ok {
		return capsule.StrategyNone
	}
	return capsule.ChooseStrategy(fn, p.resolver())
}

func (p *ScriptProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	fn := v.(*script.Function)
	module, name := fn.CallablePath()

	b := capsule.NewBundle()
	b.Set("name", name)

	switch capsule.ChooseStrategy(fn, p.resolver()) {
	case capsule.StrategyReference:
		b.Set("strategy", "reference")
		b.Set("module", module)
	default:
		b.Set("strategy", "full")
		b.Set("source", fn.SourceText())
		bindings := fn.CapturedBindings()
		if bindings == nil {
			bindings = map[string]any{}
		}
		b.Set("bindings", bindings)
	}
	return b, nil
}

func (p *ScriptProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	strategy, err := b.MustString("strategy")
	if err != nil {
		return nil, err
	}
	name, err := b.MustString("name")
	if err != nil {
		return nil, err
	}

	switch strategy {
	case "reference":
		module, err := b.MustString("module")
		if err != nil {
			return nil, err
		}
		if p.env == nil {
			return nil, capsule.NewReferenceUnresolvableError(module, name,
				fmt.Errorf("no script environment configured"))
		}
		resolved, err := p.env.Resolve(module, name)
		if err != nil {
			return nil, capsule.NewReferenceUnresolvableError(module, name, err)
		}
		return resolved, nil
	case "full":
		source, err := b.MustString("source")
		if err != nil {
			return nil, err
		}
		var bindings map[string]any
		if raw, ok := b.Get("bindings"); ok && raw != nil {
			bindings, ok = raw.(map[string]any)
			if !ok {
				return nil, capsule.NewEnvelopeCorruptError("script payload bindings are not a map", nil)
			}
		}
		env := p.env
		if env == nil {
			env = script.NewEnv(script.EnvConfig{})
		}
		return env.DefineFunction(name, source, bindings)
	default:
		return nil, capsule.NewEnvelopeCorruptError(
			fmt.Sprintf("unknown capture strategy %q", strategy), nil)
	}
}

func (p *ScriptProvider) resolver() capsule.Resolver {
	if p.env == nil {
		return nil
	}
	return p.env
}
