package providers

import (
	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/script"
)

// RegisterDefaults installs the full built-in provider set on a
// registry. The script environment may be nil; script functions then
// always capture by full source carry. The type registry backs the
// structural provider's concrete rebuilds.
func RegisterDefaults(r *capsule.Registry, types *capsule.TypeRegistry, env *script.Env) {
	r.Register(NewDescriptorProvider())
	r.Register(NewMutexProvider())
	r.Register(NewAtomicProvider())
	r.Register(NewPatternProvider())
	r.Register(NewFileProvider())
	r.Register(NewNetProvider())
	r.Register(NewDBProvider())
	r.Register(NewLoggerProvider())
	r.Register(NewScriptProvider(env))
	r.Register(NewProcessProvider())
	r.Register(NewQueueProvider())
	r.Register(NewWeakRefProvider())
	r.Register(NewIteratorProvider())
	r.Register(NewStructuralProvider(types))
}

// NewDefaultEngine builds an engine with the built-in provider set
// already registered.
func NewDefaultEngine(cfg capsule.EngineConfig, env *script.Env) *capsule.Engine {
	engine := capsule.NewEngine(cfg)
	RegisterDefaults(engine.Registry(), engine.Types(), env)
	return engine
}
