package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("runtime", builtinRuntimeSchema)
	sr.RegisterSchema("remote", builtinRemoteSchema)
	sr.RegisterSchema("plugin-manifest", builtinPluginManifestSchema)
}

// RegisterSchema registers a CUE schema with the given name. When the
// source declares a single definition, that definition becomes the
// schema; otherwise the whole value is used.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	if def, ok := soleDefinition(val); ok {
		val = def
	}

	sr.schemas[name] = val
	return nil
}

func soleDefinition(val cue.Value) (cue.Value, bool) {
	iter, err := val.Fields(cue.Definitions(true))
	if err != nil {
		return cue.Value{}, false
	}
	var def cue.Value
	count := 0
	for iter.Next() {
		if iter.Selector().IsDefinition() {
			def = iter.Value()
			count++
		}
	}
	if count == 1 {
		return def, true
	}
	return cue.Value{}, false
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions

const builtinRuntimeSchema = `
// Runtime schema for the stasis configuration file
#Runtime: {
	telemetry?: {
		service_name?:    string
		log_level?:       "trace" | "debug" | "info" | "warn" | "error" | "fatal"
		log_format?:      "console" | "json"
		log_output?:      string
		metrics_enabled?: bool
		metrics_listen?:  string
		tracing_enabled?: bool
		tracing_exporter?: "otlp" | "stdout" | "none"
		tracing_endpoint?: string
	}

	engine?: {
		strict?:           bool
		max_depth?:        int & >0
		snapshot_timeout?: int & >=0
	}

	store?: {
		path?:           string
		max_open_conns?: int & >0
		max_idle_conns?: int & >=0
	}

	policy?: {
		enabled?: bool
		paths?: [...string]
		watch?: bool
	}

	plugins?: {
		dir?: string
	}

	remotes?: [...{
		name:              string & =~"^[a-zA-Z0-9_-]+$"
		host:              string
		port?:             int & >0 & <65536
		user:              string
		private_key_path?: string
		known_hosts_path?: string
		dir?:              string
	}]
}
`

const builtinRemoteSchema = `
// Remote schema for push destinations
#Remote: {
	// Name identifies the remote on the command line
	name: string & =~"^[a-zA-Z0-9_-]+$"

	// Host is the remote hostname or IP
	host: string

	// Port is the SSH port
	port?: int & >0 & <65536

	// User is the SSH username
	user: string

	// PrivateKeyPath selects key authentication
	private_key_path?: string

	// KnownHostsPath enables host key verification
	known_hosts_path?: string

	// Dir is the remote capsule directory
	dir?: string
}
`

const builtinPluginManifestSchema = `
// Plugin manifest schema for WASM capability providers
#PluginManifest: {
	// Name is the provider identifier, dotted form
	name: string & =~"^[a-z0-9]+\\.[a-z0-9_]+$"

	// Version is the plugin version
	version?: string

	// Module is the .wasm file, relative to the manifest
	module: string & =~"\\.wasm$"

	// Priority orders the plugin among providers
	priority?: int

	// TypeNames lists the type names the plugin matches
	type_names: [...string] & [_, ...]
}
`

// ValidateRemote validates a push destination against the remote schema.
func (sr *SchemaRegistry) ValidateRemote(ctx context.Context, remote RemoteSettings) error {
	return sr.ValidateAgainstSchema(ctx, "remote", remote)
}
