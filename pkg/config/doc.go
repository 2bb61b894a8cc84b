// Package config loads and validates the stasis runtime configuration.
//
// Two source formats are supported. YAML is the common case:
//
//	telemetry:
//	  log_level: debug
//	  log_format: json
//	store:
//	  path: /var/lib/stasis/capsules.db
//	policy:
//	  enabled: true
//	  paths: [/etc/stasis/policies]
//	remotes:
//	  - name: prod
//	    host: capsules.internal
//	    user: stasis
//	    private_key_path: ~/.ssh/id_ed25519
//
// CUE sources compose via unification, so a base file and
// per-environment overrides can be passed together:
//
//	parser := config.NewCUEParser()
//	cfg, err := parser.Load(ctx, []string{"base.cue", "prod.cue"})
//
// Both loaders start from Default() so partial files only override what
// they mention, and both validate the result with go-playground
// validator struct tags. CUE parse problems carry file, line, and
// column via ValidationError.
//
// The SchemaRegistry holds CUE schemas (runtime config, push remotes,
// plugin manifests) for validating documents that arrive as plain data,
// such as plugin manifest files.
package config
