// Package policy provides Open Policy Agent (OPA) integration for stasis.
//
// Policies written in Rego are evaluated against the envelope tree of a
// capture before its bytes leave the engine. The engine implements
// capsule.Guard, so it plugs directly into capsule.Engine options and
// can veto an encode based on what the tree contains.
//
// # Architecture
//
// The package has four parts:
//
//  1. Engine - Compiles Rego policies and evaluates envelope trees
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Policies, violations, results, and the Rego input shape
//  4. Built-in policies - no-credentials, placeholder-budget, descriptor-audit
//
// # Input document
//
// Before evaluation the envelope tree is flattened into a JSON-friendly
// document. input.tree mirrors the node structure; input.envelopes is a
// flat list with one entry per provider envelope:
//
//	{
//	    "provider": "os.file",
//	    "type_name": "*os.File",
//	    "path": "$.handles[0]",
//	    "fields": ["path", "offset", "mode"]
//	}
//
// Policies match on providers, type names, paths, or payload field
// names without knowing anything about Go types.
//
// # Usage
//
// Creating an engine and wiring it as a capture guard:
//
//	guard, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng := providers.NewDefaultEngine(capsule.EngineConfig{
//	    Logger: logger,
//	    Guard:  guard,
//	}, nil)
//
// Custom policies deny by contributing to a deny set:
//
//	package custom.policies.files
//
//	import rego.v1
//
//	deny contains violation if {
//	    some env in input.envelopes
//	    env.provider == "os.file"
//	    startswith(env.path, "$.production")
//
//	    violation := {
//	        "message": "Production file handles may not be captured",
//	        "severity": "error",
//	        "path": env.path,
//	    }
//	}
//
// Only violations of severity error or critical deny the capture; info
// and warning violations are reported in the Result but do not block.
//
// # Hot reload
//
// The loader watches policy paths and reapplies them on change:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return guard.ApplyPolicies(ctx, policies)
//	})
package policy
