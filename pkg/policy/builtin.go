package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		noCredentialsPolicy(),
		placeholderBudgetPolicy(),
		descriptorAuditPolicy(),
	}
}

// noCredentialsPolicy denies captures whose envelope payloads carry
// credential-looking field names.
func noCredentialsPolicy() Policy {
	return Policy{
		Name:        "no-credentials",
		Description: "Denies capture of envelopes whose payload fields look like credentials (password, secret, token, api_key, private_key)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"security", "secrets"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package stasis.policies.credentials

import rego.v1

secret_field_pattern := "(?i)(password|passwd|secret|token|api_key|apikey|private_key|credential)"

deny contains violation if {
	some env in input.envelopes
	some field in env.fields
	regex.match(secret_field_pattern, field)

	violation := {
		"message": sprintf("Envelope %s at %s carries credential-looking field '%s'", [env.type_name, env.path, field]),
		"severity": "error",
		"path": env.path,
	}
}
`,
	}
}

// placeholderBudgetPolicy warns when a tree already contains
// placeholders at encode time, which usually means a re-encoded lenient
// capture is being shipped with holes in it.
func placeholderBudgetPolicy() Policy {
	return Policy{
		Name:        "placeholder-budget",
		Description: "Warns when an outgoing tree contains placeholder nodes from a previous lenient capture",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"quality"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package stasis.policies.placeholders

import rego.v1

placeholders contains node if {
	walk(input.tree, [_, node])
	node.kind == "ph"
}

deny contains violation if {
	count(placeholders) > 0

	violation := {
		"message": sprintf("Tree carries %d placeholder(s) from a previous lenient capture", [count(placeholders)]),
		"severity": "warning",
	}
}
`,
	}
}

// descriptorAuditPolicy flags reconnection descriptors for external
// resources so operators can audit what a capsule will try to reopen
// on the receiving side.
func descriptorAuditPolicy() Policy {
	return Policy{
		Name:        "descriptor-audit",
		Description: "Flags reconnection descriptors so operators can audit what a capsule reopens on arrival",
		Severity:    SeverityInfo,
		Enabled:     false,
		Tags:        []string{"audit", "descriptors"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package stasis.policies.descriptors

import rego.v1

descriptor_providers := {"os.file", "net.conn", "db.conn", "os.process", "telemetry.logger", "reconnect.descriptor"}

deny contains violation if {
	some env in input.envelopes
	descriptor_providers[env.provider]

	violation := {
		"message": sprintf("Capsule reconnects a %s resource at %s", [env.provider, env.path]),
		"severity": "info",
		"path": env.path,
	}
}
`,
	}
}
