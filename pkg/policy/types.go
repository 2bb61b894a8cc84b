package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Path locates the offending node inside the envelope tree.
	Path string `json:"path,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of evaluating policies against one
// envelope tree.
type Result struct {
	// Allowed indicates if the capture may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Input is the document handed to Rego. The envelope tree is flattened
// into plain maps and lists so policies can walk it without knowing the
// engine's Go types.
type Input struct {
	// Tree is the flattened envelope tree.
	Tree interface{} `json:"tree"`

	// Envelopes lists every provider envelope in the tree with its
	// payload field names, for policies that only care about payloads.
	Envelopes []EnvelopeInfo `json:"envelopes"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// EnvelopeInfo summarizes one provider envelope for policy input.
type EnvelopeInfo struct {
	// Provider is the capability provider identifier.
	Provider string `json:"provider"`

	// TypeName is the captured value's type.
	TypeName string `json:"type_name"`

	// Path locates the envelope within the tree.
	Path string `json:"path"`

	// Fields lists payload field names.
	Fields []string `json:"fields"`
}

// Context provides metadata about the evaluation.
type Context struct {
	// Timestamp is when the evaluation started.
	Timestamp time.Time `json:"timestamp"`

	// Operation names what triggered the evaluation (encode).
	Operation string `json:"operation"`
}

// PolicyBundle groups policies for distribution.
type PolicyBundle struct {
	// Name is the bundle name.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Policies are the bundled policies.
	Policies []Policy `json:"policies"`
}
