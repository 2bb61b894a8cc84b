package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// Engine evaluates Rego policies against envelope trees before encoded
// bytes leave the capsule engine. It implements capsule.Guard.
type Engine struct {
	mu              sync.RWMutex
	policies        map[string]*compiledPolicy
	store           storage.Store
	logger          zerolog.Logger
	builtinPolicies []Policy
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a new policy engine with the built-in policies
// loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	store := inmem.New()

	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    store,
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	// Load built-in policies
	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// Allow implements capsule.Guard: it evaluates all enabled policies
// against the envelope tree and returns an error when any violation
// reaches error severity.
func (e *Engine) Allow(ctx context.Context, root *capsule.Node) error {
	result, err := e.Evaluate(ctx, root)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if result.Allowed {
		return nil
	}

	messages := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		if v.Severity == SeverityError || v.Severity == SeverityCritical {
			messages = append(messages, fmt.Sprintf("%s: %s", v.Policy, v.Message))
		}
	}
	return fmt.Errorf("capture denied by policy: %s", strings.Join(messages, "; "))
}

// Evaluate evaluates all enabled policies against an envelope tree.
func (e *Engine) Evaluate(ctx context.Context, root *capsule.Node) (*Result, error) {
	startTime := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := buildInput(root)
	input.Context = &Context{
		Timestamp: startTime,
		Operation: "encode",
	}

	var allViolations []Violation
	var warnings []string

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Msg("Policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}

		allViolations = append(allViolations, violations...)
	}

	// Determine if allowed based on violations
	allowed := true
	for i := range allViolations {
		if allViolations[i].Severity == SeverityError || allViolations[i].Severity == SeverityCritical {
			allowed = false
			break
		}
	}

	duration := time.Since(startTime)
	e.logger.Debug().
		Int("violations", len(allViolations)).
		Bool("allowed", allowed).
		Dur("duration", duration).
		Msg("Envelope policy evaluation completed")

	return &Result{
		Allowed:     allowed,
		Violations:  allViolations,
		Warnings:    warnings,
		EvaluatedAt: time.Now(),
	}, nil
}

// LoadPolicies loads policy files.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	// Compile and store policies
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			e.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// evaluatePolicy evaluates a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	// Query the deny set from the policy's own package
	packageName := extractPackageName(cp.policy.Rego)
	query := fmt.Sprintf("data.%s.deny", packageName)

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation

	// Process results
	for _, result := range results {
		if len(result.Expressions) > 0 {
			// The result should be a set of violations
			if denySet, ok := result.Expressions[0].Value.([]interface{}); ok {
				for _, d := range denySet {
					violations = append(violations, e.createViolation(cp.policy, d))
				}
			}
		}
	}

	return violations, nil
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(regoSrc string) string {
	lines := strings.Split(regoSrc, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "stasis.policies"
}

// createViolation creates a Violation from a policy deny result.
func (e *Engine) createViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	// Extract message from result
	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if path, ok := v["path"].(string); ok {
			violation.Path = path
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy compiles a policy and stores it.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	// Parse the Rego module
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	// Create a new Rego query
	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(e.store),
		rego.Query("data"),
	)

	// Prepare the query for reuse
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")

	return nil
}

// loadBuiltinPolicies loads the built-in policies. A fresh set is
// taken on every call so a reload resets enabled/disabled state.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	e.builtinPolicies = GetBuiltinPolicies()
	for i := range e.builtinPolicies {
		if err := e.compileAndStorePolicy(ctx, &e.builtinPolicies[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", e.builtinPolicies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(e.builtinPolicies)).
		Msg("Built-in policies loaded")

	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}

	return policies
}

// ReloadPolicies clears loaded policies and reloads the built-ins.
// Callers using LoadPolicies re-apply their paths afterwards; the
// loader's Watch wiring does this automatically.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Clear existing policies
	e.policies = make(map[string]*compiledPolicy)

	// Reload built-in policies
	return e.loadBuiltinPolicies(ctx)
}

// ApplyPolicies replaces user policies with a freshly loaded set. Used
// as the loader's reload callback.
func (e *Engine) ApplyPolicies(ctx context.Context, policies []Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.policies = make(map[string]*compiledPolicy)
	if err := e.loadBuiltinPolicies(ctx); err != nil {
		return err
	}
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}
	return nil
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = true
	e.logger.Info().Str("policy", name).Msg("Policy enabled")

	return nil
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = false
	e.logger.Info().Str("policy", name).Msg("Policy disabled")

	return nil
}

// buildInput flattens an envelope tree into the Rego input document.
func buildInput(root *capsule.Node) *Input {
	in := &Input{}
	in.Tree = flattenNode(root, "$", &in.Envelopes)
	if in.Envelopes == nil {
		in.Envelopes = []EnvelopeInfo{}
	}
	return in
}

func flattenNode(n *capsule.Node, path string, envelopes *[]EnvelopeInfo) interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case capsule.NodePrimitive:
		return map[string]interface{}{
			"kind":  "prim",
			"value": n.Prim,
		}
	case capsule.NodeList:
		items := make([]interface{}, 0, len(n.Items))
		for i, item := range n.Items {
			items = append(items, flattenNode(item, fmt.Sprintf("%s[%d]", path, i), envelopes))
		}
		return map[string]interface{}{
			"kind":  "list",
			"items": items,
		}
	case capsule.NodeMap:
		entries := make([]interface{}, 0, len(n.Entries))
		for _, entry := range n.Entries {
			entries = append(entries, map[string]interface{}{
				"key":   flattenNode(entry.Key, path, envelopes),
				"value": flattenNode(entry.Value, path, envelopes),
			})
		}
		return map[string]interface{}{
			"kind":    "map",
			"entries": entries,
		}
	case capsule.NodeEnvelope:
		names := make([]string, 0, len(n.Fields))
		fields := make(map[string]interface{}, len(n.Fields))
		for _, f := range n.Fields {
			names = append(names, f.Name)
			fields[f.Name] = flattenNode(f.Value, path+"."+f.Name, envelopes)
		}
		*envelopes = append(*envelopes, EnvelopeInfo{
			Provider: n.Provider,
			TypeName: n.TypeName,
			Path:     path,
			Fields:   names,
		})
		return map[string]interface{}{
			"kind":      "env",
			"provider":  n.Provider,
			"type_name": n.TypeName,
			"path":      path,
			"fields":    fields,
		}
	case capsule.NodeBundle:
		fields := make(map[string]interface{}, len(n.Fields))
		for _, f := range n.Fields {
			fields[f.Name] = flattenNode(f.Value, path+"."+f.Name, envelopes)
		}
		return map[string]interface{}{
			"kind":   "bundle",
			"fields": fields,
		}
	case capsule.NodePlaceholder:
		return map[string]interface{}{
			"kind":      "ph",
			"type_name": n.TypeName,
			"reason":    n.Reason,
		}
	default:
		return nil
	}
}
