package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testRego = `# Denies everything.
# Used only in tests.
package test.denyall

import rego.v1

deny contains violation if {
	true
	violation := {"message": "always denied", "severity": "error"}
}
`

func TestLoadRegoFile(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	dir := t.TempDir()
	path := filepath.Join(dir, "deny-all.rego")
	if err := os.WriteFile(path, []byte(testRego), 0o644); err != nil {
		t.Fatal(err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("policies = %d, want 1", len(policies))
	}

	p := policies[0]
	if p.Name != "deny-all" {
		t.Errorf("Name = %q, want deny-all", p.Name)
	}
	if p.Rego != testRego {
		t.Error("Rego content does not match source")
	}
	if p.Description != "Denies everything. Used only in tests." {
		t.Errorf("Description = %q", p.Description)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("default Severity = %q, want warning", p.Severity)
	}
	if !p.Enabled {
		t.Error("loaded policy should be enabled")
	}
}

func TestLoadJSONFile(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	doc := Policy{
		Name:     "json-policy",
		Rego:     "package test.json\n\nimport rego.v1\n",
		Severity: SeverityCritical,
		Enabled:  true,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("policies = %d, want 1", len(policies))
	}
	if policies[0].Name != "json-policy" {
		t.Errorf("Name = %q", policies[0].Name)
	}
	if policies[0].Severity != SeverityCritical {
		t.Errorf("Severity = %q, want critical", policies[0].Severity)
	}
	if policies[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should default to now")
	}
}

func TestLoadDirectorySkipsBadFiles(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "good.rego"), []byte(testRego), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("policies = %d, want 1 (bad and non-policy files skipped)", len(policies))
	}
	if policies[0].Name != "good" {
		t.Errorf("Name = %q", policies[0].Name)
	}
}

func TestLoadMissingPath(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	_, err := loader.LoadFromPaths(context.Background(), []string{"/does/not/exist"})
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestLoadBundle(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	bundle := PolicyBundle{
		Name:    "core",
		Version: "1.2.0",
		Policies: []Policy{
			{Name: "a", Rego: "package a\n", Severity: SeverityError, Enabled: true},
			{Name: "b", Rego: "package b\n", Severity: SeverityInfo, Enabled: false},
		},
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "bundle.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := loader.LoadBundle(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if loaded.Name != "core" || loaded.Version != "1.2.0" {
		t.Errorf("bundle header = %s/%s", loaded.Name, loaded.Version)
	}
	if len(loaded.Policies) != 2 {
		t.Errorf("policies = %d, want 2", len(loaded.Policies))
	}
}

func TestLeadingComment(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"single line", "# one line\npackage x\n", "one line"},
		{"multi line", "# first\n# second\npackage x\n", "first second"},
		{"no comment", "package x\n", ""},
		{"comment after code ignored", "package x\n# later\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := leadingComment(tt.src); got != tt.want {
				t.Errorf("leadingComment = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "watched.rego")
	if err := os.WriteFile(path, []byte(testRego), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan []Policy, 1)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		select {
		case reloaded <- policies:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	updated := "# Updated.\npackage test.denyall\n\nimport rego.v1\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case policies := <-reloaded:
		if len(policies) != 1 {
			t.Fatalf("reloaded policies = %d, want 1", len(policies))
		}
		if policies[0].Description != "Updated." {
			t.Errorf("Description = %q, want the updated comment", policies[0].Description)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}
