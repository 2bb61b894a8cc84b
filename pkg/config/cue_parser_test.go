package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCUEParserParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErrs  bool
		checkFunc func(*testing.T, *ParsedConfig)
	}{
		{
			name: "full config",
			content: `
telemetry: {
	log_level:  "debug"
	log_format: "json"
}

engine: {
	strict:    true
	max_depth: 64
}

store: {
	path: "/tmp/capsules.db"
}

remotes: [{
	name: "prod"
	host: "capsules.internal"
	user: "stasis"
}]
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if pc.Config.Telemetry.LogLevel != "debug" {
					t.Errorf("LogLevel = %q", pc.Config.Telemetry.LogLevel)
				}
				if !pc.Config.Engine.Strict || pc.Config.Engine.MaxDepth != 64 {
					t.Errorf("Engine = %+v", pc.Config.Engine)
				}
				if pc.Config.Store.Path != "/tmp/capsules.db" {
					t.Errorf("Store.Path = %q", pc.Config.Store.Path)
				}
				if len(pc.Config.Remotes) != 1 || pc.Config.Remotes[0].Port != 22 {
					t.Errorf("Remotes = %+v (port should default to 22)", pc.Config.Remotes)
				}
			},
		},
		{
			name: "partial config keeps defaults",
			content: `
telemetry: log_level: "warn"
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if pc.Config.Telemetry.LogLevel != "warn" {
					t.Errorf("LogLevel = %q", pc.Config.Telemetry.LogLevel)
				}
				if pc.Config.Store.Path != "stasis.db" {
					t.Errorf("Store.Path default lost: %q", pc.Config.Store.Path)
				}
				if pc.Config.Engine.MaxDepth != 256 {
					t.Errorf("MaxDepth default lost: %d", pc.Config.Engine.MaxDepth)
				}
			},
		},
		{
			name: "syntax error reported with position",
			content: `
telemetry: {
	log_level: "info"
`,
			wantErrs: true,
		},
		{
			name: "bad log level fails validation",
			content: `
telemetry: log_level: "verbose"
`,
			wantErrs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := parser.ParseInline(ctx, tt.content)
			if err != nil {
				t.Fatalf("ParseInline: %v", err)
			}
			if tt.wantErrs {
				if len(pc.Errors) == 0 {
					t.Fatal("expected validation errors")
				}
				return
			}
			if len(pc.Errors) > 0 {
				t.Fatalf("unexpected errors: %+v", pc.Errors)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, pc)
			}
		})
	}
}

func TestCUEParserUnifiesSources(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()
	dir := t.TempDir()

	base := filepath.Join(dir, "base.cue")
	override := filepath.Join(dir, "prod.cue")
	if err := os.WriteFile(base, []byte(`
telemetry: log_level: "info"
store: path: "base.db"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(override, []byte(`
telemetry: log_format: "json"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parser.Load(ctx, []string{base, override})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.LogLevel != "info" || cfg.Telemetry.LogFormat != "json" {
		t.Errorf("unified telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Store.Path != "base.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestCUEParserConflictingSources(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()
	dir := t.TempDir()

	a := filepath.Join(dir, "a.cue")
	b := filepath.Join(dir, "b.cue")
	if err := os.WriteFile(a, []byte(`store: path: "a.db"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(`store: path: "b.db"`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Load(ctx, []string{a, b}); err == nil {
		t.Error("conflicting concrete values should not unify")
	}
}

func TestCUEParserMissingSource(t *testing.T) {
	parser := NewCUEParser()
	if _, err := parser.Parse(context.Background(), []string{"/does/not/exist.cue"}); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := parser.Parse(context.Background(), nil); err == nil {
		t.Error("expected error for empty sources")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Engine.MaxDepth != 256 {
		t.Errorf("MaxDepth = %d", cfg.Engine.MaxDepth)
	}
	if cfg.Engine.SnapshotTimeout != time.Second {
		t.Errorf("SnapshotTimeout = %v", cfg.Engine.SnapshotTimeout)
	}
	if cfg.Telemetry.LogOutput != "stderr" {
		t.Errorf("LogOutput = %q", cfg.Telemetry.LogOutput)
	}
}

func TestToTelemetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "trace"
	cfg.Telemetry.MetricsEnabled = true
	cfg.Telemetry.TracingEnabled = false

	tc := cfg.ToTelemetryConfig()
	if tc.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q", tc.Logging.Level)
	}
	if !tc.Metrics.Enabled {
		t.Error("Metrics.Enabled not carried over")
	}
	if tc.Tracing.Enabled {
		t.Error("Tracing.Enabled should be off")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stasis.yaml")
	content := `
telemetry:
  log_level: debug
store:
  path: /tmp/y.db
remotes:
  - name: prod
    host: example.com
    user: stasis
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.Telemetry.LogLevel)
	}
	if cfg.Store.Path != "/tmp/y.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Engine.MaxDepth != 256 {
		t.Errorf("defaults lost: MaxDepth = %d", cfg.Engine.MaxDepth)
	}
	if len(cfg.Remotes) != 1 || cfg.Remotes[0].Port != 22 {
		t.Errorf("Remotes = %+v", cfg.Remotes)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("telemetry:\n  log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadYAML(bad); err == nil {
		t.Error("invalid log level should fail validation")
	}

	missingRemote := filepath.Join(dir, "remote.yaml")
	if err := os.WriteFile(missingRemote, []byte("remotes:\n  - name: prod\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadYAML(missingRemote); err == nil {
		t.Error("remote without host/user should fail validation")
	}

	if _, err := LoadYAML(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
