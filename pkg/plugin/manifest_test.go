package plugin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// writePlugin lays out a plugin directory with a manifest and module.
func writePlugin(t *testing.T, dir, manifestYAML string, wasmModule []byte) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manifestPath := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(manifestPath, []byte(manifestYAML), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if wasmModule != nil {
		if err := os.WriteFile(filepath.Join(dir, "provider.wasm"), wasmModule, 0o644); err != nil {
			t.Fatalf("failed to write module: %v", err)
		}
	}

	return manifestPath
}

func TestLoadManifest(t *testing.T) {
	manifestYAML := `
name: redis.client
version: 1.0.0
module: provider.wasm
priority: 300
type_names:
  - "*redis.Client"
  - "*redis.ClusterClient"
`
	dir := filepath.Join(t.TempDir(), "redis")
	path := writePlugin(t, dir, manifestYAML, []byte("fake wasm"))

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}

	if manifest.Name != "redis.client" {
		t.Errorf("expected name 'redis.client', got '%s'", manifest.Name)
	}

	if manifest.EffectivePriority() != 300 {
		t.Errorf("expected priority 300, got %d", manifest.EffectivePriority())
	}

	if len(manifest.TypeNames) != 2 {
		t.Errorf("expected 2 type names, got %d", len(manifest.TypeNames))
	}

	wantModule := filepath.Join(dir, "provider.wasm")
	if manifest.ModulePath != wantModule {
		t.Errorf("expected module path '%s', got '%s'", wantModule, manifest.ModulePath)
	}
}

func TestLoadManifestDefaultPriority(t *testing.T) {
	manifestYAML := `
name: vault.token
module: provider.wasm
type_names:
  - "*vault.Token"
`
	dir := filepath.Join(t.TempDir(), "vault")
	path := writePlugin(t, dir, manifestYAML, []byte("fake wasm"))

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}

	if manifest.EffectivePriority() != DefaultPriority {
		t.Errorf("expected default priority %d, got %d", DefaultPriority, manifest.EffectivePriority())
	}
}

func TestLoadManifestValidation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		errorMsg string
	}{
		{
			name: "missing name",
			manifest: `
module: provider.wasm
type_names: ["*x.T"]
`,
			errorMsg: "name is required",
		},
		{
			name: "name not dotted form",
			manifest: `
name: RedisClient
module: provider.wasm
type_names: ["*x.T"]
`,
			errorMsg: "dotted lower-case form",
		},
		{
			name: "module not wasm",
			manifest: `
name: redis.client
module: provider.so
type_names: ["*x.T"]
`,
			errorMsg: "must be a .wasm file",
		},
		{
			name: "no type names",
			manifest: `
name: redis.client
module: provider.wasm
type_names: []
`,
			errorMsg: "at least one type name",
		},
		{
			name: "negative priority",
			manifest: `
name: redis.client
module: provider.wasm
priority: -1
type_names: ["*x.T"]
`,
			errorMsg: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "p")
			path := writePlugin(t, dir, tt.manifest, []byte("fake wasm"))

			_, err := LoadManifest(path)
			if err == nil {
				t.Fatalf("expected error containing '%s', got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing '%s', got: %v", tt.errorMsg, err)
			}
		})
	}
}

func TestLoadManifestMissingModule(t *testing.T) {
	manifestYAML := `
name: redis.client
module: provider.wasm
type_names: ["*x.T"]
`
	dir := filepath.Join(t.TempDir(), "p")
	path := writePlugin(t, dir, manifestYAML, nil)

	_, err := LoadManifest(path)
	if err == nil {
		t.Fatal("expected error for missing module file, got nil")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected module-not-found error, got: %v", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	wasmModule := []byte("fake wasm module")
	hash := sha256.Sum256(wasmModule)
	checksum := hex.EncodeToString(hash[:])

	manifestYAML := fmt.Sprintf(`
name: redis.client
module: provider.wasm
checksum: %s
type_names: ["*x.T"]
`, checksum)

	dir := filepath.Join(t.TempDir(), "p")
	path := writePlugin(t, dir, manifestYAML, wasmModule)

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}

	data, err := manifest.ReadModule()
	if err != nil {
		t.Fatalf("failed to read module: %v", err)
	}
	if len(data) != len(wasmModule) {
		t.Errorf("expected %d module bytes, got %d", len(wasmModule), len(data))
	}
	if !manifest.Verified {
		t.Error("expected manifest to be verified after reading module")
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	manifestYAML := `
name: redis.client
module: provider.wasm
checksum: deadbeef
type_names: ["*x.T"]
`
	dir := filepath.Join(t.TempDir(), "p")
	path := writePlugin(t, dir, manifestYAML, []byte("fake wasm"))

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}

	if _, err := manifest.ReadModule(); err == nil {
		t.Fatal("expected checksum mismatch error, got nil")
	}

	if manifest.Verified {
		t.Error("expected manifest to stay unverified after mismatch")
	}
}

func TestVerifyChecksumWithoutChecksum(t *testing.T) {
	m := &Manifest{Name: "redis.client", Module: "provider.wasm", TypeNames: []string{"*x.T"}}
	if err := m.VerifyChecksum([]byte("anything")); err == nil {
		t.Fatal("expected error for manifest without checksum, got nil")
	}
}

func TestScanDirectorySkipsBrokenPlugins(t *testing.T) {
	root := t.TempDir()

	// A broken plugin: manifest present, module missing.
	writePlugin(t, filepath.Join(root, "broken"), `
name: broken.plugin
module: provider.wasm
type_names: ["*x.T"]
`, nil)

	// A directory without a manifest is ignored.
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	loader := NewLoader(nil, zerolog.Nop())
	providers, err := loader.ScanDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(providers) != 0 {
		t.Errorf("expected no providers from broken plugins, got %d", len(providers))
	}
}

func TestScanDirectoryMissingDir(t *testing.T) {
	loader := NewLoader(nil, zerolog.Nop())
	providers, err := loader.ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected missing directory to be tolerated, got: %v", err)
	}
	if len(providers) != 0 {
		t.Errorf("expected no providers, got %d", len(providers))
	}
}
