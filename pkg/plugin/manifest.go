package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// namePattern matches the dotted provider identifier form used by the
// built-in providers, e.g. "redis.client" or "vault.token".
var namePattern = regexp.MustCompile(`^[a-z0-9]+\.[a-z0-9_]+$`)

// Manifest describes one WASM capability provider: where its module
// lives, which Go type names it handles, and where it sorts among
// registered providers.
type Manifest struct {
	// Name is the provider identifier in dotted form.
	Name string `yaml:"name"`

	// Version is the plugin version, informational.
	Version string `yaml:"version,omitempty"`

	// Module is the .wasm file, relative to the manifest.
	Module string `yaml:"module"`

	// Priority orders the plugin among providers. Zero means the
	// default of 500, after the built-in providers and before the
	// structural catch-all.
	Priority int `yaml:"priority,omitempty"`

	// TypeNames lists the Go type names the plugin matches, as
	// reported by reflect.Type.String (e.g. "*redis.Client").
	TypeNames []string `yaml:"type_names"`

	// Checksum is an optional SHA256 hex digest of the module bytes.
	Checksum string `yaml:"checksum,omitempty"`

	// Path is the file the manifest was loaded from.
	Path string `yaml:"-"`

	// ModulePath is the resolved path to the WASM module.
	ModulePath string `yaml:"-"`

	// Verified reports whether the module checksum has been checked.
	Verified bool `yaml:"-"`
}

// DefaultPriority is used when a manifest does not set one.
const DefaultPriority = 500

// LoadManifest reads and validates a manifest file and resolves the
// module path relative to it. The module file must exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	m.Path = path

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	if filepath.IsAbs(m.Module) {
		m.ModulePath = m.Module
	} else {
		m.ModulePath = filepath.Join(filepath.Dir(path), m.Module)
	}

	if _, err := os.Stat(m.ModulePath); err != nil {
		return nil, fmt.Errorf("WASM module not found at %s: %w", m.ModulePath, err)
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("provider name %q must be dotted lower-case form", m.Name)
	}
	if m.Module == "" {
		return fmt.Errorf("module is required")
	}
	if !strings.HasSuffix(m.Module, ".wasm") {
		return fmt.Errorf("module %q must be a .wasm file", m.Module)
	}
	if len(m.TypeNames) == 0 {
		return fmt.Errorf("at least one type name is required")
	}
	for _, name := range m.TypeNames {
		if name == "" {
			return fmt.Errorf("type names must be non-empty")
		}
	}
	if m.Priority < 0 {
		return fmt.Errorf("priority must not be negative")
	}
	return nil
}

// EffectivePriority returns the manifest priority, or DefaultPriority
// when unset.
func (m *Manifest) EffectivePriority() int {
	if m.Priority == 0 {
		return DefaultPriority
	}
	return m.Priority
}

// VerifyChecksum compares the module bytes against the manifest
// checksum. A manifest without a checksum fails verification.
func (m *Manifest) VerifyChecksum(wasmModule []byte) error {
	if m.Checksum == "" {
		return fmt.Errorf("no checksum in manifest")
	}

	hash := sha256.Sum256(wasmModule)
	computed := hex.EncodeToString(hash[:])

	if computed != m.Checksum {
		return fmt.Errorf("WASM module checksum mismatch: expected %s, got %s",
			m.Checksum, computed)
	}

	m.Verified = true
	return nil
}

// ReadModule reads the resolved WASM module bytes, verifying the
// checksum when the manifest carries one.
func (m *Manifest) ReadModule() ([]byte, error) {
	data, err := os.ReadFile(m.ModulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WASM module: %w", err)
	}
	if m.Checksum != "" {
		if err := m.VerifyChecksum(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
