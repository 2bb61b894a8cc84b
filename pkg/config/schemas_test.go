package config

import (
	"context"
	"testing"
)

func TestSchemaRegistryRegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#CustomType: {
	field1: string
	field2: int
}
`

	if err := sr.RegisterSchema("custom", customSchema); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}
}

func TestSchemaRegistryBuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	for _, name := range []string{"runtime", "remote", "plugin-manifest"} {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}
			if schema.Err() != nil {
				t.Errorf("schema has errors: %v", schema.Err())
			}
		})
	}
}

func TestSchemaRegistryInvalidSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.RegisterSchema("broken", `#X: { field: `); err == nil {
		t.Error("expected error compiling broken schema")
	}
}

func TestValidateRemote(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		remote  map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid remote",
			remote: map[string]interface{}{
				"name": "prod",
				"host": "capsules.internal",
				"port": 22,
				"user": "stasis",
			},
		},
		{
			name: "bad name",
			remote: map[string]interface{}{
				"name": "prod env!",
				"host": "capsules.internal",
				"user": "stasis",
			},
			wantErr: true,
		},
		{
			name: "port out of range",
			remote: map[string]interface{}{
				"name": "prod",
				"host": "capsules.internal",
				"port": 70000,
				"user": "stasis",
			},
			wantErr: true,
		},
		{
			name: "missing user",
			remote: map[string]interface{}{
				"name": "prod",
				"host": "capsules.internal",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateAgainstSchema(ctx, "remote", tt.remote)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePluginManifest(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	good := map[string]interface{}{
		"name":       "linux.pkg",
		"module":     "linux_pkg.wasm",
		"type_names": []string{"mypkg.PackageSet"},
	}
	if err := sr.ValidateAgainstSchema(ctx, "plugin-manifest", good); err != nil {
		t.Errorf("valid manifest rejected: %v", err)
	}

	noTypes := map[string]interface{}{
		"name":       "linux.pkg",
		"module":     "linux_pkg.wasm",
		"type_names": []string{},
	}
	if err := sr.ValidateAgainstSchema(ctx, "plugin-manifest", noTypes); err == nil {
		t.Error("manifest without type names accepted")
	}

	notWasm := map[string]interface{}{
		"name":       "linux.pkg",
		"module":     "linux_pkg.so",
		"type_names": []string{"mypkg.PackageSet"},
	}
	if err := sr.ValidateAgainstSchema(ctx, "plugin-manifest", notWasm); err == nil {
		t.Error("manifest with non-wasm module accepted")
	}
}

func TestListSchemas(t *testing.T) {
	sr := NewSchemaRegistry()
	names := sr.ListSchemas()
	if len(names) < 3 {
		t.Errorf("expected at least 3 built-in schemas, got %v", names)
	}
}
