package ssh

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("push1.internal", "stasis")

	if cfg.Host != "push1.internal" || cfg.User != "stasis" {
		t.Errorf("host/user = %q/%q", cfg.Host, cfg.User)
	}
	if cfg.Port != 22 {
		t.Errorf("Port = %d, want 22", cfg.Port)
	}
	if cfg.AuthMethod != AuthMethodKey {
		t.Errorf("AuthMethod = %q, want key", cfg.AuthMethod)
	}
	if !cfg.StrictHostKeyChecking {
		t.Error("strict host key checking should default on")
	}
	if cfg.ConnectionTimeout <= 0 || cfg.CommandTimeout <= 0 {
		t.Errorf("timeouts = %v/%v, want positive", cfg.ConnectionTimeout, cfg.CommandTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	keyPath := writeEphemeralKey(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "password push destination",
			mutate: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = "secret"
			},
		},
		{
			name: "key push destination",
			mutate: func(c *Config) {
				c.PrivateKeyPath = keyPath
			},
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.User = "" },
			wantErr: "user is required",
		},
		{
			name: "password auth without password",
			mutate: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
			},
			wantErr: "password is required",
		},
		{
			name: "key auth with missing key file",
			mutate: func(c *Config) {
				c.PrivateKeyPath = filepath.Join(t.TempDir(), "no_such_key")
			},
			wantErr: "private key file not found",
		},
		{
			name: "unknown auth method",
			mutate: func(c *Config) {
				c.AuthMethod = AuthMethod("kerberos")
			},
			wantErr: "unsupported auth method",
		},
		{
			name:    "zero connection timeout",
			mutate:  func(c *Config) { c.ConnectionTimeout = 0 },
			wantErr: "connection timeout must be positive",
		},
		{
			name:    "zero command timeout",
			mutate:  func(c *Config) { c.CommandTimeout = 0 },
			wantErr: "command timeout must be positive",
		},
		{
			name: "jump host without user",
			mutate: func(c *Config) {
				c.PrivateKeyPath = keyPath
				c.ProxyHost = "bastion.internal"
			},
			wantErr: "proxy user is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("push1.internal", "stasis")
			cfg.PrivateKeyPath = keyPath
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigAddresses(t *testing.T) {
	cfg := DefaultConfig("push1.internal", "stasis")
	cfg.Port = 2222

	if got := cfg.Address(); got != "push1.internal:2222" {
		t.Errorf("Address = %q", got)
	}
	if cfg.IsProxyEnabled() {
		t.Error("proxy should be off by default")
	}
	if got := cfg.ProxyAddress(); got != "" {
		t.Errorf("ProxyAddress = %q, want empty", got)
	}

	cfg.ProxyHost = "bastion.internal"
	cfg.ProxyPort = 22
	if !cfg.IsProxyEnabled() {
		t.Error("proxy should be on")
	}
	if got := cfg.ProxyAddress(); got != "bastion.internal:22" {
		t.Errorf("ProxyAddress = %q", got)
	}
}

func TestBuildSSHClientConfig(t *testing.T) {
	t.Run("password auth", func(t *testing.T) {
		cfg := DefaultConfig("push1.internal", "stasis")
		cfg.AuthMethod = AuthMethodPassword
		cfg.Password = "secret"
		cfg.KnownHostsPath = ""
		cfg.StrictHostKeyChecking = false
		cfg.ConnectionTimeout = 10 * time.Second

		cc, err := cfg.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("BuildSSHClientConfig: %v", err)
		}
		if cc.User != "stasis" {
			t.Errorf("User = %q", cc.User)
		}
		// Password plus keyboard-interactive for servers that only
		// prompt.
		if len(cc.Auth) != 2 {
			t.Errorf("auth methods = %d, want 2", len(cc.Auth))
		}
		if cc.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v", cc.Timeout)
		}
	})

	t.Run("key auth", func(t *testing.T) {
		cfg := DefaultConfig("push1.internal", "stasis")
		cfg.PrivateKeyPath = writeEphemeralKey(t)
		cfg.KnownHostsPath = ""
		cfg.StrictHostKeyChecking = false

		cc, err := cfg.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("BuildSSHClientConfig: %v", err)
		}
		if len(cc.Auth) != 1 {
			t.Errorf("auth methods = %d, want 1", len(cc.Auth))
		}
	})

	t.Run("agent auth unsupported", func(t *testing.T) {
		cfg := DefaultConfig("push1.internal", "stasis")
		cfg.AuthMethod = AuthMethodAgent

		if _, err := cfg.BuildSSHClientConfig(); err == nil {
			t.Error("agent auth should be rejected")
		}
	})

	t.Run("strict checking needs readable known_hosts", func(t *testing.T) {
		cfg := DefaultConfig("push1.internal", "stasis")
		cfg.PrivateKeyPath = writeEphemeralKey(t)
		cfg.KnownHostsPath = filepath.Join(t.TempDir(), "known_hosts")

		if _, err := cfg.BuildSSHClientConfig(); err == nil {
			t.Error("missing known_hosts should fail under strict checking")
		}
	})
}
