package config

import (
	"time"

	"github.com/stasisproject/stasis/pkg/telemetry"
)

// Config is the stasis runtime configuration. It is loaded from YAML or
// CUE sources and validated with struct tags before use.
type Config struct {
	// Telemetry configures logging, metrics, tracing, and events.
	Telemetry TelemetrySettings `json:"telemetry" yaml:"telemetry"`

	// Engine configures capture behavior.
	Engine EngineSettings `json:"engine" yaml:"engine"`

	// Store configures the capsule store.
	Store StoreSettings `json:"store" yaml:"store"`

	// Policy configures the capture policy guard.
	Policy PolicySettings `json:"policy" yaml:"policy"`

	// Plugins configures WASM capability providers.
	Plugins PluginSettings `json:"plugins" yaml:"plugins"`

	// Remotes are named push destinations.
	Remotes []RemoteSettings `json:"remotes,omitempty" yaml:"remotes,omitempty" validate:"dive"`
}

// TelemetrySettings is the config-file shape of telemetry.Config.
type TelemetrySettings struct {
	// ServiceName overrides the telemetry service name.
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`

	// LogLevel sets the minimum log level.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json output.
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,oneof=console json"`

	// LogOutput is stdout, stderr, or a file path.
	LogOutput string `json:"log_output,omitempty" yaml:"log_output,omitempty"`

	// MetricsEnabled turns on the prometheus registry and endpoint.
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`

	// MetricsListen is the promhttp listen address.
	MetricsListen string `json:"metrics_listen,omitempty" yaml:"metrics_listen,omitempty"`

	// TracingEnabled turns on otel tracing.
	TracingEnabled bool `json:"tracing_enabled" yaml:"tracing_enabled"`

	// TracingExporter is otlp, stdout, or none.
	TracingExporter string `json:"tracing_exporter,omitempty" yaml:"tracing_exporter,omitempty" validate:"omitempty,oneof=otlp stdout none"`

	// TracingEndpoint is the otlp collector endpoint.
	TracingEndpoint string `json:"tracing_endpoint,omitempty" yaml:"tracing_endpoint,omitempty"`
}

// EngineSettings configures capture defaults applied to every encode
// and decode unless overridden per call.
type EngineSettings struct {
	// Strict aborts on the first capture failure instead of
	// substituting placeholders.
	Strict bool `json:"strict" yaml:"strict"`

	// MaxDepth bounds recursion into nested composites.
	MaxDepth int `json:"max_depth,omitempty" yaml:"max_depth,omitempty" validate:"omitempty,min=1"`

	// SnapshotTimeout bounds provider snapshot extraction.
	SnapshotTimeout time.Duration `json:"snapshot_timeout,omitempty" yaml:"snapshot_timeout,omitempty"`
}

// StoreSettings configures the SQLite capsule store.
type StoreSettings struct {
	// Path is the database file path. ":memory:" keeps capsules in
	// process memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// MaxOpenConns caps the connection pool.
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty" validate:"omitempty,min=1"`

	// MaxIdleConns caps idle pooled connections.
	MaxIdleConns int `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty" validate:"omitempty,min=0"`
}

// PolicySettings configures the policy guard.
type PolicySettings struct {
	// Enabled wires the policy engine as the capture guard.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Paths lists .rego/.json policy files or directories.
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Watch reloads policies when files under Paths change.
	Watch bool `json:"watch" yaml:"watch"`
}

// PluginSettings configures WASM capability providers.
type PluginSettings struct {
	// Dir is scanned for plugin manifests at startup.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// RemoteSettings names an SSH push destination.
type RemoteSettings struct {
	// Name identifies the remote in `stasis push <name>`.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Host is the remote hostname or IP.
	Host string `json:"host" yaml:"host" validate:"required"`

	// Port is the SSH port.
	Port int `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// User is the SSH username.
	User string `json:"user" yaml:"user" validate:"required"`

	// PrivateKeyPath selects key authentication.
	PrivateKeyPath string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`

	// KnownHostsPath enables host key verification.
	KnownHostsPath string `json:"known_hosts_path,omitempty" yaml:"known_hosts_path,omitempty"`

	// Dir is the remote directory capsules are copied into.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// ParsedConfig is the result of loading one or more config sources.
type ParsedConfig struct {
	// Config is the decoded configuration.
	Config Config `json:"config"`

	// SourceFiles are the files that contributed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was loaded.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists validation errors with source positions.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is a config problem with its source location.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the config path to the error (e.g., "store.path").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is error, warning, or info.
	Severity string `json:"severity"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Telemetry: TelemetrySettings{
			ServiceName:     "stasis",
			LogLevel:        "info",
			LogFormat:       "console",
			LogOutput:       "stderr",
			MetricsListen:   ":9090",
			TracingExporter: "none",
		},
		Engine: EngineSettings{
			MaxDepth:        256,
			SnapshotTimeout: time.Second,
		},
		Store: StoreSettings{
			Path:         "stasis.db",
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
	}
}

// ToTelemetryConfig converts the file settings into the telemetry
// package's config, filling unset fields from telemetry defaults.
func (c *Config) ToTelemetryConfig() *telemetry.Config {
	tc := telemetry.DefaultConfig()
	if c.Telemetry.ServiceName != "" {
		tc.ServiceName = c.Telemetry.ServiceName
	}
	if c.Telemetry.LogLevel != "" {
		tc.Logging.Level = c.Telemetry.LogLevel
	}
	if c.Telemetry.LogFormat != "" {
		tc.Logging.Format = c.Telemetry.LogFormat
	}
	if c.Telemetry.LogOutput != "" {
		tc.Logging.Output = c.Telemetry.LogOutput
	}
	tc.Metrics.Enabled = c.Telemetry.MetricsEnabled
	if c.Telemetry.MetricsListen != "" {
		tc.Metrics.ListenAddress = c.Telemetry.MetricsListen
	}
	tc.Tracing.Enabled = c.Telemetry.TracingEnabled
	if c.Telemetry.TracingExporter != "" {
		tc.Tracing.Exporter = c.Telemetry.TracingExporter
	}
	if c.Telemetry.TracingEndpoint != "" {
		tc.Tracing.Endpoint = c.Telemetry.TracingEndpoint
	}
	return tc
}
