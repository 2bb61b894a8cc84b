package telemetry

import (
	"fmt"
	"time"
)

// Config assembles the observability settings for one engine process:
// who the service is, how it logs, and where capture traces, metrics
// and events go.
type Config struct {
	// ServiceName identifies the process in exported telemetry.
	ServiceName string

	// ServiceVersion is stamped onto every span and event.
	ServiceVersion string

	// Environment distinguishes deployments (dev, staging, prod).
	Environment string

	// Logging configures the structured logger.
	Logging LoggingConfig

	// Tracing configures spans around Encode, Decode and provider calls.
	Tracing TracingConfig

	// Metrics configures the prometheus registry and scrape endpoint.
	Metrics MetricsConfig

	// Events configures the capture event publisher.
	Events EventsConfig

	// ResourceAttributes are merged into the otel resource.
	ResourceAttributes map[string]string
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error, fatal).
	Level string

	// Format is "console" or "json".
	Format string

	// Output is "stdout", "stderr", or a file path.
	Output string

	// EnableCaller annotates entries with file:line.
	EnableCaller bool

	// EnableSampling rate-limits repetitive entries. Lenient encodes of
	// large trees can emit one placeholder warning per node; sampling
	// keeps that from flooding the log.
	EnableSampling bool

	// SamplingInitial is the per-second burst logged before sampling
	// kicks in; SamplingThereafter keeps every Nth entry after that.
	SamplingInitial    int
	SamplingThereafter int

	// TimeFormat selects the timestamp encoding (rfc3339, unix,
	// unixms, unixmicro).
	TimeFormat string
}

// TracingConfig configures capture tracing.
type TracingConfig struct {
	// Enabled turns span generation on.
	Enabled bool

	// Exporter is "otlp", "stdout", or "none". "none" generates spans
	// for in-process propagation without exporting them.
	Exporter string

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// SamplingRate is the parent-based ratio sampler's rate, 0.0 to 1.0.
	SamplingRate float64

	// MaxExportBatchSize and ExportTimeout tune the batch span
	// processor.
	MaxExportBatchSize int
	ExportTimeout      time.Duration

	// Headers are sent with each OTLP export request.
	Headers map[string]string

	// Insecure disables TLS on the collector connection.
	Insecure bool
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled turns the registry on; when false every Record call is a
	// no-op.
	Enabled bool

	// ListenAddress is where the scrape endpoint binds.
	ListenAddress string

	// Path is the scrape path, normally /metrics.
	Path string

	// Namespace prefixes every metric name.
	Namespace string

	// DefaultHistogramBuckets are the latency buckets, in seconds, for
	// encode, decode and provider call durations.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the capture event publisher.
type EventsConfig struct {
	// Enabled turns event publishing on.
	Enabled bool

	// BufferSize bounds the in-flight event queue.
	BufferSize int

	// FlushInterval bounds how long a batch may wait before publishing.
	FlushInterval time.Duration

	// MaxBatchSize bounds how many events publish in one batch.
	MaxBatchSize int

	// EnableAsync publishes from a background goroutine so Encode and
	// Decode never block on a slow subscriber.
	EnableAsync bool
}

// DefaultConfig returns the baseline configuration: console logging,
// stdout trace export, metrics on :9090. Provider calls are usually
// sub-millisecond and full captures of large trees run into seconds,
// so the default buckets span 100µs to 10s.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "stasis",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			EnableCaller:       false,
			SamplingInitial:    50,
			SamplingThereafter: 200,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            true,
			Exporter:           "stdout",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "stasis",
			DefaultHistogramBuckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10,
			},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    1024,
			FlushInterval: 5 * time.Second,
			MaxBatchSize:  100,
			EnableAsync:   true,
		},
		ResourceAttributes: make(map[string]string),
	}
}

// ProductionConfig tunes the defaults for long-running capture
// services: json logs with sampling, OTLP export at 10% sampling.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unixms"
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// DevelopmentConfig tunes the defaults for interactive work: debug
// console logs with caller locations, every trace sampled.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	return cfg
}

// Validate rejects configurations the constructors cannot honor.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service version is required")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
