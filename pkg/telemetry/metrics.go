package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Stasis.
type Metrics struct {
	config MetricsConfig

	// Capture metrics
	encodesTotal   *prometheus.CounterVec
	encodeDuration *prometheus.HistogramVec
	encodedBytes   *prometheus.HistogramVec

	// Rehydration metrics
	decodesTotal   *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec

	// Provider metrics
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	// Degradation metrics
	placeholders *prometheus.CounterVec
	errorsByKind *prometheus.CounterVec

	// Store metrics
	storedCapsules prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Capture metrics
		encodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "encodes_total",
				Help:      "Total number of value captures",
			},
			[]string{"mode", "status"},
		),
		encodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "encode_duration_seconds",
				Help:      "Duration of value captures in seconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),
		encodedBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "encoded_bytes",
				Help:      "Size of encoded capsules in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
			},
			[]string{"mode"},
		),

		// Rehydration metrics
		decodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decodes_total",
				Help:      "Total number of capsule rehydrations",
			},
			[]string{"mode", "status"},
		),
		decodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decode_duration_seconds",
				Help:      "Duration of capsule rehydrations in seconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),

		// Provider metrics
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of provider calls",
			},
			[]string{"provider", "operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   buckets,
			},
			[]string{"provider", "operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors",
			},
			[]string{"provider", "operation"},
		),

		// Degradation metrics
		placeholders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placeholders_total",
				Help:      "Total number of placeholder substitutions",
			},
			[]string{"type"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of errors by error kind",
			},
			[]string{"operation", "kind"},
		),

		// Store metrics
		storedCapsules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stored_capsules",
				Help:      "Current number of capsules held in the store",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.encodesTotal,
		m.encodeDuration,
		m.encodedBytes,
		m.decodesTotal,
		m.decodeDuration,
		m.providerCalls,
		m.providerDuration,
		m.providerErrors,
		m.placeholders,
		m.errorsByKind,
		m.storedCapsules,
	)

	return m, nil
}

// Capture Metrics

// RecordEncode records a completed capture with its mode, outcome,
// duration, and encoded size.
func (m *Metrics) RecordEncode(mode, status string, duration time.Duration, sizeBytes int) {
	if m == nil || m.encodesTotal == nil {
		return
	}
	m.encodesTotal.WithLabelValues(mode, status).Inc()
	m.encodeDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if sizeBytes >= 0 {
		m.encodedBytes.WithLabelValues(mode).Observe(float64(sizeBytes))
	}
}

// Rehydration Metrics

// RecordDecode records a completed rehydration with its mode, outcome,
// and duration.
func (m *Metrics) RecordDecode(mode, status string, duration time.Duration) {
	if m == nil || m.decodesTotal == nil {
		return
	}
	m.decodesTotal.WithLabelValues(mode, status).Inc()
	m.decodeDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// Provider Metrics

// RecordProviderCall records a provider call with its duration.
func (m *Metrics) RecordProviderCall(provider, operation string, duration time.Duration) {
	if m == nil || m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, operation).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(provider, operation string) {
	if m == nil || m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider, operation).Inc()
}

// Degradation Metrics

// RecordPlaceholder records a placeholder substitution for a type.
func (m *Metrics) RecordPlaceholder(typeName string) {
	if m == nil || m.placeholders == nil {
		return
	}
	m.placeholders.WithLabelValues(typeName).Inc()
}

// RecordErrorKind records an error by the operation it occurred in and
// its classified kind.
func (m *Metrics) RecordErrorKind(operation, kind string) {
	if m == nil || m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(operation, kind).Inc()
}

// Store Metrics

// SetStoredCapsules sets the current number of capsules in the store.
func (m *Metrics) SetStoredCapsules(count float64) {
	if m == nil || m.storedCapsules == nil {
		return
	}
	m.storedCapsules.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
