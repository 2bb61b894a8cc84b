// Package telemetry provides comprehensive observability instrumentation for Stasis.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging capture and rehydration operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "stasis"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("capsule-engine")
//	logger = logger.WithCapsuleID("cap-123").WithTypeName("*os.File")
//	logger.Info("Capturing value")
//	logger.WithError(err).Error("Capture failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into encode/decode flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "capsule.encode")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("value.type", typeName),
//	    attribute.String("capture.mode", "lenient"),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), Jaeger (legacy)
//
// # Metrics
//
// Prometheus metrics track capture behavior and performance:
//
//	// Record captures and rehydrations
//	tel.Metrics.RecordEncode("lenient", "ok", duration, sizeBytes)
//	tel.Metrics.RecordDecode("strict", "error", duration)
//
//	// Record provider calls
//	tel.Metrics.RecordProviderCall("sync.mutex", "extract", duration)
//
//	// Record degradation
//	tel.Metrics.RecordPlaceholder("*os.File")
//	tel.Metrics.RecordErrorKind("encode", "unencodable")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishCaptureCompleted(capsuleID, typeName, duration, sizeBytes)
//	tel.Events.PublishPlaceholderSubstituted(typeName, path, reason)
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByCapsuleID, FilterByTypeName
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - stasis_encodes_total{mode,status}
//   - stasis_encode_duration_seconds{mode}
//   - stasis_encoded_bytes{mode}
//   - stasis_decodes_total{mode,status}
//   - stasis_decode_duration_seconds{mode}
//   - stasis_provider_calls_total{provider,operation}
//   - stasis_provider_call_duration_seconds{provider,operation}
//   - stasis_placeholders_total{type}
//   - stasis_errors_by_kind_total{operation,kind}
//   - stasis_stored_capsules
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - Captured payloads must not appear in log output
//   - Use secure connections (TLS) for trace exporters in production
//   - Limit metrics endpoint access via network policies
package telemetry
