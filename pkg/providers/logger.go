package providers

import (
	"context"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/telemetry"
)

// LoggerProvider captures telemetry loggers by configuration. The
// writer is never captured: on rebuild a fresh logger is constructed
// from the recorded level and format, and file outputs are redirected
// to stderr so rehydration performs no filesystem I/O.
type LoggerProvider struct{}

// NewLoggerProvider returns the logger provider.
func NewLoggerProvider() *LoggerProvider {
	return &LoggerProvider{}
}

func (p *LoggerProvider) Name() string  { return "telemetry.logger" }
func (p *LoggerProvider) Priority() int { return 100 }

func (p *LoggerProvider) Match(v any) bool {
	_, ok := v.(*telemetry.Logger)
	return ok
}

func (p *LoggerProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	cfg := v.(*telemetry.Logger).Config()
	b := capsule.NewBundle()
	b.Set("level", cfg.Level)
	b.Set("format", cfg.Format)
	b.Set("output", cfg.Output)
	b.Set("caller", cfg.EnableCaller)
	b.Set("time_format", cfg.TimeFormat)
	return b, nil
}

func (p *LoggerProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	level, _ := b.String("level")
	format, _ := b.String("format")
	output, _ := b.String("output")
	caller, _ := b.Bool("caller")
	timeFormat, _ := b.String("time_format")

	// Only the standard streams survive a process boundary. Opening a
	// file here would be rehydration-time I/O the caller never asked
	// for.
	if output != "stdout" && output != "stderr" {
		output = "stderr"
	}
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	return telemetry.NewLogger(telemetry.LoggingConfig{
		Level:        level,
		Format:       format,
		Output:       output,
		EnableCaller: caller,
		TimeFormat:   timeFormat,
	})
}
