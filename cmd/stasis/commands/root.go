package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/config"
	"github.com/stasisproject/stasis/pkg/plugin"
	"github.com/stasisproject/stasis/pkg/policy"
	"github.com/stasisproject/stasis/pkg/providers"
	"github.com/stasisproject/stasis/pkg/script"
	"github.com/stasisproject/stasis/pkg/stores"
	"github.com/stasisproject/stasis/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stasis",
		Short: "Stasis - Value Capture and Rehydration Engine",
		Long: `Stasis captures live values into self-describing capsules and
rehydrates them later, in the same process or another one.

Features:
  - Capability providers for locks, channels, files, connections and more
  - Deterministic CBOR wire format
  - Strict and lenient capture modes with placeholder substitution
  - SQLite capsule store with audit trail
  - Policy guard (OPA/rego) consulted before bytes leave the process
  - WASM plugin providers and SSH capsule shipping`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (.yaml, .yml or .cue)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newEncodeCommand())
	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(newDescribeCommand())
	rootCmd.AddCommand(newProvidersCommand())
	rootCmd.AddCommand(newCapsulesCommand())
	rootCmd.AddCommand(newPushCommand())
	rootCmd.AddCommand(newEvalCommand())

	return rootCmd
}

// runtime bundles everything a command needs: configuration, logging,
// the engine with its provider set, and lazily opened collaborators.
type runtime struct {
	cfg     *config.Config
	logger  *telemetry.Logger
	engine  *capsule.Engine
	scripts *script.Env
	guard   *policy.Engine
	plugins *plugin.Loader
}

// newRuntime loads configuration and assembles the engine. Policy and
// plugins are wired only when the config enables them.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	tcfg := cfg.ToTelemetryConfig()
	if verbose {
		tcfg.Logging.Level = "debug"
	}

	logger, err := telemetry.NewLogger(tcfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.Policy.Enabled {
		guard, err := policy.NewEngine(logger.Zerolog())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := guard.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return nil, fmt.Errorf("failed to load policies: %w", err)
			}
		}
		rt.guard = guard
	}

	rt.scripts = script.NewEnv(script.EnvConfig{Logger: logger.Zerolog()})

	engineCfg := capsule.EngineConfig{Logger: logger.Zerolog()}
	if rt.guard != nil {
		engineCfg.Guard = rt.guard
	}
	rt.engine = providers.NewDefaultEngine(engineCfg, rt.scripts)

	if cfg.Plugins.Dir != "" {
		rt.plugins = plugin.NewLoader(nil, logger.Zerolog())
		loaded, err := rt.plugins.ScanDirectory(ctx, cfg.Plugins.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin directory: %w", err)
		}
		plugin.RegisterAll(rt.engine.Registry(), loaded)
	}

	return rt, nil
}

// loadConfig reads the configured file, dispatching on extension. No
// config file means defaults.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}

	switch {
	case strings.HasSuffix(configPath, ".yaml"), strings.HasSuffix(configPath, ".yml"):
		return config.LoadYAML(configPath)
	default:
		return config.NewCUEParser().Load(ctx, []string{configPath})
	}
}

// encodeOptions maps config plus per-command flags onto engine options.
func (r *runtime) encodeOptions(strict bool) capsule.Options {
	return capsule.Options{
		Strict:          strict || r.cfg.Engine.Strict,
		MaxDepth:        r.cfg.Engine.MaxDepth,
		SnapshotTimeout: r.cfg.Engine.SnapshotTimeout,
	}
}

// openStore opens and migrates the configured SQLite capsule store.
func (r *runtime) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:         r.cfg.Store.Path,
		MaxOpenConns: r.cfg.Store.MaxOpenConns,
		MaxIdleConns: r.cfg.Store.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capsule store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize capsule store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate capsule store: %w", err)
	}
	return store, nil
}

// close releases resources the runtime opened.
func (r *runtime) close(ctx context.Context) {
	if r.plugins != nil {
		if err := r.plugins.Close(ctx); err != nil {
			zl := r.logger.Zerolog()
			zl.Warn().Err(err).Msg("Failed to close plugins")
		}
	}
}
