package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newEvalCommand() *cobra.Command {
	var (
		captures  []string
		outDir    string
		strict    bool
		saveStore bool
	)

	cmd := &cobra.Command{
		Use:   "eval <script.star>",
		Short: "Evaluate a Starlark module and capture named globals",
		Long: `Eval runs a Starlark module and captures the named globals into
capsules, one file per captured name. Functions are captured with their
source and closure state, so a decoded capsule can call them again.`,
		Example: `  # Capture two globals from a script
  stasis eval pricing.star --capture rate_table --capture discount_fn

  # Capture into the store as well
  stasis eval pricing.star --capture rate_table --store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(captures) == 0 {
				return fmt.Errorf("at least one --capture name is required")
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}

			module := strings.TrimSuffix(filepath.Base(args[0]), ".star")
			if err := rt.scripts.LoadModule(module, string(source)); err != nil {
				return fmt.Errorf("script evaluation failed: %w", err)
			}

			opts := rt.encodeOptions(strict)
			for _, name := range captures {
				value, err := rt.scripts.Resolve(module, name)
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", name, err)
				}

				payload, warnings, err := rt.engine.Encode(ctx, value, opts)
				if err != nil {
					return fmt.Errorf("failed to capture %s: %w", name, err)
				}

				outFile := filepath.Join(outDir, name+".capsule")
				if err := os.WriteFile(outFile, payload, 0o600); err != nil {
					return fmt.Errorf("failed to write capsule: %w", err)
				}

				if saveStore {
					if err := saveCapsule(cmd, rt, name, value, payload, warnings, opts); err != nil {
						return err
					}
				}

				printWarnings(cmd, warnings)
				fmt.Fprintf(cmd.OutOrStdout(), "Captured %s (%d bytes) to %s\n", name, len(payload), outFile)
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&captures, "capture", nil, "global name to capture (repeatable)")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for capsule files")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort on the first capture failure")
	cmd.Flags().BoolVar(&saveStore, "store", false, "also save capsules in the store")

	return cmd
}
