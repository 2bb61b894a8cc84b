package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/stores"
)

func newEncodeCommand() *cobra.Command {
	var (
		name      string
		outFile   string
		strict    bool
		saveStore bool
	)

	cmd := &cobra.Command{
		Use:   "encode <input.json>",
		Short: "Capture a JSON document into a capsule",
		Long: `Encode reads a JSON document and captures it into a capsule file.

In lenient mode (the default) values no provider can capture are
substituted with placeholders and reported as warnings; --strict aborts
on the first failure instead.`,
		Example: `  # Encode a document to its own capsule file
  stasis encode state.json --name checkout-state

  # Strict capture into an explicit output file
  stasis encode state.json --name checkout-state --strict --out state.capsule

  # Also persist the capsule in the store
  stasis encode state.json --name checkout-state --store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			var value any
			if err := json.Unmarshal(data, &value); err != nil {
				return fmt.Errorf("input is not valid JSON: %w", err)
			}

			if name == "" {
				name = strings.TrimSuffix(args[0], ".json")
			}
			if outFile == "" {
				outFile = name + ".capsule"
			}

			opts := rt.encodeOptions(strict)
			payload, warnings, err := rt.engine.Encode(ctx, value, opts)
			if err != nil {
				return fmt.Errorf("encode failed: %w", err)
			}

			if err := os.WriteFile(outFile, payload, 0o600); err != nil {
				return fmt.Errorf("failed to write capsule: %w", err)
			}

			if saveStore {
				if err := saveCapsule(cmd, rt, name, value, payload, warnings, opts); err != nil {
					return err
				}
			}

			printWarnings(cmd, warnings)
			fmt.Fprintf(cmd.OutOrStdout(), "Encoded %s (%d bytes) to %s\n", name, len(payload), outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "capsule name (default: input file base name)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output capsule file (default: <name>.capsule)")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort on the first capture failure")
	cmd.Flags().BoolVar(&saveStore, "store", false, "also save the capsule in the store")

	return cmd
}

// saveCapsule persists an encoded payload plus its warnings.
func saveCapsule(cmd *cobra.Command, rt *runtime, name string, value any, payload []byte, warnings []capsule.Warning, opts capsule.Options) error {
	ctx := cmd.Context()

	store, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	mode := "lenient"
	if opts.Strict {
		mode = "strict"
	}

	c := &stores.Capsule{
		ID:       uuid.NewString(),
		Name:     name,
		TypeName: capsule.TypeName(value),
		Mode:     mode,
		Payload:  payload,
		Size:     int64(len(payload)),
		Warnings: string(warningsJSON),
	}

	if err := store.SaveCapsule(ctx, c); err != nil {
		return fmt.Errorf("failed to save capsule: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored capsule %s (%s)\n", name, c.ID)
	return nil
}

// printWarnings reports lenient-mode substitutions on stderr.
func printWarnings(cmd *cobra.Command, warnings []capsule.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s at %s (%s)\n", w.Message, w.Path, w.TypeName)
	}
}
