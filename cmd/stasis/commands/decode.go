package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDecodeCommand() *cobra.Command {
	var (
		fromStore string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "decode [file.capsule]",
		Short: "Rehydrate a capsule and print it as JSON",
		Long: `Decode rehydrates a capsule, either from a file or from the store,
and prints the resulting value as JSON.

Live resources never come back as live handles: they decode to
reconnection descriptors. Placeholders from a lenient capture are
reported as warnings.`,
		Example: `  # Decode a capsule file
  stasis decode checkout-state.capsule

  # Decode a stored capsule by name
  stasis decode --from-store checkout-state`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if (len(args) == 0) == (fromStore == "") {
				return fmt.Errorf("provide either a capsule file or --from-store")
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			var payload []byte
			if fromStore != "" {
				store, err := rt.openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()

				c, err := store.GetCapsuleByName(ctx, fromStore)
				if err != nil {
					return fmt.Errorf("failed to load capsule %s: %w", fromStore, err)
				}
				payload = c.Payload
			} else {
				payload, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read capsule: %w", err)
				}
			}

			value, warnings, err := rt.engine.Decode(ctx, payload, rt.encodeOptions(strict))
			if err != nil {
				return fmt.Errorf("decode failed: %w", err)
			}

			printWarnings(cmd, warnings)

			out, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return fmt.Errorf("decoded value is not JSON-representable: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStore, "from-store", "", "decode a stored capsule by name")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort on the first rehydration failure")

	return cmd
}
