package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stasisproject/stasis/pkg/capsule"
)

func newDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <input.json>",
		Short: "Report how a value would be captured, without capturing it",
		Long: `Describe reads a JSON document and reports which provider an encode
would dispatch it to and which capture strategy that provider would
choose. Nothing is extracted; the value is never touched.`,
		Example: `  stasis describe state.json
  stasis describe state.json --json`,
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

			desc := rt.engine.Describe(value)

			if jsonOutput {
				out, err := json.MarshalIndent(map[string]any{
					"type_name": desc.TypeName,
					"would_use": desc.WouldUse,
					"strategy":  desc.Strategy,
					"priority":  desc.Priority,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Type:     %s\n", desc.TypeName)
			switch desc.WouldUse {
			case capsule.WouldUsePrimitive:
				fmt.Fprintln(cmd.OutOrStdout(), "Provider: (none - encoder carries the value directly)")
			case capsule.WouldUseUnencodable:
				fmt.Fprintln(cmd.OutOrStdout(), "Provider: (none - value would become a placeholder in lenient mode)")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Provider: %s (priority %d)\n", desc.WouldUse, desc.Priority)
				fmt.Fprintf(cmd.OutOrStdout(), "Strategy: %s\n", desc.Strategy)
			}
			return nil
		},
	}

	return cmd
}
