package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProvidersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered capability providers",
		Long: `Providers lists every registered capability provider in dispatch
order: lower priority numbers are consulted first, ties in registration
order. Plugin providers from the configured plugin directory are
included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			infos := rt.engine.ListProviders()

			if jsonOutput {
				out, err := json.MarshalIndent(infos, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\n", info.Name, info.Priority)
			}
			return w.Flush()
		},
	}

	return cmd
}
