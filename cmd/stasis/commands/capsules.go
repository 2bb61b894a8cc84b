package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCapsulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capsules",
		Short: "Manage stored capsules",
	}

	cmd.AddCommand(newCapsulesListCommand())
	cmd.AddCommand(newCapsulesShowCommand())
	cmd.AddCommand(newCapsulesExportCommand())
	cmd.AddCommand(newCapsulesDeleteCommand())

	return cmd
}

func newCapsulesListCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored capsules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			store, err := rt.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			capsules, err := store.ListCapsules(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list capsules: %w", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(capsules, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tTYPE\tMODE\tSIZE\tCREATED\tPUSHED")
			for _, c := range capsules {
				pushed := "-"
				if c.PushedAt != nil {
					pushed = c.PushedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					c.Name, c.ID, c.TypeName, c.Mode, c.Size,
					c.CreatedAt.Format("2006-01-02 15:04"), pushed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of capsules to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of capsules to skip")

	return cmd
}

func newCapsulesShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a stored capsule's metadata and warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			store, err := rt.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := store.GetCapsuleByName(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load capsule %s: %w", args[0], err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(c, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Name:     %s\n", c.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "ID:       %s\n", c.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Type:     %s\n", c.TypeName)
			fmt.Fprintf(cmd.OutOrStdout(), "Mode:     %s\n", c.Mode)
			fmt.Fprintf(cmd.OutOrStdout(), "Size:     %d bytes\n", c.Size)
			fmt.Fprintf(cmd.OutOrStdout(), "Created:  %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(cmd.OutOrStdout(), "Updated:  %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
			if c.PushedAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed:   %s\n", c.PushedAt.Format("2006-01-02 15:04:05"))
			}
			if c.Warnings != "" && c.Warnings != "null" && c.Warnings != "[]" {
				fmt.Fprintf(cmd.OutOrStdout(), "Warnings: %s\n", c.Warnings)
			}
			return nil
		},
	}

	return cmd
}

func newCapsulesExportCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a stored capsule's payload to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			store, err := rt.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := store.GetCapsuleByName(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load capsule %s: %w", args[0], err)
			}

			if outFile == "" {
				outFile = c.Name + ".capsule"
			}
			if err := os.WriteFile(outFile, c.Payload, 0o600); err != nil {
				return fmt.Errorf("failed to write capsule: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%d bytes) to %s\n", c.Name, c.Size, outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default: <name>.capsule)")

	return cmd
}

func newCapsulesDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored capsule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			store, err := rt.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := store.GetCapsuleByName(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load capsule %s: %w", args[0], err)
			}

			if err := store.DeleteCapsule(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to delete capsule: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted capsule %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}

	return cmd
}
