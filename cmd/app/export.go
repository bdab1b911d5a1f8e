package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var member, output string

	cmd := &cobra.Command{
		Use:   "export <item-id>",
		Short: "Export an item tree to a zip archive",
		Long: `Export an item and everything below it to a zip archive.

Without --member only public items can be exported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id %q: %w", args[0], err)
			}
			if output == "" {
				output = id.String() + ".zip"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			a.log.SetOutput(os.Stderr)

			view, err := a.memberView(member)
			if err != nil {
				return err
			}

			root, err := a.zip.Export(ctx, view, id, output, a.log.WithField("item_id", id))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", root.Name, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&member, "member", "", "member id to export as")
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default <item-id>.zip)")
	return cmd
}
