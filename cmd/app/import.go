package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
	"github.com/Akshdhiwar/simpledocs-archive/internals/mediatype"
)

func newImportCmd() *cobra.Command {
	var member, parent string

	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import a zip archive as an item tree",
		Long: `Import a zip archive. The archive must hold exactly one top-level entry.
Created top-level items are printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if member == "" {
				return errors.New("--member is required")
			}
			src := args[0]

			detected, err := mediatype.NewMagicDetector().DetectFile(src)
			if err != nil {
				return err
			}
			if !mediatype.IsZip(detected) {
				return apperrors.InvalidArchive(detected)
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

			var parentID *uuid.UUID
			if parent != "" {
				id, err := uuid.Parse(parent)
				if err != nil {
					return fmt.Errorf("invalid parent id %q: %w", parent, err)
				}
				folder, err := view.GetWritableFolder(ctx, id)
				if err != nil {
					return err
				}
				parentID = &folder.ID
			}

			dir, err := a.workspaces.Create()
			if err != nil {
				return err
			}
			defer a.workspaces.Remove(dir)

			created, err := a.zip.Import(ctx, view, src, filepath.Join(dir, "extracted"), parentID, a.log.WithField("archive", src))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(created)
		},
	}

	cmd.Flags().StringVar(&member, "member", "", "member id the items are created for")
	cmd.Flags().StringVar(&parent, "parent", "", "folder to import into (default root)")
	return cmd
}
