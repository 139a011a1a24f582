package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/teamforge/internal/server"
	"github.com/jonathan/teamforge/internal/types"
)

func newIndexProfileCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "index-profile",
		Short: "Store a developer profile and index its skills",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var profile types.Profile
			if err := readJSON(cmd, input, &profile); err != nil {
				return err
			}
			if err := profile.Validate(); err != nil {
				return fmt.Errorf("invalid profile: %s", server.ErrorMessage(err))
			}

			ctx := cmd.Context()
			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			vectors, closeVectors, err := a.vectorStore(ctx, database)
			if err != nil {
				return err
			}
			defer closeVectors()

			if err := database.UpsertProfile(ctx, &profile); err != nil {
				return err
			}
			if err := vectors.Upsert(ctx, profile.Metadata()); err != nil {
				return fmt.Errorf("failed to index profile: %w", err)
			}
			a.logger.Info("profile indexed", "user_id", profile.UserID, "backend", a.cfg.Vector.Backend)

			return writeJSON(cmd, server.IndexProfileResponse{Status: "indexed", UserID: profile.UserID})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Profile JSON file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
