package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/teamforge/internal/server"
)

func newTokenCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jwtCfg, err := a.cfg.JWT()
			if err != nil {
				return err
			}
			token, err := server.NewJWTService(jwtCfg).GenerateToken(userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID to put in the token subject (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
