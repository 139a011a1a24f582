package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/teamforge/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  "Start an HTTP server exposing the team formation, project planner, roadmap and profile indexing endpoints.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			client, err := newLLMClient(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			vectors, closeVectors, err := a.vectorStore(ctx, database)
			if err != nil {
				return err
			}
			defer closeVectors()

			srv, err := server.New(a.cfg, server.Deps{
				Store:   database,
				LLM:     client,
				Vectors: vectors,
				Logger:  a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on (overrides server.port)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg.Database.Migrate = true
			database, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			database.Close()
			a.logger.Info("migrations applied")
			return nil
		},
	}
}
