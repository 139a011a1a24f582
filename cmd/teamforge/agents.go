package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/agents/planner"
	"github.com/jonathan/teamforge/internal/agents/teamformation"
	"github.com/jonathan/teamforge/internal/config"
	"github.com/jonathan/teamforge/internal/db"
	"github.com/jonathan/teamforge/internal/observability"
	"github.com/jonathan/teamforge/internal/schedule"
	"github.com/jonathan/teamforge/internal/types"
	"github.com/jonathan/teamforge/internal/vector"
)

func newFormTeamCmd(a *app) *cobra.Command {
	var (
		input         string
		profilesPath  string
		ownerTimezone string
	)
	cmd := &cobra.Command{
		Use:   "form-team",
		Short: "Recommend developers for a project",
		Long: "Run the team formation agent for the project in --input. With the memory vector backend, " +
			"candidates come from the profiles in --profiles; with the postgres backend, from the indexed profiles.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var project types.Project
			if err := readJSON(cmd, input, &project); err != nil {
				return err
			}

			ctx := cmd.Context()
			var database *db.DB
			if a.cfg.Vector.Backend == config.VectorPostgres {
				var err error
				if database, err = a.openDB(ctx); err != nil {
					return err
				}
				defer database.Close()
			}

			vectors, closeVectors, err := a.vectorStore(ctx, database)
			if err != nil {
				return err
			}
			defer closeVectors()

			if profilesPath != "" {
				if err := seedProfiles(ctx, cmd, vectors, profilesPath); err != nil {
					return err
				}
			}

			client, err := newLLMClient(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			pipeline := teamformation.New(client, vectors)
			pipeline.TopK = a.cfg.Vector.TopK
			pipeline.MaxDiff = a.cfg.Agents.MaxTimezoneDiff
			pipeline.Logger = a.logger

			runCtx, cancel := a.runContext(ctx)
			defer cancel()
			printer := a.printer(cmd)
			result := pipeline.Run(runCtx, teamformation.InputFromProject(&project, ownerTimezone), teamformation.RunOptions{
				OnProgress: progress(a, printer),
			})
			if printer != nil {
				printer.PrintRecommendations(result.Recommendations, result.Error)
			}

			return writeJSON(cmd, types.TeamFormationResponse{
				Recommendations: result.Recommendations,
				Error:           result.Error,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Project JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&profilesPath, "profiles", "", "JSON array of developer profiles to index before searching")
	cmd.Flags().StringVar(&ownerTimezone, "owner-timezone", "UTC", "Timezone of the project owner")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func seedProfiles(ctx context.Context, cmd *cobra.Command, index vector.Indexer, path string) error {
	var profiles []types.Profile
	if err := readJSON(cmd, path, &profiles); err != nil {
		return err
	}
	for i := range profiles {
		if err := profiles[i].Validate(); err != nil {
			return fmt.Errorf("profile %d: %w", i, err)
		}
		if err := index.Upsert(ctx, profiles[i].Metadata()); err != nil {
			return err
		}
	}
	return nil
}

func newPlanCmd(a *app) *cobra.Command {
	var (
		input string
		start string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a sprint roadmap for a project",
		Long:  "Run the project planner agent for the project in --input, assign task IDs and date the sprints from --start.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			startAt, err := parseStart(start)
			if err != nil {
				return err
			}

			var project types.Project
			if err := readJSON(cmd, input, &project); err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := newLLMClient(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			pipeline := planner.New(client)
			pipeline.MaxParallel = a.cfg.Agents.MaxParallelTasks
			pipeline.Logger = a.logger

			runCtx, cancel := a.runContext(ctx)
			defer cancel()
			printer := a.printer(cmd)
			result := pipeline.Run(runCtx, planner.InputFromProject(&project), planner.RunOptions{
				OnProgress: progress(a, printer),
			})
			if len(result.Roadmap) == 0 && result.Error != nil {
				return fmt.Errorf("planning failed: %s", *result.Error)
			}

			roadmap := planner.Finalize(result.Roadmap, startAt)
			if printer != nil {
				printer.PrintFeatures(result.ExtractedFeatures)
				printer.PrintRoadmap(roadmap, schedule.CurrentSprint(roadmap, startAt))
			}
			return writeJSON(cmd, types.ProjectPlannerResponse{
				ProjectID:         result.ProjectID,
				Roadmap:           roadmap,
				ExtractedFeatures: result.ExtractedFeatures,
				Error:             result.Error,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Project JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&start, "start", "", "Roadmap start as RFC3339 or YYYY-MM-DD (default now)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// parseStart accepts RFC3339 or a plain date; empty means now.
func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// progress prints stage events in verbose mode and logs them at debug level otherwise.
func progress(a *app, printer *observability.Printer) agents.ProgressCallback {
	if printer != nil {
		return printer.Progress()
	}
	return func(e agents.ProgressEvent) {
		a.logger.Debug("progress", "pipeline", e.Pipeline, "stage", e.Stage, "status", e.Status, "message", e.Message)
	}
}
