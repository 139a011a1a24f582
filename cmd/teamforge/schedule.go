package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/teamforge/internal/agents/planner"
	"github.com/jonathan/teamforge/internal/schedule"
	"github.com/jonathan/teamforge/internal/types"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		input string
		start string
		now   string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Assign task IDs and sprint dates to a roadmap",
		Long: "Read a roadmap (a stored roadmap document or a bare sprint array), assign S<n>-T<m> task IDs, " +
			"date the sprints back to back from --start and report the sprint active at --now.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			startAt, err := parseStart(start)
			if err != nil {
				return err
			}
			nowAt := time.Now()
			if now != "" {
				if nowAt, err = parseStart(now); err != nil {
					return err
				}
			}

			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			doc, err := decodeRoadmap(raw)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", input, err)
			}

			doc.Roadmap = planner.Finalize(doc.Roadmap, startAt)
			current := schedule.CurrentSprint(doc.Roadmap, nowAt)
			if printer := a.printer(cmd); printer != nil {
				printer.PrintRoadmap(doc.Roadmap, current)
			}
			return writeJSON(cmd, types.RoadmapResponse{
				Roadmap:             *doc,
				CurrentSprintNumber: current,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Roadmap JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&start, "start", "", "First sprint start as RFC3339 or YYYY-MM-DD (default now)")
	cmd.Flags().StringVar(&now, "now", "", "Instant used to pick the current sprint (default now)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// decodeRoadmap accepts either a roadmap document or a bare sprint array.
func decodeRoadmap(raw []byte) (*types.Roadmap, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var sprints []types.Sprint
		if err := json.Unmarshal(raw, &sprints); err != nil {
			return nil, err
		}
		return &types.Roadmap{Roadmap: sprints, ExtractedFeatures: []string{}}, nil
	}
	var doc types.Roadmap
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Roadmap == nil {
		doc.Roadmap = []types.Sprint{}
	}
	return &doc, nil
}
