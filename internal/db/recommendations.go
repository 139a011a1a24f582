package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/teamforge/internal/types"
)

// SaveRecommendations stores the outcome of a team formation run.
func (db *DB) SaveRecommendations(ctx context.Context, projectID string, runID uuid.UUID, recs []types.Recommendation, errMsg *string) (uuid.UUID, error) {
	if recs == nil {
		recs = []types.Recommendation{}
	}
	recsJSON, err := json.Marshal(recs)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	var run *uuid.UUID
	if runID != uuid.Nil {
		run = &runID
	}

	id := uuid.New()
	_, err = db.pool.Exec(ctx,
		`INSERT INTO team_recommendations (id, project_id, run_id, recommendations, error)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, projectID, run, recsJSON, errMsg,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save recommendations: %w", err)
	}
	return id, nil
}

// LatestRecommendations returns the most recent team formation outcome for a project.
// Returns nil, nil when none exists.
func (db *DB) LatestRecommendations(ctx context.Context, projectID string) ([]types.Recommendation, *string, error) {
	var raw []byte
	var errMsg *string
	err := db.pool.QueryRow(ctx,
		`SELECT recommendations, error FROM team_recommendations
		 WHERE project_id = $1 ORDER BY created_at DESC LIMIT 1`,
		projectID,
	).Scan(&raw, &errMsg)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	var recs []types.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}
	return recs, errMsg, nil
}
