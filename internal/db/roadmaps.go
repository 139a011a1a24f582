package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/teamforge/internal/schedule"
	"github.com/jonathan/teamforge/internal/types"
)

// UpsertRoadmap stores the roadmap of a project, replacing any previous one.
// created_at is kept from the first write; updated_at is set on replacement.
func (db *DB) UpsertRoadmap(ctx context.Context, r *types.Roadmap) error {
	sprints := r.Roadmap
	if sprints == nil {
		sprints = []types.Sprint{}
	}
	roadmapJSON, err := json.Marshal(sprints)
	if err != nil {
		return fmt.Errorf("failed to marshal roadmap: %w", err)
	}
	featuresJSON, err := json.Marshal(nonNil(r.ExtractedFeatures))
	if err != nil {
		return fmt.Errorf("failed to marshal extracted features: %w", err)
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO roadmaps (project_id, roadmap, extracted_features, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id) DO UPDATE SET
		     roadmap = $2, extracted_features = $3, updated_at = NOW()`,
		r.ProjectID, roadmapJSON, featuresJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert roadmap for %s: %w", r.ProjectID, err)
	}
	return nil
}

// GetRoadmap retrieves the stored roadmap of a project. Returns nil, nil when none exists.
func (db *DB) GetRoadmap(ctx context.Context, projectID string) (*types.Roadmap, error) {
	return getRoadmap(ctx, db.pool.QueryRow(ctx,
		`SELECT project_id, roadmap, extracted_features, created_at, updated_at
		 FROM roadmaps WHERE project_id = $1`,
		projectID,
	), projectID)
}

func getRoadmap(_ context.Context, row pgx.Row, projectID string) (*types.Roadmap, error) {
	var r types.Roadmap
	var roadmapJSON, featuresJSON []byte
	if err := row.Scan(&r.ProjectID, &roadmapJSON, &featuresJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get roadmap: %w", err)
	}
	if err := unmarshalAll(
		field{"roadmap", roadmapJSON, &r.Roadmap},
		field{"extracted_features", featuresJSON, &r.ExtractedFeatures},
	); err != nil {
		return nil, fmt.Errorf("failed to decode roadmap %s: %w", projectID, err)
	}
	return &r, nil
}

// UpdateTaskStatus sets the status of one task inside a stored roadmap.
// Returns ErrNotFound when the project has no roadmap and *schedule.TaskNotFoundError
// when the task is missing.
func (db *DB) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status types.TaskStatus) (*types.Roadmap, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := getRoadmap(ctx, tx.QueryRow(ctx,
		`SELECT project_id, roadmap, extracted_features, created_at, updated_at
		 FROM roadmaps WHERE project_id = $1 FOR UPDATE`,
		projectID,
	), projectID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("roadmap for project %s: %w", projectID, ErrNotFound)
	}

	if err := schedule.SetTaskStatus(r.Roadmap, taskID, status); err != nil {
		return nil, err
	}

	roadmapJSON, err := json.Marshal(r.Roadmap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal roadmap: %w", err)
	}
	var updated time.Time
	err = tx.QueryRow(ctx,
		`UPDATE roadmaps SET roadmap = $1, updated_at = NOW() WHERE project_id = $2 RETURNING updated_at`,
		roadmapJSON, projectID,
	).Scan(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update roadmap: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	r.UpdatedAt = &updated
	return r, nil
}
