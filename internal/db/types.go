package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// Pipelines recorded in agent_runs
const (
	PipelineTeamFormation  = "team_formation"
	PipelineProjectPlanner = "project_planner"
)

// Run represents an agent pipeline run record
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Pipeline    string     `json:"pipeline"`
	ProjectID   string     `json:"project_id"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Artifact is a stage output stored for a run.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Stage     string    `json:"stage"`
	Content   []byte    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RecommendationSet is one stored team formation outcome.
type RecommendationSet struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       string     `json:"project_id"`
	RunID           *uuid.UUID `json:"run_id,omitempty"`
	Recommendations []byte     `json:"recommendations"`
	Error           *string    `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RunStatusFor picks the final status of a run from its recorded error.
func RunStatusFor(errMsg *string) string {
	if errMsg == nil || *errMsg == "" {
		return RunStatusCompleted
	}
	return RunStatusPartial
}
