package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/agents/planner"
	"github.com/jonathan/teamforge/internal/agents/teamformation"
	"github.com/jonathan/teamforge/internal/db"
	"github.com/jonathan/teamforge/internal/types"
)

// PlanningFailedError is returned when the planner produced no roadmap at all.
type PlanningFailedError struct {
	ProjectID string
	Reason    string
}

func (e *PlanningFailedError) Error() string {
	return fmt.Sprintf("planning failed for project %s: %s", e.ProjectID, e.Reason)
}

// handleTeamFormation recommends developers for a stored project.
// Pipeline failures are advisory: the response is 200 with an error field.
func (s *Server) handleTeamFormation(w http.ResponseWriter, r *http.Request) {
	var req types.TeamFormationRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	project, err := s.loadProject(ctx, req.ProjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ownerTz := req.OwnerTimezone
	if ownerTz == "" {
		ownerTz, err = s.store.ProfileTimezone(ctx, project.OwnerID)
		if err != nil {
			s.logger.Warn("owner timezone lookup failed, using UTC", "project_id", project.ID, "error", err)
			ownerTz = "UTC"
		}
	}

	runID := s.startRun(ctx, db.PipelineTeamFormation, project.ID)
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	result := s.teams.Run(runCtx, teamformation.InputFromProject(project, ownerTz), teamformation.RunOptions{
		RunID:     runID,
		Artifacts: s.artifacts(runID),
	})

	if _, err := s.store.SaveRecommendations(ctx, project.ID, runID, result.Recommendations, result.Error); err != nil {
		s.logger.Error("failed to save recommendations", "project_id", project.ID, "error", err)
	}
	s.finishRun(ctx, runID, db.RunStatusFor(result.Error), result.Error)

	s.jsonResponse(w, http.StatusOK, types.TeamFormationResponse{
		Recommendations: result.Recommendations,
		Error:           result.Error,
	})
}

// handleProjectPlanner generates, schedules and stores a roadmap.
func (s *Server) handleProjectPlanner(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectPlannerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, _, err := s.planProject(r.Context(), req.ProjectID, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleProjectPlannerStream is handleProjectPlanner with stage progress sent as SSE.
// Events: progress (per stage), then result and complete, or error and complete.
func (s *Server) handleProjectPlannerStream(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectPlannerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	onProgress := func(event agents.ProgressEvent) {
		if err := sse.WriteEvent(EventProgress, event); err != nil {
			s.logger.Warn("failed to write SSE event", "error", err)
		}
	}

	resp, runID, err := s.planProject(r.Context(), req.ProjectID, onProgress)
	if err != nil {
		sse.WriteError(ErrorMessage(err))
		sse.WriteComplete(runIDString(runID), db.RunStatusFailed)
		return
	}

	if err := sse.WriteEvent(EventResult, resp); err != nil {
		s.logger.Warn("failed to write SSE result", "error", err)
	}
	sse.WriteComplete(runIDString(runID), db.RunStatusFor(resp.Error))
}

// planProject runs the planner for a stored project, finalizes the roadmap and
// stores it. A stage error with a non-empty roadmap is reported in the response.
func (s *Server) planProject(ctx context.Context, projectID string, onProgress agents.ProgressCallback) (*types.ProjectPlannerResponse, uuid.UUID, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	runID := s.startRun(ctx, db.PipelineProjectPlanner, project.ID)
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	result := s.planner.Run(runCtx, planner.InputFromProject(project), planner.RunOptions{
		RunID:      runID,
		OnProgress: onProgress,
		Artifacts:  s.artifacts(runID),
	})

	if len(result.Roadmap) == 0 && result.Error != nil {
		s.finishRun(ctx, runID, db.RunStatusFailed, result.Error)
		return nil, runID, &PlanningFailedError{ProjectID: project.ID, Reason: *result.Error}
	}

	roadmap := &types.Roadmap{
		ProjectID:         project.ID,
		Roadmap:           planner.Finalize(result.Roadmap, s.now()),
		ExtractedFeatures: result.ExtractedFeatures,
	}
	if err := s.store.UpsertRoadmap(ctx, roadmap); err != nil {
		msg := err.Error()
		s.finishRun(ctx, runID, db.RunStatusFailed, &msg)
		return nil, runID, fmt.Errorf("failed to store roadmap: %w", err)
	}
	s.finishRun(ctx, runID, db.RunStatusFor(result.Error), result.Error)

	return &types.ProjectPlannerResponse{
		ProjectID:         project.ID,
		Roadmap:           roadmap.Roadmap,
		ExtractedFeatures: roadmap.ExtractedFeatures,
		Error:             result.Error,
	}, runID, nil
}

func (s *Server) loadProject(ctx context.Context, projectID string) (*types.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, &NotFoundError{Resource: "project", ID: projectID}
	}
	return project, nil
}

// runContext bounds a pipeline run by the configured agent timeout.
func (s *Server) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Agents.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Agents.Timeout)
	}
	return context.WithCancel(ctx)
}

// startRun records a run. Bookkeeping failures are logged and the run proceeds
// without an ID, which also disables artifact storage.
func (s *Server) startRun(ctx context.Context, pipeline, projectID string) uuid.UUID {
	runID, err := s.store.CreateRun(ctx, pipeline, projectID)
	if err != nil {
		s.logger.Warn("failed to record run", "pipeline", pipeline, "project_id", projectID, "error", err)
		return uuid.Nil
	}
	return runID
}

func (s *Server) finishRun(ctx context.Context, runID uuid.UUID, status string, errMsg *string) {
	if runID == uuid.Nil {
		return
	}
	if err := s.store.CompleteRun(context.WithoutCancel(ctx), runID, status, errMsg); err != nil {
		s.logger.Warn("failed to complete run", "run_id", runID, "error", err)
	}
}

func (s *Server) artifacts(runID uuid.UUID) agents.ArtifactStore {
	if runID == uuid.Nil {
		return nil
	}
	return s.store
}

func runIDString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
