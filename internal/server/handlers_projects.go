package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/teamforge/internal/schedule"
	"github.com/jonathan/teamforge/internal/types"
)

// RecommendationsResponse is the latest stored team formation outcome.
type RecommendationsResponse struct {
	ProjectID       string                 `json:"project_id"`
	Recommendations []types.Recommendation `json:"recommendations"`
	Error           *string                `json:"error"`
}

// handleGetPlannedProject returns a stored roadmap and the sprint active now.
func (s *Server) handleGetPlannedProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if err := uuid.Validate(projectID); err != nil {
		s.writeError(w, &ErrValidation{Field: "project_id", Message: "must be a UUID"})
		return
	}

	roadmap, err := s.store.GetRoadmap(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if roadmap == nil {
		s.writeError(w, &NotFoundError{Resource: "roadmap", ID: projectID})
		return
	}

	s.jsonResponse(w, http.StatusOK, types.RoadmapResponse{
		Roadmap:             *roadmap,
		CurrentSprintNumber: schedule.CurrentSprint(roadmap.Roadmap, s.now()),
	})
}

// handleUpdateTaskStatus changes one task's status in a stored roadmap.
func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateTaskStatusRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	roadmap, err := s.store.UpdateTaskStatus(r.Context(), req.ProjectID, req.TaskID, req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("task status updated", "project_id", req.ProjectID, "task_id", req.TaskID, "status", req.Status)
	s.jsonResponse(w, http.StatusOK, types.RoadmapResponse{
		Roadmap:             *roadmap,
		CurrentSprintNumber: schedule.CurrentSprint(roadmap.Roadmap, s.now()),
	})
}

// handleGetRecommendations returns the most recent team formation outcome of a project.
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if err := uuid.Validate(projectID); err != nil {
		s.writeError(w, &ErrValidation{Field: "project_id", Message: "must be a UUID"})
		return
	}

	recs, errMsg, err := s.store.LatestRecommendations(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		s.writeError(w, &NotFoundError{Resource: "recommendations", ID: projectID})
		return
	}
	s.jsonResponse(w, http.StatusOK, RecommendationsResponse{
		ProjectID:       projectID,
		Recommendations: recs,
		Error:           errMsg,
	})
}

// IndexProfileResponse acknowledges an indexed profile.
type IndexProfileResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
}

// handleIndexProfile stores a developer profile and upserts its embedding.
func (s *Server) handleIndexProfile(w http.ResponseWriter, r *http.Request) {
	var profile types.Profile
	if err := s.decode(w, r, &profile); err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	if err := s.store.UpsertProfile(ctx, &profile); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.vectors.Upsert(ctx, profile.Metadata()); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("profile indexed", "user_id", profile.UserID)
	s.jsonResponse(w, http.StatusOK, IndexProfileResponse{Status: "indexed", UserID: profile.UserID})
}
