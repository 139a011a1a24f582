// Package teamformation recommends developers for a project: it asks the model
// which roles the project needs, retrieves matching profiles per role, drops
// those outside the owner's working hours, and has the model rank the rest.
package teamformation

import "github.com/jonathan/teamforge/internal/types"

// Stage names, in execution order.
const (
	StageRoleAnalysis       = "role_analysis"
	StageCandidateRetrieval = "candidate_retrieval"
	StageCandidateFilter    = "candidate_filter"
	StageCandidateRanking   = "candidate_ranking"
)

// PipelineName tags logs and progress events.
const PipelineName = "team_formation"

// Input describes the project to staff.
type Input struct {
	ProjectID      string
	ProjectTitle   string
	RequiredSkills []string
	TeamSize       int
	Timeline       string
	OwnerTimezone  string
}

// InputFromProject maps a stored project onto team formation input.
// The project's estimated duration serves as the timeline.
func InputFromProject(p *types.Project, ownerTimezone string) Input {
	size := p.TeamSizeMax
	if size <= 0 {
		size = p.TeamSizeMin
	}
	return Input{
		ProjectID:      p.ID,
		ProjectTitle:   p.Title,
		RequiredSkills: p.RequiredSkills,
		TeamSize:       size,
		Timeline:       p.EstimatedDuration,
		OwnerTimezone:  ownerTimezone,
	}
}

// State is threaded through the stages. Error holds the most recent stage failure.
type State struct {
	ProjectID       string                 `json:"project_id"`
	ProjectTitle    string                 `json:"project_title"`
	RequiredSkills  []string               `json:"required_skills"`
	TeamSize        int                    `json:"team_size"`
	Timeline        string                 `json:"timeline"`
	OwnerTimezone   string                 `json:"owner_timezone"`
	Roles           []types.Role           `json:"roles"`
	Candidates      []types.Candidate      `json:"candidates"`
	Recommendations []types.Recommendation `json:"recommendations"`
	Error           *string                `json:"error"`
}

// RecordError implements agents.ErrorRecorder.
func (s *State) RecordError(msg string) {
	s.Error = &msg
}

// NewState seeds a state from input, applying defaults.
func NewState(in Input) *State {
	tz := in.OwnerTimezone
	if tz == "" {
		tz = "UTC"
	}
	size := in.TeamSize
	if size <= 0 {
		size = 4
	}
	timeline := in.Timeline
	if timeline == "" {
		timeline = "4 weeks"
	}
	return &State{
		ProjectID:       in.ProjectID,
		ProjectTitle:    in.ProjectTitle,
		RequiredSkills:  in.RequiredSkills,
		TeamSize:        size,
		Timeline:        timeline,
		OwnerTimezone:   tz,
		Roles:           []types.Role{},
		Candidates:      []types.Candidate{},
		Recommendations: []types.Recommendation{},
	}
}

// Result is the public outcome of a run.
type Result struct {
	Recommendations []types.Recommendation `json:"recommendations"`
	Error           *string                `json:"error"`
}
