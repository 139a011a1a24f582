// Package planner turns a project description into a sprint roadmap: the model
// refines the feature list, groups it into sprints, then breaks every sprint
// into assigned tasks.
package planner

import "github.com/jonathan/teamforge/internal/types"

// Stage names, in execution order.
const (
	StageFeatureExtraction   = "feature_extraction"
	StageMilestoneDefinition = "milestone_definition"
	StageTaskGeneration      = "task_generation"
)

// PipelineName tags logs and progress events.
const PipelineName = "project_planner"

// Input is the project being planned.
type Input struct {
	ProjectID         string
	Title             string
	Category          string
	Description       string
	Features          []string
	RequiredSkills    []string
	TeamSize          int
	TeamMembers       []types.TeamMember
	Complexity        string
	EstimatedDuration string
	Status            string
}

// InputFromProject maps a stored project onto planner input.
func InputFromProject(p *types.Project) Input {
	size := p.TeamSizeMax
	if size <= 0 {
		size = len(p.TeamMembers)
	}
	return Input{
		ProjectID:         p.ID,
		Title:             p.Title,
		Category:          p.Category,
		Description:       p.Description,
		Features:          p.Features,
		RequiredSkills:    p.RequiredSkills,
		TeamSize:          size,
		TeamMembers:       p.TeamMembers,
		Complexity:        p.Complexity,
		EstimatedDuration: p.EstimatedDuration,
		Status:            p.Status,
	}
}

// State is threaded through the stages. Error holds the most recent stage failure.
type State struct {
	ProjectID         string             `json:"project_id"`
	Title             string             `json:"title"`
	Category          string             `json:"category"`
	Description       string             `json:"description"`
	Features          []string           `json:"features"`
	RequiredSkills    []string           `json:"required_skills"`
	TeamSize          int                `json:"team_size"`
	TeamMembers       []types.TeamMember `json:"team_members"`
	Complexity        string             `json:"complexity"`
	EstimatedDuration string             `json:"estimated_duration"`
	Status            string             `json:"status"`
	ExtractedFeatures []string           `json:"extracted_features"`
	Milestones        []types.Sprint     `json:"milestones"`
	Roadmap           []types.Sprint     `json:"roadmap"`
	Error             *string            `json:"error"`
}

// RecordError implements agents.ErrorRecorder.
func (s *State) RecordError(msg string) {
	s.Error = &msg
}

// NewState seeds a state from input.
func NewState(in Input) *State {
	features := in.Features
	if features == nil {
		features = []string{}
	}
	return &State{
		ProjectID:         in.ProjectID,
		Title:             in.Title,
		Category:          in.Category,
		Description:       in.Description,
		Features:          features,
		RequiredSkills:    in.RequiredSkills,
		TeamSize:          in.TeamSize,
		TeamMembers:       in.TeamMembers,
		Complexity:        in.Complexity,
		EstimatedDuration: in.EstimatedDuration,
		Status:            in.Status,
		ExtractedFeatures: []string{},
		Milestones:        []types.Sprint{},
		Roadmap:           []types.Sprint{},
	}
}

// Result is the public outcome of a run. Roadmap sprints are not yet dated;
// see Finalize.
type Result struct {
	ProjectID         string         `json:"project_id"`
	Roadmap           []types.Sprint `json:"roadmap"`
	ExtractedFeatures []string       `json:"extracted_features"`
	Error             *string        `json:"error"`
}
