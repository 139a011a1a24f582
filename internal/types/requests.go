package types

import "github.com/go-playground/validator/v10"

// TeamFormationRequest asks for team recommendations for a stored project.
type TeamFormationRequest struct {
	ProjectID     string `json:"project_id" validate:"required,uuid"`
	OwnerTimezone string `json:"owner_timezone,omitempty"`
}

// TeamFormationResponse carries recommendations plus an advisory error.
type TeamFormationResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Error           *string          `json:"error"`
}

// ProjectPlannerRequest asks for a roadmap for a stored project.
type ProjectPlannerRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
}

// ProjectPlannerResponse is returned once a roadmap has been generated and stored.
type ProjectPlannerResponse struct {
	ProjectID         string   `json:"project_id"`
	Roadmap           []Sprint `json:"roadmap"`
	ExtractedFeatures []string `json:"extracted_features"`
	Error             *string  `json:"error,omitempty"`
}

// UpdateTaskStatusRequest changes the status of one roadmap task.
type UpdateTaskStatusRequest struct {
	ProjectID string     `json:"project_id" validate:"required,uuid"`
	TaskID    string     `json:"task_id" validate:"required"`
	Status    TaskStatus `json:"status" validate:"required,oneof=todo in_progress done"`
}

// RoadmapResponse is a stored roadmap with the sprint that is active right now.
type RoadmapResponse struct {
	Roadmap
	CurrentSprintNumber int `json:"current_sprint_number"`
}

// Validate validates the TeamFormationRequest using the validator.
func (r *TeamFormationRequest) Validate() error {
	return validator.New().Struct(r)
}

// Validate validates the ProjectPlannerRequest using the validator.
func (r *ProjectPlannerRequest) Validate() error {
	return validator.New().Struct(r)
}

// Validate validates the UpdateTaskStatusRequest using the validator.
func (r *UpdateTaskStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// Validate validates the Profile using the validator.
func (p *Profile) Validate() error {
	return validator.New().Struct(p)
}
