package types

import "time"

// Priority of a generated task.
type Priority string

// Priority values accepted in a roadmap.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task status values.
const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskDone
}

// Task is a unit of work inside a sprint.
// SourceID keeps the identifier the model produced; ID is assigned by the scheduling pass.
type Task struct {
	ID       string     `json:"id"`
	SourceID string     `json:"source_id,omitempty"`
	Title    string     `json:"title"`
	Assignee string     `json:"assignee"`
	Role     string     `json:"role"`
	Estimate string     `json:"estimate"`
	Priority Priority   `json:"priority"`
	Status   TaskStatus `json:"status"`
}

// Sprint is a time-boxed grouping of features and tasks within a roadmap.
type Sprint struct {
	SprintNumber int        `json:"sprint_number"`
	Name         string     `json:"name"`
	Duration     string     `json:"duration"`
	Goals        []string   `json:"goals"`
	Features     []string   `json:"features"`
	Tasks        []Task     `json:"tasks"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Roadmap is the persisted plan document, upserted keyed by project ID.
type Roadmap struct {
	ProjectID         string     `json:"project_id"`
	Roadmap           []Sprint   `json:"roadmap"`
	ExtractedFeatures []string   `json:"extracted_features"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}
