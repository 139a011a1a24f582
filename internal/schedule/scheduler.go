package schedule

import (
	"fmt"
	"time"

	"github.com/jonathan/teamforge/internal/types"
)

// Schedule assigns back-to-back [start, end) dates to sprints in slice order,
// beginning at start. The input is not modified.
func Schedule(sprints []types.Sprint, start time.Time) []types.Sprint {
	out := make([]types.Sprint, len(sprints))
	cursor := start
	for i, sp := range sprints {
		end := cursor.AddDate(0, 0, ToDays(sp.Duration))
		s, e := cursor, end
		sp.StartDate = &s
		sp.EndDate = &e
		out[i] = sp
		cursor = end
	}
	return out
}

// CurrentSprint returns the number of the sprint active at now.
// Once every sprint has ended the last sprint is reported; before the first one
// (or when the roadmap is unscheduled) the first sprint is reported.
func CurrentSprint(sprints []types.Sprint, now time.Time) int {
	if len(sprints) == 0 {
		return 1
	}

	current := sprints[0].SprintNumber
	maxNumber := 0
	for _, sp := range sprints {
		if sp.SprintNumber > maxNumber {
			maxNumber = sp.SprintNumber
		}
	}

	for _, sp := range sprints {
		if sp.StartDate == nil || sp.EndDate == nil {
			continue
		}
		if !now.Before(*sp.StartDate) && now.Before(*sp.EndDate) {
			return sp.SprintNumber
		}
		if !now.Before(*sp.EndDate) {
			current = sp.SprintNumber + 1
		}
	}

	if current > maxNumber {
		current = maxNumber
	}
	if current < 1 {
		current = 1
	}
	return current
}

// TaskID formats the roadmap-wide identifier of the seq-th task in a sprint.
func TaskID(sprintNumber, seq int) string {
	return fmt.Sprintf("S%d-T%d", sprintNumber, seq)
}

// AssignTaskIDs gives every task an identifier unique across the roadmap.
// Sprint numbers are taken from position when the model repeated or omitted them.
// The model's own identifier is kept in SourceID.
func AssignTaskIDs(sprints []types.Sprint) []types.Sprint {
	out := make([]types.Sprint, len(sprints))
	seen := make(map[int]bool, len(sprints))
	for i, sp := range sprints {
		number := sp.SprintNumber
		if number < 1 || seen[number] {
			number = i + 1
			for seen[number] {
				number++
			}
		}
		seen[number] = true

		tasks := make([]types.Task, len(sp.Tasks))
		for j, task := range sp.Tasks {
			if task.SourceID == "" {
				task.SourceID = task.ID
			}
			task.ID = TaskID(number, j+1)
			tasks[j] = task
		}
		sp.Tasks = tasks
		out[i] = sp
	}
	return out
}

// FindTask locates a task by ID, returning its sprint and task indices.
func FindTask(sprints []types.Sprint, id string) (sprintIdx, taskIdx int, ok bool) {
	for i := range sprints {
		for j := range sprints[i].Tasks {
			if sprints[i].Tasks[j].ID == id {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// SetTaskStatus updates the first task matching id in place.
func SetTaskStatus(sprints []types.Sprint, id string, status types.TaskStatus) error {
	if !types.ValidTaskStatus(status) {
		return fmt.Errorf("invalid task status %q", status)
	}
	i, j, ok := FindTask(sprints, id)
	if !ok {
		return &TaskNotFoundError{TaskID: id}
	}
	sprints[i].Tasks[j].Status = status
	return nil
}

// TaskNotFoundError is returned when a task ID is not present in a roadmap.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found in roadmap", e.TaskID)
}
