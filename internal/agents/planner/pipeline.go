package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/logging"
	"github.com/jonathan/teamforge/internal/prompts"
	"github.com/jonathan/teamforge/internal/schedule"
	"github.com/jonathan/teamforge/internal/schemas"
	"github.com/jonathan/teamforge/internal/types"
	rootschemas "github.com/jonathan/teamforge/schemas"
)

// DefaultWeeks is used when the estimated duration has no number in it.
const DefaultWeeks = 4

// Pipeline runs project planning. It holds no per-run state and may be shared.
type Pipeline struct {
	LLM llm.Client
	// MaxParallel bounds concurrent task generation calls; values below 2 run sprints one at a time.
	MaxParallel int
	Logger      *slog.Logger
}

// New creates a sequential pipeline.
func New(client llm.Client) *Pipeline {
	return &Pipeline{LLM: client, MaxParallel: 1}
}

// RunOptions carries per-run hooks.
type RunOptions struct {
	RunID      uuid.UUID
	OnProgress agents.ProgressCallback
	Artifacts  agents.ArtifactStore
}

// Run executes every stage. Stage failures are reported in Result.Error.
func (p *Pipeline) Run(ctx context.Context, in Input, opts RunOptions) *Result {
	state := p.Execute(ctx, NewState(in), opts)
	return &Result{
		ProjectID:         state.ProjectID,
		Roadmap:           state.Roadmap,
		ExtractedFeatures: state.ExtractedFeatures,
		Error:             state.Error,
	}
}

// RunProjectPlanner plans a project with a default pipeline.
func RunProjectPlanner(ctx context.Context, client llm.Client, in Input) *Result {
	return New(client).Run(ctx, in, RunOptions{})
}

// Execute runs the stages against a prepared state and returns it.
func (p *Pipeline) Execute(ctx context.Context, state *State, opts RunOptions) *State {
	agents.Run(ctx, state, p.stages(), agents.Options{
		Pipeline:   PipelineName,
		ProjectID:  state.ProjectID,
		RunID:      opts.RunID,
		Logger:     p.Logger,
		OnProgress: opts.OnProgress,
		Artifacts:  opts.Artifacts,
	})
	return state
}

// Finalize is the scheduling pass run by callers before a roadmap is stored:
// tasks get roadmap-wide IDs and sprints get back-to-back dates starting at start.
func Finalize(roadmap []types.Sprint, start time.Time) []types.Sprint {
	return schedule.Schedule(schedule.AssignTaskIDs(roadmap), start)
}

func (p *Pipeline) stages() []agents.Stage[*State] {
	return []agents.Stage[*State]{
		{
			Name: StageFeatureExtraction,
			Run:  p.extractFeatures,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("Extracted %d technical features", len(s.ExtractedFeatures)), s.ExtractedFeatures
			},
		},
		{
			Name: StageMilestoneDefinition,
			Run:  p.defineMilestones,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("Planned %d sprints", len(s.Milestones)), s.Milestones
			},
		},
		{
			Name: StageTaskGeneration,
			Run:  p.generateTasks,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("Generated tasks for %d sprints", len(s.Roadmap)), s.Roadmap
			},
		},
	}
}

// extractFeatures refines high-level features into technical ones. Any failure
// keeps the input features verbatim.
func (p *Pipeline) extractFeatures(ctx context.Context, s *State) error {
	s.ExtractedFeatures = s.Features

	system, user := prompts.MustRender(prompts.ProjectPlanner, "feature-extraction", map[string]string{
		"Title":       orDefault(s.Title, "Untitled Project"),
		"Category":    s.Category,
		"Description": s.Description,
		"Features":    strings.Join(s.Features, ", "),
	})
	value, raw, err := llm.GenerateJSON(ctx, p.LLM, system, user, llm.TierStandard)
	if err != nil {
		return fmt.Errorf("feature extraction call failed: %w", err)
	}

	items, ok := value.Unwrap("features")
	if !ok {
		return fmt.Errorf("feature extraction output is not a list: %s", llm.Preview(raw, 200))
	}
	if err := schemas.ValidateValue(rootschemas.Features, items); err != nil {
		return fmt.Errorf("feature extraction output rejected: %w", err)
	}

	features := make([]string, 0, len(items))
	for _, item := range items {
		if f, _ := item.(string); strings.TrimSpace(f) != "" {
			features = append(features, strings.TrimSpace(f))
		}
	}
	if len(features) == 0 && len(s.Features) > 0 {
		return fmt.Errorf("feature extraction returned no features: %s", llm.Preview(raw, 200))
	}
	s.ExtractedFeatures = features
	return nil
}

// SprintCount returns the number of two-week sprints that fit in a duration.
func SprintCount(duration string) (weeks, sprints int) {
	weeks = schedule.LeadingWeeks(duration, DefaultWeeks)
	return weeks, max(1, weeks/2)
}

// defineMilestones groups features into sprints. On failure no sprints are planned.
func (p *Pipeline) defineMilestones(ctx context.Context, s *State) error {
	s.Milestones = []types.Sprint{}

	timeline := orDefault(s.EstimatedDuration, fmt.Sprintf("%d weeks", DefaultWeeks))
	weeks, numSprints := SprintCount(timeline)

	system, user := prompts.MustRender(prompts.ProjectPlanner, "milestone-definition", map[string]string{
		"Title":      orDefault(s.Title, "Project"),
		"Features":   strings.Join(s.ExtractedFeatures, ", "),
		"Timeline":   timeline,
		"Weeks":      strconv.Itoa(weeks),
		"TeamSize":   strconv.Itoa(len(s.TeamMembers)),
		"NumSprints": strconv.Itoa(numSprints),
	})
	value, raw, err := llm.GenerateJSON(ctx, p.LLM, system, user, llm.TierAdvanced)
	if err != nil {
		return fmt.Errorf("milestone definition call failed: %w", err)
	}

	items, ok := value.Unwrap("sprints")
	if !ok {
		return fmt.Errorf("milestone definition output is not a list: %s", llm.Preview(raw, 200))
	}
	if err := schemas.ValidateValue(rootschemas.Sprints, items); err != nil {
		return fmt.Errorf("milestone definition output rejected: %w", err)
	}

	// only the planning fields are trusted; tasks and dates are produced later
	planned := make([]any, len(items))
	for i, item := range items {
		obj, _ := item.(map[string]any)
		fields := make(map[string]any, len(obj))
		for _, k := range []string{"sprint_number", "name", "duration", "goals", "features"} {
			if v, ok := obj[k]; ok {
				fields[k] = v
			}
		}
		planned[i] = fields
	}

	var sprints []types.Sprint
	if err := llm.DecodeInto(planned, &sprints); err != nil {
		return fmt.Errorf("failed to decode sprints: %w", err)
	}
	for i := range sprints {
		if sprints[i].SprintNumber < 1 {
			sprints[i].SprintNumber = i + 1
		}
		if sprints[i].Name == "" {
			sprints[i].Name = fmt.Sprintf("Sprint %d", sprints[i].SprintNumber)
		}
	}
	s.Milestones = sprints
	return nil
}

// generateTasks asks for the tasks of every sprint. A failing sprint keeps an
// empty task list and its own error; the others are unaffected. Results land at
// the sprint's index, so the roadmap keeps milestone order however calls interleave.
func (p *Pipeline) generateTasks(ctx context.Context, s *State) error {
	roadmap := make([]types.Sprint, len(s.Milestones))
	team := TeamContext(s.TeamMembers)
	log := logging.ForPipeline(p.Logger, PipelineName, s.ProjectID)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.MaxParallel))

	for i, sprint := range s.Milestones {
		g.Go(func() error {
			tasks, err := p.sprintTasks(gCtx, sprint, team)
			sprint.Tasks = tasks
			if err != nil {
				sprint.Tasks = []types.Task{}
				sprint.Error = err.Error()
				log.Warn("task generation failed for sprint", "sprint", sprint.SprintNumber, "error", err)
			}
			roadmap[i] = sprint
			// per-sprint failures never cancel the siblings
			return nil
		})
	}
	_ = g.Wait()

	s.Roadmap = roadmap

	failed := 0
	for _, sp := range roadmap {
		if sp.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("task generation failed for %d of %d sprints", failed, len(roadmap))
	}
	return nil
}

func (p *Pipeline) sprintTasks(ctx context.Context, sprint types.Sprint, team string) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	system, user := prompts.MustRender(prompts.ProjectPlanner, "task-generation", map[string]string{
		"SprintName": sprint.Name,
		"Goals":      strings.Join(sprint.Goals, ", "),
		"Features":   strings.Join(sprint.Features, ", "),
		"Team":       team,
	})
	value, raw, err := llm.GenerateJSON(ctx, p.LLM, system, user, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("task generation call failed: %w", err)
	}

	items, ok := value.Unwrap("tasks")
	if !ok {
		return nil, fmt.Errorf("task generation output is not a list: %s", llm.Preview(raw, 200))
	}
	if err := schemas.ValidateValue(rootschemas.Tasks, items); err != nil {
		return nil, fmt.Errorf("task generation output rejected: %w", err)
	}

	tasks := make([]types.Task, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			tasks = append(tasks, taskFrom(obj))
		}
	}
	return tasks, nil
}

// taskFrom reads one model task. IDs and estimates may come back as numbers.
func taskFrom(m map[string]any) types.Task {
	return types.Task{
		ID:       scalar(m["id"]),
		Title:    scalar(m["title"]),
		Assignee: scalar(m["assignee"]),
		Role:     scalar(m["role"]),
		Estimate: scalar(m["estimate"]),
		Priority: NormalizePriority(scalar(m["priority"])),
		Status:   normalizeStatus(scalar(m["status"])),
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// NormalizePriority maps free-form priorities onto High, Medium or Low.
func NormalizePriority(p string) types.Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "critical", "urgent":
		return types.PriorityHigh
	case "low":
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

func normalizeStatus(s string) types.TaskStatus {
	status := types.TaskStatus(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
	if types.ValidTaskStatus(status) {
		return status
	}
	return types.TaskTodo
}

// TeamContext renders the team as prompt lines of the form "- name (role): Skills: a, b".
func TeamContext(members []types.TeamMember) string {
	if len(members) == 0 {
		return "- Developer (Full Stack Developer): Skills: "
	}
	lines := make([]string, len(members))
	for i, m := range members {
		lines[i] = fmt.Sprintf("- %s (%s): Skills: %s", m.DisplayName(), m.DisplayRole(), strings.Join(m.Skills, ", "))
	}
	return strings.Join(lines, "\n")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
