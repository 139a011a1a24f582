package planner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/llm/llmtest"
	"github.com/jonathan/teamforge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	featureKey   = "HIGH-LEVEL FEATURES"
	milestoneKey = "REFINED FEATURES"
)

const threeSprints = `[
  {"sprint_number": 1, "name": "Foundation", "duration": "2 weeks", "goals": ["Setup Repo"], "features": ["JWT Authentication"]},
  {"sprint_number": 2, "name": "Core", "duration": "2 weeks", "goals": ["Checkout"], "features": ["Checkout Flow"]},
  {"sprint_number": 3, "name": "Polish", "duration": "1 week", "goals": ["QA"], "features": ["Payment History API"]}
]`

func sampleInput() Input {
	return Input{
		ProjectID:         "p-1",
		Title:             "Shop",
		Description:       "An online shop",
		Features:          []string{"User Auth", "Payment"},
		EstimatedDuration: "6 weeks",
		TeamMembers: []types.TeamMember{
			{Username: "asha", Role: "Frontend", Skills: []string{"React"}},
			{UserID: "u-2"},
		},
	}
}

// plannerMock answers each stage by prompt content. taskFor builds the task
// response for a sprint name; returning an error fails that sprint.
func plannerMock(features, milestones string, taskFor func(sprint string) (string, error)) *llmtest.MockClient {
	return &llmtest.MockClient{
		CompleteFunc: func(_ context.Context, _, user string, _ llm.ModelTier) (string, error) {
			switch {
			case strings.Contains(user, featureKey):
				return features, nil
			case strings.Contains(user, milestoneKey):
				return milestones, nil
			default:
				name := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(user, "SPRINT: "), "\n", 2)[0])
				return taskFor(name)
			}
		},
	}
}

func tasksFor(sprint string) (string, error) {
	return fmt.Sprintf(`[{"id": "T-1", "title": "%s task A", "assignee": "asha", "role": "Frontend", "estimate": 4, "priority": "high"},
	  {"id": 2, "title": "%s task B", "estimate": "8h", "priority": "whatever", "status": "In Progress"}]`, sprint, sprint), nil
}

func TestRun_HappyPath(t *testing.T) {
	mock := plannerMock(`["JWT Authentication", "Checkout Flow", "Payment History API"]`, "```json\n"+threeSprints+"\n```", tasksFor)

	res := New(mock).Run(context.Background(), sampleInput(), RunOptions{})

	require.Nil(t, res.Error)
	assert.Equal(t, "p-1", res.ProjectID)
	assert.Equal(t, []string{"JWT Authentication", "Checkout Flow", "Payment History API"}, res.ExtractedFeatures)
	require.Len(t, res.Roadmap, 3)
	assert.Equal(t, []string{"Foundation", "Core", "Polish"}, sprintNames(res.Roadmap))

	task := res.Roadmap[0].Tasks[0]
	assert.Equal(t, "T-1", task.ID)
	assert.Equal(t, "Foundation task A", task.Title)
	assert.Equal(t, "4", task.Estimate)
	assert.Equal(t, types.PriorityHigh, task.Priority)
	assert.Equal(t, types.TaskTodo, task.Status)

	other := res.Roadmap[0].Tasks[1]
	assert.Equal(t, "2", other.ID)
	assert.Equal(t, types.PriorityMedium, other.Priority)
	assert.Equal(t, types.TaskInProgress, other.Status)

	// one call per stage plus one per sprint
	assert.Len(t, mock.Calls(), 5)
}

func TestRun_MilestonePromptCarriesSprintCount(t *testing.T) {
	mock := plannerMock(`["a"]`, threeSprints, tasksFor)
	New(mock).Run(context.Background(), sampleInput(), RunOptions{})

	var milestonePrompt string
	for _, c := range mock.Calls() {
		if strings.Contains(c.UserPrompt, milestoneKey) {
			milestonePrompt = c.UserPrompt
		}
	}
	assert.Contains(t, milestonePrompt, "(6 weeks total)")
	assert.Contains(t, milestonePrompt, "Plan for 3 sprints")
	assert.Contains(t, milestonePrompt, "TEAM SIZE: 2 members")
}

func TestRun_TaskGenerationPartialFailure(t *testing.T) {
	mock := plannerMock(`["a", "b"]`, threeSprints, func(sprint string) (string, error) {
		if sprint == "Core" {
			return "", errors.New("upstream timeout")
		}
		return tasksFor(sprint)
	})

	res := New(mock).Run(context.Background(), sampleInput(), RunOptions{})

	require.Len(t, res.Roadmap, 3)
	assert.NotEmpty(t, res.Roadmap[0].Tasks)
	assert.Empty(t, res.Roadmap[1].Tasks)
	assert.NotNil(t, res.Roadmap[1].Tasks)
	assert.Contains(t, res.Roadmap[1].Error, "upstream timeout")
	assert.NotEmpty(t, res.Roadmap[2].Tasks)
	assert.Empty(t, res.Roadmap[0].Error)
	assert.Empty(t, res.Roadmap[2].Error)

	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "1 of 3 sprints")
}

func TestRun_UnparseableTasksAreSprintLocal(t *testing.T) {
	mock := plannerMock(`["a"]`, threeSprints, func(sprint string) (string, error) {
		if sprint == "Polish" {
			return "no tasks today", nil
		}
		return tasksFor(sprint)
	})

	res := New(mock).Run(context.Background(), sampleInput(), RunOptions{})

	require.Len(t, res.Roadmap, 3)
	assert.Empty(t, res.Roadmap[2].Tasks)
	assert.NotEmpty(t, res.Roadmap[2].Error)
	assert.Len(t, res.Roadmap[1].Tasks, 2)
}

func TestRun_FeatureExtractionFallback(t *testing.T) {
	mock := plannerMock("%%% not json at all %%%", threeSprints, tasksFor)
	in := sampleInput()

	res := New(mock).Run(context.Background(), in, RunOptions{})

	assert.Equal(t, in.Features, res.ExtractedFeatures)
	require.NotNil(t, res.Error)
	// later stages still run on the original features
	assert.Len(t, res.Roadmap, 3)
}

func TestRun_FeatureExtractionRejectsNonStrings(t *testing.T) {
	mock := plannerMock(`[{"name": "JWT"}]`, threeSprints, tasksFor)
	in := sampleInput()
	res := New(mock).Run(context.Background(), in, RunOptions{})
	assert.Equal(t, in.Features, res.ExtractedFeatures)
	require.NotNil(t, res.Error)
}

func TestRun_FeatureExtractionEmptyKeepsInput(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "empty list", reply: `[]`},
		{name: "blank strings only", reply: `["", "   "]`},
		{name: "empty wrapped list", reply: `{"features": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := plannerMock(tt.reply, threeSprints, tasksFor)
			in := sampleInput()

			res := New(mock).Run(context.Background(), in, RunOptions{})

			assert.Equal(t, in.Features, res.ExtractedFeatures)
			require.NotNil(t, res.Error)
			assert.Len(t, res.Roadmap, 3)
		})
	}
}

func TestRun_MilestoneFallback(t *testing.T) {
	mock := plannerMock(`["a"]`, "I'd suggest three sprints.", tasksFor)

	res := New(mock).Run(context.Background(), sampleInput(), RunOptions{})

	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, StageMilestoneDefinition)
	assert.NotNil(t, res.Roadmap)
	assert.Empty(t, res.Roadmap)
	assert.Len(t, mock.Calls(), 2, "no task calls without milestones")
}

func TestRun_ParallelKeepsMilestoneOrder(t *testing.T) {
	var sprints []string
	for i := 1; i <= 8; i++ {
		sprints = append(sprints, fmt.Sprintf(`{"sprint_number": %d, "name": "S%d", "duration": "1 week"}`, i, i))
	}
	milestones := "[" + strings.Join(sprints, ",") + "]"

	var inFlight, peak int32
	mock := plannerMock(`["a"]`, milestones, func(sprint string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return tasksFor(sprint)
	})

	p := New(mock)
	p.MaxParallel = 3
	res := p.Run(context.Background(), sampleInput(), RunOptions{})

	require.Nil(t, res.Error)
	require.Len(t, res.Roadmap, 8)
	for i, sp := range res.Roadmap {
		assert.Equal(t, fmt.Sprintf("S%d", i+1), sp.Name)
		require.NotEmpty(t, sp.Tasks)
		assert.Equal(t, sp.Name+" task A", sp.Tasks[0].Title)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := plannerMock(`["a"]`, threeSprints, tasksFor)
	in := sampleInput()

	res := New(mock).Run(ctx, in, RunOptions{})

	require.NotNil(t, res.Error)
	assert.Empty(t, mock.Calls())
	assert.Empty(t, res.Roadmap)
}

func TestFinalize(t *testing.T) {
	mock := plannerMock(`["a"]`, threeSprints, tasksFor)
	res := New(mock).Run(context.Background(), sampleInput(), RunOptions{})
	start := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

	final := Finalize(res.Roadmap, start)

	require.Len(t, final, 3)
	assert.Equal(t, "S1-T1", final[0].Tasks[0].ID)
	assert.Equal(t, "T-1", final[0].Tasks[0].SourceID)
	assert.Equal(t, "S3-T2", final[2].Tasks[1].ID)
	assert.Equal(t, start, *final[0].StartDate)
	assert.Equal(t, *final[0].EndDate, *final[1].StartDate)
	assert.Equal(t, start.AddDate(0, 0, 14+14+7), *final[2].EndDate)
	assert.Nil(t, res.Roadmap[0].StartDate, "finalize returns a copy")
}

func TestSprintCount(t *testing.T) {
	tests := []struct {
		duration       string
		weeks, sprints int
	}{
		{"8 weeks", 8, 4},
		{"6 weeks", 6, 3},
		{"1 week", 1, 1},
		{"3 months", 3, 1},
		{"", DefaultWeeks, 2},
		{"soon", DefaultWeeks, 2},
	}
	for _, tt := range tests {
		w, s := SprintCount(tt.duration)
		assert.Equal(t, tt.weeks, w, tt.duration)
		assert.Equal(t, tt.sprints, s, tt.duration)
	}
}

func TestTeamContext(t *testing.T) {
	got := TeamContext([]types.TeamMember{
		{Username: "asha", Role: "Frontend", Skills: []string{"React", "CSS"}},
		{UserID: "u-2"},
		{},
	})
	assert.Equal(t, "- asha (Frontend): Skills: React, CSS\n- u-2 (Full Stack Developer): Skills: \n- Developer (Full Stack Developer): Skills: ", got)
	assert.Contains(t, TeamContext(nil), "Developer (Full Stack Developer)")
}

func TestNormalizePriority(t *testing.T) {
	tests := map[string]types.Priority{
		"High":     types.PriorityHigh,
		"critical": types.PriorityHigh,
		" low ":    types.PriorityLow,
		"Medium":   types.PriorityMedium,
		"":         types.PriorityMedium,
		"p0":       types.PriorityMedium,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePriority(in), in)
	}
}

func TestInputFromProject(t *testing.T) {
	in := InputFromProject(&types.Project{
		ID:          "p",
		Title:       "T",
		TeamSizeMax: 0,
		TeamMembers: []types.TeamMember{{}, {}},
	})
	assert.Equal(t, 2, in.TeamSize)
	assert.Equal(t, "p", in.ProjectID)
}

func sprintNames(sprints []types.Sprint) []string {
	out := make([]string, len(sprints))
	for i, s := range sprints {
		out[i] = s.Name
	}
	return out
}
