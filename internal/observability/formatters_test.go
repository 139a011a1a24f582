package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/types"
)

func rec(name, email string, score int) types.Recommendation {
	return types.Recommendation{
		Candidate:  types.Candidate{Name: name, Email: email, Role: "Backend"},
		MatchScore: score,
		Reasoning:  "Strong Go background.",
	}
}

func TestPrintRecommendations(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRecommendations([]types.Recommendation{rec("Asha", "asha@x.io", 92), rec("Omar", "omar@x.io", 70)}, nil)
	output := buf.String()

	assert.Contains(t, output, "TEAM RECOMMENDATIONS")
	assert.Contains(t, output, "#1  Asha <asha@x.io>")
	assert.Contains(t, output, "Score: 92")
	assert.Contains(t, output, "Strong Go background.")
	assert.NotContains(t, output, "Warning")
}

func TestPrintRecommendations_EmptyWithWarning(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	msg := "ranking failed"
	p.PrintRecommendations(nil, &msg)
	output := buf.String()

	assert.Contains(t, output, "No candidates recommended")
	assert.Contains(t, output, "Warning: ranking failed")
}

func TestPrintRecommendations_Truncation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	recs := make([]types.Recommendation, 0, 8)
	for i := 0; i < 8; i++ {
		recs = append(recs, rec("Dev", "dev@x.io", 50))
	}
	p.PrintRecommendations(recs, nil)

	assert.Contains(t, buf.String(), "... and 3 more candidates")
	assert.Equal(t, maxItemsToShow, strings.Count(buf.String(), "Score:"))
}

func TestPrintRoadmap(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	p.PrintRoadmap([]types.Sprint{
		{SprintNumber: 1, Name: "Foundation", Duration: "2 weeks", StartDate: &start, EndDate: &end, Tasks: []types.Task{{ID: "S1-T1"}}},
		{SprintNumber: 2, Name: "Core", Duration: "2 weeks", Error: "timeout"},
	}, 2)
	output := buf.String()

	assert.Contains(t, output, "ROADMAP")
	assert.Contains(t, output, "1. Foundation (2 weeks) 2025-01-01 → 2025-01-15")
	assert.Contains(t, output, "▶ 2. Core")
	assert.Contains(t, output, "(generation failed)")
}

func TestPrintRoadmap_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRoadmap(nil, 1)
	assert.Empty(t, buf.String())
}

func TestPrintFeatures(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintFeatures([]string{"Auth", "Checkout", "History", "Search", "Admin", "Export"})
	output := buf.String()

	assert.Contains(t, output, "EXTRACTED FEATURES")
	assert.Contains(t, output, "• Auth")
	assert.NotContains(t, output, "Export")
	assert.Contains(t, output, "... and 1 more")
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name  string
		event agents.ProgressEvent
		want  string
	}{
		{name: "started", event: agents.ProgressEvent{Stage: "roles", Status: agents.StatusStarted}, want: "• [roles] started\n"},
		{name: "completed with message", event: agents.ProgressEvent{Stage: "roles", Status: agents.StatusCompleted, Message: "2 roles"}, want: "✓ [roles] completed: 2 roles\n"},
		{name: "failed", event: agents.ProgressEvent{Stage: "ranking", Status: agents.StatusFailed, Message: "boom"}, want: "✗ [ranking] failed: boom\n"},
		{name: "skipped", event: agents.ProgressEvent{Stage: "tasks", Status: agents.StatusSkipped}, want: "- [tasks] skipped\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf).Progress()(tt.event)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 100))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	assert.Len(t, lines, 5)
	assert.Contains(t, lines[3], "...")
}
