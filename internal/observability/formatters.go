// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Progress returns a callback that prints one line per stage event.
func (p *Printer) Progress() agents.ProgressCallback {
	return func(e agents.ProgressEvent) {
		mark := "•"
		switch e.Status {
		case agents.StatusCompleted:
			mark = "✓"
		case agents.StatusFailed:
			mark = "✗"
		case agents.StatusSkipped:
			mark = "-"
		}
		line := fmt.Sprintf("%s [%s] %s", mark, e.Stage, e.Status)
		if e.Message != "" {
			line += ": " + e.Message
		}
		fmt.Fprintln(p.out, line) //nolint:errcheck
	}
}

// PrintRecommendations outputs the top recommendations with scores and reasoning.
func (p *Printer) PrintRecommendations(recs []types.Recommendation, errMsg *string) {
	var sb strings.Builder
	if len(recs) == 0 {
		sb.WriteString("No candidates recommended\n")
	}

	count := min(len(recs), maxItemsToShow)
	for i := 0; i < count; i++ {
		rec := recs[i]
		sb.WriteString(fmt.Sprintf("#%d  %s <%s>\n", i+1, rec.Name, rec.Email))
		sb.WriteString(fmt.Sprintf("    Score: %d\n", rec.MatchScore))
		if rec.Reasoning != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", rec.Reasoning))
		}
	}
	if len(recs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more candidates\n", len(recs)-maxItemsToShow))
	}
	if errMsg != nil {
		sb.WriteString(fmt.Sprintf("\nWarning: %s\n", *errMsg))
	}

	p.printBox("TEAM RECOMMENDATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRoadmap outputs one line per sprint with its dates and task count.
func (p *Printer) PrintRoadmap(sprints []types.Sprint, currentSprint int) {
	if len(sprints) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sprints: %d\n\n", len(sprints)))
	for _, sp := range sprints {
		marker := " "
		if sp.SprintNumber == currentSprint {
			marker = "▶"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s (%s)", marker, sp.SprintNumber, sp.Name, sp.Duration))
		if sp.StartDate != nil && sp.EndDate != nil {
			sb.WriteString(fmt.Sprintf(" %s → %s", sp.StartDate.Format("2006-01-02"), sp.EndDate.Format("2006-01-02")))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("    %d tasks", len(sp.Tasks)))
		if sp.Error != "" {
			sb.WriteString(" (generation failed)")
		}
		sb.WriteString("\n")
	}

	p.printBox("ROADMAP", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFeatures outputs the features the planner extracted.
func (p *Printer) PrintFeatures(features []string) {
	if len(features) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(features), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("• %s\n", features[i]))
	}
	if len(features) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(features)-maxItemsToShow))
	}

	p.printBox("EXTRACTED FEATURES", strings.TrimSuffix(sb.String(), "\n"))
}
