// Package schedule turns a generated roadmap into dated, addressable sprints.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultDays is the sprint length used when a duration string cannot be read.
const DefaultDays = 14

var (
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(day|days|week|weeks|month|months)`)
	leadingInt      = regexp.MustCompile(`\d+`)
)

// ToDays converts strings like "2 weeks" or "1 month" to a day count.
// A month is always 30 days. Unrecognised input yields DefaultDays.
func ToDays(text string) int {
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultDays
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultDays
	}

	switch strings.ToLower(m[2]) {
	case "week", "weeks":
		return n * 7
	case "month", "months":
		return n * 30
	default:
		return n
	}
}

// LeadingWeeks returns the first integer in a duration string such as "8 weeks",
// or fallback when there is none.
func LeadingWeeks(text string, fallback int) int {
	m := leadingInt.FindString(text)
	if m == "" {
		return fallback
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return fallback
	}
	return n
}
