// Package timezone scores how well two working timezones overlap.
package timezone

import (
	"math"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/jonathan/teamforge/internal/types"
)

// DefaultMaxDiff is the widest offset gap, in hours, the candidate filter accepts.
const DefaultMaxDiff = 4.0

// shortCodes maps common abbreviations to IANA zones.
var shortCodes = map[string]string{
	"IST":  "Asia/Kolkata",
	"PST":  "America/Los_Angeles",
	"EST":  "America/New_York",
	"GMT":  "Europe/London",
	"CET":  "Europe/Paris",
	"JST":  "Asia/Tokyo",
	"AEST": "Australia/Sydney",
	"SGT":  "Asia/Singapore",
	"GST":  "Asia/Dubai",
}

// Scorer computes offsets relative to the instant returned by Now.
type Scorer struct {
	Now func() time.Time

	mu    sync.Mutex
	cache map[string]*time.Location
}

// NewScorer returns a scorer that reads the wall clock.
func NewScorer() *Scorer {
	return &Scorer{Now: time.Now}
}

var defaultScorer = NewScorer()

func (s *Scorer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// location resolves a short code or IANA name. Unknown names resolve to nil.
func (s *Scorer) location(tz string) *time.Location {
	name := strings.TrimSpace(tz)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC
	}
	if iana, ok := shortCodes[strings.ToUpper(name)]; ok {
		name = iana
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		s.cache = make(map[string]*time.Location)
	}
	if loc, ok := s.cache[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = nil
	}
	s.cache[name] = loc
	return loc
}

// OffsetHoursAt returns the UTC offset of tz at instant t. Unresolvable zones count as UTC.
func (s *Scorer) OffsetHoursAt(tz string, t time.Time) float64 {
	loc := s.location(tz)
	if loc == nil {
		return 0
	}
	_, secs := t.In(loc).Zone()
	return float64(secs) / 3600
}

// OffsetHours returns the current UTC offset of tz.
func (s *Scorer) OffsetHours(tz string) float64 {
	return s.OffsetHoursAt(tz, s.now())
}

// Difference returns the absolute offset gap between two zones in hours.
func (s *Scorer) Difference(a, b string) float64 {
	now := s.now()
	return math.Abs(s.OffsetHoursAt(a, now) - s.OffsetHoursAt(b, now))
}

// Compatibility maps the offset gap onto [0, 1]: 1 for the same offset, falling
// linearly to 0 at maxDiff, and 0 beyond it.
func (s *Scorer) Compatibility(a, b string, maxDiff float64) float64 {
	return compatibility(s.Difference(a, b), maxDiff)
}

func compatibility(diff, maxDiff float64) float64 {
	if maxDiff <= 0 {
		if diff == 0 {
			return 1
		}
		return 0
	}
	if diff > maxDiff {
		return 0
	}
	return 1 - diff/maxDiff
}

// FilterByTimezone decorates every candidate with its offset gap and compatibility
// against ownerTz and keeps those within maxDiff, preserving input order.
func (s *Scorer) FilterByTimezone(candidates []types.Candidate, ownerTz string, maxDiff float64) []types.Candidate {
	now := s.now()
	owner := s.OffsetHoursAt(ownerTz, now)

	kept := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		diff := math.Abs(s.OffsetHoursAt(c.Timezone, now) - owner)
		score := compatibility(diff, maxDiff)
		c.TimezoneDiff = &diff
		c.TimezoneScore = &score
		if diff <= maxDiff {
			kept = append(kept, c)
		}
	}
	return kept
}

// Label buckets an offset gap for display.
func Label(diff float64) string {
	switch {
	case diff <= 1:
		return "Excellent"
	case diff <= 2:
		return "Good"
	case diff <= 4:
		return "Fair"
	default:
		return "Poor"
	}
}

// OffsetHours returns the current UTC offset of tz using the wall clock.
func OffsetHours(tz string) float64 { return defaultScorer.OffsetHours(tz) }

// OffsetHoursAt returns the UTC offset of tz at t.
func OffsetHoursAt(tz string, t time.Time) float64 { return defaultScorer.OffsetHoursAt(tz, t) }

// Difference returns the current absolute offset gap between a and b.
func Difference(a, b string) float64 { return defaultScorer.Difference(a, b) }

// Compatibility scores a and b against maxDiff using the wall clock.
func Compatibility(a, b string, maxDiff float64) float64 {
	return defaultScorer.Compatibility(a, b, maxDiff)
}

// FilterByTimezone filters candidates against ownerTz using the wall clock.
func FilterByTimezone(candidates []types.Candidate, ownerTz string, maxDiff float64) []types.Candidate {
	return defaultScorer.FilterByTimezone(candidates, ownerTz, maxDiff)
}
