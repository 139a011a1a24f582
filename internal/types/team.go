// Package types provides type definitions for structured data used throughout the teamforge system.
package types

// Role is a team role produced by role analysis.
type Role struct {
	Role   string   `json:"role"`
	Count  int      `json:"count"`
	Skills []string `json:"skills"`
}

// ProfileMetadata is the profile record stored alongside an indexed skill embedding.
type ProfileMetadata struct {
	UserID            string  `json:"user_id,omitempty"`
	Name              string  `json:"name"`
	Username          string  `json:"username"`
	Email             string  `json:"email"`
	AvailabilityHours float64 `json:"availability_hours"`
	Timezone          string  `json:"timezone"`
	SkillsText        string  `json:"skills_text"`
}

// Candidate is a retrieved profile scored for fit against a role.
// TimezoneDiff and TimezoneScore are nil until the timezone filter has run.
type Candidate struct {
	Role              string   `json:"role"`
	Name              string   `json:"name"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Skills            string   `json:"skills"`
	SimilarityScore   float64  `json:"similarity_score"`
	AvailabilityHours float64  `json:"availability_hours"`
	Timezone          string   `json:"timezone"`
	TimezoneDiff      *float64 `json:"timezone_diff,omitempty"`
	TimezoneScore     *float64 `json:"timezone_score,omitempty"`
}

// Recommendation is a candidate decorated with an LLM-derived fit score and rationale.
type Recommendation struct {
	Candidate
	MatchScore int    `json:"match_score"`
	Reasoning  string `json:"reasoning"`
}

// CandidateEvaluation is one entry of the ranking model's response, joined back by email.
// MatchScore is nil when the model omitted it.
type CandidateEvaluation struct {
	Email      string   `json:"email"`
	MatchScore *float64 `json:"match_score"`
	Reasoning  string   `json:"reasoning"`
}

// TeamMember is a member of a project's team as seen by the task generator.
type TeamMember struct {
	UserID   string   `json:"user_id,omitempty"`
	Username string   `json:"username,omitempty"`
	Name     string   `json:"name,omitempty"`
	Role     string   `json:"role,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

// DisplayName returns the name used for the member in prompts and task assignment.
func (m TeamMember) DisplayName() string {
	switch {
	case m.Username != "":
		return m.Username
	case m.Name != "":
		return m.Name
	case m.UserID != "":
		return m.UserID
	default:
		return "Developer"
	}
}

// DisplayRole returns the member's role, defaulting to a generalist.
func (m TeamMember) DisplayRole() string {
	if m.Role == "" {
		return "Full Stack Developer"
	}
	return m.Role
}
