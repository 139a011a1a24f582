package types

import "strings"

// Project is the subset of a project record the agent pipelines read.
type Project struct {
	ID                string       `json:"id"`
	OwnerID           string       `json:"owner_id"`
	Title             string       `json:"title"`
	Category          string       `json:"category"`
	Description       string       `json:"description"`
	Features          []string     `json:"features"`
	RequiredSkills    []string     `json:"required_skills"`
	TeamSizeMin       int          `json:"team_size_min"`
	TeamSizeMax       int          `json:"team_size_max"`
	TeamMembers       []TeamMember `json:"team_members"`
	Complexity        string       `json:"complexity"`
	EstimatedDuration string       `json:"estimated_duration"`
	Status            string       `json:"status"`
}

// Profile is a developer profile as submitted for indexing.
type Profile struct {
	UserID            string   `json:"user_id" validate:"required"`
	Name              string   `json:"name"`
	Username          string   `json:"username" validate:"required"`
	Email             string   `json:"email" validate:"required,email"`
	PrimarySkills     []string `json:"primary_skills"`
	SecondarySkills   []string `json:"secondary_skills"`
	Bio               string   `json:"bio"`
	ExperienceLevel   string   `json:"experience_level"`
	AvailabilityHours float64  `json:"availability_hours" validate:"gte=0,lte=168"`
	Timezone          string   `json:"timezone"`
}

// SkillsText flattens the profile into the text that gets embedded.
func (p *Profile) SkillsText() string {
	parts := make([]string, 0, len(p.PrimarySkills)+len(p.SecondarySkills)+2)
	parts = append(parts, p.PrimarySkills...)
	parts = append(parts, p.SecondarySkills...)
	if p.Bio != "" {
		parts = append(parts, p.Bio)
	}
	if p.ExperienceLevel != "" {
		parts = append(parts, p.ExperienceLevel)
	}
	return strings.Join(parts, " ")
}

// Metadata converts the profile into the record stored with its embedding.
func (p *Profile) Metadata() ProfileMetadata {
	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return ProfileMetadata{
		UserID:            p.UserID,
		Name:              p.Name,
		Username:          p.Username,
		Email:             p.Email,
		AvailabilityHours: p.AvailabilityHours,
		Timezone:          tz,
		SkillsText:        p.SkillsText(),
	}
}
