package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/teamforge/internal/types"
)

// UpsertProfile inserts or replaces a developer profile keyed by user ID.
func (db *DB) UpsertProfile(ctx context.Context, p *types.Profile) error {
	primary, err := json.Marshal(nonNil(p.PrimarySkills))
	if err != nil {
		return fmt.Errorf("failed to marshal primary skills: %w", err)
	}
	secondary, err := json.Marshal(nonNil(p.SecondarySkills))
	if err != nil {
		return fmt.Errorf("failed to marshal secondary skills: %w", err)
	}
	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, name, username, email, primary_skills, secondary_skills,
		                       bio, experience_level, availability_hours, timezone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		     name = $2, username = $3, email = $4, primary_skills = $5, secondary_skills = $6,
		     bio = $7, experience_level = $8, availability_hours = $9, timezone = $10, updated_at = NOW()`,
		p.UserID, p.Name, p.Username, p.Email, primary, secondary,
		p.Bio, p.ExperienceLevel, p.AvailabilityHours, tz,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.UserID, err)
	}
	return nil
}

// GetProfile retrieves a profile by user ID. Returns nil, nil when it does not exist.
func (db *DB) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	var p types.Profile
	var primary, secondary []byte
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, name, username, email, primary_skills, secondary_skills,
		        bio, experience_level, availability_hours, timezone
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Name, &p.Username, &p.Email, &primary, &secondary,
		&p.Bio, &p.ExperienceLevel, &p.AvailabilityHours, &p.Timezone)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if err := unmarshalAll(
		field{"primary_skills", primary, &p.PrimarySkills},
		field{"secondary_skills", secondary, &p.SecondarySkills},
	); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", userID, err)
	}
	return &p, nil
}

// ProfileTimezone returns the stored timezone of a user, or "UTC" when the user has no profile.
func (db *DB) ProfileTimezone(ctx context.Context, userID string) (string, error) {
	var tz string
	err := db.pool.QueryRow(ctx, `SELECT timezone FROM profiles WHERE user_id = $1`, userID).Scan(&tz)
	if err != nil {
		if isNoRows(err) {
			return "UTC", nil
		}
		return "", fmt.Errorf("failed to get profile timezone: %w", err)
	}
	if tz == "" {
		tz = "UTC"
	}
	return tz, nil
}
