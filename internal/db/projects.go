package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/teamforge/internal/types"
)

// GetProject retrieves a project by ID. Returns nil, nil when it does not exist.
func (db *DB) GetProject(ctx context.Context, id string) (*types.Project, error) {
	var p types.Project
	var features, skills, members []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id::text, owner_id, title, category, description, features, required_skills,
		        team_size_min, team_size_max, team_members, complexity, estimated_duration, status
		 FROM projects WHERE id::text = $1`,
		id,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Category, &p.Description, &features, &skills,
		&p.TeamSizeMin, &p.TeamSizeMax, &members, &p.Complexity, &p.EstimatedDuration, &p.Status)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if err := unmarshalAll(
		field{"features", features, &p.Features},
		field{"required_skills", skills, &p.RequiredSkills},
		field{"team_members", members, &p.TeamMembers},
	); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	return &p, nil
}

// UpsertProject inserts or replaces a project. An empty ID lets the database assign one.
func (db *DB) UpsertProject(ctx context.Context, p *types.Project) (string, error) {
	features, err := json.Marshal(nonNil(p.Features))
	if err != nil {
		return "", fmt.Errorf("failed to marshal features: %w", err)
	}
	skills, err := json.Marshal(nonNil(p.RequiredSkills))
	if err != nil {
		return "", fmt.Errorf("failed to marshal required skills: %w", err)
	}
	members := p.TeamMembers
	if members == nil {
		members = []types.TeamMember{}
	}
	membersJSON, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("failed to marshal team members: %w", err)
	}

	var id string
	err = db.pool.QueryRow(ctx,
		`INSERT INTO projects (id, owner_id, title, category, description, features, required_skills,
		                       team_size_min, team_size_max, team_members, complexity, estimated_duration, status)
		 VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		     owner_id = $2, title = $3, category = $4, description = $5, features = $6,
		     required_skills = $7, team_size_min = $8, team_size_max = $9, team_members = $10,
		     complexity = $11, estimated_duration = $12, status = $13, updated_at = NOW()
		 RETURNING id::text`,
		p.ID, p.OwnerID, p.Title, p.Category, p.Description, features, skills,
		p.TeamSizeMin, p.TeamSizeMax, membersJSON, p.Complexity, p.EstimatedDuration, p.Status,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert project: %w", err)
	}
	return id, nil
}

type field struct {
	name string
	raw  []byte
	into any
}

func unmarshalAll(fields ...field) error {
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.into); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
