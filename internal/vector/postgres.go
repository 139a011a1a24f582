package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/teamforge/internal/types"
)

// PGStore keeps profile embeddings in a pgvector column of profile_embeddings.
type PGStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

// NewPGStore creates a store over an open pool.
func NewPGStore(pool *pgxpool.Pool, embedder Embedder) *PGStore {
	return &PGStore{pool: pool, embedder: embedder}
}

// Upsert embeds and stores a profile keyed by user ID.
func (s *PGStore) Upsert(ctx context.Context, p types.ProfileMetadata) error {
	if p.UserID == "" {
		return fmt.Errorf("profile needs a user_id")
	}
	vec, err := s.embedder.Embed(ctx, p.SkillsText)
	if err != nil {
		return fmt.Errorf("failed to embed profile %s: %w", p.UserID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profile_embeddings
		     (user_id, name, username, email, availability_hours, timezone, skills_text, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
		 ON CONFLICT (user_id) DO UPDATE SET
		     name = $2, username = $3, email = $4, availability_hours = $5,
		     timezone = $6, skills_text = $7, embedding = $8::vector, updated_at = NOW()`,
		p.UserID, p.Name, p.Username, p.Email, p.AvailabilityHours, p.Timezone, p.SkillsText, Literal(vec),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile embedding %s: %w", p.UserID, err)
	}
	return nil
}

// Search returns the k nearest profiles by cosine distance.
func (s *PGStore) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, name, username, email, availability_hours, timezone, skills_text,
		        1 - (embedding <=> $1::vector) AS score
		 FROM profile_embeddings
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		Literal(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.Profile.UserID, &m.Profile.Name, &m.Profile.Username, &m.Profile.Email,
			&m.Profile.AvailabilityHours, &m.Profile.Timezone, &m.Profile.SkillsText, &m.Score)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile match: %w", err)
	}
	return matches, nil
}

// Literal formats a vector in pgvector's text input form, e.g. "[0.1,0.2]".
func Literal(vec []float32) string {
	var sb strings.Builder
	sb.Grow(len(vec)*8 + 2)
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
