package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/jonathan/teamforge/internal/types"
)

// MemoryStore is an in-process Store. It is used by the CLI when no database is
// configured and by tests.
type MemoryStore struct {
	embedder Embedder

	mu      sync.RWMutex
	order   []string
	entries map[string]memoryEntry
}

type memoryEntry struct {
	profile types.ProfileMetadata
	vector  []float32
}

// NewMemoryStore creates an empty store. A nil embedder selects KeywordEmbedder.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	if embedder == nil {
		embedder = KeywordEmbedder{}
	}
	return &MemoryStore{
		embedder: embedder,
		entries:  make(map[string]memoryEntry),
	}
}

func profileKey(p types.ProfileMetadata) string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.Email
}

// Upsert embeds the profile's skills text and stores it under its user ID (or email).
func (s *MemoryStore) Upsert(ctx context.Context, profile types.ProfileMetadata) error {
	key := profileKey(profile)
	if key == "" {
		return fmt.Errorf("profile needs a user_id or email")
	}
	vec, err := s.embedder.Embed(ctx, profile.SkillsText)
	if err != nil {
		return fmt.Errorf("failed to embed profile %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = memoryEntry{profile: profile, vector: vec}
	return nil
}

// Search ranks stored profiles by cosine similarity. Ties keep insertion order.
func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	matches := make([]Match, 0, len(s.order))
	for _, key := range s.order {
		e := s.entries[key]
		matches = append(matches, Match{Profile: e.profile, Score: Cosine(qv, e.vector)})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len returns the number of stored profiles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// KeywordEmbedder hashes lower-cased word tokens into a fixed number of buckets.
// It needs no model and gives overlapping skill lists a positive similarity.
type KeywordEmbedder struct {
	Dims int
}

// Embed implements Embedder.
func (e KeywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := e.Dims
	if dims <= 0 {
		dims = 256
	}
	vec := make([]float32, dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dims)]++
	}
	return vec, nil
}
