// Package vector stores skill embeddings of developer profiles and answers
// similarity queries against them.
package vector

import (
	"context"
	"math"

	"github.com/jonathan/teamforge/internal/types"
)

// Match is one search hit: the stored profile and its cosine similarity to the query.
type Match struct {
	Profile types.ProfileMetadata
	Score   float64
}

// Searcher returns the k profiles most similar to a free-text query, best first.
// Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Match, error)
}

// Indexer stores or replaces the embedding of a profile.
type Indexer interface {
	Upsert(ctx context.Context, profile types.ProfileMetadata) error
}

// Store is a searchable profile index.
type Store interface {
	Searcher
	Indexer
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero-length, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
