package vector

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// DefaultEmbeddingModel is the Gemini embedding model used for profile skills.
const DefaultEmbeddingModel = "text-embedding-004"

// GeminiEmbedder implements Embedder with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder wraps an existing SDK client.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil {
		return nil, fmt.Errorf("gemini embedder has no client")
	}
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeSemanticSimilarity

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned by %s", e.model)
	}
	return res.Embedding.Values, nil
}
