package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient abstracts the external embedding provider.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder wraps an EmbeddingClient to generate text embeddings.
type Embedder struct {
	client EmbeddingClient
}

// NewEmbedder creates an Embedder using the given provider client.
func NewEmbedder(c EmbeddingClient) *Embedder {
	return &Embedder{client: c}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.client.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
