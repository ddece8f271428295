package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/partserve/internal/index"
	"github.com/kalambet/partserve/internal/knowledge"
)

const defaultTopK = 5

// Match is one retrieved knowledge entry with its similarity score.
type Match struct {
	Entry knowledge.Entry
	Score float32
}

// Retriever combines query embedding and vector search over the knowledge
// store. It is safe for concurrent use: the index and store are read-only.
type Retriever struct {
	embedder *Embedder
	index    *index.Index
	store    *knowledge.Store
}

// NewRetriever creates a Retriever over the given index and store. The index
// must have been built from the store's entries in order.
func NewRetriever(embedder *Embedder, ix *index.Index, store *knowledge.Store) *Retriever {
	return &Retriever{embedder: embedder, index: ix, store: store}
}

// Retrieve embeds the query and returns up to topK entries with similarity
// >= minScore, descending by score. An empty result is a valid "no confident
// match" outcome, not an error; errors mean the embedding call itself failed.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, minScore float32) ([]Match, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Query(vec, topK, minScore)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	entries := r.store.Entries()
	matches := make([]Match, len(hits))
	for i, h := range hits {
		matches[i] = Match{Entry: entries[h.Pos], Score: h.Score}
	}
	return matches, nil
}
