// Package index provides exact nearest-neighbor search over a fixed set of
// embedding vectors. Cosine similarity is computed as an inner product over
// L2-normalized vectors; stored vectors are normalized once at build time and
// the query vector once per query. The scan is linear, which is fine for a
// bounded corpus and keeps results trivially deterministic.
package index

import (
	"fmt"
	"math"
	"sort"
)

// Hit is one query result: the position of a vector in build order and its
// cosine similarity to the query.
type Hit struct {
	Pos   int
	Score float32
}

// Index holds L2-normalized copies of the corpus vectors.
type Index struct {
	vectors [][]float32
	dim     int
}

// Build normalizes copies of the given vectors and returns an Index over
// them. All vectors must share one non-zero dimension.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("index: no vectors to build from")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("index: zero-dimension vector at position 0")
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("index: vector %d has dimension %d, want %d", i, len(v), dim)
		}
		normalized[i] = normalize(v)
	}

	return &Index{vectors: normalized, dim: dim}, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Query returns up to k hits with similarity >= minScore, ordered by score
// descending. Equal scores keep build-insertion order, so repeated queries
// over the same index are fully deterministic. A zero query vector has no
// direction and matches nothing.
func (ix *Index) Query(vec []float32, k int, minScore float32) ([]Hit, error) {
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("index: query has dimension %d, want %d", len(vec), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalize(vec)
	if isZero(q) {
		return nil, nil
	}

	var hits []Hit
	for i, v := range ix.vectors {
		score := dot(q, v)
		if score >= minScore {
			hits = append(hits, Hit{Pos: i, Score: score})
		}
	}

	// Stable sort: equal scores preserve insertion order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// normalize returns an L2-normalized copy of v. A zero vector is returned as
// a zero copy rather than producing NaNs.
func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
