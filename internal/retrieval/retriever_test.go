package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kalambet/partserve/internal/index"
	"github.com/kalambet/partserve/internal/knowledge"
)

// mockEmbedClient implements EmbeddingClient for testing.
type mockEmbedClient struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

const testCatalog = `{
  "123": {
    "part_info": {"name": "Drain Pump", "price": 49.99},
    "qa_pairs": [
      {"question": "dishwasher pump replacement", "answer": "Replace the drain pump."},
      {"question": "dishwasher not draining", "answer": "Check the drain pump."}
    ]
  },
  "456": {
    "part_info": {"name": "Spray Arm", "price": 24.50},
    "qa_pairs": [
      {"question": "top rack not clean", "answer": "Check the spray arm."}
    ]
  }
}`

// Entry embeddings: pump questions cluster near (1,0), spray arm near (0,1).
var testVectors = [][]float32{
	{1, 0},
	{0.9, 0.1},
	{0, 1},
}

func newTestRetriever(t *testing.T, embedFn func(ctx context.Context, text string) ([]float32, error)) (*Retriever, *knowledge.Store) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dishwasher_qa_pairs.json")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := knowledge.ParseCatalog([]knowledge.Source{{Appliance: knowledge.ApplianceDishwasher, Path: path}})
	if err != nil {
		t.Fatal(err)
	}

	store, err := knowledge.NewStore(cat, &knowledge.Snapshot{
		Model:     "test-model",
		Questions: cat.Questions(),
		Vectors:   testVectors,
	})
	if err != nil {
		t.Fatal(err)
	}

	vectors := make([][]float32, store.EntryCount())
	for i, e := range store.Entries() {
		vectors[i] = e.Embedding
	}
	ix, err := index.Build(vectors)
	if err != nil {
		t.Fatal(err)
	}

	return NewRetriever(NewEmbedder(&mockEmbedClient{embedFn: embedFn}), ix, store), store
}

func TestRetrieve_RankedAboveThreshold(t *testing.T) {
	r, _ := newTestRetriever(t, func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0}, nil
	})

	matches, err := r.Retrieve(context.Background(), "dishwasher pump replacement", 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Entry.Question != "dishwasher pump replacement" {
		t.Errorf("top match = %q", matches[0].Entry.Question)
	}
	for i, m := range matches {
		if m.Score < 0.5 {
			t.Errorf("match %d below threshold: %f", i, m.Score)
		}
		if i > 0 && matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not non-increasing")
		}
		if m.Entry.PartID != "123" {
			t.Errorf("match %d part = %q, want 123", i, m.Entry.PartID)
		}
	}
}

func TestRetrieve_Deterministic(t *testing.T) {
	r, _ := newTestRetriever(t, func(_ context.Context, _ string) ([]float32, error) {
		return []float32{0.7, 0.7}, nil
	})

	first, err := r.Retrieve(context.Background(), "q", 3, -1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), "q", 3, -1)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("retrieve not deterministic on run %d", i)
		}
	}
}

func TestRetrieve_KBound(t *testing.T) {
	r, store := newTestRetriever(t, func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 1}, nil
	})

	matches, err := r.Retrieve(context.Background(), "q", 2, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) > 2 {
		t.Errorf("got %d matches, want <= 2", len(matches))
	}

	matches, err = r.Retrieve(context.Background(), "q", 100, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) > store.EntryCount() {
		t.Errorf("got %d matches, more than corpus size %d", len(matches), store.EntryCount())
	}
}

func TestRetrieve_NoConfidentMatchIsEmptyNotError(t *testing.T) {
	// Max similarity ~0.2 against a 0.5 threshold.
	r, _ := newTestRetriever(t, func(_ context.Context, _ string) ([]float32, error) {
		return []float32{0.2, -0.98}, nil
	})

	matches, err := r.Retrieve(context.Background(), "how do I file my taxes", 5, 0.5)
	if err != nil {
		t.Fatalf("empty retrieval must not be an error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0", len(matches))
	}
}

func TestRetrieve_EmbedFailurePropagates(t *testing.T) {
	embedErr := errors.New("provider down")
	r, _ := newTestRetriever(t, func(_ context.Context, _ string) ([]float32, error) {
		return nil, embedErr
	})

	_, err := r.Retrieve(context.Background(), "q", 5, 0.5)
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	e := NewEmbedder(&mockEmbedClient{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		},
	})

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d = %v, want [%f]", i, vecs[i], want)
		}
	}
}

func TestEmbedBatch_ErrorAborts(t *testing.T) {
	e := NewEmbedder(&mockEmbedClient{
		embedFn: func(_ context.Context, text string) ([]float32, error) {
			if text == "bad" {
				return nil, errors.New("boom")
			}
			return []float32{1}, nil
		},
	})

	if _, err := e.EmbedBatch(context.Background(), []string{"ok", "bad", "ok"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := NewEmbedder(&mockEmbedClient{embedFn: func(_ context.Context, _ string) ([]float32, error) {
		t.Fatal("should not be called")
		return nil, nil
	}})
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", vecs, err)
	}
}
