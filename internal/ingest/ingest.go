// Package ingest builds the embedding snapshot from catalog files and
// assembles the immutable knowledge store at startup.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/partserve/internal/index"
	"github.com/kalambet/partserve/internal/knowledge"
	"github.com/kalambet/partserve/internal/retrieval"
	"github.com/kalambet/partserve/internal/storage"
)

// catalogFiles maps the expected per-appliance catalog filenames.
var catalogFiles = map[string]knowledge.Appliance{
	"dishwasher_qa_pairs.json":   knowledge.ApplianceDishwasher,
	"refrigerator_qa_pairs.json": knowledge.ApplianceRefrigerator,
}

// Sources scans dir for the known per-appliance catalog files. At least one
// must be present. The order is fixed (dishwasher, then refrigerator) so the
// entry sequence, and therefore the snapshot pairing, is stable across runs.
func Sources(dir string) ([]knowledge.Source, error) {
	ordered := []string{"dishwasher_qa_pairs.json", "refrigerator_qa_pairs.json"}

	var sources []knowledge.Source
	for _, name := range ordered {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("checking catalog file %s: %w", path, err)
		}
		sources = append(sources, knowledge.Source{Appliance: catalogFiles[name], Path: path})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no catalog files found in %s (expected dishwasher_qa_pairs.json or refrigerator_qa_pairs.json)", dir)
	}
	return sources, nil
}

// BuildSnapshot embeds every catalog question and persists the result,
// replacing any previous snapshot. Returns the number of vectors written.
func BuildSnapshot(ctx context.Context, cat *knowledge.Catalog, embedder *retrieval.Embedder, model string, db *storage.Store, log *slog.Logger) (int, error) {
	questions := cat.Questions()
	log.Info("embedding catalog questions", "count", len(questions), "model", model)

	vectors, err := embedder.EmbedBatch(ctx, questions)
	if err != nil {
		return 0, fmt.Errorf("embedding catalog questions: %w", err)
	}

	if err := db.ReplaceSnapshot(model, questions, vectors); err != nil {
		return 0, fmt.Errorf("persisting snapshot: %w", err)
	}

	log.Info("snapshot built", "vectors", len(vectors))
	return len(vectors), nil
}

// LoadStore parses the catalog, loads the persisted snapshot, and builds the
// knowledge store plus its vector index. Any inconsistency between catalog
// and snapshot is fatal; the caller must not serve traffic on error.
func LoadStore(sources []knowledge.Source, db *storage.Store) (*knowledge.Store, *index.Index, error) {
	cat, err := knowledge.ParseCatalog(sources)
	if err != nil {
		return nil, nil, err
	}

	snap, err := db.LoadSnapshot()
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			return nil, nil, fmt.Errorf("no embedding snapshot found; run the ingest command first: %w", err)
		}
		return nil, nil, fmt.Errorf("loading snapshot: %w", err)
	}

	store, err := knowledge.NewStore(cat, snap)
	if err != nil {
		return nil, nil, err
	}

	vectors := make([][]float32, store.EntryCount())
	for i, e := range store.Entries() {
		vectors[i] = e.Embedding
	}
	ix, err := index.Build(vectors)
	if err != nil {
		return nil, nil, fmt.Errorf("building vector index: %w", err)
	}

	return store, ix, nil
}
