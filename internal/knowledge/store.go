package knowledge

// Snapshot pairs the catalog's ordered question sequence with precomputed
// embedding vectors: Vectors[i] is the embedding of Questions[i] under Model.
type Snapshot struct {
	Model     string
	Questions []string
	Vectors   [][]float32
}

// Validate checks the snapshot's internal invariants: parallel lengths and a
// uniform, non-zero vector dimension.
func (s *Snapshot) Validate() error {
	if len(s.Questions) != len(s.Vectors) {
		return loadErrorf("snapshot", "%d questions but %d vectors", len(s.Questions), len(s.Vectors))
	}
	if len(s.Vectors) == 0 {
		return loadErrorf("snapshot", "snapshot is empty")
	}
	dim := len(s.Vectors[0])
	if dim == 0 {
		return loadErrorf("snapshot", "zero-dimension vector at position 0")
	}
	for i, v := range s.Vectors {
		if len(v) != dim {
			return loadErrorf("snapshot", "vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}

// Store is the immutable in-memory knowledge base: part records plus QA
// entries with their embeddings attached. Built once at startup and shared
// read-only across requests.
type Store struct {
	parts   map[string]PartRecord
	entries []Entry
	dim     int
	model   string
}

// NewStore combines a parsed catalog with its embedding snapshot. The
// snapshot must cover exactly the catalog's questions, in order; any
// divergence means it was built from different data (or a different model)
// and the store refuses to load.
func NewStore(cat *Catalog, snap *Snapshot) (*Store, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if len(snap.Questions) != len(cat.entries) {
		return nil, loadErrorf("snapshot", "snapshot has %d questions but catalog has %d entries; rebuild the snapshot", len(snap.Questions), len(cat.entries))
	}
	for i, q := range snap.Questions {
		if q != cat.entries[i].Question {
			return nil, loadErrorf("snapshot", "question %d does not match the catalog; rebuild the snapshot", i)
		}
	}

	entries := make([]Entry, len(cat.entries))
	copy(entries, cat.entries)
	for i := range entries {
		entries[i].Embedding = snap.Vectors[i]
	}

	parts := make(map[string]PartRecord, len(cat.parts))
	for id, p := range cat.parts {
		parts[id] = p
	}

	return &Store{
		parts:   parts,
		entries: entries,
		dim:     len(snap.Vectors[0]),
		model:   snap.Model,
	}, nil
}

// Part returns the part record for id, if present.
func (s *Store) Part(id string) (PartRecord, bool) {
	p, ok := s.parts[id]
	return p, ok
}

// Entries returns all QA entries in load order. Callers must not mutate.
func (s *Store) Entries() []Entry { return s.entries }

// Dimension returns the embedding dimension.
func (s *Store) Dimension() int { return s.dim }

// Model returns the embedding model the snapshot was built with.
func (s *Store) Model() string { return s.model }

// PartCount returns the number of distinct parts.
func (s *Store) PartCount() int { return len(s.parts) }

// EntryCount returns the number of QA entries.
func (s *Store) EntryCount() int { return len(s.entries) }
