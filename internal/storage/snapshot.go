package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kalambet/partserve/internal/knowledge"
)

// ErrNoSnapshot is returned by LoadSnapshot when no snapshot has been built yet.
var ErrNoSnapshot = errors.New("no embedding snapshot in store")

// ReplaceSnapshot atomically replaces the persisted embedding snapshot with
// the given question/vector pairing. Positions follow slice order.
func (s *Store) ReplaceSnapshot(model string, questions []string, vectors [][]float32) error {
	if len(questions) != len(vectors) {
		return fmt.Errorf("replace snapshot: %d questions but %d vectors", len(questions), len(vectors))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM snapshot_vectors"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM snapshot_meta"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing snapshot meta: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO snapshot_vectors (position, question, embedding) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, q := range questions {
		if _, err := stmt.Exec(i, q, encodeFloat32s(vectors[i])); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting snapshot vector %d: %w", i, err)
		}
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec("INSERT INTO snapshot_meta (id, model, created_at) VALUES (1, ?, ?)", model, createdAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("recording snapshot meta: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted snapshot in position order. Returns
// ErrNoSnapshot when none has been built.
func (s *Store) LoadSnapshot() (*knowledge.Snapshot, error) {
	var model string
	var createdAt string
	err := s.db.QueryRow("SELECT model, created_at FROM snapshot_meta WHERE id = 1").Scan(&model, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot meta: %w", err)
	}

	rows, err := s.db.Query("SELECT question, embedding FROM snapshot_vectors ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("querying snapshot vectors: %w", err)
	}
	defer rows.Close()

	snap := &knowledge.Snapshot{Model: model}
	for rows.Next() {
		var question string
		var blob []byte
		if err := rows.Scan(&question, &blob); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		vec, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %q: %w", question, err)
		}
		snap.Questions = append(snap.Questions, question)
		snap.Vectors = append(snap.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	if len(snap.Questions) == 0 {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// SnapshotCount returns the number of persisted snapshot vectors.
func (s *Store) SnapshotCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM snapshot_vectors").Scan(&count)
	return count, err
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
