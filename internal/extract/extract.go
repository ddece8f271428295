// Package extract surfaces part records mentioned in generated answers.
//
// Extraction is containment-based: only part ids present in the retrieved
// entries for the same request are considered, so a surfaced product is
// always traceable to retrieved evidence. Ids the generator invents on its
// own are ignored.
package extract

import (
	"strings"
	"unicode"

	"github.com/kalambet/partserve/internal/knowledge"
	"github.com/kalambet/partserve/internal/retrieval"
)

// PartLookup resolves a part id to its catalog record.
type PartLookup interface {
	Part(partID string) (knowledge.PartRecord, bool)
}

// Part scans the generated text for a part id that appears among the
// retrieved matches and resolves it through the lookup. When several
// retrieved ids are mentioned, the one from the highest-scoring match wins.
// Returns nil when no retrieved id is mentioned; that is not an error.
func Part(text string, matches []retrieval.Match, lookup PartLookup) *knowledge.PartRecord {
	if text == "" || len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		// Matches arrive in descending-score order, so the first hit
		// is the best one.
		if seen[m.Entry.PartID] {
			continue
		}
		seen[m.Entry.PartID] = true

		if !mentions(text, m.Entry.PartID) {
			continue
		}
		record, ok := lookup.Part(m.Entry.PartID)
		if !ok {
			continue
		}
		return &record
	}
	return nil
}

// mentions reports whether id occurs in text as a standalone token, so
// that part "123" does not match inside "PS1234567".
func mentions(text, id string) bool {
	if id == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(text[start:], id)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || isBoundary(rune(text[i-1]))
		afterIdx := i + len(id)
		after := afterIdx >= len(text) || isBoundary(rune(text[afterIdx]))
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
