package knowledge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Catalog is the parsed, validated knowledge base before embeddings are
// attached: part records plus their QA entries in source-file order.
type Catalog struct {
	parts   map[string]PartRecord
	entries []Entry
}

// Part returns the part record for id, if present.
func (c *Catalog) Part(id string) (PartRecord, bool) {
	p, ok := c.parts[id]
	return p, ok
}

// Entries returns all QA entries in source-file order.
func (c *Catalog) Entries() []Entry { return c.entries }

// Questions returns the question text of every entry, in entry order. This is
// the exact sequence the embedding snapshot is keyed against.
func (c *Catalog) Questions() []string {
	qs := make([]string, len(c.entries))
	for i, e := range c.entries {
		qs[i] = e.Question
	}
	return qs
}

// PartCount returns the number of distinct parts.
func (c *Catalog) PartCount() int { return len(c.parts) }

// rawPart mirrors the per-part JSON value in a catalog file.
type rawPart struct {
	PartInfo map[string]any `json:"part_info"`
	QAPairs  []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"qa_pairs"`
}

// ParseCatalog reads and validates the per-appliance catalog files. Every
// record is checked against the schema at load time; the first violation
// fails the whole parse. Part order and QA order within each file are
// preserved, which the snapshot pairing depends on.
func ParseCatalog(sources []Source) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, loadErrorf("", "no catalog sources configured")
	}

	cat := &Catalog{parts: make(map[string]PartRecord)}
	for _, src := range sources {
		if !src.Appliance.Valid() {
			return nil, loadErrorf(src.Path, "unknown appliance type %q", src.Appliance)
		}
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, loadErrorf(src.Path, "opening catalog: %v", err)
		}
		err = cat.parseSource(f, src)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	if len(cat.entries) == 0 {
		return nil, loadErrorf("", "catalog contains no QA entries")
	}
	return cat, nil
}

// parseSource decodes one catalog file token-by-token so the top-level object
// keys (part IDs) keep their file order. A plain map decode would lose it.
func (c *Catalog) parseSource(r io.Reader, src Source) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return loadErrorf(src.Path, "reading catalog: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return loadErrorf(src.Path, "catalog must be a JSON object keyed by part ID")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return loadErrorf(src.Path, "reading part ID: %v", err)
		}
		partID, ok := keyTok.(string)
		if !ok || partID == "" {
			return loadErrorf(src.Path, "invalid part ID key %v", keyTok)
		}
		if _, exists := c.parts[partID]; exists {
			return loadErrorf(src.Path, "duplicate part %q", partID)
		}

		var raw rawPart
		if err := dec.Decode(&raw); err != nil {
			return loadErrorf(src.Path, "part %q: malformed record: %v", partID, err)
		}

		record, err := buildPartRecord(partID, src, raw)
		if err != nil {
			return err
		}
		c.parts[partID] = record

		if len(raw.QAPairs) == 0 {
			return loadErrorf(src.Path, "part %q: no qa_pairs", partID)
		}
		for i, qa := range raw.QAPairs {
			if qa.Question == "" || qa.Answer == "" {
				return loadErrorf(src.Path, "part %q: qa_pairs[%d]: question and answer are required", partID, i)
			}
			c.entries = append(c.entries, Entry{
				PartID:    partID,
				Appliance: src.Appliance,
				Question:  qa.Question,
				Answer:    qa.Answer,
			})
		}
	}

	if _, err := dec.Token(); err != nil {
		return loadErrorf(src.Path, "reading catalog end: %v", err)
	}
	return nil
}

// buildPartRecord validates part_info and lifts known fields out of it;
// remaining scalar fields become string attributes.
func buildPartRecord(partID string, src Source, raw rawPart) (PartRecord, error) {
	if raw.PartInfo == nil {
		return PartRecord{}, loadErrorf(src.Path, "part %q: missing part_info", partID)
	}

	name, _ := raw.PartInfo["name"].(string)
	if name == "" {
		return PartRecord{}, loadErrorf(src.Path, "part %q: part_info.name is required", partID)
	}

	price, ok := raw.PartInfo["price"].(float64)
	if !ok || price < 0 {
		return PartRecord{}, loadErrorf(src.Path, "part %q: part_info.price must be a non-negative number", partID)
	}

	url, _ := raw.PartInfo["product_url"].(string)

	attrs := make(map[string]string)
	for k, v := range raw.PartInfo {
		switch k {
		case "name", "price", "product_url":
			continue
		}
		switch val := v.(type) {
		case string:
			attrs[k] = val
		case float64:
			attrs[k] = fmt.Sprintf("%v", val)
		case bool:
			attrs[k] = fmt.Sprintf("%v", val)
		}
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	return PartRecord{
		PartID:     partID,
		Name:       name,
		Price:      price,
		ProductURL: url,
		Appliance:  src.Appliance,
		Attributes: attrs,
	}, nil
}
