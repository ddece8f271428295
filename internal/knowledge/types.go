package knowledge

import "fmt"

// Appliance identifies which appliance category a part belongs to.
type Appliance string

const (
	ApplianceDishwasher   Appliance = "dishwasher"
	ApplianceRefrigerator Appliance = "refrigerator"
)

// Valid reports whether a is a known appliance type.
func (a Appliance) Valid() bool {
	return a == ApplianceDishwasher || a == ApplianceRefrigerator
}

// PartRecord is the structured product data for one physical part.
// Immutable after load; keyed by PartID.
type PartRecord struct {
	PartID     string            `json:"part_id"`
	Name       string            `json:"name"`
	Price      float64           `json:"price"`
	ProductURL string            `json:"product_url"`
	Appliance  Appliance         `json:"appliance_type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Entry is one question/answer pair associated with a part. The embedding is
// attached from the snapshot when the Store is built; entries coming straight
// from a catalog parse have a nil Embedding.
type Entry struct {
	PartID    string
	Appliance Appliance
	Question  string
	Answer    string
	Embedding []float32
}

// Source names one catalog file and the appliance type its parts belong to.
type Source struct {
	Appliance Appliance
	Path      string
}

// LoadError is a fatal startup-time failure: the knowledge base or embedding
// snapshot is inconsistent and the service must not serve against it.
type LoadError struct {
	Source string
	Reason string
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("knowledge load: %s", e.Reason)
	}
	return fmt.Sprintf("knowledge load: %s: %s", e.Source, e.Reason)
}

func loadErrorf(source, format string, args ...any) *LoadError {
	return &LoadError{Source: source, Reason: fmt.Sprintf(format, args...)}
}
