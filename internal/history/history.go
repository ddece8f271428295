// Package history bounds and sanitizes prior conversation turns before they
// are included in a generation request.
package history

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultMaxTurns = 10

// Turn is one prior message in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// valid reports whether the turn carries both required fields with a known role.
func (t Turn) valid() bool {
	if t.Content == "" {
		return false
	}
	return t.Role == RoleUser || t.Role == RoleAssistant
}

// Bound drops malformed turns (missing role or content, or an unknown role)
// and keeps only the most recent maxTurns, oldest first. Older turns are
// dropped, not summarized. maxTurns <= 0 selects the default of 10.
func Bound(turns []Turn, maxTurns int) []Turn {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	kept := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.valid() {
			kept = append(kept, t)
		}
	}

	if len(kept) > maxTurns {
		kept = kept[len(kept)-maxTurns:]
	}
	return kept
}
