package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/partserve/internal/history"
	"github.com/kalambet/partserve/internal/provider"
	"github.com/kalambet/partserve/internal/retrieval"
)

const defaultMaxContextChars = 6000

// systemInstruction restricts the assistant to the appliance-parts domain.
// It is always the first message and is never dropped by budget trimming.
const systemInstruction = `You are a helpful assistant for an e-commerce store specializing in appliance parts. Your role is to help customers find information about refrigerator and dishwasher parts, assist with installation and compatibility questions, and troubleshoot issues. ONLY answer questions related to refrigerator and dishwasher parts; for anything else, politely redirect the conversation back to these topics.

When providing information about parts, be specific about part numbers, compatibility, and installation procedures. Only suggest a specific part when the customer is looking for one to purchase or their symptoms point to a replacement; do not suggest parts when they are asking how to install or troubleshoot a part they already have.

If you don't know the answer, say so and suggest the customer contact customer service for more detailed assistance.`

// noKnowledgeMarker is included verbatim when retrieval found nothing above
// the similarity threshold, so the model can signal uncertainty instead of
// answering from thin air.
const noKnowledgeMarker = "[No matching knowledge-base entries were found for this question.]"

// Composer assembles generation requests from the query, retrieved knowledge
// entries, and bounded conversation history.
type Composer struct {
	MaxContextChars int
}

// New creates a Composer with the given character budget for the rendered
// final user message. If maxContextChars <= 0, the default (6000) is used.
func New(maxContextChars int) *Composer {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &Composer{MaxContextChars: maxContextChars}
}

// Compose builds the chat messages for a generation request: the system
// instruction, the bounded history, and a final user message carrying the
// retrieved entries as labeled Q/A blocks followed by the query. When the
// rendered entries exceed the character budget, whole entries are dropped
// from the lowest-scoring end until the message fits; the system instruction
// and the query itself are never dropped. Model parameters are left for the
// caller to fill in.
func (c *Composer) Compose(query string, matches []retrieval.Match, turns []history.Turn) provider.ChatRequest {
	messages := make([]provider.Message, 0, len(turns)+2)
	messages = append(messages, provider.Message{Role: "system", Content: systemInstruction})
	for _, t := range turns {
		messages = append(messages, provider.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, provider.Message{Role: "user", Content: c.renderUserMessage(query, matches)})

	return provider.ChatRequest{Messages: messages}
}

// renderUserMessage renders the grounding context and query within budget.
func (c *Composer) renderUserMessage(query string, matches []retrieval.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf("%s\n\nMy question is: %s", noKnowledgeMarker, query)
	}

	// Defensive copy sorted by score descending; retrieval already returns
	// this order, but trimming correctness depends on it.
	sorted := make([]retrieval.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	for n := len(sorted); n > 0; n-- {
		msg := renderWithEntries(query, sorted[:n])
		if len(msg) <= c.MaxContextChars {
			return msg
		}
	}

	// Even a single entry blows the budget: send the bare query.
	return fmt.Sprintf("My question is: %s", query)
}

func renderWithEntries(query string, matches []retrieval.Match) string {
	var sb strings.Builder
	sb.WriteString("Based on the following knowledge-base entries, please answer my question. Only use an entry if it is directly relevant.\n")
	for i, m := range matches {
		fmt.Fprintf(&sb, "\n[Entry %d, part %s, %s]\nQ: %s\nA: %s\n",
			i+1, m.Entry.PartID, m.Entry.Appliance, m.Entry.Question, m.Entry.Answer)
	}
	fmt.Fprintf(&sb, "\nMy question is: %s", query)
	return sb.String()
}
