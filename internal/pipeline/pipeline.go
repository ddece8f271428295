// Package pipeline orchestrates a chat request end-to-end: bound the
// history, retrieve grounding entries, compose the prompt, call the
// generation provider, and extract a surfaced part.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/kalambet/partserve/internal/composer"
	"github.com/kalambet/partserve/internal/extract"
	"github.com/kalambet/partserve/internal/history"
	"github.com/kalambet/partserve/internal/knowledge"
	"github.com/kalambet/partserve/internal/provider"
	"github.com/kalambet/partserve/internal/retrieval"
)

// degradedResponse is returned to the user when a provider call fails
// after retries. The request still succeeds at the transport level.
const degradedResponse = "I'm sorry, I'm having trouble reaching the parts knowledge service right now. Please try again in a moment, or contact customer service for immediate help."

// Request stages, in mandatory order. Each request walks the sequence
// independently; nothing is shared or persisted across requests.
type stage string

const (
	stageReceived    stage = "received"
	stageEmbedding   stage = "embedding"
	stageRetrieving  stage = "retrieving"
	stageComposing   stage = "composing"
	stageGenerating  stage = "generating"
	stagePostProcess stage = "post_processing"
	stageComplete    stage = "complete"
	stageFailed      stage = "failed"
)

// ChatCaller is the generation provider boundary.
type ChatCaller interface {
	Chat(ctx context.Context, req provider.ChatRequest) (string, error)
}

// Config carries the tunables for a Pipeline.
type Config struct {
	TopK            int
	MinScore        float32
	MaxHistoryTurns int
	ChatModel       string
	Temperature     float64
	MaxTokens       int
}

// Result is the outcome of one chat request.
type Result struct {
	Response string
	Part     *knowledge.PartRecord
}

// Pipeline holds the immutable collaborators for chat handling. It is
// built once at startup and safe for concurrent use.
type Pipeline struct {
	retriever *retrieval.Retriever
	composer  *composer.Composer
	chat      ChatCaller
	store     *knowledge.Store
	cfg       Config
	log       *slog.Logger
}

func New(retriever *retrieval.Retriever, comp *composer.Composer, chat ChatCaller, store *knowledge.Store, cfg Config, log *slog.Logger) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		composer:  comp,
		chat:      chat,
		store:     store,
		cfg:       cfg,
		log:       log,
	}
}

// Chat processes one user query against the knowledge store. Provider
// failures degrade to a canned textual response rather than an error;
// the underlying cause is logged. The returned error is reserved for
// context cancellation, which the caller should not mask.
func (p *Pipeline) Chat(ctx context.Context, query string, rawHistory []history.Turn) (Result, error) {
	turns := history.Bound(rawHistory, p.cfg.MaxHistoryTurns)

	matches, err := p.retriever.Retrieve(ctx, query, p.cfg.TopK, p.cfg.MinScore)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		kind, _ := provider.KindOf(err)
		p.log.Error("retrieval failed, degrading response",
			"stage", string(stageEmbedding), "kind", string(kind), "error", err)
		return Result{Response: degradedResponse}, nil
	}
	if len(matches) == 0 {
		p.log.Debug("no entries above similarity threshold",
			"stage", string(stageRetrieving), "query_len", len(query))
	}

	req := p.composer.Compose(query, matches, turns)
	req.Model = p.cfg.ChatModel
	req.Temperature = p.cfg.Temperature
	req.MaxTokens = p.cfg.MaxTokens

	text, err := p.chat.Chat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		kind, _ := provider.KindOf(err)
		p.log.Error("generation failed, degrading response",
			"stage", string(stageGenerating), "kind", string(kind), "error", err)
		return Result{Response: degradedResponse}, nil
	}

	part := extract.Part(text, matches, p.store)

	p.log.Debug("chat request complete", "stage", string(stageComplete),
		"matches", len(matches), "part_found", part != nil)

	return Result{Response: text, Part: part}, nil
}

// Search runs retrieval only, without generation. Unlike Chat, provider
// failures surface as errors for the caller to map.
func (p *Pipeline) Search(ctx context.Context, query string) ([]retrieval.Match, error) {
	return p.retriever.Retrieve(ctx, query, p.cfg.TopK, p.cfg.MinScore)
}

// Part looks up a catalog record by id.
func (p *Pipeline) Part(partID string) (knowledge.PartRecord, bool) {
	return p.store.Part(partID)
}
