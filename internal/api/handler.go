package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/partserve/internal/history"
	"github.com/kalambet/partserve/internal/knowledge"
	"github.com/kalambet/partserve/internal/pipeline"
	"github.com/kalambet/partserve/internal/retrieval"
)

const maxChatBodySize = 1 << 20 // 1MB

// ChatService abstracts the request pipeline for the HTTP layer.
type ChatService interface {
	Chat(ctx context.Context, query string, rawHistory []history.Turn) (pipeline.Result, error)
	Search(ctx context.Context, query string) ([]retrieval.Match, error)
	Part(partID string) (knowledge.PartRecord, bool)
}

type AppDeps struct {
	Service ChatService
	Log     *slog.Logger
}

type ChatRequest struct {
	Query       string         `json:"query"`
	ChatHistory []history.Turn `json:"chat_history"`
}

type ChatResponse struct {
	Response string    `json:"response"`
	PartInfo *PartView `json:"part_info"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResult struct {
	PartID    string              `json:"part_id"`
	Appliance knowledge.Appliance `json:"appliance_type"`
	Question  string              `json:"question"`
	Answer    string              `json:"answer"`
	Score     float32             `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// PartView is the wire shape for a part record.
type PartView struct {
	PartID    string              `json:"part_id"`
	PartInfo  PartInfo            `json:"part_info"`
	Appliance knowledge.Appliance `json:"appliance_type"`
}

type PartInfo struct {
	Name       string            `json:"name"`
	Price      float64           `json:"price"`
	ProductURL string            `json:"product_url,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func partView(rec knowledge.PartRecord) *PartView {
	return &PartView{
		PartID: rec.PartID,
		PartInfo: PartInfo{
			Name:       rec.Name,
			Price:      rec.Price,
			ProductURL: rec.ProductURL,
			Attributes: rec.Attributes,
		},
		Appliance: rec.Appliance,
	}
}

// NewAppHandler builds the HTTP API router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Post("/api/chat", handleChat(deps))
	r.Post("/api/search", handleSearch(deps))
	r.Get("/api/part/{id}", handlePart(deps))
	r.Get("/health", handleHealth())

	return r
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		reqID := uuid.New().String()
		log := deps.Log.With("request_id", reqID)
		log.Debug("chat request received", "history_turns", len(req.ChatHistory))

		res, err := deps.Service.Chat(r.Context(), req.Query, req.ChatHistory)
		if err != nil {
			// Only context cancellation reaches here; provider failures
			// degrade inside the pipeline.
			log.Warn("chat request aborted", "error", err)
			httpError(w, http.StatusServiceUnavailable, "api_error", "request aborted")
			return
		}

		resp := ChatResponse{Response: res.Response}
		if res.Part != nil {
			resp.PartInfo = partView(*res.Part)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		matches, err := deps.Service.Search(r.Context(), req.Query)
		if err != nil {
			deps.Log.Error("search failed", "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "search is temporarily unavailable")
			return
		}

		results := make([]SearchResult, len(matches))
		for i, m := range matches {
			results[i] = SearchResult{
				PartID:    m.Entry.PartID,
				Appliance: m.Entry.Appliance,
				Question:  m.Entry.Question,
				Answer:    m.Entry.Answer,
				Score:     m.Score,
			}
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
	}
}

func handlePart(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, ok := deps.Service.Part(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "part %q not found", id)
			return
		}
		writeJSON(w, http.StatusOK, partView(rec))
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
