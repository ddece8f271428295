package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const embedTimeout = 30 * time.Second

// EmbeddingClient calls an OpenAI-compatible embeddings endpoint.
type EmbeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewEmbeddingClient creates a client for the embeddings API at baseURL
// (e.g. "https://api.openai.com/v1") using the given model.
func NewEmbeddingClient(baseURL, apiKey, model string) *EmbeddingClient {
	return &EmbeddingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: embedTimeout},
	}
}

// Model returns the embedding model name this client requests.
func (c *EmbeddingClient) Model() string { return c.model }

// embedRequest is the JSON body for POST /embeddings.
type embedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// embedResponse is the JSON returned by POST /embeddings.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for the given text. Timeouts and rate
// limits are retried once with backoff; auth failures are not.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetry(ctx, func() error {
		v, err := c.doEmbed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *EmbeddingClient) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: text, Model: c.model})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport("embedding", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus("embedding", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Provider: "embedding", Kind: ErrMalformedResponse, Err: err}
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, &Error{Provider: "embedding", Kind: ErrMalformedResponse, Err: fmt.Errorf("empty embedding data")}
	}

	return result.Data[0].Embedding, nil
}
