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

const chatTimeout = 60 * time.Second

// Message is a single chat message in the completions API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat completion request body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatClient calls an OpenAI-compatible chat completions endpoint
// (DeepSeek in the default configuration).
type ChatClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewChatClient creates a client for the chat completions API at baseURL
// (e.g. "https://api.deepseek.com/v1").
func NewChatClient(baseURL, apiKey string) *ChatClient {
	return &ChatClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: chatTimeout},
	}
}

// chatResponse is the JSON returned by POST /chat/completions.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends a completion request and returns the assistant's response text.
// Timeouts and rate limits are retried once with backoff; auth failures are not.
func (c *ChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var text string
	err := withRetry(ctx, func() error {
		t, err := c.doChat(ctx, req)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *ChatClient) doChat(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport("generation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", classifyStatus("generation", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Error{Provider: "generation", Kind: ErrMalformedResponse, Err: err}
	}
	if len(result.Choices) == 0 {
		return "", &Error{Provider: "generation", Kind: ErrMalformedResponse, Err: fmt.Errorf("empty choices array")}
	}

	return result.Choices[0].Message.Content, nil
}
