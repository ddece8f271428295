package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c := NewEmbeddingClient(srv.URL, "test-key", "text-embedding-3-small")
	vec, err := c.Embed(context.Background(), "dishwasher pump")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dims, want 3", len(vec))
	}
}

func TestEmbed_AuthErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewEmbeddingClient(srv.URL, "bad-key", "text-embedding-3-small")
	_, err := c.Embed(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, ok := KindOf(err); !ok || kind != ErrAuth {
		t.Errorf("kind = %v (%v), want auth", kind, ok)
	}
	if calls != 1 {
		t.Errorf("made %d calls, want 1 (auth must not be retried)", calls)
	}
}

func TestEmbed_RateLimitRetriedOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewEmbeddingClient(srv.URL, "k", "m")
	vec, err := c.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("got %d dims, want 2", len(vec))
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

func TestEmbed_RateLimitGivesUpAfterRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewEmbeddingClient(srv.URL, "k", "m")
	_, err := c.Embed(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, _ := KindOf(err); kind != ErrRateLimit {
		t.Errorf("kind = %v, want rate_limit", kind)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2 (one bounded retry)", calls)
	}
}

func TestEmbed_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewEmbeddingClient(srv.URL, "k", "m")
	_, err := c.Embed(context.Background(), "query")
	if kind, _ := KindOf(err); kind != ErrMalformedResponse {
		t.Errorf("kind = %v, want malformed_response (err: %v)", kind, err)
	}
}

func TestChat_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"You need part 123."}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "test-key")
	text, err := c.Chat(context.Background(), ChatRequest{
		Model:    "deepseek-chat",
		Messages: []Message{{Role: "user", Content: "which part?"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "You need part 123." {
		t.Errorf("got %q", text)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "k")
	_, err := c.Chat(context.Background(), ChatRequest{Model: "m"})
	if kind, _ := KindOf(err); kind != ErrMalformedResponse {
		t.Errorf("kind = %v, want malformed_response", kind)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Error("plain error should not classify")
	}
}
