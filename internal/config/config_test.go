package config

import (
	"strings"
	"testing"
)

// clearEnv blanks every PARTSERVE_* variable the loader reads so tests do
// not inherit ambient configuration.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies default values survive loading with only the API key set.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARTSERVE_PROVIDER_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Provider.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Provider.BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.EmbedModel != "text-embedding-3-small" {
		t.Errorf("Provider.EmbedModel = %q", cfg.Provider.EmbedModel)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("Retrieval.TopK = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.5 {
		t.Errorf("Retrieval.MinScore = %g, want 0.5", cfg.Retrieval.MinScore)
	}
	if cfg.Chat.MaxHistoryTurns != 10 {
		t.Errorf("Chat.MaxHistoryTurns = %d, want 10", cfg.Chat.MaxHistoryTurns)
	}
	if cfg.Chat.MaxContextChars != 6000 {
		t.Errorf("Chat.MaxContextChars = %d, want 6000", cfg.Chat.MaxContextChars)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

// TestEnvOverride verifies environment variables override defaults.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARTSERVE_PROVIDER_API_KEY", "env-key")
	t.Setenv("PARTSERVE_SERVER_PORT", "5000")
	t.Setenv("PARTSERVE_RETRIEVAL_TOP_K", "3")
	t.Setenv("PARTSERVE_RETRIEVAL_MIN_SCORE", "0.65")
	t.Setenv("PARTSERVE_PROVIDER_CHAT_MODEL", "custom-chat")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("Retrieval.TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.65 {
		t.Errorf("Retrieval.MinScore = %g, want 0.65", cfg.Retrieval.MinScore)
	}
	if cfg.Provider.ChatModel != "custom-chat" {
		t.Errorf("Provider.ChatModel = %q", cfg.Provider.ChatModel)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("Provider.APIKey = %q", cfg.Provider.APIKey)
	}
}

// TestMissingRequiredField verifies a clear error when the API key is absent.
func TestMissingRequiredField(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q, want it to mention missing required config", err)
	}
}

// TestMalformedEnvValueFallsBack verifies unparseable numeric env values keep defaults.
func TestMalformedEnvValueFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARTSERVE_PROVIDER_API_KEY", "k")
	t.Setenv("PARTSERVE_SERVER_PORT", "not-a-number")
	t.Setenv("PARTSERVE_RETRIEVAL_MIN_SCORE", "high")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want default 4000", cfg.Server.Port)
	}
	if cfg.Retrieval.MinScore != 0.5 {
		t.Errorf("Retrieval.MinScore = %g, want default 0.5", cfg.Retrieval.MinScore)
	}
}

// TestInvalidThresholdRejected verifies out-of-range similarity thresholds fail loading.
func TestInvalidThresholdRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARTSERVE_PROVIDER_API_KEY", "k")
	t.Setenv("PARTSERVE_RETRIEVAL_MIN_SCORE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for min_score outside [-1, 1]")
	}
}
