package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	Knowledge KnowledgeConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
}

type KnowledgeConfig struct {
	// Dir holds the per-appliance catalog files
	// (dishwasher_qa_pairs.json, refrigerator_qa_pairs.json).
	Dir string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK     int
	MinScore float64
}

type ChatConfig struct {
	Temperature     float64
	MaxTokens       int
	MaxHistoryTurns int
	MaxContextChars int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "gpt-4o-mini",
		},
		Knowledge: KnowledgeConfig{
			Dir: "knowledge",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK:     5,
			MinScore: 0.5,
		},
		Chat: ChatConfig{
			Temperature:     0.3,
			MaxTokens:       800,
			MaxHistoryTurns: 10,
			MaxContextChars: 6000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults overridden by PARTSERVE_*
// environment variables. The provider API key is required.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Provider.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: provider API key. Set it via environment variable PARTSERVE_PROVIDER_API_KEY")
	}
	if cfg.Retrieval.TopK <= 0 {
		return Config{}, fmt.Errorf("invalid config: retrieval.top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore < -1 || cfg.Retrieval.MinScore > 1 {
		return Config{}, fmt.Errorf("invalid config: retrieval.min_score must be within [-1, 1], got %g", cfg.Retrieval.MinScore)
	}

	return cfg, nil
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "partserve")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".partserve"
	}
	return filepath.Join(home, ".local", "share", "partserve")
}
