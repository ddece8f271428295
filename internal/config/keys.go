package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PARTSERVE_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		key: "provider.base_url", typ: kString, env: "PARTSERVE_PROVIDER_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.Provider.BaseURL = v.(string) },
	},
	{
		key: "provider.api_key", typ: kString, env: "PARTSERVE_PROVIDER_API_KEY",
		apply: func(cfg *Config, v any) { cfg.Provider.APIKey = v.(string) },
	},
	{
		key: "provider.embed_model", typ: kString, env: "PARTSERVE_PROVIDER_EMBED_MODEL",
		apply: func(cfg *Config, v any) { cfg.Provider.EmbedModel = v.(string) },
	},
	{
		key: "provider.chat_model", typ: kString, env: "PARTSERVE_PROVIDER_CHAT_MODEL",
		apply: func(cfg *Config, v any) { cfg.Provider.ChatModel = v.(string) },
	},
	{
		key: "knowledge.dir", typ: kString, env: "PARTSERVE_KNOWLEDGE_DIR",
		apply: func(cfg *Config, v any) { cfg.Knowledge.Dir = v.(string) },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PARTSERVE_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "PARTSERVE_RETRIEVAL_TOP_K",
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		key: "retrieval.min_score", typ: kFloat, env: "PARTSERVE_RETRIEVAL_MIN_SCORE",
		apply: func(cfg *Config, v any) { cfg.Retrieval.MinScore = v.(float64) },
	},
	{
		key: "chat.temperature", typ: kFloat, env: "PARTSERVE_CHAT_TEMPERATURE",
		apply: func(cfg *Config, v any) { cfg.Chat.Temperature = v.(float64) },
	},
	{
		key: "chat.max_tokens", typ: kInt, env: "PARTSERVE_CHAT_MAX_TOKENS",
		apply: func(cfg *Config, v any) { cfg.Chat.MaxTokens = v.(int) },
	},
	{
		key: "chat.max_history_turns", typ: kInt, env: "PARTSERVE_CHAT_MAX_HISTORY_TURNS",
		apply: func(cfg *Config, v any) { cfg.Chat.MaxHistoryTurns = v.(int) },
	},
	{
		key: "chat.max_context_chars", typ: kInt, env: "PARTSERVE_CHAT_MAX_CONTEXT_CHARS",
		apply: func(cfg *Config, v any) { cfg.Chat.MaxContextChars = v.(int) },
	},
	{
		key: "log.level", typ: kString, env: "PARTSERVE_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
