package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once in main from the environment and passed by reference
// to every component. Nothing reads ambient globals after startup.
type Config struct {
	Port        string
	Environment string

	// LLM gateway (OpenAI-compatible chat completions + embeddings)
	LLMGatewayURL     string
	LLMEmbeddingsURL  string
	LLMAPIKey         string
	LLMModel          string
	LLMEmbeddingModel string
	UseMockLLM        bool

	// Search collaborator
	SearchEndpoint  string
	SearchAPIKey    string
	SearchIndexName string

	// Blob collaborator (raw transcript archive)
	BlobEndpoint string
	BlobAPIKey   string

	// Optional infrastructure
	KafkaBrokers []string
	KafkaTopic   string
	RedisAddr    string
	CacheTTL     time.Duration
	WatchDir     string

	// Auth (thin): function key and optional HS256 bearer secret
	FunctionKey string
	JWTSecret   string

	// Enrichment fan-out
	EnrichWorkers     int
	EnrichCallTimeout time.Duration
}

// Load reads the environment into a Config. Callers load .env beforehand.
func Load() *Config {
	return &Config{
		Port:        envOr("PORT", "8080"),
		Environment: envOr("ENVIRONMENT", "local"),

		LLMGatewayURL:     os.Getenv("LLM_GATEWAY_URL"),
		LLMEmbeddingsURL:  os.Getenv("LLM_EMBEDDINGS_URL"),
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMModel:          envOr("LLM_MODEL", "gpt-4"),
		LLMEmbeddingModel: envOr("LLM_EMBEDDING_MODEL", "text-embedding-ada-002"),
		UseMockLLM:        os.Getenv("USE_MOCK_LLM") == "true",

		SearchEndpoint:  os.Getenv("SEARCH_ENDPOINT"),
		SearchAPIKey:    os.Getenv("SEARCH_API_KEY"),
		SearchIndexName: envOr("SEARCH_INDEX_NAME", "utterances"),

		BlobEndpoint: os.Getenv("BLOB_ENDPOINT"),
		BlobAPIKey:   os.Getenv("BLOB_API_KEY"),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOr("KAFKA_TOPIC", "meeting.ingested"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		CacheTTL:     envDuration("CACHE_TTL", 60*time.Second),
		WatchDir:     os.Getenv("WATCH_DIR"),

		FunctionKey: os.Getenv("FUNCTION_KEY"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		EnrichWorkers:     envInt("ENRICH_WORKERS", 4),
		EnrichCallTimeout: envDuration("ENRICH_CALL_TIMEOUT", 12*time.Second),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
