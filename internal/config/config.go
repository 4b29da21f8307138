package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port    string
	DataDir string

	// Storage
	DBPath      string // fragment/token/audit sqlite file
	IndexDBPath string // similarity index sqlite file (separate on purpose)

	// Capability tokens
	MaxTokenTTL      time.Duration // ceiling for requested ttl_seconds
	DefaultTokenTTL  time.Duration
	MaxContextTokens int // ceiling for per-response budgets
	TokenSweepEvery  time.Duration
	IndexRepairEvery time.Duration

	// Context assembly
	SearchBreadth       int // k for similarity queries
	ContextSafetyMargin int // tokens held back from the budget
	// MinConfidence is the similarity cut-off (0-100) below which a match is
	// dropped instead of rendered. Exposed rather than hard-coded; the right
	// value depends on the embedding backend.
	MinConfidence int

	// Extraction / embedding backends
	ExtractorBaseURL string // OpenAI-compatible endpoint; empty = heuristic only
	ExtractorAPIKey  string
	ExtractorModel   string
	ExtractorTimeout time.Duration
	EmbedderKind     string // "ollama", "openai", or "hashing"
	OllamaURL        string
	EmbeddingModel   string
	OpenAIBaseURL    string
	OpenAIAPIKey     string

	// Optional collaborators
	RedisURL        string // per-client issuance rate limiting; empty = disabled
	RedactRulesPath string // extra redaction patterns (YAML); empty = built-ins only
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	dataDir := getEnv("DATA_DIR", defaultDataDir())

	return &Config{
		Port:    getEnv("PORT", "8080"),
		DataDir: dataDir,

		DBPath:      getEnv("MYND_DB_PATH", filepath.Join(dataDir, "mynd.db")),
		IndexDBPath: getEnv("INDEX_DB_PATH", filepath.Join(dataDir, "index.db")),

		MaxTokenTTL:      getDurationEnv("MAX_TOKEN_TTL", time.Hour),
		DefaultTokenTTL:  getDurationEnv("DEFAULT_TOKEN_TTL", 5*time.Minute),
		MaxContextTokens: getIntEnv("MAX_CONTEXT_TOKENS", 8000),
		TokenSweepEvery:  getDurationEnv("TOKEN_SWEEP_INTERVAL", time.Minute),
		IndexRepairEvery: getDurationEnv("INDEX_REPAIR_INTERVAL", 10*time.Minute),

		SearchBreadth:       getIntEnv("SEARCH_BREADTH", 20),
		ContextSafetyMargin: getIntEnv("CONTEXT_SAFETY_MARGIN", 200),
		MinConfidence:       getIntEnv("MIN_CONFIDENCE", 0),

		ExtractorBaseURL: getEnv("EXTRACTOR_BASE_URL", ""),
		ExtractorAPIKey:  getEnv("EXTRACTOR_API_KEY", ""),
		ExtractorModel:   getEnv("EXTRACTOR_MODEL", "llama3.1:8b-instruct-q4_0"),
		ExtractorTimeout: getDurationEnv("EXTRACTOR_TIMEOUT", 30*time.Second),
		EmbedderKind:     getEnv("EMBEDDER", "hashing"),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedactRulesPath: getEnv("REDACT_RULES_PATH", ""),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".myndai"
	}
	return filepath.Join(home, ".myndai")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
