package profile

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Version is the current version of server
	Version string

	// Driver is the memory store driver ("elastic" or "postgres")
	Driver string
	// DSN points to the postgres database when Driver is "postgres"
	DSN string
	// ElasticURL is the Elasticsearch endpoint when Driver is "elastic"
	ElasticURL string
	// ElasticAPIKey is the optional Elasticsearch API key
	ElasticAPIKey string
	// ElasticIndex is the index holding memory chunks
	ElasticIndex string

	// EmbedDims is the fixed dimensionality of stored embeddings.
	// It is part of the store schema and must match the embedding model.
	EmbedDims int
	// TokenBudget bounds the size of the assembled memory context.
	TokenBudget int

	// AI provider configuration
	AIBaseURL        string // MEMORA_AI_BASE_URL (default: https://api.openai.com/v1)
	AIAPIKey         string // MEMORA_AI_API_KEY
	AIEmbeddingModel string // MEMORA_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AIChatModel      string // MEMORA_AI_CHAT_MODEL (default: gpt-4o-mini)
	// SystemPreamble is prepended to every generation prompt.
	SystemPreamble string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvOrDefault returns the environment variable parsed as int, or the default.
func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from MEMORA_* environment variables.
func (p *Profile) FromEnv() {
	p.Driver = getEnvOrDefault("MEMORA_DRIVER", p.Driver)
	p.DSN = getEnvOrDefault("MEMORA_DSN", p.DSN)
	p.ElasticURL = getEnvOrDefault("MEMORA_ELASTIC_URL", p.ElasticURL)
	p.ElasticAPIKey = getEnvOrDefault("MEMORA_ELASTIC_API_KEY", p.ElasticAPIKey)
	p.ElasticIndex = getEnvOrDefault("MEMORA_ELASTIC_INDEX", p.ElasticIndex)

	p.EmbedDims = getIntEnvOrDefault("MEMORA_EMBED_DIMS", p.EmbedDims)
	p.TokenBudget = getIntEnvOrDefault("MEMORA_TOKEN_BUDGET", p.TokenBudget)

	p.AIBaseURL = getEnvOrDefault("MEMORA_AI_BASE_URL", p.AIBaseURL)
	p.AIAPIKey = getEnvOrDefault("MEMORA_AI_API_KEY", p.AIAPIKey)
	p.AIEmbeddingModel = getEnvOrDefault("MEMORA_AI_EMBEDDING_MODEL", p.AIEmbeddingModel)
	p.AIChatModel = getEnvOrDefault("MEMORA_AI_CHAT_MODEL", p.AIChatModel)
	p.SystemPreamble = getEnvOrDefault("MEMORA_SYSTEM_PREAMBLE", p.SystemPreamble)
}

// Validate checks the profile and fills in defaults.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "elastic"
	}
	switch p.Driver {
	case "elastic":
		if p.ElasticURL == "" {
			p.ElasticURL = "http://localhost:9200"
		}
		if p.ElasticIndex == "" {
			p.ElasticIndex = "memora_memories"
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("MEMORA_DSN is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown memory store driver %q: only 'elastic' and 'postgres' are supported", p.Driver)
	}

	if p.EmbedDims <= 0 {
		p.EmbedDims = 768
	}
	if p.TokenBudget <= 0 {
		p.TokenBudget = 1500
	}
	if p.AIBaseURL == "" {
		p.AIBaseURL = "https://api.openai.com/v1"
	}
	if p.AIEmbeddingModel == "" {
		p.AIEmbeddingModel = "text-embedding-3-small"
	}
	if p.AIChatModel == "" {
		p.AIChatModel = "gpt-4o-mini"
	}
	return nil
}
