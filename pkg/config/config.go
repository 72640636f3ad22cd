// Package config loads engine configuration from a YAML file with
// environment overrides. A missing file yields a fully local default
// setup: hash embeddings, in-memory vector store, in-memory sessions.
package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/atlasdocs/atlas-engine/engine/domain"
)

// CohereConfig configures the remote embedding and generation backend.
// The API key is read from the environment, never from the file.
type CohereConfig struct {
	BaseURL    string  `yaml:"base_url"`
	APIKeyEnv  string  `yaml:"api_key_env"`
	ChatModel  string  `yaml:"chat_model"`
	EmbedModel string  `yaml:"embed_model"`
	RPS        float64 `yaml:"requests_per_second"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Type     string `yaml:"type"` // "local" or "cohere"
	LocalDim int    `yaml:"local_dim"`
}

// ChunkerConfig configures document splitting.
type ChunkerConfig struct {
	Strategy   string `yaml:"strategy"` // "fixed_size" or "semantic"
	WindowSize int    `yaml:"window_size"`
	Overlap    int    `yaml:"overlap"`
	MaxSize    int    `yaml:"max_size"`
	MinSize    int    `yaml:"min_size"`
}

// QdrantConfig contains connection details for a qdrant vector store.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"` // "memory" or "qdrant"
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// MemoryConfig configures conversation session storage.
type MemoryConfig struct {
	Type    string `yaml:"type"` // "memory" or "nats"
	Bucket  string `yaml:"bucket"`
	TTLSecs int    `yaml:"ttl_secs"`
}

// NATSConfig configures the messaging connection for the ingest consumer
// and the NATS-backed session store.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// QueryConfig tunes the query pipeline.
type QueryConfig struct {
	TopK         int     `yaml:"top_k"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	ContextTurns int     `yaml:"context_turns"`
}

// Config is the root configuration.
type Config struct {
	Cohere      CohereConfig      `yaml:"cohere"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Memory      MemoryConfig      `yaml:"memory"`
	NATS        NATSConfig        `yaml:"nats"`
	Query       QueryConfig       `yaml:"query"`
}

// Load reads the config at path, falling back to defaults when the file
// does not exist. A .env file in the working directory is loaded first so
// development credentials resolve without exporting them.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Field: path, Reason: err.Error()}
		}
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CohereAPIKey resolves the API key from the configured environment
// variable. Empty means the remote backend is disabled.
func (c *Config) CohereAPIKey() string {
	return os.Getenv(c.Cohere.APIKeyEnv)
}

func defaults() *Config {
	return &Config{
		Cohere: CohereConfig{
			APIKeyEnv: "COHERE_API_KEY",
		},
		Embedder: EmbedderConfig{Type: "local"},
		Chunker:  ChunkerConfig{Strategy: "fixed_size"},
		VectorStore: VectorStoreConfig{
			Type: "memory",
		},
		Memory: MemoryConfig{
			Type:    "memory",
			Bucket:  "chat-sessions",
			TTLSecs: 3600,
		},
		NATS: NATSConfig{URL: "nats://localhost:4222"},
		Query: QueryConfig{
			TopK:         5,
			MaxTokens:    500,
			Temperature:  0.7,
			ContextTurns: 5,
		},
	}
}

// applyEnv lets deployment environments override wiring without editing
// the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QDRANT_ADDR"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		cfg.VectorStore.Qdrant.Addr = v
		cfg.VectorStore.Type = "qdrant"
	}
	if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		cfg.VectorStore.Qdrant.Collection = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SESSION_TTL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.TTLSecs = n
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Embedder.Type {
	case "local", "cohere":
	default:
		return &domain.ConfigError{Field: "embedder.type", Reason: "must be local or cohere"}
	}

	switch cfg.Chunker.Strategy {
	case "fixed_size", "semantic":
	default:
		return &domain.ConfigError{Field: "chunker.strategy", Reason: "must be fixed_size or semantic"}
	}

	switch cfg.VectorStore.Type {
	case "memory":
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil || cfg.VectorStore.Qdrant.Addr == "" {
			return &domain.ConfigError{Field: "vector_store.qdrant.addr", Reason: "required for the qdrant backend"}
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "documents"
		}
	default:
		return &domain.ConfigError{Field: "vector_store.type", Reason: "must be memory or qdrant"}
	}

	switch cfg.Memory.Type {
	case "memory", "nats":
	default:
		return &domain.ConfigError{Field: "memory.type", Reason: "must be memory or nats"}
	}
	if cfg.Memory.TTLSecs <= 0 {
		return &domain.ConfigError{Field: "memory.ttl_secs", Reason: "must be positive"}
	}

	if cfg.Query.TopK <= 0 {
		return &domain.ConfigError{Field: "query.top_k", Reason: "must be positive"}
	}
	return nil
}
