package acctplan

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration for the research engine.
type Config struct {
	// DBPath is the full path to the SQLite database file backing the
	// reference VectorStore/PlanStore adapter. If empty, defaults to
	// ~/.acctplan/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. "home" (default) uses ~/.acctplan/, "local"
	// uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers.
	Chat      LLMProviderConfig `json:"chat" yaml:"chat"`
	Embedding LLMProviderConfig `json:"embedding" yaml:"embedding"`

	// SearchAPI / ScrapeAPI configuration for the reference adapters.
	Search SearchConfig `json:"search" yaml:"search"`
	Scrape ScrapeConfig `json:"scrape" yaml:"scrape"`

	// Retrieval pipeline tuning (spec §4.6).
	TopKScrape int     `json:"top_k_scrape" yaml:"top_k_scrape"`
	MinScore   float64 `json:"min_score" yaml:"min_score"`

	// Chunking (spec §4.2).
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`
	MinChunkSize int `json:"min_chunk_size" yaml:"min_chunk_size"`

	// Caching (spec §4.10/§4.11). SERPCacheTTL resolves the source's
	// ambiguous 1h/3h/6h defaults to one fixed value, per spec §9.
	SERPCacheTTL time.Duration `json:"serp_cache_ttl" yaml:"serp_cache_ttl"`
	CacheMaxSize int           `json:"cache_max_size" yaml:"cache_max_size"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// LLMProviderConfig configures a single LLM provider endpoint.
type LLMProviderConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, groq, xai, openrouter, gemini, lmstudio, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// SearchConfig configures the reference SearchAPI adapter.
type SearchConfig struct {
	Provider string `json:"provider" yaml:"provider"` // not read: the reference adapter always targets Serper.dev
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// ScrapeConfig configures the reference ScrapeAPI adapter.
type ScrapeConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"` // empty = Firecrawl's default endpoint
	APIKey  string `json:"api_key" yaml:"api_key"`   // empty = fetch URLs directly
}

// DefaultConfig returns a Config with sensible defaults for local
// development against an Ollama-style local model.
func DefaultConfig() Config {
	return Config{
		DBName:     "acctplan",
		StorageDir: "home",
		Chat: LLMProviderConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMProviderConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		TopKScrape:   5,
		MinScore:     0.3,
		ChunkSize:    800,
		ChunkOverlap: 100,
		MinChunkSize: 200,
		SERPCacheTTL: 3 * time.Hour,
		CacheMaxSize: 10000,
		EmbeddingDim: 768,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "acctplan"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		dir := filepath.Join(home, ".acctplan")
		return filepath.Join(dir, name+".db")
	}
}
