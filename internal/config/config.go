// Package config loads engine configuration from YAML, .env files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the per-user configuration file name
const FileName = "config.yaml"

// EnvPrefix prefixes every environment override
const EnvPrefix = "HYBRIDINDEX_"

// Config represents the complete engine configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Cloud      CloudConfig      `yaml:"cloud" json:"cloud"`
	Graph      GraphConfig      `yaml:"graph" json:"graph"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// StorageConfig configures where per-workspace databases live.
type StorageConfig struct {
	Root string `yaml:"root" json:"root"`
}

// IndexingConfig configures the orchestrator and chunker.
type IndexingConfig struct {
	LocalEnabled  bool          `yaml:"local_enabled" json:"local_enabled"`
	CloudEnabled  bool          `yaml:"cloud_enabled" json:"cloud_enabled"`
	Workers       int           `yaml:"workers" json:"workers"`
	MaxFileBytes  int           `yaml:"max_file_bytes" json:"max_file_bytes"`
	ChunkLines    int           `yaml:"chunk_lines" json:"chunk_lines"`
	ChunkBytes    int           `yaml:"chunk_bytes" json:"chunk_bytes"`
	Exclude       []string      `yaml:"exclude" json:"exclude"`
	StatusTimeout time.Duration `yaml:"status_timeout" json:"status_timeout"`
}

// EmbeddingsConfig configures local and cloud embedding runtimes.
type EmbeddingsConfig struct {
	OllamaHost        string `yaml:"ollama_host" json:"ollama_host"`
	OllamaModel       string `yaml:"ollama_model" json:"ollama_model"`
	UseHeavyModel     bool   `yaml:"use_heavy_model" json:"use_heavy_model"`
	CloudProvider     string `yaml:"cloud_provider" json:"cloud_provider"`
	CloudModel        string `yaml:"cloud_model" json:"cloud_model"`
	CloudDimension    int    `yaml:"cloud_dimension" json:"cloud_dimension"`
	APIKey            string `yaml:"api_key" json:"-"`
	BatchSize         int    `yaml:"batch_size" json:"batch_size"`
	CacheSize         int    `yaml:"cache_size" json:"cache_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CloudConfig configures the remote vector store.
type CloudConfig struct {
	UserID       string `yaml:"user_id" json:"user_id"`
	QdrantURL    string `yaml:"qdrant_url" json:"qdrant_url"`
	QdrantAPIKey string `yaml:"qdrant_api_key" json:"-"`
	Collection   string `yaml:"collection" json:"collection"`
}

// GraphConfig toggles persistent graph storage.
type GraphConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Root: filepath.Join(DefaultDir(), "workspaces"),
		},
		Indexing: IndexingConfig{
			LocalEnabled:  true,
			CloudEnabled:  false,
			Workers:       4,
			MaxFileBytes:  1 << 20,
			ChunkLines:    60,
			ChunkBytes:    4096,
			Exclude:       []string{".git", "node_modules", "vendor", "dist", "build", ".hybridindex"},
			StatusTimeout: 3 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			OllamaHost:        "http://localhost:11434",
			OllamaModel:       "nomic-embed-text",
			CloudProvider:     "openai",
			CloudModel:        "text-embedding-3-small",
			CloudDimension:    1536,
			BatchSize:         50,
			CacheSize:         10000,
			RequestsPerMinute: 300,
		},
		Cloud: CloudConfig{
			QdrantURL:  "http://localhost:6333",
			Collection: "hybridindex",
		},
		Graph: GraphConfig{Enabled: true},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultDir returns ~/.hybridindex, falling back to the working directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hybridindex"
	}
	return filepath.Join(home, ".hybridindex")
}

// Load builds the configuration in precedence order:
//  1. Defaults
//  2. YAML file at path (or ~/.hybridindex/config.yaml when path is empty)
//  3. .env in the working directory
//  4. Environment variables (HYBRIDINDEX_*)
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = filepath.Join(DefaultDir(), FileName)
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is fine
	_ = godotenv.Load()

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes the file over the current values so unset keys keep their defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := env("STORAGE_ROOT"); v != "" {
		c.Storage.Root = v
	}
	if v := env("LOCAL_ENABLED"); v != "" {
		c.Indexing.LocalEnabled = parseBool(v)
	}
	if v := env("CLOUD_ENABLED"); v != "" {
		c.Indexing.CloudEnabled = parseBool(v)
	}
	if v := env("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.Workers = n
		}
	}
	if v := env("STATUS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Indexing.StatusTimeout = d
		}
	}
	if v := env("OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := env("OLLAMA_MODEL"); v != "" {
		c.Embeddings.OllamaModel = v
	}
	if v := env("USE_HEAVY_MODEL"); v != "" {
		c.Embeddings.UseHeavyModel = parseBool(v)
	}
	if v := env("CLOUD_PROVIDER"); v != "" {
		c.Embeddings.CloudProvider = strings.ToLower(v)
	}
	if v := env("CLOUD_MODEL"); v != "" {
		c.Embeddings.CloudModel = v
	}
	if v := env("API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	} else if c.Embeddings.APIKey == "" {
		// Provider-native variables, as most users already have them exported
		switch c.Embeddings.CloudProvider {
		case "jina":
			c.Embeddings.APIKey = os.Getenv("JINA_API_KEY")
		case "openai":
			c.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v := env("USER_ID"); v != "" {
		c.Cloud.UserID = v
	}
	if v := env("QDRANT_URL"); v != "" {
		c.Cloud.QdrantURL = v
	}
	if v := env("QDRANT_API_KEY"); v != "" {
		c.Cloud.QdrantAPIKey = v
	}
	if v := env("GRAPH_ENABLED"); v != "" {
		c.Graph.Enabled = parseBool(v)
	}
	if v := env("WATCH_ENABLED"); v != "" {
		c.Watch.Enabled = parseBool(v)
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := env("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must not be empty")
	}
	if c.Indexing.Workers <= 0 {
		return fmt.Errorf("indexing.workers must be positive, got %d", c.Indexing.Workers)
	}
	if c.Indexing.MaxFileBytes <= 0 {
		return fmt.Errorf("indexing.max_file_bytes must be positive, got %d", c.Indexing.MaxFileBytes)
	}
	if c.Indexing.ChunkLines <= 0 || c.Indexing.ChunkBytes <= 0 {
		return fmt.Errorf("indexing.chunk_lines and indexing.chunk_bytes must be positive")
	}
	if c.Indexing.StatusTimeout <= 0 {
		return fmt.Errorf("indexing.status_timeout must be positive")
	}
	if c.Embeddings.BatchSize <= 0 || c.Embeddings.BatchSize > 100 {
		return fmt.Errorf("embeddings.batch_size must be between 1 and 100, got %d", c.Embeddings.BatchSize)
	}

	validProviders := map[string]bool{"openai": true, "jina": true}
	if !validProviders[strings.ToLower(c.Embeddings.CloudProvider)] {
		return fmt.Errorf("embeddings.cloud_provider must be 'openai' or 'jina', got %s", c.Embeddings.CloudProvider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	if c.Indexing.CloudEnabled && c.Cloud.UserID == "" {
		return fmt.Errorf("cloud.user_id is required when cloud indexing is enabled")
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}
