package embedder

import (
	"log/slog"
	"os"
	"strings"
)

// Environment variables consulted when no API key is configured
const (
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	// UseHeavyModel enables the Ollama runtime in front of the hash runtime
	UseHeavyModel bool
	Ollama        OllamaConfig

	Cloud CloudConfig
}

// NewLocalRuntime returns the runtime used by the local backend: the heavy
// Ollama model falling back to hashing, or hashing alone.
func NewLocalRuntime(cfg Config, logger *slog.Logger) Runtime {
	hash := NewHashRuntime()
	if !cfg.UseHeavyModel {
		return hash
	}
	return NewFallbackRuntime(NewOllamaRuntime(cfg.Ollama), hash, logger)
}

// NewCloudRuntime returns the runtime used by the cloud backend: the remote
// provider falling back to hashing for failed batches.
func NewCloudRuntime(cfg Config, logger *slog.Logger) (Runtime, error) {
	cloud := cfg.Cloud
	if cloud.APIKey == "" {
		cloud.APIKey = DetectAPIKey(cloud.Provider)
	}
	provider, err := NewCloudProvider(cloud)
	if err != nil {
		return nil, err
	}
	return NewFallbackRuntime(provider, NewHashRuntime(), logger), nil
}

// DetectAPIKey returns the API key for provider from the environment
func DetectAPIKey(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderJina:
		return os.Getenv(EnvJinaAPIKey)
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	default:
		return ""
	}
}
