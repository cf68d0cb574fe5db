package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.True(t, cfg.Indexing.LocalEnabled)
	assert.False(t, cfg.Indexing.CloudEnabled)
	assert.Equal(t, 3*time.Second, cfg.Indexing.StatusTimeout)
	assert.Equal(t, 60, cfg.Indexing.ChunkLines)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLKeepsUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
indexing:
  workers: 8
  status_timeout: 5s
graph:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Indexing.Workers)
	assert.Equal(t, 5*time.Second, cfg.Indexing.StatusTimeout)
	assert.False(t, cfg.Graph.Enabled)
	assert.Equal(t, 4096, cfg.Indexing.ChunkBytes)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.OllamaModel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "indexing:\n  workers: 2\n")
	t.Setenv("HYBRIDINDEX_WORKERS", "6")
	t.Setenv("HYBRIDINDEX_CLOUD_ENABLED", "true")
	t.Setenv("HYBRIDINDEX_USER_ID", "user-1")
	t.Setenv("HYBRIDINDEX_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Indexing.Workers)
	assert.True(t, cfg.Indexing.CloudEnabled)
	assert.Equal(t, "user-1", cfg.Cloud.UserID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ProviderAPIKeyFallback(t *testing.T) {
	path := writeConfig(t, "embeddings:\n  cloud_provider: jina\n")
	t.Setenv("JINA_API_KEY", "jina-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "jina-secret", cfg.Embeddings.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Indexing.Workers = 0 }},
		{"batch too large", func(c *Config) { c.Embeddings.BatchSize = 500 }},
		{"unknown provider", func(c *Config) { c.Embeddings.CloudProvider = "acme" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"cloud without user", func(c *Config) { c.Indexing.CloudEnabled = true }},
		{"empty storage root", func(c *Config) { c.Storage.Root = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "indexing: [not, a, map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Indexing.Workers = 3
	path := filepath.Join(t.TempDir(), "nested", FileName)

	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Indexing.Workers)
}
