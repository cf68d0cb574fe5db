package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

// ollamaTagsResponse is the Ollama /api/tags response
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ModelManager owns the heavy model artifact lifecycle. Embedding never
// triggers a download; only GetOrInstallModel does.
type ModelManager struct {
	host   string
	model  string
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	state types.ModelDownloadState
}

// NewModelManager creates a manager for one Ollama model
func NewModelManager(cfg OllamaConfig, logger *slog.Logger) *ModelManager {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	return &ModelManager{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: 30 * time.Minute},
		logger: logging.OrDefault(logger),
		state:  types.ModelNone,
	}
}

// DownloadState reports the last known artifact state
func (m *ModelManager) DownloadState() types.ModelDownloadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ModelManager) setState(s types.ModelDownloadState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Installed reports whether the model is present on the server
func (m *ModelManager) Installed(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	for _, model := range tags.Models {
		if model.Name == m.model || strings.TrimSuffix(model.Name, ":latest") == m.model {
			return true, nil
		}
	}
	return false, nil
}

// GetOrInstallModel makes sure the model is available, pulling it if needed
func (m *ModelManager) GetOrInstallModel(ctx context.Context) error {
	installed, err := m.Installed(ctx)
	if err != nil {
		m.setState(types.ModelFailed)
		return types.NewModelInstallError(m.model, err)
	}
	if installed {
		m.setState(types.ModelReady)
		return nil
	}

	m.setState(types.ModelDownloading)
	m.logger.Info("pulling embedding model", slog.String("model", m.model))

	if err := m.send(ctx, http.MethodPost, "/api/pull", map[string]interface{}{"model": m.model, "stream": false}); err != nil {
		if types.IsCancellation(err) || ctx.Err() != nil {
			m.setState(types.ModelNone)
			return types.NewCancellationError("pull model", err)
		}
		m.setState(types.ModelFailed)
		return types.NewModelInstallError(m.model, err)
	}

	m.setState(types.ModelReady)
	m.logger.Info("embedding model ready", slog.String("model", m.model))
	return nil
}

// ClearModel deletes the model artifact from the server
func (m *ModelManager) ClearModel(ctx context.Context) error {
	if err := m.send(ctx, http.MethodDelete, "/api/delete", map[string]interface{}{"model": m.model}); err != nil {
		return types.NewModelInstallError(m.model, err)
	}
	m.setState(types.ModelNone)
	return nil
}

func (m *ModelManager) send(ctx context.Context, method, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
