package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dshills/hybridindex/pkg/types"
)

const (
	// DefaultOllamaHost is the default Ollama endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default heavy embedding model
	DefaultOllamaModel = "nomic-embed-text"

	ollamaBatchSize = 32
)

// OllamaConfig configures the heavy local runtime
type OllamaConfig struct {
	Host      string
	Model     string
	BatchSize int
	Timeout   time.Duration
	CacheSize int
}

// ollamaEmbedRequest is the Ollama /api/embed request
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the Ollama /api/embed response
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaRuntime embeds through a locally served model. It never installs the
// model itself; a missing model surfaces as a ModelInstallError and model
// lifecycle belongs to ModelManager.
type OllamaRuntime struct {
	host      string
	model     string
	batchSize int
	client    *http.Client
	cache     *Cache

	mu        sync.RWMutex
	dimension int
}

// NewOllamaRuntime creates the heavy runtime. No request is made until Embed.
func NewOllamaRuntime(cfg OllamaConfig) *OllamaRuntime {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = ollamaBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaRuntime{
		host:      strings.TrimRight(cfg.Host, "/"),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: cfg.Timeout},
		cache:     NewCache(cfg.CacheSize),
	}
}

// Model returns the model identity; Dimension is zero until the first response
func (o *OllamaRuntime) Model() types.ModelInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return types.ModelInfo{ID: "ollama:" + o.model, Dimension: o.dimension}
}

// Embed embeds texts in batches. Empty texts get zero vectors without a request.
func (o *OllamaRuntime) Embed(ctx context.Context, texts []string, input InputType) (*Result, error) {
	res := &Result{Vectors: make([][]float32, len(texts))}
	modelID := o.Model().ID

	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if emb, ok := o.cache.Get(CacheKey(modelID, input, text)); ok {
			res.Vectors[i] = emb.Vector
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			return o.padded(res), types.NewCancellationError("ollama embed", err)
		}

		end := min(start+o.batchSize, len(pending))
		batch := make([]string, 0, end-start)
		for _, idx := range pending[start:end] {
			batch = append(batch, texts[idx])
		}

		vectors, err := o.doEmbed(ctx, batch)
		if err != nil {
			if types.IsCancellation(err) || ctx.Err() != nil {
				return o.padded(res), types.NewCancellationError("ollama embed", err)
			}
			return o.padded(res), err
		}
		for j, idx := range pending[start:end] {
			res.Vectors[idx] = vectors[j]
			o.cache.Set(CacheKey(modelID, input, texts[idx]), &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  "ollama",
				Model:     o.model,
			})
		}
	}

	return o.padded(res), nil
}

func (o *OllamaRuntime) padded(res *Result) *Result {
	res.Model = o.Model()
	dim := res.Model.Dimension
	if dim == 0 {
		dim = HashDimension
	}
	fillZero(res.Vectors, dim)
	return res
}

func (o *OllamaRuntime) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, types.NewEmbeddingProviderError(types.CodeProviderNetwork, "ollama embed", err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		msg := string(respBody)
		if resp.StatusCode == http.StatusNotFound || strings.Contains(msg, "not found") {
			return nil, types.NewModelInstallError(o.model, fmt.Errorf("status %d: %s", resp.StatusCode, msg))
		}
		return nil, types.NewEmbeddingProviderError(types.CodeProviderNetwork, "ollama embed",
			fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, msg), resp.StatusCode >= 500)
	}

	var apiResult ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(apiResult.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(texts), len(apiResult.Embeddings))
	}

	embeddings := make([][]float32, len(apiResult.Embeddings))
	for i, emb := range apiResult.Embeddings {
		embedding := make([]float32, len(emb))
		for j, v := range emb {
			embedding[j] = float32(v)
		}
		embeddings[i] = NormalizeVector(embedding)
	}

	if err := o.recordDimension(len(embeddings[0])); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (o *OllamaRuntime) recordDimension(dim int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dimension == 0 {
		o.dimension = dim
		return nil
	}
	if o.dimension != dim {
		return fmt.Errorf("%w: model %s returned %d, expected %d", ErrDimensionMismatch, o.model, dim, o.dimension)
	}
	return nil
}

// Close releases idle connections
func (o *OllamaRuntime) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
