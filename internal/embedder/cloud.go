package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/hybridindex/pkg/types"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// DefaultRequestsPerMinute caps remote calls
	DefaultRequestsPerMinute = 300

	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	openAIEndpoint = "https://api.openai.com/v1/embeddings"
)

// CloudConfig configures a remote embedding provider
type CloudConfig struct {
	Provider          string
	Model             string
	APIKey            string
	Endpoint          string // overrides the provider default
	Dimension         int
	BatchSize         int
	RequestsPerMinute int
	CacheSize         int
	Timeout           time.Duration
	Retry             *RetryConfig
}

// CloudProvider embeds through an OpenAI or Jina compatible HTTP API
type CloudProvider struct {
	provider  string
	model     string
	apiKey    string
	endpoint  string
	dimension int
	batchSize int
	retry     RetryConfig

	httpClient *http.Client
	cache      *Cache
	pacer      *pacer
}

// NewCloudProvider validates cfg and creates the provider
func NewCloudProvider(cfg CloudConfig) (*CloudProvider, error) {
	provider := strings.ToLower(cfg.Provider)
	p := &CloudProvider{
		provider:  provider,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		endpoint:  cfg.Endpoint,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		retry:     DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: NewCache(cfg.CacheSize),
	}

	switch provider {
	case ProviderJina:
		if p.model == "" {
			p.model = DefaultJinaModel
		}
		if p.endpoint == "" {
			p.endpoint = jinaEndpoint
		}
		if p.dimension == 0 {
			p.dimension = JinaDimension
		}
	case ProviderOpenAI:
		if p.model == "" {
			p.model = DefaultOpenAIModel
		}
		if p.endpoint == "" {
			p.endpoint = openAIEndpoint
		}
		if p.dimension == 0 {
			p.dimension = OpenAIDimension
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}

	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: api key for %s not set", ErrNoProviderEnabled, provider)
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	if p.batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	if cfg.Timeout > 0 {
		p.httpClient.Timeout = cfg.Timeout
	}
	if cfg.Retry != nil {
		p.retry = *cfg.Retry
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	p.pacer = newPacer(time.Minute / time.Duration(rpm))

	return p, nil
}

// Model returns the remote model identity
func (p *CloudProvider) Model() types.ModelInfo {
	return types.ModelInfo{ID: p.provider + ":" + p.model, Dimension: p.dimension}
}

// Embed embeds texts in bounded batches with retry and request pacing.
// Empty texts get zero vectors without a request.
func (p *CloudProvider) Embed(ctx context.Context, texts []string, input InputType) (*Result, error) {
	res := &Result{Vectors: make([][]float32, len(texts)), Model: p.Model()}
	modelID := res.Model.ID

	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if emb, ok := p.cache.Get(CacheKey(modelID, input, text)); ok {
			res.Vectors[i] = emb.Vector
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += p.batchSize {
		end := min(start+p.batchSize, len(pending))
		batch := make([]string, 0, end-start)
		for _, idx := range pending[start:end] {
			batch = append(batch, texts[idx])
		}

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			if err := p.pacer.wait(ctx); err != nil {
				return nil, err
			}
			return p.callAPI(ctx, batch, input)
		})
		if err != nil {
			fillZero(res.Vectors, p.dimension)
			if types.IsCancellation(err) {
				return res, types.NewCancellationError("cloud embed", err)
			}
			var ie *types.IndexError
			if errors.As(err, &ie) {
				return res, err
			}
			return res, types.NewEmbeddingProviderError(types.CodeProviderNetwork, "cloud embed",
				fmt.Errorf("%w: %v", ErrProviderFailed, err), false)
		}

		for j, idx := range pending[start:end] {
			res.Vectors[idx] = vectors[j]
			p.cache.Set(CacheKey(modelID, input, texts[idx]), &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  p.provider,
				Model:     p.model,
			})
		}
	}

	fillZero(res.Vectors, p.dimension)
	return res, nil
}

func (p *CloudProvider) requestBody(texts []string, input InputType) map[string]interface{} {
	body := map[string]interface{}{
		"input": texts,
		"model": p.model,
	}
	switch p.provider {
	case ProviderJina:
		task := "retrieval.passage"
		if input == InputQuery {
			task = "retrieval.query"
		}
		body["task"] = task
		body["dimensions"] = p.dimension
	case ProviderOpenAI:
		if p.dimension != OpenAIDimension {
			body["dimensions"] = p.dimension
		}
	}
	return body
}

func (p *CloudProvider) callAPI(ctx context.Context, texts []string, input InputType) ([][]float32, error) {
	body, err := json.Marshal(p.requestBody(texts, input))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, types.NewEmbeddingProviderError(types.CodeProviderNetwork, "api call", err, true)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(texts), len(apiResp.Data))
	}

	sort.Slice(apiResp.Data, func(i, j int) bool { return apiResp.Data[i].Index < apiResp.Data[j].Index })
	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		if len(data.Embedding) != p.dimension {
			return nil, types.NewEmbeddingProviderError(types.CodeProviderNetwork, "api call",
				fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(data.Embedding), p.dimension), false)
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

// statusError classifies an HTTP failure. Auth failures are not retried.
func statusError(status int, body string) error {
	cause := fmt.Errorf("api error %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewEmbeddingProviderError(types.CodeProviderAuth, "api call", cause, false)
	case status == http.StatusTooManyRequests:
		return types.NewEmbeddingProviderError(types.CodeProviderQuota, "api call", cause, true)
	case status >= 500:
		return types.NewEmbeddingProviderError(types.CodeProviderNetwork, "api call", cause, true)
	default:
		return types.NewEmbeddingProviderError(types.CodeProviderNetwork, "api call", cause, false)
	}
}

// Close releases idle connections
func (p *CloudProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// pacer spaces requests at least interval apart
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval}
}

func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.interval)
	p.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
