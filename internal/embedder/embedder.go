package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/hybridindex/pkg/types"
)

// Common errors
var (
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// InputType tells asymmetric models whether text is indexed content or a query
type InputType string

const (
	InputDocument InputType = "document"
	InputQuery    InputType = "query"
)

// Result holds one vector per input text, in input order
type Result struct {
	Vectors [][]float32
	Model   types.ModelInfo
	// Degraded is set when a fallback runtime produced the vectors
	Degraded bool
}

// Runtime produces fixed-dimension vectors for text.
//
// Embed always returns len(texts) vectors with vector i belonging to texts[i].
// When ctx is cancelled part way, the remaining entries are zero vectors and
// the error is a cancellation error; the Result is still returned.
type Runtime interface {
	Embed(ctx context.Context, texts []string, input InputType) (*Result, error)

	// Model identifies the model this runtime embeds with when healthy
	Model() types.ModelInfo

	// Close releases any resources held by the runtime
	Close() error
}

// Embedding represents a cached vector with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
}

// Cache provides in-memory LRU caching of embeddings by content hash
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000 // Default: cache 10k embeddings
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a deep copy of an embedding from cache
// Returns a copy to prevent caller mutations from affecting cached values
func (c *Cache) Get(key string) (*Embedding, bool) {
	emb, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}

	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)

	return &Embedding{
		Vector:    vectorCopy,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding in cache with automatic LRU eviction
func (c *Cache) Set(key string, emb *Embedding) {
	c.cache.Add(key, emb)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// CacheKey scopes a content hash to a model and input type
func CacheKey(model string, input InputType, text string) string {
	return model + "|" + string(input) + "|" + ComputeHash(text)
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity).
// A zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}

	return result
}

// fillZero replaces every nil entry of vectors with a zero vector of dim
func fillZero(vectors [][]float32, dim int) {
	for i := range vectors {
		if vectors[i] == nil {
			vectors[i] = make([]float32, dim)
		}
	}
}
