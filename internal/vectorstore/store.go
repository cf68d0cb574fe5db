package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks github.com/dshills/hybridindex/internal/vectorstore Store

import (
	"context"
	"errors"
	"math"
	"sort"
)

// Common errors
var (
	ErrInvalidNamespace  = errors.New("namespace is required")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidTopK       = errors.New("topK must be greater than 0")
	ErrClosed            = errors.New("vector store is closed")
)

// Point is one vector with the chunk it belongs to
type Point struct {
	ID         string // {workspaceHash}::{filePath}::{chunkIndex}
	Vector     []float32
	ChunkID    string
	FilePath   string
	ChunkIndex int
}

// Result is one nearest-neighbor hit
type Result struct {
	ID         string
	ChunkID    string
	FilePath   string
	ChunkIndex int
	Score      float64
}

// Stats describes one namespace
type Stats struct {
	Namespace   string `json:"namespace"`
	VectorCount int    `json:"vectorCount"`
	Dimension   int    `json:"dimension"`
}

// Store is namespace-partitioned vector storage. Every operation is scoped to
// exactly one namespace. Query results are sorted by descending score, ties
// in insertion order. An empty result is a successful response.
type Store interface {
	// Upsert inserts points, replacing any point with the same ID
	Upsert(ctx context.Context, namespace string, points []Point) error

	// Query returns the topK most similar points
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Result, error)

	// Delete removes points by ID; unknown IDs are ignored
	Delete(ctx context.Context, namespace string, ids []string) error

	// DeleteNamespace removes every point in the namespace
	DeleteNamespace(ctx context.Context, namespace string) error

	// NamespaceStats reports the point count of the namespace
	NamespaceStats(ctx context.Context, namespace string) (Stats, error)

	Close() error
}

// cosine returns the cosine similarity of two vectors; zero vectors score 0
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// rank sorts results by descending score. Equal scores keep their input order.
func rank(results []Result, topK int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func validate(namespace string, topK int) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	if topK <= 0 {
		return ErrInvalidTopK
	}
	return nil
}
