package embedder

import (
	"context"
	"unicode"

	"github.com/dshills/hybridindex/pkg/types"
)

const (
	// HashDimension is the bucket count of the hash runtime
	HashDimension = 256

	// HashModelID identifies vectors produced by the hash runtime
	HashModelID = "hash-256"

	hashModelVersion = "1"
)

// HashRuntime maps code points into fixed buckets. It never touches the
// network and never fails except on cancellation, so it backs every other
// runtime as the fallback.
type HashRuntime struct{}

// NewHashRuntime creates the hash runtime
func NewHashRuntime() *HashRuntime {
	return &HashRuntime{}
}

// Embed hashes each text. On cancellation the remaining vectors are zero.
func (h *HashRuntime) Embed(ctx context.Context, texts []string, _ InputType) (*Result, error) {
	res := &Result{
		Vectors: make([][]float32, len(texts)),
		Model:   h.Model(),
	}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			fillZero(res.Vectors, HashDimension)
			return res, types.NewCancellationError("hash embed", err)
		}
		res.Vectors[i] = HashVector(text)
	}
	return res, nil
}

// Model returns the hash model identity
func (h *HashRuntime) Model() types.ModelInfo {
	return types.ModelInfo{ID: HashModelID, Version: hashModelVersion, Dimension: HashDimension}
}

// Close is a no-op
func (h *HashRuntime) Close() error {
	return nil
}

// HashVector accumulates a weighted count per code-point bucket and
// L2-normalizes the result. Letters and digits weigh 1, other visible runes
// 0.5, whitespace nothing. Empty input yields the all-zero vector.
func HashVector(text string) []float32 {
	vec := make([]float32, HashDimension)
	for _, r := range text {
		var weight float32
		switch {
		case unicode.IsSpace(r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			weight = 1
		default:
			weight = 0.5
		}
		vec[int(r)%HashDimension] += weight
	}
	return NormalizeVector(vec)
}
