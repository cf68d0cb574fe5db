package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

type failingRuntime struct {
	err   error
	calls int
}

func (f *failingRuntime) Embed(_ context.Context, texts []string, _ InputType) (*Result, error) {
	f.calls++
	res := &Result{Vectors: make([][]float32, len(texts)), Model: f.Model()}
	fillZero(res.Vectors, 8)
	return res, f.err
}

func (f *failingRuntime) Model() types.ModelInfo {
	return types.ModelInfo{ID: "failing", Dimension: 8}
}

func (f *failingRuntime) Close() error { return nil }

func TestFallbackRuntime_PrimaryHealthy(t *testing.T) {
	primary := &failingRuntime{}
	rt := NewFallbackRuntime(primary, NewHashRuntime(), logging.Discard())

	res, err := rt.Embed(context.Background(), []string{"a"}, InputDocument)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "failing", res.Model.ID)
	assert.Equal(t, "failing", rt.Model().ID)
}

func TestFallbackRuntime_FallsBack(t *testing.T) {
	primary := &failingRuntime{err: types.NewEmbeddingProviderError(types.CodeProviderNetwork, "embed", errors.New("down"), true)}
	rt := NewFallbackRuntime(primary, NewHashRuntime(), logging.Discard())

	res, err := rt.Embed(context.Background(), []string{"a", "b"}, InputDocument)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, HashModelID, res.Model.ID)
	assert.Equal(t, HashVector("a"), res.Vectors[0])
}

func TestFallbackRuntime_CancellationPassesThrough(t *testing.T) {
	primary := &failingRuntime{err: types.NewCancellationError("embed", context.Canceled)}
	fallback := &failingRuntime{}
	rt := NewFallbackRuntime(primary, fallback, logging.Discard())

	res, err := rt.Embed(context.Background(), []string{"a"}, InputDocument)
	assert.True(t, types.IsCancellation(err))
	assert.False(t, res.Degraded)
	assert.Equal(t, 0, fallback.calls)
}

func TestNewLocalRuntime(t *testing.T) {
	rt := NewLocalRuntime(Config{}, logging.Discard())
	assert.Equal(t, HashModelID, rt.Model().ID)

	heavy := NewLocalRuntime(Config{UseHeavyModel: true, Ollama: OllamaConfig{Model: "m"}}, logging.Discard())
	fb, ok := heavy.(*FallbackRuntime)
	require.True(t, ok)
	assert.Equal(t, "ollama:m", fb.Model().ID)
	assert.Equal(t, HashModelID, fb.fallback.Model().ID)
}

func TestNewCloudRuntime_APIKeyFromEnv(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	_, err := NewCloudRuntime(Config{Cloud: CloudConfig{Provider: ProviderJina}}, logging.Discard())
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	t.Setenv(EnvJinaAPIKey, "secret")
	rt, err := NewCloudRuntime(Config{Cloud: CloudConfig{Provider: ProviderJina}}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "jina:"+DefaultJinaModel, rt.Model().ID)
}
