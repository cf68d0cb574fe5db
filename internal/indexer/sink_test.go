package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/internal/vectorstore"
	"github.com/dshills/hybridindex/internal/vectorstore/mocks"
	"github.com/dshills/hybridindex/pkg/types"
)

var testModel = types.ModelInfo{ID: "test-model", Version: "1", Dimension: 3}

// commitFile stores a file with one chunk per content so embeddings can
// reference them
func commitFile(t *testing.T, store *storage.SQLiteStorage, path string, contents ...string) (*storage.File, []*storage.Chunk) {
	t.Helper()
	file := &storage.File{FilePath: path, URI: "file:///ws/" + path, State: types.FileIndexed}
	chunks := make([]*storage.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = &storage.Chunk{
			ID:       chunker.ChunkID(path, i),
			FilePath: path,
			URI:      file.URI,
			Index:    i,
			Content:  content,
			Range:    types.Range{StartLine: i * 10, EndLine: i*10 + 9},
		}
	}
	require.NoError(t, store.ReplaceFileContent(context.Background(), &storage.FileContent{File: file, Chunks: chunks}))
	return file, chunks
}

func chunkIDs(results []vectorstore.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	return ids
}

func TestLocalSink_WriteQueryRemove(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	sink := NewLocalSink(store, nil)
	defer func() { _ = sink.Close() }()
	ctx := context.Background()

	file, chunks := commitFile(t, store, "a.ts", "one", "two")
	degraded, err := sink.Write(ctx, file, chunks, &embedder.Result{
		Vectors: [][]float32{{1, 0, 0}, {0, 1, 0}},
		Model:   testModel,
	}, 0)
	require.NoError(t, err)
	assert.False(t, degraded)

	results, err := sink.Query(ctx, testModel, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{chunks[0].ID}, chunkIDs(results))

	// Shrink to one chunk; the second point must disappear from the loaded graph
	file, chunks = commitFile(t, store, "a.ts", "one")
	_, err = sink.Write(ctx, file, chunks, &embedder.Result{Vectors: [][]float32{{1, 0, 0}}, Model: testModel}, 2)
	require.NoError(t, err)

	results, err = sink.Query(ctx, testModel, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{chunks[0].ID}, chunkIDs(results))

	require.NoError(t, sink.Remove(ctx, "a.ts", 1))
	results, err = sink.Query(ctx, testModel, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalSink_QueryUnknownModel(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	sink := NewLocalSink(store, nil)
	defer func() { _ = sink.Close() }()

	results, err := sink.Query(context.Background(), types.ModelInfo{ID: "nothing"}, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalSink_Reset(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	sink := NewLocalSink(store, nil)
	defer func() { _ = sink.Close() }()
	ctx := context.Background()

	file, chunks := commitFile(t, store, "a.ts", "one")
	_, err := sink.Write(ctx, file, chunks, &embedder.Result{Vectors: [][]float32{{1, 0, 0}}, Model: testModel}, 0)
	require.NoError(t, err)
	_, err = sink.Query(ctx, testModel, []float32{1, 0, 0}, 1)
	require.NoError(t, err)

	require.NoError(t, store.ResetWorkspace(ctx))
	require.NoError(t, sink.Reset(ctx))

	results, err := sink.Query(ctx, testModel, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func newTestCloudSink(t *testing.T) (*CloudSink, *mocks.MockStore, *storage.SQLiteStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	remote := mocks.NewMockStore(ctrl)
	store := newTestStore(t, t.TempDir())
	sink := NewCloudSink(remote, "ns", "wshash", NewLocalSink(store, nil), nil)
	return sink, remote, store
}

func TestCloudSink_WriteUpsertsAndPrunes(t *testing.T) {
	sink, remote, store := newTestCloudSink(t)
	ctx := context.Background()
	file, chunks := commitFile(t, store, "a.ts", "one")

	remote.EXPECT().Upsert(gomock.Any(), "ns", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, points []vectorstore.Point) error {
			require.Len(t, points, 1)
			assert.Equal(t, vectorstore.VectorID("wshash", "a.ts", 0), points[0].ID)
			assert.Equal(t, chunks[0].ID, points[0].ChunkID)
			return nil
		})
	remote.EXPECT().Delete(gomock.Any(), "ns", []string{
		vectorstore.VectorID("wshash", "a.ts", 1),
		vectorstore.VectorID("wshash", "a.ts", 2),
	}).Return(nil)

	degraded, err := sink.Write(ctx, file, chunks, &embedder.Result{
		Vectors: [][]float32{{0.1, 0.2, 0.3}},
		Model:   types.ModelInfo{ID: "cloud-model", Dimension: 3},
	}, 3)
	require.NoError(t, err)
	assert.False(t, degraded)
}

func TestCloudSink_SkipsZeroVectors(t *testing.T) {
	sink, _, store := newTestCloudSink(t)
	file, chunks := commitFile(t, store, "a.ts", "")

	// No remote calls are expected for an all-zero batch
	degraded, err := sink.Write(context.Background(), file, chunks, &embedder.Result{
		Vectors: [][]float32{{0, 0, 0}},
		Model:   types.ModelInfo{ID: "cloud-model", Dimension: 3},
	}, 0)
	require.NoError(t, err)
	assert.False(t, degraded)
}

func TestCloudSink_UpsertFailureFallsBackLocally(t *testing.T) {
	sink, remote, store := newTestCloudSink(t)
	ctx := context.Background()
	file, chunks := commitFile(t, store, "a.ts", "function validateToken() {}")

	remote.EXPECT().Upsert(gomock.Any(), "ns", gomock.Any()).Return(errors.New("service unavailable"))

	degraded, err := sink.Write(ctx, file, chunks, &embedder.Result{
		Vectors: [][]float32{{0.1, 0.2, 0.3}},
		Model:   types.ModelInfo{ID: "cloud-model", Dimension: 3},
	}, 0)
	require.NoError(t, err)
	assert.True(t, degraded)

	hash := embedder.NewHashRuntime()
	q, err := hash.Embed(ctx, []string{"validateToken"}, embedder.InputQuery)
	require.NoError(t, err)
	results, err := sink.Query(ctx, hash.Model(), q.Vectors[0], 5)
	require.NoError(t, err)
	assert.Equal(t, []string{chunks[0].ID}, chunkIDs(results))
}

func TestCloudSink_CancelledUpsertIsNotDegraded(t *testing.T) {
	sink, remote, store := newTestCloudSink(t)
	file, chunks := commitFile(t, store, "a.ts", "one")

	remote.EXPECT().Upsert(gomock.Any(), "ns", gomock.Any()).Return(context.Canceled)

	_, err := sink.Write(context.Background(), file, chunks, &embedder.Result{
		Vectors: [][]float32{{0.1, 0.2, 0.3}},
		Model:   types.ModelInfo{ID: "cloud-model", Dimension: 3},
	}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloudSink_DegradedResultStaysLocal(t *testing.T) {
	sink, remote, store := newTestCloudSink(t)
	ctx := context.Background()
	file, chunks := commitFile(t, store, "a.ts", "one", "two")

	hash := embedder.NewHashRuntime()
	res, err := hash.Embed(ctx, []string{"one", "two"}, embedder.InputDocument)
	require.NoError(t, err)
	res.Degraded = true

	// Points from an earlier healthy pass are dropped remotely
	remote.EXPECT().Delete(gomock.Any(), "ns", []string{vectorstore.VectorID("wshash", "a.ts", 0)}).Return(nil)

	degraded, err := sink.Write(ctx, file, chunks, res, 1)
	require.NoError(t, err)
	assert.True(t, degraded)
}

func TestCloudSink_QueryRemoveResetClose(t *testing.T) {
	sink, remote, _ := newTestCloudSink(t)
	ctx := context.Background()
	model := types.ModelInfo{ID: "cloud-model", Dimension: 3}
	vec := []float32{0.1, 0.2, 0.3}

	want := []vectorstore.Result{{ID: "x", ChunkID: "a.ts#0", FilePath: "a.ts", Score: 0.9}}
	remote.EXPECT().Query(gomock.Any(), "ns", vec, 4).Return(want, nil)
	got, err := sink.Query(ctx, model, vec, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	remote.EXPECT().Delete(gomock.Any(), "ns", []string{
		vectorstore.VectorID("wshash", "b.ts", 0),
		vectorstore.VectorID("wshash", "b.ts", 1),
	}).Return(nil)
	require.NoError(t, sink.Remove(ctx, "b.ts", 2))

	remote.EXPECT().DeleteNamespace(gomock.Any(), "ns").Return(nil)
	require.NoError(t, sink.Reset(ctx))

	remote.EXPECT().Close().Return(nil)
	require.NoError(t, sink.Close())
}
