package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/internal/vectorstore"
	"github.com/dshills/hybridindex/pkg/types"
)

// VectorSink stores and queries the chunk vectors of one workspace.
//
// prevCount is the chunk count the file had before this pass so that points
// for chunks that no longer exist can be removed.
type VectorSink interface {
	// Write stores the vectors of a freshly committed file. degraded is true
	// when the vectors ended up in the local fallback store.
	Write(ctx context.Context, file *storage.File, chunks []*storage.Chunk, res *embedder.Result, prevCount int) (degraded bool, err error)

	// Remove drops every vector of filePath
	Remove(ctx context.Context, filePath string, prevCount int) error

	// Query returns the nearest chunks to a vector produced by model
	Query(ctx context.Context, model types.ModelInfo, vector []float32, topK int) ([]vectorstore.Result, error)

	// Reset drops every vector of the workspace
	Reset(ctx context.Context) error

	Close() error
}

// embeddingStore is the slice of storage the local sink needs
type embeddingStore interface {
	ReplaceEmbeddings(ctx context.Context, filePath string, embeddings []*storage.Embedding) error
	ListEmbeddings(ctx context.Context, modelID string) ([]*storage.Embedding, error)
	DeleteEmbeddingsByFile(ctx context.Context, filePath string) error
}

// LocalSink persists vectors in the workspace database and serves queries
// from an HNSW graph per model, loaded from the embeddings table on first use.
type LocalSink struct {
	store embeddingStore
	ann   *vectorstore.HNSWStore

	mu     sync.Mutex
	loaded map[string]bool // model ids whose graph mirrors the table
}

// NewLocalSink creates a sink over store. ann may be shared between sinks of
// different workspaces only if model ids never collide, so pass a fresh one.
func NewLocalSink(store embeddingStore, ann *vectorstore.HNSWStore) *LocalSink {
	if ann == nil {
		ann = vectorstore.NewHNSWStore(vectorstore.HNSWConfig{})
	}
	return &LocalSink{store: store, ann: ann, loaded: make(map[string]bool)}
}

// Write replaces the file's embeddings with the vectors of res
func (s *LocalSink) Write(ctx context.Context, file *storage.File, chunks []*storage.Chunk, res *embedder.Result, prevCount int) (bool, error) {
	model := res.Model
	embeddings := make([]*storage.Embedding, 0, len(chunks))
	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		vec := res.Vectors[i]
		embeddings = append(embeddings, &storage.Embedding{
			ChunkID:      chunk.ID,
			ModelID:      model.ID,
			ModelVersion: model.Version,
			Dimension:    len(vec),
			Vector:       vec,
		})
		points = append(points, localPoint(chunk.ID, chunk.FilePath, chunk.Index, vec))
	}

	if err := s.store.ReplaceEmbeddings(ctx, file.FilePath, embeddings); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dropStale(ctx, file.FilePath, model.ID, len(chunks), prevCount); err != nil {
		return false, err
	}
	if s.loaded[model.ID] && len(points) > 0 {
		if err := s.ann.Upsert(ctx, model.ID, points); err != nil {
			return false, fmt.Errorf("failed to update vector graph: %w", err)
		}
	}
	return res.Degraded, nil
}

// dropStale removes graph points that no longer belong to the file: chunks
// past keep in the current model and every chunk in other models.
func (s *LocalSink) dropStale(ctx context.Context, filePath, modelID string, keep, prevCount int) error {
	for ns := range s.loaded {
		from := 0
		if ns == modelID {
			from = keep
		}
		if from >= prevCount {
			continue
		}
		ids := make([]string, 0, prevCount-from)
		for i := from; i < prevCount; i++ {
			ids = append(ids, chunker.ChunkID(filePath, i))
		}
		if err := s.ann.Delete(ctx, ns, ids); err != nil {
			return fmt.Errorf("failed to prune vector graph: %w", err)
		}
	}
	return nil
}

// Remove drops the file's embeddings and graph points
func (s *LocalSink) Remove(ctx context.Context, filePath string, prevCount int) error {
	if err := s.store.DeleteEmbeddingsByFile(ctx, filePath); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropStale(ctx, filePath, "", 0, prevCount)
}

// Query searches the graph of model, loading it from the table if needed
func (s *LocalSink) Query(ctx context.Context, model types.ModelInfo, vector []float32, topK int) ([]vectorstore.Result, error) {
	if err := s.ensureLoaded(ctx, model.ID); err != nil {
		return nil, err
	}
	results, err := s.ann.Query(ctx, model.ID, vector, topK)
	if err == vectorstore.ErrInvalidNamespace {
		return nil, nil
	}
	return results, err
}

func (s *LocalSink) ensureLoaded(ctx context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[modelID] {
		return nil
	}

	embeddings, err := s.store.ListEmbeddings(ctx, modelID)
	if err != nil {
		return err
	}
	points := make([]vectorstore.Point, 0, len(embeddings))
	for _, emb := range embeddings {
		points = append(points, localPoint(emb.ChunkID, "", 0, emb.Vector))
	}
	if len(points) > 0 {
		if err := s.ann.Upsert(ctx, modelID, points); err != nil {
			return fmt.Errorf("failed to load vector graph: %w", err)
		}
	}
	s.loaded[modelID] = true
	return nil
}

// Reset forgets every loaded graph. Table rows are dropped by the storage reset.
func (s *LocalSink) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ns := range s.loaded {
		if err := s.ann.DeleteNamespace(ctx, ns); err != nil {
			return err
		}
		delete(s.loaded, ns)
	}
	return nil
}

// Close releases the graphs
func (s *LocalSink) Close() error {
	return s.ann.Close()
}

// Local graph points are keyed by chunk id, which is unique per workspace
func localPoint(chunkID, filePath string, index int, vec []float32) vectorstore.Point {
	return vectorstore.Point{ID: chunkID, Vector: vec, ChunkID: chunkID, FilePath: filePath, ChunkIndex: index}
}

// CloudSink writes vectors to a remote namespace-partitioned store. Batches
// the remote store rejects, and vectors produced by the hash fallback, go to
// a LocalSink instead so search keeps working.
type CloudSink struct {
	remote    vectorstore.Store
	namespace string
	wsHash    string
	local     *LocalSink
	hash      embedder.Runtime
	logger    *slog.Logger
}

// NewCloudSink creates a sink writing into namespace of remote
func NewCloudSink(remote vectorstore.Store, namespace, workspaceHash string, local *LocalSink, logger *slog.Logger) *CloudSink {
	return &CloudSink{
		remote:    remote,
		namespace: namespace,
		wsHash:    workspaceHash,
		local:     local,
		hash:      embedder.NewHashRuntime(),
		logger:    logging.OrDefault(logger),
	}
}

func (s *CloudSink) vectorIDs(filePath string, from, to int) []string {
	if from >= to {
		return nil
	}
	ids := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, vectorstore.VectorID(s.wsHash, filePath, i))
	}
	return ids
}

// Write upserts the file's vectors remotely and removes points of chunks
// that no longer exist.
func (s *CloudSink) Write(ctx context.Context, file *storage.File, chunks []*storage.Chunk, res *embedder.Result, prevCount int) (bool, error) {
	if res.Degraded {
		return s.writeLocal(ctx, file, chunks, res, prevCount)
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		// Empty chunks have no direction; the remote store rejects them
		if isZeroVector(res.Vectors[i]) {
			continue
		}
		points = append(points, vectorstore.Point{
			ID:         vectorstore.VectorID(s.wsHash, file.FilePath, chunk.Index),
			Vector:     res.Vectors[i],
			ChunkID:    chunk.ID,
			FilePath:   file.FilePath,
			ChunkIndex: chunk.Index,
		})
	}

	if len(points) > 0 {
		if err := s.remote.Upsert(ctx, s.namespace, points); err != nil {
			if types.IsCancellation(err) {
				return false, err
			}
			s.logger.Warn("remote vector upsert failed, storing hash vectors locally",
				slog.String("file_path", file.FilePath),
				slog.String("error", err.Error()))
			return s.rehashLocal(ctx, file, chunks, prevCount)
		}
	}
	if stale := s.vectorIDs(file.FilePath, len(chunks), prevCount); len(stale) > 0 {
		if err := s.remote.Delete(ctx, s.namespace, stale); err != nil {
			return false, err
		}
	}
	// The file may have been stored locally by an earlier degraded pass
	if err := s.local.Remove(ctx, file.FilePath, prevCount); err != nil {
		return false, err
	}
	return false, nil
}

func (s *CloudSink) rehashLocal(ctx context.Context, file *storage.File, chunks []*storage.Chunk, prevCount int) (bool, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	res, err := s.hash.Embed(ctx, texts, embedder.InputDocument)
	if err != nil {
		return false, err
	}
	res.Degraded = true
	return s.writeLocal(ctx, file, chunks, res, prevCount)
}

func (s *CloudSink) writeLocal(ctx context.Context, file *storage.File, chunks []*storage.Chunk, res *embedder.Result, prevCount int) (bool, error) {
	if _, err := s.local.Write(ctx, file, chunks, res, prevCount); err != nil {
		return false, err
	}
	if stale := s.vectorIDs(file.FilePath, 0, prevCount); len(stale) > 0 {
		if err := s.remote.Delete(ctx, s.namespace, stale); err != nil {
			// The remote store is what failed in the first place; stale
			// points are removed on the next successful pass
			s.logger.Warn("failed to remove remote vectors",
				slog.String("file_path", file.FilePath),
				slog.String("error", err.Error()))
		}
	}
	return true, nil
}

// Remove drops the file's points remotely and locally
func (s *CloudSink) Remove(ctx context.Context, filePath string, prevCount int) error {
	if ids := s.vectorIDs(filePath, 0, prevCount); len(ids) > 0 {
		if err := s.remote.Delete(ctx, s.namespace, ids); err != nil {
			return err
		}
	}
	return s.local.Remove(ctx, filePath, prevCount)
}

// Query searches the remote namespace, or the local fallback vectors when
// the query itself was hash-embedded
func (s *CloudSink) Query(ctx context.Context, model types.ModelInfo, vector []float32, topK int) ([]vectorstore.Result, error) {
	if model.ID == embedder.HashModelID {
		return s.local.Query(ctx, model, vector, topK)
	}
	return s.remote.Query(ctx, s.namespace, vector, topK)
}

// Reset deletes the namespace and the local fallback vectors
func (s *CloudSink) Reset(ctx context.Context) error {
	if err := s.remote.DeleteNamespace(ctx, s.namespace); err != nil {
		return err
	}
	return s.local.Reset(ctx)
}

// Close closes the remote client and the local graphs
func (s *CloudSink) Close() error {
	err := s.remote.Close()
	if lerr := s.local.Close(); err == nil {
		err = lerr
	}
	return err
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
