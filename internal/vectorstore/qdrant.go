package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

// Payload keys
const (
	payloadNamespace  = "namespace"
	payloadVectorID   = "vector_id"
	payloadChunkID    = "chunk_id"
	payloadFilePath   = "file_path"
	payloadChunkIndex = "chunk_index"

	// DefaultCollection holds every namespace; isolation is by payload filter
	DefaultCollection = "hybridindex_chunks"
)

// QdrantConfig configures the remote store
type QdrantConfig struct {
	URL        string // http://host:port of the REST endpoint; gRPC is port+1
	APIKey     string
	Collection string
}

// QdrantStore implements Store on one Qdrant collection. Namespaces share the
// collection and every read, delete and count carries a namespace filter.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	mu        sync.Mutex
	ready     bool
	dimension int
}

// NewQdrantStore creates the client. No request is made until first use.
func NewQdrantStore(cfg QdrantConfig, logger *slog.Logger) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantStore{
		client:     client,
		collection: collection,
		logger:     logging.OrDefault(logger),
	}, nil
}

// parseQdrantURL derives the gRPC address from the REST URL
func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	if raw == "" {
		raw = "http://localhost:6333"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host = parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port = 6334
	if parsed.Port() != "" {
		if httpPort, convErr := strconv.Atoi(parsed.Port()); convErr == nil {
			port = httpPort + 1
		}
	}
	return host, port, parsed.Scheme == "https", nil
}

func remoteError(op string, err error) error {
	if types.IsCancellation(err) {
		return types.NewCancellationError(op, err)
	}
	return types.NewEmbeddingProviderError(types.CodeProviderNetwork, op, err, true)
}

// ensureCollection creates the collection and its namespace index on first write
func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		if dimension != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, dimension, s.dimension)
		}
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return remoteError("collection exists", err)
	}
	if exists {
		size, err := s.collectionDimension(ctx)
		if err != nil {
			return err
		}
		if size != dimension {
			return fmt.Errorf("%w: collection %s has size %d, got %d", ErrDimensionMismatch, s.collection, size, dimension)
		}
	} else {
		s.logger.Info("creating vector collection",
			slog.String("collection", s.collection),
			slog.Int("vector_size", dimension))
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return remoteError("create collection", err)
		}
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      payloadNamespace,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return remoteError("create namespace index", err)
		}
	}

	s.ready = true
	s.dimension = dimension
	return nil
}

func (s *QdrantStore) collectionDimension(ctx context.Context) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, remoteError("collection info", err)
	}
	if config := info.GetConfig(); config != nil && config.GetParams() != nil {
		if vc := config.GetParams().GetVectorsConfig(); vc != nil && vc.GetParams() != nil {
			return int(vc.GetParams().GetSize()), nil
		}
	}
	return 0, fmt.Errorf("collection %s has no vector params", s.collection)
}

// exists reports whether the collection has been created. A missing
// collection means every namespace is empty.
func (s *QdrantStore) exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return true, nil
	}
	ok, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, remoteError("collection exists", err)
	}
	return ok, nil
}

// Upsert writes points keyed by their namespaced UUID
func (s *QdrantStore) Upsert(ctx context.Context, namespace string, points []Point) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0].Vector)
	for _, p := range points {
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(p.Vector), dim)
		}
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, toPointStruct(namespace, p))
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return remoteError("upsert points", err)
	}
	s.logger.Debug("upserted vectors", slog.String("namespace", namespace), slog.Int("count", len(points)))
	return nil
}

// Query searches within the namespace only
func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Result, error) {
	if err := validate(namespace, topK); err != nil {
		return nil, err
	}
	ok, err := s.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Result{}, nil
	}

	limit := uint64(topK)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         namespaceFilter(namespace),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, remoteError("query points", err)
	}

	results := make([]Result, 0, len(scored))
	for _, sp := range scored {
		results = append(results, fromScoredPoint(sp))
	}
	return rank(results, topK), nil
}

// Delete removes points by vector id
func (s *QdrantStore) Delete(ctx context.Context, namespace string, ids []string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	if len(ids) == 0 {
		return nil
	}
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(PointUUID(namespace, id)))
	}
	wait := true
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return remoteError("delete points", err)
	}
	return nil
}

// DeleteNamespace removes every point carrying the namespace
func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}

	wait := true
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(namespaceFilter(namespace)),
	})
	if err != nil {
		return remoteError("delete namespace", err)
	}
	s.logger.Info("deleted vector namespace", slog.String("namespace", namespace))
	return nil
}

// NamespaceStats counts the namespace's points exactly
func (s *QdrantStore) NamespaceStats(ctx context.Context, namespace string) (Stats, error) {
	if namespace == "" {
		return Stats{}, ErrInvalidNamespace
	}
	stats := Stats{Namespace: namespace}
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return stats, err
	}

	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         namespaceFilter(namespace),
		Exact:          &exact,
	})
	if err != nil {
		return stats, remoteError("count points", err)
	}
	stats.VectorCount = int(count)

	s.mu.Lock()
	stats.Dimension = s.dimension
	s.mu.Unlock()
	return stats, nil
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadNamespace, namespace)},
	}
}

func toPointStruct(namespace string, p Point) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointUUID(namespace, p.ID)),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadNamespace:  namespace,
			payloadVectorID:   p.ID,
			payloadChunkID:    p.ChunkID,
			payloadFilePath:   p.FilePath,
			payloadChunkIndex: int64(p.ChunkIndex),
		}),
	}
}

func fromScoredPoint(sp *qdrant.ScoredPoint) Result {
	payload := sp.GetPayload()
	res := Result{Score: float64(sp.GetScore())}
	if v, ok := payload[payloadVectorID]; ok {
		res.ID = v.GetStringValue()
	}
	if v, ok := payload[payloadChunkID]; ok {
		res.ChunkID = v.GetStringValue()
	}
	if v, ok := payload[payloadFilePath]; ok {
		res.FilePath = v.GetStringValue()
	}
	if v, ok := payload[payloadChunkIndex]; ok {
		res.ChunkIndex = int(v.GetIntegerValue())
	}
	return res
}
