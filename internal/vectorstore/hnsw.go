package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// exactThreshold is the live point count at or below which Query scans
	// exhaustively instead of walking the graph
	exactThreshold = 256

	// overfetch multiplies topK when collecting graph candidates for rescoring
	overfetch = 4

	// compactMinOrphans is the orphan count that triggers a graph rebuild
	compactMinOrphans = 1024
)

// HNSWConfig tunes the graph
type HNSWConfig struct {
	M        int
	EfSearch int
}

type hnswPoint struct {
	Point
	key   uint64
	order uint64
}

type hnswNamespace struct {
	graph     *hnsw.Graph[uint64]
	dimension int
	ids       map[string]*hnswPoint
	keys      map[uint64]*hnswPoint
	nextKey   uint64
	nextOrder uint64
}

// HNSWStore keeps one approximate nearest-neighbor graph per namespace.
// Candidates are rescored exactly, so scores match MemoryStore. Replaced and
// deleted points are removed lazily and the graph is rebuilt once orphans
// dominate.
type HNSWStore struct {
	mu         sync.RWMutex
	cfg        HNSWConfig
	namespaces map[string]*hnswNamespace
	closed     bool
}

// NewHNSWStore creates an empty store
func NewHNSWStore(cfg HNSWConfig) *HNSWStore {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	return &HNSWStore{cfg: cfg, namespaces: make(map[string]*hnswNamespace)}
}

func (s *HNSWStore) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = s.cfg.M
	g.EfSearch = s.cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Upsert inserts or replaces points
func (s *HNSWStore) Upsert(ctx context.Context, namespace string, points []Point) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ns := s.namespaces[namespace]
	if ns == nil {
		ns = &hnswNamespace{
			graph: s.newGraph(),
			ids:   make(map[string]*hnswPoint),
			keys:  make(map[uint64]*hnswPoint),
		}
		s.namespaces[namespace] = ns
	}
	for _, p := range points {
		if ns.dimension == 0 {
			ns.dimension = len(p.Vector)
		}
		if len(p.Vector) != ns.dimension {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(p.Vector), ns.dimension)
		}
	}

	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec

		hp := &hnswPoint{Point: p, key: ns.nextKey}
		ns.nextKey++
		if existing, ok := ns.ids[p.ID]; ok {
			hp.order = existing.order
			delete(ns.keys, existing.key)
		} else {
			hp.order = ns.nextOrder
			ns.nextOrder++
		}
		ns.ids[p.ID] = hp
		ns.keys[hp.key] = hp

		// Zero vectors have no cosine direction and stay out of the graph
		if !isZero(vec) {
			ns.graph.Add(hnsw.MakeNode(hp.key, vec))
		}
	}
	s.maybeCompact(ns)
	return nil
}

// Query returns the topK nearest points by cosine similarity
func (s *HNSWStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Result, error) {
	if err := validate(namespace, topK); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	ns := s.namespaces[namespace]
	if ns == nil || len(ns.ids) == 0 {
		return []Result{}, nil
	}
	if len(vector) != ns.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), ns.dimension)
	}

	var candidates []*hnswPoint
	if len(ns.ids) <= exactThreshold || isZero(vector) {
		candidates = make([]*hnswPoint, 0, len(ns.ids))
		for _, hp := range ns.ids {
			candidates = append(candidates, hp)
		}
	} else {
		seen := make(map[uint64]bool)
		for _, node := range ns.graph.Search(vector, topK*overfetch) {
			hp, live := ns.keys[node.Key]
			if !live || seen[node.Key] {
				continue
			}
			seen[node.Key] = true
			candidates = append(candidates, hp)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })
	results := make([]Result, 0, len(candidates))
	for _, hp := range candidates {
		results = append(results, Result{
			ID:         hp.ID,
			ChunkID:    hp.ChunkID,
			FilePath:   hp.FilePath,
			ChunkIndex: hp.ChunkIndex,
			Score:      cosine(vector, hp.Vector),
		})
	}
	return rank(results, topK), nil
}

// Delete removes points by id
func (s *HNSWStore) Delete(ctx context.Context, namespace string, ids []string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ns := s.namespaces[namespace]
	if ns == nil {
		return nil
	}
	for _, id := range ids {
		if hp, ok := ns.ids[id]; ok {
			delete(ns.keys, hp.key)
			delete(ns.ids, id)
		}
	}
	s.maybeCompact(ns)
	return nil
}

// DeleteNamespace drops the namespace and its graph
func (s *HNSWStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.namespaces, namespace)
	return nil
}

// NamespaceStats reports the live point count
func (s *HNSWStore) NamespaceStats(ctx context.Context, namespace string) (Stats, error) {
	if namespace == "" {
		return Stats{}, ErrInvalidNamespace
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	stats := Stats{Namespace: namespace}
	if ns := s.namespaces[namespace]; ns != nil {
		stats.VectorCount = len(ns.ids)
		stats.Dimension = ns.dimension
	}
	return stats, nil
}

// Close drops every graph
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.namespaces = nil
	return nil
}

// maybeCompact rebuilds the graph from live points when lazily deleted nodes
// outnumber live ones. Caller holds the write lock.
func (s *HNSWStore) maybeCompact(ns *hnswNamespace) {
	orphans := ns.graph.Len() - len(ns.keys)
	if orphans < compactMinOrphans || orphans < len(ns.keys) {
		return
	}
	live := make([]*hnswPoint, 0, len(ns.keys))
	for _, hp := range ns.keys {
		live = append(live, hp)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].key < live[j].key })

	ns.graph = s.newGraph()
	for _, hp := range live {
		if !isZero(hp.Vector) {
			ns.graph.Add(hnsw.MakeNode(hp.key, hp.Vector))
		}
	}
}
