package vectorstore

import (
	"context"
	"fmt"
	"sync"
)

type memoryNamespace struct {
	dimension int
	order     []string // insertion order of live ids
	points    map[string]Point
}

// MemoryStore is an exact-search Store held in process memory
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
	closed     bool
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]*memoryNamespace)}
}

// Upsert inserts or replaces points. A replaced point keeps its original position.
func (m *MemoryStore) Upsert(ctx context.Context, namespace string, points []Point) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	ns := m.namespaces[namespace]
	if ns == nil {
		ns = &memoryNamespace{points: make(map[string]Point)}
		m.namespaces[namespace] = ns
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
		if _, exists := ns.points[p.ID]; !exists {
			ns.order = append(ns.order, p.ID)
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec
		ns.points[p.ID] = p
	}
	return nil
}

// Query scores every point in the namespace
func (m *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Result, error) {
	if err := validate(namespace, topK); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	ns := m.namespaces[namespace]
	if ns == nil || len(ns.points) == 0 {
		return []Result{}, nil
	}
	if len(vector) != ns.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), ns.dimension)
	}

	results := make([]Result, 0, len(ns.order))
	for _, id := range ns.order {
		p := ns.points[id]
		results = append(results, Result{
			ID:         p.ID,
			ChunkID:    p.ChunkID,
			FilePath:   p.FilePath,
			ChunkIndex: p.ChunkIndex,
			Score:      cosine(vector, p.Vector),
		})
	}
	return rank(results, topK), nil
}

// Delete removes points by id
func (m *MemoryStore) Delete(ctx context.Context, namespace string, ids []string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	ns := m.namespaces[namespace]
	if ns == nil {
		return nil
	}
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := ns.points[id]; ok {
			delete(ns.points, id)
			removed[id] = true
		}
	}
	if len(removed) == 0 {
		return nil
	}
	order := ns.order[:0]
	for _, id := range ns.order {
		if !removed[id] {
			order = append(order, id)
		}
	}
	ns.order = order
	return nil
}

// DeleteNamespace drops the namespace
func (m *MemoryStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.namespaces, namespace)
	return nil
}

// NamespaceStats reports the point count
func (m *MemoryStore) NamespaceStats(ctx context.Context, namespace string) (Stats, error) {
	if namespace == "" {
		return Stats{}, ErrInvalidNamespace
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Stats{}, ErrClosed
	}
	stats := Stats{Namespace: namespace}
	if ns := m.namespaces[namespace]; ns != nil {
		stats.VectorCount = len(ns.points)
		stats.Dimension = ns.dimension
	}
	return stats, nil
}

// Close releases all namespaces
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.namespaces = nil
	return nil
}
