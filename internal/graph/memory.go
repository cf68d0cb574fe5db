package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/hybridindex/pkg/types"
)

// MemoryStore keeps each file's graph in a map. Nothing is persisted.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*types.FileGraph
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*types.FileGraph)}
}

// UpdateFromFile swaps in a copy of fg
func (m *MemoryStore) UpdateFromFile(ctx context.Context, fg *types.FileGraph) error {
	if fg == nil || fg.URI == "" {
		return types.ErrMissingFileInfo
	}
	for i := range fg.Symbols {
		if err := fg.Symbols[i].Validate(); err != nil {
			return err
		}
	}
	cp := &types.FileGraph{
		URI:         fg.URI,
		Symbols:     append([]types.Symbol(nil), fg.Symbols...),
		Definitions: append([]types.Occurrence(nil), fg.Definitions...),
		References:  append([]types.Occurrence(nil), fg.References...),
		Edges:       append([]types.Edge(nil), fg.Edges...),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fg.URI] = cp
	return nil
}

// DeleteGraph forgets uri
func (m *MemoryStore) DeleteGraph(ctx context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, uri)
	return nil
}

// ResetGraph forgets everything
func (m *MemoryStore) ResetGraph(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*types.FileGraph)
	return nil
}

// GetSymbol looks up a node by id
func (m *MemoryStore) GetSymbol(ctx context.Context, id string) (*types.Symbol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sym := m.symbolLocked(id); sym != nil {
		return sym, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) symbolLocked(id string) *types.Symbol {
	for _, fg := range m.files {
		for i := range fg.Symbols {
			if fg.Symbols[i].ID == id {
				sym := fg.Symbols[i]
				return &sym
			}
		}
	}
	return nil
}

// resolveLocked resolves ref:Name ids to the lowest-id symbol with that name
func (m *MemoryStore) resolveLocked(id string) *types.Symbol {
	name, ok := types.RefName(id)
	if !ok {
		return m.symbolLocked(id)
	}
	var best *types.Symbol
	for _, fg := range m.files {
		for i := range fg.Symbols {
			if fg.Symbols[i].Name == name && (best == nil || fg.Symbols[i].ID < best.ID) {
				sym := fg.Symbols[i]
				best = &sym
			}
		}
	}
	return best
}

func (m *MemoryStore) aliasesLocked(id string) map[string]bool {
	ids := map[string]bool{id: true}
	if sym := m.resolveLocked(id); sym != nil && sym.ID == id {
		ids[types.RefID(sym.Name)] = true
	}
	return ids
}

// GetDefinitions returns where id is defined
func (m *MemoryStore) GetDefinitions(ctx context.Context, id string) ([]types.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.occurrencesLocked(map[string]bool{id: true}, true), nil
}

// GetReferences returns where id is referenced, including by unresolved name
func (m *MemoryStore) GetReferences(ctx context.Context, id string) ([]types.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.occurrencesLocked(m.aliasesLocked(id), false), nil
}

func (m *MemoryStore) occurrencesLocked(ids map[string]bool, definitions bool) []types.Occurrence {
	var out []types.Occurrence
	for _, fg := range m.files {
		list := fg.References
		if definitions {
			list = fg.Definitions
		}
		for _, occ := range list {
			if ids[occ.SymbolID] {
				out = append(out, occ)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].URI != out[j].URI {
			return out[i].URI < out[j].URI
		}
		return out[i].Range.Before(out[j].Range)
	})
	return out
}

// GetNeighbors expands adjacent edges
func (m *MemoryStore) GetNeighbors(ctx context.Context, id string, dir types.Direction) ([]types.Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var neighbors []types.Neighbor
	if dir == types.DirectionBoth || dir == types.DirectionOutgoing {
		for _, e := range m.edgesLocked(func(e types.Edge) bool { return e.FromID == id }) {
			neighbors = append(neighbors, types.Neighbor{Edge: e, Direction: types.DirectionOutgoing, Symbol: m.resolveLocked(e.ToID)})
		}
	}
	if dir == types.DirectionBoth || dir == types.DirectionIncoming {
		ids := m.aliasesLocked(id)
		for _, e := range m.edgesLocked(func(e types.Edge) bool { return ids[e.ToID] }) {
			neighbors = append(neighbors, types.Neighbor{Edge: e, Direction: types.DirectionIncoming, Symbol: m.resolveLocked(e.FromID)})
		}
	}
	return neighbors, nil
}

// edgesLocked returns distinct matching edges ordered by from, to, kind
func (m *MemoryStore) edgesLocked(match func(types.Edge) bool) []types.Edge {
	seen := make(map[types.Edge]bool)
	var out []types.Edge
	for _, fg := range m.files {
		for _, e := range fg.Edges {
			if match(e) && !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []types.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromID != edges[j].FromID {
			return edges[i].FromID < edges[j].FromID
		}
		if edges[i].ToID != edges[j].ToID {
			return edges[i].ToID < edges[j].ToID
		}
		return edges[i].Kind < edges[j].Kind
	})
}

// GetFileGraph returns a copy of uri's contribution, empty when unknown
func (m *MemoryStore) GetFileGraph(ctx context.Context, uri string) (*types.FileGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fg := m.files[uri]
	if fg == nil {
		return &types.FileGraph{URI: uri}, nil
	}
	out := &types.FileGraph{
		URI:         uri,
		Symbols:     append([]types.Symbol(nil), fg.Symbols...),
		Definitions: append([]types.Occurrence(nil), fg.Definitions...),
		References:  append([]types.Occurrence(nil), fg.References...),
		Edges:       append([]types.Edge(nil), fg.Edges...),
	}
	sort.SliceStable(out.Symbols, func(i, j int) bool {
		if out.Symbols[i].Range.StartLine != out.Symbols[j].Range.StartLine {
			return out.Symbols[i].Range.StartLine < out.Symbols[j].Range.StartLine
		}
		return out.Symbols[i].ID < out.Symbols[j].ID
	})
	sortEdges(out.Edges)
	return out, nil
}

// FindSymbols matches names case-insensitively, skipping file and module nodes
func (m *MemoryStore) FindSymbols(ctx context.Context, names []string, limit int) ([]types.Symbol, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Symbol
	for _, fg := range m.files {
		for _, sym := range fg.Symbols {
			if sym.Kind == types.KindFile || sym.Kind == types.KindModule {
				continue
			}
			if want[strings.ToLower(sym.Name)] {
				out = append(out, sym)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GraphStats counts nodes and distinct edges
func (m *MemoryStore) GraphStats(ctx context.Context) (types.GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats types.GraphStats
	edges := make(map[types.Edge]bool)
	for _, fg := range m.files {
		stats.NodeCount += len(fg.Symbols)
		for _, e := range fg.Edges {
			edges[e] = true
		}
	}
	stats.EdgeCount = len(edges)
	return stats, nil
}
