package graph

import (
	"context"

	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/pkg/types"
)

// ErrNotFound is returned by GetSymbol for unknown ids
var ErrNotFound = storage.ErrNotFound

// Store is the per-workspace symbol graph. Implemented by
// *storage.SQLiteStorage (persistent) and *MemoryStore (degraded).
type Store interface {
	// UpdateFromFile replaces everything fg.URI previously contributed
	UpdateFromFile(ctx context.Context, fg *types.FileGraph) error

	// DeleteGraph removes the contribution of uri
	DeleteGraph(ctx context.Context, uri string) error

	// ResetGraph removes every node and edge
	ResetGraph(ctx context.Context) error

	GetSymbol(ctx context.Context, id string) (*types.Symbol, error)
	GetDefinitions(ctx context.Context, id string) ([]types.Occurrence, error)
	GetReferences(ctx context.Context, id string) ([]types.Occurrence, error)

	// GetNeighbors expands edges adjacent to id; DirectionBoth covers both ways
	GetNeighbors(ctx context.Context, id string, dir types.Direction) ([]types.Neighbor, error)

	GetFileGraph(ctx context.Context, uri string) (*types.FileGraph, error)

	// FindSymbols matches symbol names case-insensitively
	FindSymbols(ctx context.Context, names []string, limit int) ([]types.Symbol, error)

	GraphStats(ctx context.Context) (types.GraphStats, error)
}

var (
	_ Store = (*storage.SQLiteStorage)(nil)
	_ Store = (*MemoryStore)(nil)
)

// New returns persistent when the graph feature is enabled and an in-memory
// store otherwise. Callers see the same interface either way.
func New(enabled bool, persistent Store) Store {
	if enabled && persistent != nil {
		return persistent
	}
	return NewMemoryStore()
}

// IsPersistent reports whether s survives a restart
func IsPersistent(s Store) bool {
	_, memory := s.(*MemoryStore)
	return !memory
}
