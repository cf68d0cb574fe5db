package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/dshills/hybridindex/pkg/types"
)

const (
	databaseFile = "index.db"
	lockFile     = "index.lock"
)

// Manager hands out one cached SQLiteStorage per workspace id for the
// process lifetime. Each workspace directory is guarded by a file lock so two
// processes never write the same database.
type Manager struct {
	root string

	mu      sync.Mutex
	handles map[string]*managedHandle
}

type managedHandle struct {
	storage *SQLiteStorage
	lock    *flock.Flock
}

// NewManager creates a manager rooted at root
func NewManager(root string) *Manager {
	return &Manager{
		root:    root,
		handles: make(map[string]*managedHandle),
	}
}

// Dir returns the directory holding the workspace database
func (m *Manager) Dir(ws types.WorkspaceIdentity) string {
	return filepath.Join(m.root, ws.ID)
}

// Open returns the storage for ws, creating its directory and schema on first use
func (m *Manager) Open(ctx context.Context, ws types.WorkspaceIdentity) (*SQLiteStorage, error) {
	if ws.ID == "" {
		return nil, types.NewConfigurationError("workspace id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewCancellationError("open storage", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[ws.ID]; ok {
		return h.storage, nil
	}

	dir := m.Dir(ws)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewStorageError("create workspace directory", err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, types.NewStorageError("lock workspace directory", err)
	}
	if !locked {
		return nil, &types.IndexError{
			Kind:    types.KindStorage,
			Code:    types.CodeStorageLocked,
			Op:      "lock workspace directory",
			Message: fmt.Sprintf("workspace database %s is in use by another process", dir),
		}
	}

	store, err := NewSQLiteStorage(filepath.Join(dir, databaseFile), ws)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	m.handles[ws.ID] = &managedHandle{storage: store, lock: lock}
	return store, nil
}

// Close closes every cached handle and releases the directory locks
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, h := range m.handles {
		if err := h.storage.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close workspace %s: %w", id, err)
		}
		if err := h.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to unlock workspace %s: %w", id, err)
		}
		delete(m.handles, id)
	}
	return firstErr
}
