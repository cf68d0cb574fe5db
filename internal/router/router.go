package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

// DefaultStatusTimeout bounds GetStatus when no timeout is configured
const DefaultStatusTimeout = 3 * time.Second

// ModeFunc reports which backend is active. It is consulted on every call,
// so configuration changes take effect without rebuilding the router.
// BackendNone disables indexing.
type ModeFunc func() types.BackendKind

// Factory constructs the backend of one kind for the router's workspace
type Factory func(ctx context.Context, kind types.BackendKind) (indexer.Service, error)

// Router implements indexer.Service for one workspace by delegating to the
// local or cloud backend, whichever the ModeFunc selects. Backends are built
// on first use and kept, so switching modes back and forth keeps their state.
type Router struct {
	ws            types.WorkspaceIdentity
	mode          ModeFunc
	factory       Factory
	statusTimeout time.Duration
	logger        *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	backends map[types.BackendKind]indexer.Service
	unsubs   map[types.BackendKind]func()
	subs     map[int]func(types.IndexStatus)
	nextSub  int
	closed   bool
}

var _ indexer.Service = (*Router)(nil)

// Options configures a Router
type Options struct {
	StatusTimeout time.Duration
	Logger        *slog.Logger
}

// New creates a router. No backend is built until the first call.
func New(ws types.WorkspaceIdentity, mode ModeFunc, factory Factory, opts Options) *Router {
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = DefaultStatusTimeout
	}
	return &Router{
		ws:            ws,
		mode:          mode,
		factory:       factory,
		statusTimeout: opts.StatusTimeout,
		logger:        logging.OrDefault(opts.Logger).With(slog.String("workspace_id", ws.ID)),
		backends:      make(map[types.BackendKind]indexer.Service),
		unsubs:        make(map[types.BackendKind]func()),
		subs:          make(map[int]func(types.IndexStatus)),
	}
}

// DisabledStatus is reported for every status call while indexing is off
func DisabledStatus() types.IndexStatus {
	st := types.DefaultStatus()
	st.Backend = types.BackendNone
	st.Disabled = true
	return st
}

// active returns the backend selected by the current mode, building it if
// needed. Concurrent first calls share one construction; a failed
// construction is not remembered, so the next call tries again.
func (r *Router) active(ctx context.Context) (indexer.Service, error) {
	kind := r.mode()
	if kind == types.BackendNone || kind == "" {
		return nil, types.ErrDisabled
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("router for workspace %s is closed", r.ws.ID)
	}
	if svc, ok := r.backends[kind]; ok {
		r.mu.Unlock()
		return svc, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan(string(kind), func() (interface{}, error) {
		r.mu.Lock()
		if svc, ok := r.backends[kind]; ok {
			r.mu.Unlock()
			return svc, nil
		}
		r.mu.Unlock()

		// Construction outlives the first caller's context; later callers
		// share the result
		svc, err := r.factory(context.WithoutCancel(ctx), kind)
		if err != nil {
			r.logger.Warn("failed to create index backend",
				slog.String("backend", string(kind)),
				slog.String("error", err.Error()))
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = svc.Close()
			return nil, fmt.Errorf("router for workspace %s is closed", r.ws.ID)
		}
		r.backends[kind] = svc
		r.unsubs[kind] = svc.Subscribe(r.forward(kind))
		r.logger.Info("index backend ready", slog.String("backend", string(kind)))
		return svc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(indexer.Service), nil
	case <-ctx.Done():
		return nil, types.NewCancellationError("create backend", ctx.Err())
	}
}

// forward re-emits events of kind's backend while it is the active one
func (r *Router) forward(kind types.BackendKind) func(types.IndexStatus) {
	return func(st types.IndexStatus) {
		if r.mode() != kind {
			return
		}
		r.mu.Lock()
		subs := make([]func(types.IndexStatus), 0, len(r.subs))
		for _, fn := range r.subs {
			subs = append(subs, fn)
		}
		r.mu.Unlock()
		for _, fn := range subs {
			fn(st)
		}
	}
}

// BuildFullIndex delegates to the active backend
func (r *Router) BuildFullIndex(ctx context.Context) (types.IndexStatus, error) {
	svc, err := r.active(ctx)
	if err != nil {
		return r.failedStatus(err)
	}
	return svc.BuildFullIndex(ctx)
}

// RefreshPaths delegates to the active backend
func (r *Router) RefreshPaths(ctx context.Context, uris []string) error {
	svc, err := r.active(ctx)
	if err != nil {
		return err
	}
	return svc.RefreshPaths(ctx, uris)
}

// GetStatus never waits longer than the status timeout. A backend that is
// still being built or is slow to answer yields the default status.
func (r *Router) GetStatus(ctx context.Context) (types.IndexStatus, error) {
	kind := r.mode()
	if kind == types.BackendNone || kind == "" {
		return DisabledStatus(), nil
	}

	tctx, cancel := context.WithTimeout(ctx, r.statusTimeout)
	defer cancel()

	type result struct {
		st  types.IndexStatus
		err error
	}
	done := make(chan result, 1)
	go func() {
		svc, err := r.active(tctx)
		if err != nil {
			done <- result{err: err}
			return
		}
		st, err := svc.GetStatus(tctx)
		done <- result{st: st, err: err}
	}()

	fallback := types.DefaultStatus()
	fallback.Backend = kind
	select {
	case res := <-done:
		if res.err != nil {
			if ctx.Err() != nil {
				return fallback, types.NewCancellationError("get status", ctx.Err())
			}
			r.logger.Debug("status unavailable, reporting default", slog.String("error", res.err.Error()))
			return fallback, nil
		}
		return res.st, nil
	case <-tctx.Done():
		if ctx.Err() != nil {
			return fallback, types.NewCancellationError("get status", ctx.Err())
		}
		r.logger.Debug("status timed out, reporting default", slog.Duration("timeout", r.statusTimeout))
		return fallback, nil
	}
}

// Pause delegates to the active backend
func (r *Router) Pause(ctx context.Context, reason string) error {
	svc, err := r.active(ctx)
	if err != nil {
		return err
	}
	return svc.Pause(ctx, reason)
}

// Resume delegates to the active backend
func (r *Router) Resume(ctx context.Context) error {
	svc, err := r.active(ctx)
	if err != nil {
		return err
	}
	return svc.Resume(ctx)
}

// RebuildWorkspaceIndex delegates to the active backend
func (r *Router) RebuildWorkspaceIndex(ctx context.Context, reason string) (types.IndexStatus, error) {
	svc, err := r.active(ctx)
	if err != nil {
		return r.failedStatus(err)
	}
	return svc.RebuildWorkspaceIndex(ctx, reason)
}

// DeleteIndex delegates to the active backend
func (r *Router) DeleteIndex(ctx context.Context) error {
	svc, err := r.active(ctx)
	if err != nil {
		return err
	}
	return svc.DeleteIndex(ctx)
}

// GetDiagnostics delegates to the active backend
func (r *Router) GetDiagnostics(ctx context.Context) (types.Diagnostics, error) {
	svc, err := r.active(ctx)
	if err != nil {
		return types.Diagnostics{
			Status:      DisabledStatus(),
			WorkspaceID: r.ws.ID,
			RootPath:    r.ws.RootPath,
			Backend:     types.BackendNone,
		}, err
	}
	return svc.GetDiagnostics(ctx)
}

// Search delegates to the active backend
func (r *Router) Search(ctx context.Context, query string, opts types.SearchOptions) ([]types.SemanticSearchResult, error) {
	svc, err := r.active(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Search(ctx, query, opts)
}

// GetContext delegates to the active backend
func (r *Router) GetContext(ctx context.Context, query string, opts types.ContextOptions) (*types.ContextBundle, error) {
	svc, err := r.active(ctx)
	if err != nil {
		return nil, err
	}
	return svc.GetContext(ctx, query, opts)
}

// Subscribe registers fn for status events of the active backend
func (r *Router) Subscribe(fn func(types.IndexStatus)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Close closes every backend built so far
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	backends := r.backends
	unsubs := r.unsubs
	r.backends = make(map[types.BackendKind]indexer.Service)
	r.unsubs = make(map[types.BackendKind]func())
	r.subs = make(map[int]func(types.IndexStatus))
	r.mu.Unlock()

	var firstErr error
	for kind, svc := range backends {
		if unsub := unsubs[kind]; unsub != nil {
			unsub()
		}
		if err := svc.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s backend: %w", kind, err)
		}
	}
	return firstErr
}

// failedStatus maps a backend acquisition error to the status returned by
// status-returning operations. Disabled indexing is a status, not an error.
func (r *Router) failedStatus(err error) (types.IndexStatus, error) {
	if errors.Is(err, types.ErrDisabled) {
		return DisabledStatus(), nil
	}
	st := types.DefaultStatus()
	st.Backend = r.mode()
	st.LastError = err.Error()
	return st, err
}
