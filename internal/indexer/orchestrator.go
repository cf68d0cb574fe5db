package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/hybridindex/internal/bundler"
	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/graph"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/parser"
	"github.com/dshills/hybridindex/internal/searcher"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/pkg/types"
)

// DefaultWorkers is the file worker pool size when none is configured
const DefaultWorkers = 4

// ErrIndexBusy is returned by DeleteIndex while a build or rebuild runs
var ErrIndexBusy = &types.IndexError{
	Kind:    types.KindConfiguration,
	Code:    types.CodeRebuildInProcess,
	Message: "an index build is in progress",
}

// Options configures an Orchestrator
type Options struct {
	Backend types.BackendKind

	// Workers bounds how many files are processed concurrently
	Workers int

	// Exclude holds glob patterns for paths never indexed
	Exclude []string

	Chunker chunker.Options
	Search  searcher.Config

	// ModelState reports the heavy model download state, if any
	ModelState func() types.ModelDownloadState

	// Guard is shared by every orchestrator of the workspace. Nil creates a
	// private one.
	Guard *Guard

	Logger *slog.Logger
}

// Orchestrator drives the index lifecycle of one workspace:
// Idle → Building → Ready, Ready ↔ Paused, any → Error, Error → Building.
type Orchestrator struct {
	ws       types.WorkspaceIdentity
	store    storage.Storage
	graph    graph.Store
	runtime  embedder.Runtime
	sink     VectorSink
	parser   *parser.Parser
	chunker  *chunker.Chunker
	searcher *searcher.Searcher
	bundler  *bundler.Bundler
	opts     Options
	logger   *slog.Logger

	guard *Guard

	mu          sync.Mutex
	state       types.IndexState
	paused      bool
	pauseReason string
	gate        chan struct{} // closed while running, open while paused
	lastError   string
	lastErrorAt *time.Time
	subs        map[int]func(types.IndexStatus)
	nextSub     int
}

var _ Service = (*Orchestrator)(nil)

// New creates an orchestrator over the workspace bound to store. A nil graph
// store degrades to an in-memory graph.
func New(store storage.Storage, g graph.Store, rt embedder.Runtime, sink VectorSink, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Backend == "" {
		opts.Backend = types.BackendLocal
	}
	if g == nil {
		g = graph.NewMemoryStore()
	}
	if opts.Guard == nil {
		opts.Guard = NewGuard()
	}
	logger := logging.OrDefault(opts.Logger).With(
		slog.String("workspace_id", store.Workspace().ID),
		slog.String("backend", string(opts.Backend)))

	gate := make(chan struct{})
	close(gate)

	o := &Orchestrator{
		ws:      store.Workspace(),
		store:   store,
		graph:   g,
		runtime: rt,
		sink:    sink,
		parser:  parser.New(),
		chunker: chunker.New(opts.Chunker),
		opts:    opts,
		logger:  logger,
		guard:   opts.Guard,
		state:   types.StateIdle,
		gate:    gate,
		subs:    make(map[int]func(types.IndexStatus)),
	}
	o.searcher = searcher.New(store, sink, g, rt, opts.Search, logger)
	o.bundler = bundler.New(o.searcher, logger)
	return o
}

// BuildFullIndex indexes every file of the workspace. A call made while
// another build runs returns the current status without doing anything.
func (o *Orchestrator) BuildFullIndex(ctx context.Context) (types.IndexStatus, error) {
	if !o.guard.build.TryAcquire(1) {
		o.logger.Debug("build already in progress")
		return o.GetStatus(ctx)
	}
	defer o.guard.build.Release(1)
	return o.runBuild(ctx)
}

// runBuild must be called with the build semaphore held
func (o *Orchestrator) runBuild(ctx context.Context) (types.IndexStatus, error) {
	start := time.Now()
	prev := o.setState(ctx, types.StateBuilding)

	files, err := discoverFiles(ctx, o.ws.RootPath, o.opts.Exclude)
	if err == nil {
		err = o.reconcile(ctx, files)
	}
	if err == nil {
		err = o.processFiles(ctx, files)
	}

	if err != nil {
		if types.IsCancellation(err) {
			next := types.StateIdle
			if prev == types.StateReady {
				next = types.StateReady
			}
			o.setState(ctx, next)
			o.logger.Info("index build cancelled", slog.Duration("elapsed", time.Since(start)))
			st, _ := o.GetStatus(context.WithoutCancel(ctx))
			if !errors.Is(err, types.ErrCancelled) {
				err = types.NewCancellationError("build index", err)
			}
			return st, err
		}
		o.setFailure(ctx, err)
		st, _ := o.GetStatus(context.WithoutCancel(ctx))
		return st, fmt.Errorf("failed to build index: %w", err)
	}

	o.setState(ctx, types.StateReady)
	st, err := o.GetStatus(context.WithoutCancel(ctx))
	o.logger.Info("index build complete",
		slog.Int("total_files", st.TotalFiles),
		slog.Int("indexed_files", st.IndexedFiles),
		slog.Int("total_chunks", st.TotalChunks),
		slog.Duration("elapsed", time.Since(start)))
	return st, err
}

// reconcile creates Unindexed rows for new files so totals are known up
// front, and removes rows of files that disappeared or became excluded.
func (o *Orchestrator) reconcile(ctx context.Context, files []string) error {
	existing, err := o.store.ListFiles(ctx, storage.ListOptions{})
	if err != nil {
		return err
	}

	discovered := make(map[string]bool, len(files))
	for _, rel := range files {
		discovered[rel] = true
	}
	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		if f.State == types.FileDeleted {
			continue
		}
		known[f.FilePath] = true
		if discovered[f.FilePath] {
			continue
		}
		if _, err := o.dropFile(ctx, f.FilePath); err != nil {
			return err
		}
	}

	for _, rel := range files {
		if known[rel] {
			continue
		}
		err := o.store.UpsertDocument(ctx, &storage.File{
			FilePath:   rel,
			URI:        FileURI(o.ws.RootPath, rel),
			LanguageID: chunker.DetectLanguage(rel),
			State:      types.FileUnindexed,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// dropFile removes a file that is no longer part of the index
func (o *Orchestrator) dropFile(ctx context.Context, rel string) (outcome, error) {
	entry, _ := o.guard.locks.begin(rel)
	defer o.guard.locks.end(rel, entry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	prior, err := o.store.GetFile(ctx, rel)
	if errors.Is(err, storage.ErrNotFound) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeFailed, err
	}
	return o.removeFile(ctx, prior)
}

// processFiles runs indexFile over files with bounded concurrency. Workers
// wait at the pause gate before starting each file.
func (o *Orchestrator) processFiles(ctx context.Context, files []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, rel := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := o.waitRunnable(gctx); err != nil {
				return err
			}
			_, err := o.indexFile(gctx, rel)
			return err
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = types.NewCancellationError("process files", ctx.Err())
	}
	return err
}

// waitRunnable blocks while the orchestrator is paused
func (o *Orchestrator) waitRunnable(ctx context.Context) error {
	o.mu.Lock()
	gate := o.gate
	o.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return types.NewCancellationError("wait for resume", ctx.Err())
	}
}

// RefreshPaths re-indexes the given locations. Paths outside the workspace,
// unsupported and excluded files are ignored.
func (o *Orchestrator) RefreshPaths(ctx context.Context, uris []string) error {
	seen := make(map[string]bool, len(uris))
	var files []string
	for _, u := range uris {
		rel, ok := relPath(o.ws.RootPath, u)
		if !ok {
			o.logger.Debug("ignoring path outside workspace", slog.String("path", u))
			continue
		}
		if seen[rel] || !o.indexable(rel) {
			continue
		}
		seen[rel] = true
		files = append(files, rel)
	}
	if len(files) == 0 {
		return nil
	}
	sort.Strings(files)

	err := o.processFiles(ctx, files)
	o.emit(ctx)
	return err
}

func (o *Orchestrator) indexable(rel string) bool {
	if !chunker.IsSupported(rel) || Excluded(rel, o.opts.Exclude) {
		return false
	}
	for _, elem := range strings.Split(rel, "/") {
		if strings.HasPrefix(elem, ".") {
			return false
		}
	}
	return true
}

// Pause holds back new files; files already being processed finish
func (o *Orchestrator) Pause(ctx context.Context, reason string) error {
	o.mu.Lock()
	if o.paused {
		o.pauseReason = reason
		o.mu.Unlock()
		return nil
	}
	o.paused = true
	o.pauseReason = reason
	o.gate = make(chan struct{})
	o.mu.Unlock()

	o.logger.Info("indexing paused", slog.String("reason", reason))
	o.emit(ctx)
	return nil
}

// Resume releases workers waiting at the pause gate
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	if !o.paused {
		o.mu.Unlock()
		return nil
	}
	o.paused = false
	o.pauseReason = ""
	close(o.gate)
	o.mu.Unlock()

	o.logger.Info("indexing resumed")
	o.emit(ctx)
	return nil
}

// RebuildWorkspaceIndex drops every row and vector and builds from scratch.
// Only one rebuild runs at a time; a second call reports the current status.
func (o *Orchestrator) RebuildWorkspaceIndex(ctx context.Context, reason string) (types.IndexStatus, error) {
	if !o.guard.rebuilding.TryAcquire(reason) {
		o.logger.Info("rebuild already in progress",
			slog.String("reason", reason),
			slog.String("running_reason", o.guard.rebuilding.Reason()))
		return o.GetStatus(ctx)
	}
	defer o.guard.rebuilding.Release()

	// Wait for a plain build to finish rather than write under it
	if err := o.guard.build.Acquire(ctx, 1); err != nil {
		st, _ := o.GetStatus(context.WithoutCancel(ctx))
		return st, types.NewCancellationError("rebuild index", err)
	}
	defer o.guard.build.Release(1)

	o.logger.Info("rebuilding workspace index", slog.String("reason", reason))
	o.setState(ctx, types.StateBuilding)
	if err := o.reset(ctx); err != nil {
		if types.IsCancellation(err) {
			o.setState(ctx, types.StateIdle)
			st, _ := o.GetStatus(context.WithoutCancel(ctx))
			return st, types.NewCancellationError("rebuild index", err)
		}
		o.setFailure(ctx, err)
		st, _ := o.GetStatus(context.WithoutCancel(ctx))
		return st, fmt.Errorf("failed to reset index: %w", err)
	}
	o.clearError()
	return o.runBuild(ctx)
}

// DeleteIndex drops every row and vector of the workspace. The database file
// itself stays in place.
func (o *Orchestrator) DeleteIndex(ctx context.Context) error {
	if !o.guard.build.TryAcquire(1) {
		return ErrIndexBusy
	}
	defer o.guard.build.Release(1)

	if err := o.reset(ctx); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	o.clearError()
	o.setState(ctx, types.StateIdle)
	o.logger.Info("workspace index deleted")
	return nil
}

func (o *Orchestrator) reset(ctx context.Context) error {
	defer o.searcher.InvalidateCache()
	if err := o.store.ResetWorkspace(ctx); err != nil {
		return err
	}
	if err := o.graph.ResetGraph(ctx); err != nil {
		return err
	}
	return o.sink.Reset(ctx)
}

// GetStatus computes the status from row counts and lifecycle state
func (o *Orchestrator) GetStatus(ctx context.Context) (types.IndexStatus, error) {
	counts, err := o.store.Counts(ctx)
	return o.snapshot(counts), err
}

func (o *Orchestrator) snapshot(c storage.Counts) types.IndexStatus {
	modelState := types.ModelNone
	if o.opts.ModelState != nil {
		modelState = o.opts.ModelState()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	st := types.IndexStatus{
		State:              o.state,
		TotalFiles:         c.TotalFiles,
		IndexedFiles:       c.IndexedFiles,
		TotalChunks:        c.TotalChunks,
		EmbeddedChunks:     c.EmbeddedChunks,
		Paused:             o.paused,
		PauseReason:        o.pauseReason,
		LastError:          o.lastError,
		ModelDownloadState: modelState,
		Backend:            o.opts.Backend,
	}
	if o.paused {
		st.State = types.StatePaused
	}
	return st
}

// GetDiagnostics extends the status with identity, model and per-file issues
func (o *Orchestrator) GetDiagnostics(ctx context.Context) (types.Diagnostics, error) {
	st, err := o.GetStatus(ctx)
	if err != nil {
		return types.Diagnostics{}, err
	}
	stats, err := o.graph.GraphStats(ctx)
	if err != nil {
		return types.Diagnostics{}, err
	}
	version, err := o.store.SchemaVersion(ctx)
	if err != nil {
		return types.Diagnostics{}, err
	}
	files, err := o.store.ListFiles(ctx, storage.ListOptions{})
	if err != nil {
		return types.Diagnostics{}, err
	}

	d := types.Diagnostics{
		Status:         st,
		WorkspaceID:    o.ws.ID,
		RootPath:       o.ws.RootPath,
		Backend:        o.opts.Backend,
		EmbeddingModel: o.runtime.Model(),
		Graph:          stats,
		SchemaVersion:  version,
		StorageDriver:  storage.DriverName,
	}
	for _, f := range files {
		if f.State == types.FileError {
			d.ErroredFiles = append(d.ErroredFiles, types.FileIssue{FilePath: f.FilePath, Message: f.LastError})
		}
		if strings.Contains(f.Diagnostic, "truncated") {
			d.TruncatedFiles = append(d.TruncatedFiles, types.FileIssue{FilePath: f.FilePath, Message: f.Diagnostic})
		}
	}

	o.mu.Lock()
	d.LastErrorAt = o.lastErrorAt
	o.mu.Unlock()
	return d, nil
}

// Search runs a hybrid search and returns up to opts.Limit results
func (o *Orchestrator) Search(ctx context.Context, query string, opts types.SearchOptions) ([]types.SemanticSearchResult, error) {
	resp, err := o.searcher.Search(ctx, searcher.Request{
		Query:    query,
		Limit:    opts.Limit,
		FocusURI: o.focusURI(opts.FocusFile),
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetContext assembles a context bundle annotated with index freshness
func (o *Orchestrator) GetContext(ctx context.Context, query string, opts types.ContextOptions) (*types.ContextBundle, error) {
	st, err := o.GetStatus(ctx)
	if err != nil && types.IsCancellation(err) {
		return nil, err
	}
	return o.bundler.Bundle(ctx, bundler.Request{
		Query:       query,
		FocusURI:    o.focusURI(opts.FocusFile),
		MaxSnippets: opts.MaxSnippets,
		MaxTokens:   opts.MaxTokens,
		Status:      st,
	})
}

func (o *Orchestrator) focusURI(focus string) string {
	if focus == "" {
		return ""
	}
	rel, ok := relPath(o.ws.RootPath, focus)
	if !ok {
		return ""
	}
	return FileURI(o.ws.RootPath, rel)
}

// Subscribe registers fn for status transitions
func (o *Orchestrator) Subscribe(fn func(types.IndexStatus)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Close releases the runtime and the vector sink. The storage handle belongs
// to the storage manager and stays open.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.subs = make(map[int]func(types.IndexStatus))
	o.mu.Unlock()

	err := o.sink.Close()
	if rerr := o.runtime.Close(); err == nil {
		err = rerr
	}
	return err
}

// setState moves to s, emits the new status and returns the previous state
func (o *Orchestrator) setState(ctx context.Context, s types.IndexState) types.IndexState {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	if prev != s {
		o.logger.Debug("index state changed", slog.String("from", string(prev)), slog.String("to", string(s)))
	}
	o.emit(ctx)
	return prev
}

// setFailure records a whole-workspace failure
func (o *Orchestrator) setFailure(ctx context.Context, err error) {
	o.logger.Error("index operation failed",
		slog.String("kind", string(types.KindOf(err))),
		slog.String("error", err.Error()))
	o.recordError(err)
	o.setState(ctx, types.StateError)
}

// recordError keeps the most recent error; cancellation is never recorded
func (o *Orchestrator) recordError(err error) {
	if err == nil || types.IsCancellation(err) {
		return
	}
	now := time.Now()
	o.mu.Lock()
	o.lastError = err.Error()
	o.lastErrorAt = &now
	o.mu.Unlock()
}

func (o *Orchestrator) clearError() {
	o.mu.Lock()
	o.lastError = ""
	o.lastErrorAt = nil
	o.mu.Unlock()
}

// emit sends the current status to every subscriber
func (o *Orchestrator) emit(ctx context.Context) {
	o.mu.Lock()
	subs := make([]func(types.IndexStatus), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	st, err := o.GetStatus(context.WithoutCancel(ctx))
	if err != nil {
		o.logger.Debug("status counts unavailable", slog.String("error", err.Error()))
	}
	for _, fn := range subs {
		fn(st)
	}
}
