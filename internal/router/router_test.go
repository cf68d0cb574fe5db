package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/internal/config"
	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

type fakeService struct {
	kind types.BackendKind

	mu     sync.Mutex
	subs   []func(types.IndexStatus)
	builds int
	closed bool
}

func (f *fakeService) status() types.IndexStatus {
	return types.IndexStatus{State: types.StateReady, Backend: f.kind, TotalFiles: 3, IndexedFiles: 3}
}

func (f *fakeService) emit(st types.IndexStatus) {
	f.mu.Lock()
	subs := append([]func(types.IndexStatus){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (f *fakeService) BuildFullIndex(context.Context) (types.IndexStatus, error) {
	f.mu.Lock()
	f.builds++
	f.mu.Unlock()
	return f.status(), nil
}

func (f *fakeService) RefreshPaths(context.Context, []string) error { return nil }

func (f *fakeService) GetStatus(context.Context) (types.IndexStatus, error) {
	return f.status(), nil
}

func (f *fakeService) Pause(context.Context, string) error { return nil }
func (f *fakeService) Resume(context.Context) error        { return nil }

func (f *fakeService) RebuildWorkspaceIndex(ctx context.Context, _ string) (types.IndexStatus, error) {
	return f.BuildFullIndex(ctx)
}

func (f *fakeService) DeleteIndex(context.Context) error { return nil }

func (f *fakeService) GetDiagnostics(context.Context) (types.Diagnostics, error) {
	return types.Diagnostics{Status: f.status(), Backend: f.kind}, nil
}

func (f *fakeService) Search(context.Context, string, types.SearchOptions) ([]types.SemanticSearchResult, error) {
	return []types.SemanticSearchResult{{FilePath: string(f.kind) + ".go"}}, nil
}

func (f *fakeService) GetContext(_ context.Context, query string, _ types.ContextOptions) (*types.ContextBundle, error) {
	return &types.ContextBundle{Query: query}, nil
}

func (f *fakeService) Subscribe(fn func(types.IndexStatus)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs = nil
	}
}

func (f *fakeService) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// switchable is a mode that tests flip between calls
type switchable struct {
	v atomic.Value
}

func newSwitchable(kind types.BackendKind) *switchable {
	s := &switchable{}
	s.v.Store(kind)
	return s
}

func (s *switchable) set(kind types.BackendKind) { s.v.Store(kind) }
func (s *switchable) mode() types.BackendKind    { return s.v.Load().(types.BackendKind) }

// fakeFactory builds one fakeService per kind and counts constructions
type fakeFactory struct {
	calls   atomic.Int32
	gate    chan struct{}
	failFor atomic.Int32

	mu       sync.Mutex
	services map[types.BackendKind]*fakeService
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{services: make(map[types.BackendKind]*fakeService)}
}

func (f *fakeFactory) build(_ context.Context, kind types.BackendKind) (indexer.Service, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.failFor.Load() > 0 {
		f.failFor.Add(-1)
		return nil, errors.New("backend unavailable")
	}
	svc := &fakeService{kind: kind}
	f.mu.Lock()
	f.services[kind] = svc
	f.mu.Unlock()
	return svc, nil
}

func (f *fakeFactory) service(kind types.BackendKind) *fakeService {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.services[kind]
}

func testWorkspace(t *testing.T) types.WorkspaceIdentity {
	t.Helper()
	ws, err := types.NewWorkspaceIdentity(t.TempDir())
	require.NoError(t, err)
	return ws
}

func newTestRouter(t *testing.T, mode *switchable, f *fakeFactory, timeout time.Duration) *Router {
	t.Helper()
	r := New(testWorkspace(t), mode.mode, f.build, Options{StatusTimeout: timeout, Logger: logging.Discard()})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRouter_Disabled(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	r := newTestRouter(t, newSwitchable(types.BackendNone), f, time.Second)

	st, err := r.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.Disabled)
	assert.Equal(t, types.BackendNone, st.Backend)
	assert.Equal(t, types.StateIdle, st.State)

	st, err = r.BuildFullIndex(ctx)
	require.NoError(t, err)
	assert.True(t, st.Disabled)

	_, err = r.Search(ctx, "query", types.SearchOptions{})
	assert.ErrorIs(t, err, types.ErrDisabled)
	assert.ErrorIs(t, r.Pause(ctx, "x"), types.ErrDisabled)

	diag, err := r.GetDiagnostics(ctx)
	assert.ErrorIs(t, err, types.ErrDisabled)
	assert.True(t, diag.Status.Disabled)

	assert.Zero(t, f.calls.Load())
}

func TestRouter_CoalescesConstruction(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	f.gate = make(chan struct{})
	r := newTestRouter(t, newSwitchable(types.BackendLocal), f, time.Second)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Search(ctx, "query", types.SearchOptions{})
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestRouter_FailedConstructionIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	f.failFor.Store(1)
	r := newTestRouter(t, newSwitchable(types.BackendLocal), f, time.Second)

	st, err := r.BuildFullIndex(ctx)
	require.Error(t, err)
	assert.Equal(t, types.StateIdle, st.State)
	assert.Contains(t, st.LastError, "backend unavailable")

	st, err = r.BuildFullIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateReady, st.State)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRouter_StatusTimeoutReportsDefault(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	f.gate = make(chan struct{})
	r := newTestRouter(t, newSwitchable(types.BackendCloud), f, 20*time.Millisecond)

	start := time.Now()
	st, err := r.GetStatus(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, types.StateIdle, st.State)
	assert.Equal(t, types.BackendCloud, st.Backend)
	assert.Equal(t, types.ModelNone, st.ModelDownloadState)

	// Construction continues in the background and is kept
	close(f.gate)
	require.Eventually(t, func() bool {
		st, err := r.GetStatus(ctx)
		return err == nil && st.State == types.StateReady
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestRouter_StatusCancelled(t *testing.T) {
	f := newFakeFactory()
	f.gate = make(chan struct{})
	defer close(f.gate)
	r := newTestRouter(t, newSwitchable(types.BackendLocal), f, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.GetStatus(ctx)
	require.Error(t, err)
	assert.True(t, types.IsCancellation(err))
}

func TestRouter_ModeSwitchKeepsBackends(t *testing.T) {
	ctx := context.Background()
	mode := newSwitchable(types.BackendLocal)
	f := newFakeFactory()
	r := newTestRouter(t, mode, f, time.Second)

	results, err := r.Search(ctx, "q", types.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "local.go", results[0].FilePath)

	mode.set(types.BackendCloud)
	results, err = r.Search(ctx, "q", types.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cloud.go", results[0].FilePath)

	mode.set(types.BackendLocal)
	_, err = r.BuildFullIndex(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, 1, f.service(types.BackendLocal).builds)
	assert.Zero(t, f.service(types.BackendCloud).builds)

	mode.set(types.BackendNone)
	st, err := r.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.Disabled)
}

func TestRouter_ForwardsActiveBackendEventsOnly(t *testing.T) {
	ctx := context.Background()
	mode := newSwitchable(types.BackendLocal)
	f := newFakeFactory()
	r := newTestRouter(t, mode, f, time.Second)

	var mu sync.Mutex
	var got []types.BackendKind
	unsub := r.Subscribe(func(st types.IndexStatus) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, st.Backend)
	})

	_, err := r.GetStatus(ctx)
	require.NoError(t, err)
	local := f.service(types.BackendLocal)
	require.NotNil(t, local)

	local.emit(types.IndexStatus{Backend: types.BackendLocal})
	mode.set(types.BackendCloud)
	local.emit(types.IndexStatus{Backend: types.BackendLocal})

	unsub()
	mode.set(types.BackendLocal)
	local.emit(types.IndexStatus{Backend: types.BackendLocal})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.BackendKind{types.BackendLocal}, got)
}

func TestRouter_Close(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	r := New(testWorkspace(t), newSwitchable(types.BackendLocal).mode, f.build, Options{Logger: logging.Discard()})

	_, err := r.BuildFullIndex(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.True(t, f.service(types.BackendLocal).closed)
	require.NoError(t, r.Close())

	_, err = r.Search(ctx, "q", types.SearchOptions{})
	assert.Error(t, err)
}

func TestModeFromConfig(t *testing.T) {
	tests := []struct {
		name  string
		local bool
		cloud bool
		want  types.BackendKind
	}{
		{"cloud wins", true, true, types.BackendCloud},
		{"cloud only", false, true, types.BackendCloud},
		{"local only", true, false, types.BackendLocal},
		{"neither", false, false, types.BackendNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Indexing.LocalEnabled = tt.local
			cfg.Indexing.CloudEnabled = tt.cloud
			assert.Equal(t, tt.want, ModeFromConfig(cfg)())
		})
	}
}

func TestModeFromConfig_ReadsLiveConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Indexing.LocalEnabled = true
	cfg.Indexing.CloudEnabled = false
	mode := ModeFromConfig(cfg)
	assert.Equal(t, types.BackendLocal, mode())

	cfg.Indexing.CloudEnabled = true
	assert.Equal(t, types.BackendCloud, mode())
}

func TestRegistry_GetReturnsSameRouter(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.Root = t.TempDir()
	f := newFakeFactory()
	reg := NewRegistry(cfg, logging.Discard(),
		WithMode(newSwitchable(types.BackendLocal).mode),
		WithFactory(func(types.WorkspaceIdentity) Factory { return f.build }))
	t.Cleanup(func() { _ = reg.Close() })

	root := t.TempDir()
	a, err := reg.Get(root)
	require.NoError(t, err)
	b, err := reg.Get(root)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := reg.Get(t.TempDir())
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	_, err = a.BuildFullIndex(context.Background())
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	assert.True(t, f.service(types.BackendLocal).closed)
}

func TestRegistry_LocalBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.Root = t.TempDir()
	cfg.Indexing.LocalEnabled = true
	cfg.Indexing.CloudEnabled = false
	cfg.Embeddings.UseHeavyModel = false
	reg := NewRegistry(cfg, logging.Discard())
	t.Cleanup(func() { _ = reg.Close() })

	root := t.TempDir()
	require.NoError(t, writeTestFile(root, "main.go", "package main\n\nfunc validateToken() bool { return true }\n"))

	r, err := reg.Get(root)
	require.NoError(t, err)

	st, err := r.BuildFullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateReady, st.State)
	assert.Equal(t, types.BackendLocal, st.Backend)
	assert.Equal(t, 1, st.IndexedFiles)

	results, err := r.Search(context.Background(), "validateToken", types.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "main.go", results[0].FilePath)
}

func writeTestFile(root, rel, content string) error {
	return os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644)
}
