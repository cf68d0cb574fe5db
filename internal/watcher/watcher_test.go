package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

type recordingSink struct {
	mu     sync.Mutex
	uris   []string
	builds int
}

func (s *recordingSink) RefreshPaths(_ context.Context, uris []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris = append(s.uris, uris...)
	return nil
}

func (s *recordingSink) BuildFullIndex(context.Context) (types.IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
	return types.IndexStatus{State: types.StateReady}, nil
}

func (s *recordingSink) refreshed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.uris...)
	sort.Strings(out)
	return out
}

func (s *recordingSink) buildCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

func startWatcher(t *testing.T, root string, sink Sink, exclude ...string) *Watcher {
	t.Helper()
	w, err := New(root, sink, Options{Debounce: 20 * time.Millisecond, Exclude: exclude, Logger: logging.Discard()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	require.Eventually(t, func() bool { return w.dirCount() > 0 }, 2*time.Second, 5*time.Millisecond)
	return w
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestWatcher_RefreshesChangedFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "existing.go", "package main\n")
	sink := &recordingSink{}
	w := startWatcher(t, root, sink, "node_modules")

	write(t, root, "existing.go", "package main\n\nfunc main() {}\n")
	write(t, root, "node_modules/dep.js", "x")
	write(t, root, ".hidden.go", "package main\n")

	want := indexer.FileURI(w.root, "existing.go")
	require.Eventually(t, func() bool { return len(sink.refreshed()) > 0 }, 2*time.Second, 10*time.Millisecond)
	for _, uri := range sink.refreshed() {
		assert.Equal(t, want, uri)
	}
}

func TestWatcher_NewDirectoryFilesAreAnnounced(t *testing.T) {
	root := t.TempDir()
	sink := &recordingSink{}
	w := startWatcher(t, root, sink)

	write(t, root, "pkg/util/strings.go", "package util\n")

	uri := indexer.FileURI(w.root, "pkg/util/strings.go")
	require.Eventually(t, func() bool {
		for _, u := range sink.refreshed() {
			if u == uri {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_RemovedDirectoryReconciles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "pkg/a.go", "package pkg\n")
	sink := &recordingSink{}
	startWatcher(t, root, sink)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "pkg")))

	require.Eventually(t, func() bool { return sink.buildCount() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_Ignored(t *testing.T) {
	w := &Watcher{exclude: []string{"dist", "gen/*.go"}}

	assert.True(t, w.ignored(".git/config"))
	assert.True(t, w.ignored("src/.cache/x.go"))
	assert.True(t, w.ignored("dist/app.js"))
	assert.True(t, w.ignored("gen/api.go"))
	assert.False(t, w.ignored("src/gen/api.go"))
	assert.False(t, w.ignored("main.go"))
}

func TestWatcher_ForgetDir(t *testing.T) {
	w := &Watcher{dirs: map[string]bool{".": true, "a": true, "a/b": true, "ab": true}}

	assert.True(t, w.forgetDir("a"))
	assert.False(t, w.forgetDir("a/b"))
	assert.False(t, w.forgetDir("a.go"))
	assert.Equal(t, 2, w.dirCount())
}
