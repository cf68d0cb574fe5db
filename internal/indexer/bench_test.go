package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/pkg/types"
)

// setupBenchmark lays out the given number of Go sources of 80 lines each and returns an
// orchestrator over a fresh in-memory store
func setupBenchmark(b *testing.B, files int) (*Orchestrator, func()) {
	b.Helper()
	root := b.TempDir()
	for i := 0; i < files; i++ {
		content := fmt.Sprintf("package pkg%d\n\n", i%10)
		for j := 0; j < 20; j++ {
			content += fmt.Sprintf("func Handler%d_%d(input string) string {\n\tresult := process(input, %d)\n\treturn result\n}\n", i, j, j)
		}
		p := filepath.Join(root, fmt.Sprintf("pkg%d", i%10), fmt.Sprintf("file%d.go", i))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			b.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	ws, err := types.NewWorkspaceIdentity(root)
	if err != nil {
		b.Fatal(err)
	}
	store, err := storage.NewSQLiteStorage(":memory:", ws)
	if err != nil {
		b.Fatal(err)
	}
	o := New(store, store, embedder.NewHashRuntime(), NewLocalSink(store, nil), Options{Logger: logging.Discard()})
	return o, func() {
		_ = o.Close()
		_ = store.Close()
	}
}

// BenchmarkBuildFullIndex measures a cold build of 50 files
func BenchmarkBuildFullIndex(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		o, cleanup := setupBenchmark(b, 50)
		b.StartTimer()

		if _, err := o.BuildFullIndex(ctx); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		cleanup()
		b.StartTimer()
	}
}

// BenchmarkBuildFullIndex_Unchanged measures a rebuild where every file is
// skipped by its content hash
func BenchmarkBuildFullIndex_Unchanged(b *testing.B) {
	o, cleanup := setupBenchmark(b, 50)
	defer cleanup()
	ctx := context.Background()
	if _, err := o.BuildFullIndex(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := o.BuildFullIndex(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSearch measures hybrid search over an indexed workspace
func BenchmarkSearch(b *testing.B) {
	o, cleanup := setupBenchmark(b, 50)
	defer cleanup()
	ctx := context.Background()
	if _, err := o.BuildFullIndex(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := o.Search(ctx, "process input handler", types.SearchOptions{Limit: 10}); err != nil {
			b.Fatal(err)
		}
	}
}
