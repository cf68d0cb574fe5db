// Package indexer drives the index lifecycle of one workspace: discovery,
// per-file chunking, lexical and graph extraction, embedding and vector
// storage, plus the read surface (search and context bundles) over the
// result.
//
// # Basic Usage
//
//	orch := indexer.New(store, graphStore, runtime, indexer.NewLocalSink(store, nil), indexer.Options{
//	    Workers: 4,
//	    Exclude: []string{"node_modules", "dist"},
//	})
//
//	status, err := orch.BuildFullIndex(ctx)
//	fmt.Printf("%s: %d/%d files\n", status.State, status.IndexedFiles, status.TotalFiles)
//
// # Lifecycle
//
// The orchestrator moves Idle → Building → Ready. Pause and Resume toggle a
// gate that workers wait on before each file; files already in flight
// finish. Any whole-workspace failure moves to Error, and a later build
// leaves it.
//
// Only one build runs at a time. A second BuildFullIndex returns the current
// status, a second RebuildWorkspaceIndex does the same, and DeleteIndex
// refuses with ErrIndexBusy. The rebuild guard is the cooperative IndexLock
// flag, not a blocking lock.
//
// # Per-file Pipeline
//
//  1. Hash gate: an indexed file with identical content and vectors from the
//     current model (or from the hash fallback) is skipped.
//  2. Truncate above the size ceiling, recording a diagnostic.
//  3. Chunk by lines and bytes, tokenize each chunk for BM25.
//  4. Parse symbols, definitions, references and edges.
//  5. Embed chunk texts.
//  6. Commit content, graph and vectors as a unit.
//
// Cancellation before step 6 restores the file row; once the commit starts
// it completes. A per-file failure marks that file Error and the batch
// continues.
//
// # Vector Sinks
//
// LocalSink stores vectors in the workspace database and answers queries
// from an in-memory HNSW graph per model. CloudSink writes to a namespace of
// a remote vector store and keeps hash-fallback vectors in a LocalSink, so
// searches still work while the remote store or provider is unavailable.
package indexer
