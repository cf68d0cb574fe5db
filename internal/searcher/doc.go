// Package searcher implements hybrid retrieval over one workspace index,
// combining BM25 keyword matching, vector similarity and symbol graph
// expansion.
//
// # Basic Usage
//
//	s := searcher.New(store, sink, graphStore, runtime, searcher.Config{}, logger)
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query:    "token validation",
//	    Limit:    10,
//	    FocusURI: "file:///repo/src/auth.ts",
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("%s:%d (%.2f %v)\n", r.FilePath, r.Range.StartLine, r.Score, r.Provenance)
//	}
//
// # Signals
//
// Three signals run concurrently:
//
//   - Lexical: BM25 over the inverted index. Scores are divided by the best
//     hit so the top lexical match scores 1.
//   - Vector: the query is embedded with the workspace runtime and the
//     nearest chunks are fetched from the vector sink. Cosine similarity is
//     clamped to [0, 1].
//   - Symbol names: identifier-like query words are looked up in the graph.
//
// A failing signal is logged and skipped. The search fails only when both
// the lexical and vector signals fail, or on cancellation.
//
// # Graph Expansion
//
// Symbols matched by name, symbols defined inside the top lexical and vector
// chunks, and the symbols of the focus file become seeds. Each seed and its
// neighbors (both directions) contribute the chunk that contains their
// definition, scored at Config.GraphWeight times the seed score.
//
// # Merging and Ranking
//
// A chunk found by several signals sums their scores and carries every
// provenance tag. Results whose ranges overlap in the same file collapse
// into the best one. Ties are broken by provenance (lexical, then vector,
// then graph), then most recently indexed, then path and line.
//
// # Caching
//
// Responses are kept in an LRU cache keyed by a SHA-256 of the request, with
// a TTL (default 5 minutes). The indexer calls InvalidateCache after every
// change to the index, so cached responses never outlive the content they
// were built from.
package searcher
