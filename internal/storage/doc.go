// Package storage provides the per-workspace SQLite database behind the index.
//
// Every workspace gets its own database file at <root>/<workspace id>/index.db,
// opened lazily through a Manager and cached for the process lifetime. A
// SQLiteStorage is bound to exactly one workspace; all rows carry its id.
//
// # Tables
//
//   - files: one row per workspace-relative path with its indexing state
//   - chunks: contiguous line ranges, ids derived from (path, chunk index)
//   - tokens: inverted index postings (term, chunk, frequency, positions)
//   - embeddings: one vector per (chunk, model)
//   - symbols, occurrences, edges: the symbol graph, owned per file uri
//
// Tokens and embeddings cascade when their chunk is deleted. Graph rows are
// removed by uri through DeleteForURI or UpdateFromFile.
//
// # File-level writes
//
// Re-indexing a file is a delete-then-insert inside one transaction:
//
//	err := store.ReplaceFileContent(ctx, &storage.FileContent{
//	    File:   file,
//	    Chunks: chunks,
//	    Tokens: tokens,
//	})
//
// # Lexical search
//
// SearchTerms ranks chunks with BM25 over the tokens table. Terms of three or
// more characters also match as prefixes at half weight.
//
// # Build Tags
//
// CGO Build (sqlite_cgo tag) uses github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo"
//
// Pure Go Build (default, or purego tag) uses modernc.org/sqlite:
//
//	CGO_ENABLED=0 go build -tags "purego"
package storage
