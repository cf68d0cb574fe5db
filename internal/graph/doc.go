// Package graph defines the symbol graph contract and its in-memory form.
//
// When the graph feature is enabled the workspace SQLite database backs the
// graph; otherwise MemoryStore keeps the same data per file for the life of
// the process.
package graph
