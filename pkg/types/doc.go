// Package types provides shared type definitions for the hybrid index engine.
//
// This package defines value types used across multiple components,
// including workspace identity, index status, graph rows, search results
// and the error taxonomy.
//
// # Core Types
//
// WorkspaceIdentity is the partition key for all storage and namespace
// derivation:
//
//	ws, err := types.NewWorkspaceIdentity("/home/dev/project")
//
// IndexStatus is the per-workspace aggregate reported to hosts:
//
//	status := types.DefaultStatus()
//	fmt.Println(status.State, status.IndexedFiles, status.TotalFiles)
//
// Range describes a contiguous line/char span within one file. Chunks,
// symbols and snippets all carry a Range.
//
// # Graph Types
//
// Symbol, Occurrence and Edge are the rows of the per-file graph. A FileGraph
// groups everything one file contributes so it can be replaced wholesale.
//
// # Errors
//
// IndexError carries a Kind (storage, embedding_provider, model_install,
// cancellation, configuration) and can be matched with errors.Is against
// the kind sentinels:
//
//	if errors.Is(err, types.ErrStorage) {
//	    // mark file as errored and continue
//	}
package types
