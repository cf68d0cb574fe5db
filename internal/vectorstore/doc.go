// Package vectorstore provides namespace-partitioned vector storage.
//
// Store is implemented by QdrantStore for the cloud backend, HNSWStore for
// the local approximate index and MemoryStore for exact search in tests and
// small workspaces. Namespace, WorkspaceHash, VectorID and PointUUID derive
// the identifiers shared by all implementations.
package vectorstore
