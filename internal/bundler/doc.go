// Package bundler assembles context bundles for retrieval consumers: the
// ranked snippets of a hybrid search cut to snippet and token budgets, the
// symbols and edges that connect them, and a freshness annotation derived
// from the index status.
package bundler
