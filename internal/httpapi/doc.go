// Package httpapi serves the index of one workspace over local HTTP.
//
//	GET  /status       index status
//	GET  /diagnostics  errored and truncated files, graph and model details
//	POST /search       {"query", "limit", "focusFile"}
//	POST /context      {"query", "focusFile", "maxSnippets", "maxTokens"}
//	POST /refresh      {"paths": [...]}
//
// Errors are JSON {"error", "code"}. Disabled indexing answers 503 and a
// running rebuild 409.
package httpapi
