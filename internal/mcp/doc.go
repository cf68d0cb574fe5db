// Package mcp implements the Model Context Protocol (MCP) server for
// hybridindex.
//
// The server exposes the workspace index to AI coding assistants over stdio:
//   - index_workspace: build the index, skipping unchanged files
//   - refresh_paths: re-index specific files
//   - index_status, index_diagnostics: inspect the index
//   - pause_index, resume_index: hold back or release indexing work
//   - rebuild_index, delete_index: drop indexed content
//   - search_code: hybrid keyword, vector and graph search
//   - get_context: a token-budgeted bundle of snippets, symbols and edges
//
// Every tool takes an optional absolute "path" naming the workspace root and
// defaults to the workspace the server was started in.
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "query": "token validation",
//	    "limit": 10,
//	    "focus_file": "src/auth.ts"
//	  }
//	}
//
//	Response:
//	{
//	  "query": "token validation",
//	  "count": 1,
//	  "results": [
//	    {
//	      "filePath": "src/auth.ts",
//	      "range": {"startLine": 12, "endLine": 40},
//	      "score": 1.8,
//	      "provenance": ["lexical", "vector"]
//	    }
//	  ]
//	}
//
// # Errors
//
// Failures are returned as tool errors whose text is a JSON object:
//
//	{"error": {"code": -32005, "message": "indexing is disabled", "data": {...}}}
//
// Error codes:
//   - -32602: Invalid params (missing query, bad path, limit out of range)
//   - -32603: Internal error (storage, provider, cancellation)
//   - -32002: A rebuild is in progress
//   - -32005: Indexing is disabled by configuration
//
// # Notifications
//
// Status transitions of the default workspace are pushed to connected
// clients as "notifications/index_status".
//
// # Logging
//
// Logs go to stderr or the configured log file; stdout is reserved for the
// protocol.
package mcp
