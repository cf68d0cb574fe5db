package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func pathOption() mcp.ToolOption {
	return mcp.WithString("path",
		mcp.Description("Absolute path of the workspace root. Defaults to the workspace the server was started in."),
	)
}

// indexWorkspaceTool returns the tool definition for index_workspace
func indexWorkspaceTool() mcp.Tool {
	return mcp.NewTool("index_workspace",
		mcp.WithDescription("Index every supported file of the workspace. Unchanged files are skipped, so an interrupted build resumes."),
		pathOption(),
	)
}

// refreshPathsTool returns the tool definition for refresh_paths
func refreshPathsTool() mcp.Tool {
	return mcp.NewTool("refresh_paths",
		mcp.WithDescription("Re-index the given files. Files that no longer exist are removed from the index."),
		pathOption(),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("File URIs, absolute paths or workspace-relative paths"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
	)
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report index state, file and chunk counts, pause state and model download state"),
		mcp.WithReadOnlyHintAnnotation(true),
		pathOption(),
	)
}

// pauseIndexTool returns the tool definition for pause_index
func pauseIndexTool() mcp.Tool {
	return mcp.NewTool("pause_index",
		mcp.WithDescription("Pause indexing. Files already being processed finish."),
		pathOption(),
		mcp.WithString("reason", mcp.Description("Why indexing is paused")),
	)
}

// resumeIndexTool returns the tool definition for resume_index
func resumeIndexTool() mcp.Tool {
	return mcp.NewTool("resume_index",
		mcp.WithDescription("Resume a paused index"),
		pathOption(),
	)
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.NewTool("rebuild_index",
		mcp.WithDescription("Drop the workspace index and build it again"),
		mcp.WithDestructiveHintAnnotation(true),
		pathOption(),
		mcp.WithString("reason", mcp.Description("Why the index is rebuilt")),
	)
}

// deleteIndexTool returns the tool definition for delete_index
func deleteIndexTool() mcp.Tool {
	return mcp.NewTool("delete_index",
		mcp.WithDescription("Delete all indexed content and vectors of the workspace"),
		mcp.WithDestructiveHintAnnotation(true),
		pathOption(),
	)
}

// indexDiagnosticsTool returns the tool definition for index_diagnostics
func indexDiagnosticsTool() mcp.Tool {
	return mcp.NewTool("index_diagnostics",
		mcp.WithDescription("Report errored and truncated files, graph size, embedding model and storage details"),
		mcp.WithReadOnlyHintAnnotation(true),
		pathOption(),
	)
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Hybrid search over the workspace: keyword, vector similarity and symbol graph"),
		mcp.WithReadOnlyHintAnnotation(true),
		pathOption(),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (natural language, keywords or identifiers)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100)"),
			mcp.DefaultNumber(10),
			mcp.Min(1),
			mcp.Max(100),
		),
		mcp.WithString("focus_file",
			mcp.Description("File the caller is working in; its symbols seed graph expansion"),
		),
	)
}

// getContextTool returns the tool definition for get_context
func getContextTool() mcp.Tool {
	return mcp.NewTool("get_context",
		mcp.WithDescription("Assemble a token-budgeted context bundle of snippets, symbols and edges, annotated with index freshness"),
		mcp.WithReadOnlyHintAnnotation(true),
		pathOption(),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the context is for"),
		),
		mcp.WithString("focus_file", mcp.Description("File the caller is working in")),
		mcp.WithNumber("max_snippets",
			mcp.Description("Maximum number of snippets"),
			mcp.DefaultNumber(8),
			mcp.Min(1),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Approximate token budget for snippet text"),
			mcp.DefaultNumber(4000),
			mcp.Min(1),
		),
	)
}
