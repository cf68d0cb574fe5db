package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/searcher"
	"github.com/dshills/hybridindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // A rebuild is running
	ErrorCodeDisabled           = -32005 // Indexing is disabled by configuration
)

// handleIndexWorkspace handles the index_workspace tool invocation
func (s *Server) handleIndexWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	st, err := svc.BuildFullIndex(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st), nil
}

// handleRefreshPaths handles the refresh_paths tool invocation
func (s *Server) handleRefreshPaths(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	paths := request.GetStringSlice("paths", nil)
	if len(paths) == 0 {
		return mcpErrorResult(newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})), nil
	}
	if err := svc.RefreshPaths(ctx, paths); err != nil {
		return errorResult(err), nil
	}
	return statusResult(ctx, svc)
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	return statusResult(ctx, svc)
}

// handlePauseIndex handles the pause_index tool invocation
func (s *Server) handlePauseIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	if err := svc.Pause(ctx, request.GetString("reason", "requested by client")); err != nil {
		return errorResult(err), nil
	}
	return statusResult(ctx, svc)
}

// handleResumeIndex handles the resume_index tool invocation
func (s *Server) handleResumeIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	if err := svc.Resume(ctx); err != nil {
		return errorResult(err), nil
	}
	return statusResult(ctx, svc)
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	st, err := svc.RebuildWorkspaceIndex(ctx, request.GetString("reason", "requested by client"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st), nil
}

// handleDeleteIndex handles the delete_index tool invocation
func (s *Server) handleDeleteIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	if err := svc.DeleteIndex(ctx); err != nil {
		return errorResult(err), nil
	}
	return statusResult(ctx, svc)
}

// handleIndexDiagnostics handles the index_diagnostics tool invocation
func (s *Server) handleIndexDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	d, err := svc.GetDiagnostics(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(d), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	query, res := requireQuery(request)
	if res != nil {
		return res, nil
	}

	limit := request.GetInt("limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return mcpErrorResult(newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})), nil
	}

	results, err := svc.Search(ctx, query, types.SearchOptions{
		Limit:     limit,
		FocusFile: request.GetString("focus_file", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	if results == nil {
		results = []types.SemanticSearchResult{}
	}
	return jsonResult(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}), nil
}

// handleGetContext handles the get_context tool invocation
func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, res := s.workspace(request)
	if res != nil {
		return res, nil
	}
	query, res := requireQuery(request)
	if res != nil {
		return res, nil
	}

	opts := types.ContextOptions{
		FocusFile:   request.GetString("focus_file", ""),
		MaxSnippets: request.GetInt("max_snippets", 0),
		MaxTokens:   request.GetInt("max_tokens", 0),
	}
	if opts.MaxSnippets < 0 || opts.MaxTokens < 0 {
		return mcpErrorResult(newMCPError(ErrorCodeInvalidParams, "max_snippets and max_tokens must be positive", nil)), nil
	}

	bundle, err := svc.GetContext(ctx, query, opts)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(bundle), nil
}

// Helper functions

// workspace resolves the path argument to a workspace service. A non-nil
// result is the error to return to the client.
func (s *Server) workspace(request mcp.CallToolRequest) (indexer.Service, *mcp.CallToolResult) {
	path := request.GetString("path", s.defaultRoot)
	if err := validatePath(path); err != nil {
		return nil, mcpErrorResult(newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		}))
	}
	svc, err := s.workspaces.Service(path)
	if err != nil {
		return nil, errorResult(err)
	}
	return svc, nil
}

func requireQuery(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return "", mcpErrorResult(newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		}))
	}
	return query, nil
}

func statusResult(ctx context.Context, svc indexer.Service) (*mcp.CallToolResult, error) {
	st, err := svc.GetStatus(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) *MCPError {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps index errors onto MCP error codes
func toMCPError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	data := map[string]interface{}{"error": err.Error()}
	var ie *types.IndexError
	if errors.As(err, &ie) {
		data["kind"] = string(ie.Kind)
		if ie.Code != "" {
			data["code"] = ie.Code
		}
		data["retryable"] = ie.Retryable
	}

	switch {
	case errors.Is(err, types.ErrDisabled):
		return newMCPError(ErrorCodeDisabled, "indexing is disabled", data)
	case errors.Is(err, indexer.ErrIndexBusy):
		return newMCPError(ErrorCodeIndexingInProgress, "a rebuild is in progress", data)
	case errors.Is(err, searcher.ErrEmptyQuery), errors.Is(err, types.ErrConfiguration):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), data)
	case types.IsCancellation(err):
		return newMCPError(ErrorCodeInternalError, "operation cancelled", data)
	default:
		return newMCPError(ErrorCodeInternalError, "operation failed", data)
	}
}

// errorResult reports err as a tool error carrying its MCP code
func errorResult(err error) *mcp.CallToolResult {
	return mcpErrorResult(toMCPError(err))
}

func mcpErrorResult(e *MCPError) *mcp.CallToolResult {
	return mcp.NewToolResultError(formatJSON(map[string]interface{}{"error": e}))
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultText(formatJSON(v))
}

// validatePath checks that path is an existing absolute directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
