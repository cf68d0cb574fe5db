package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/internal/config"
	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/router"
	"github.com/dshills/hybridindex/pkg/types"
)

// mockService records calls and returns canned values
type mockService struct {
	mu        sync.Mutex
	err       error
	refreshed []string
	query     string
	search    types.SearchOptions
	context   types.ContextOptions
	pauses    []string
}

func (m *mockService) BuildFullIndex(context.Context) (types.IndexStatus, error) {
	return types.IndexStatus{State: types.StateReady, TotalFiles: 2, IndexedFiles: 2}, m.err
}

func (m *mockService) RefreshPaths(_ context.Context, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, uris...)
	return m.err
}

func (m *mockService) GetStatus(context.Context) (types.IndexStatus, error) {
	return types.IndexStatus{State: types.StateReady, Backend: types.BackendLocal}, nil
}

func (m *mockService) Pause(_ context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses = append(m.pauses, reason)
	return m.err
}

func (m *mockService) Resume(context.Context) error { return m.err }

func (m *mockService) RebuildWorkspaceIndex(context.Context, string) (types.IndexStatus, error) {
	return types.IndexStatus{State: types.StateReady}, m.err
}

func (m *mockService) DeleteIndex(context.Context) error { return m.err }

func (m *mockService) GetDiagnostics(context.Context) (types.Diagnostics, error) {
	return types.Diagnostics{WorkspaceID: "ws", StorageDriver: "sqlite"}, m.err
}

func (m *mockService) Search(_ context.Context, query string, opts types.SearchOptions) ([]types.SemanticSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = query
	m.search = opts
	if m.err != nil {
		return nil, m.err
	}
	return []types.SemanticSearchResult{{FilePath: "auth.ts", Score: 1}}, nil
}

func (m *mockService) GetContext(_ context.Context, query string, opts types.ContextOptions) (*types.ContextBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.context = opts
	if m.err != nil {
		return nil, m.err
	}
	return &types.ContextBundle{Query: query, IndexFreshness: types.FreshnessFresh}, nil
}

func (m *mockService) Subscribe(func(types.IndexStatus)) func() { return func() {} }

func (m *mockService) Close() error { return nil }

type mockWorkspaces struct {
	svc   indexer.Service
	err   error
	roots []string
}

func (m *mockWorkspaces) Service(root string) (indexer.Service, error) {
	m.roots = append(m.roots, root)
	if m.err != nil {
		return nil, m.err
	}
	return m.svc, nil
}

func newTestServer(t *testing.T, svc indexer.Service) (*Server, *mockWorkspaces) {
	t.Helper()
	ws := &mockWorkspaces{svc: svc}
	return NewServer(ws, t.TempDir(), logging.Discard()), ws
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func decode(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), v))
}

func errorCode(t *testing.T, res *mcp.CallToolResult) int {
	t.Helper()
	require.True(t, res.IsError, "expected a tool error")
	var body struct {
		Error MCPError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	return body.Error.Code
}

func TestServer_RegistersAllTools(t *testing.T) {
	s, _ := newTestServer(t, &mockService{})

	var names []string
	for _, entry := range s.tools() {
		names = append(names, entry.tool.Name)
	}
	assert.Equal(t, []string{
		"index_workspace", "refresh_paths", "index_status", "pause_index", "resume_index",
		"rebuild_index", "delete_index", "index_diagnostics", "search_code", "get_context",
	}, names)
}

func TestHandleSearchCode(t *testing.T) {
	svc := &mockService{}
	s, _ := newTestServer(t, svc)

	res := call(t, s.handleSearchCode, map[string]interface{}{
		"query":      "token validation",
		"limit":      float64(5),
		"focus_file": "src/auth.ts",
	})

	var body struct {
		Query   string                       `json:"query"`
		Count   int                          `json:"count"`
		Results []types.SemanticSearchResult `json:"results"`
	}
	decode(t, res, &body)
	assert.Equal(t, "token validation", body.Query)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "auth.ts", body.Results[0].FilePath)
	assert.Equal(t, types.SearchOptions{Limit: 5, FocusFile: "src/auth.ts"}, svc.search)
}

func TestHandleSearchCode_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t, &mockService{})

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing query", map[string]interface{}{}},
		{"empty query", map[string]interface{}{"query": ""}},
		{"limit too large", map[string]interface{}{"query": "q", "limit": float64(500)}},
		{"limit zero", map[string]interface{}{"query": "q", "limit": float64(0)}},
		{"relative path", map[string]interface{}{"query": "q", "path": "relative/dir"}},
		{"missing path", map[string]interface{}{"query": "q", "path": "/does/not/exist"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, call(t, s.handleSearchCode, tt.args)))
		})
	}
}

func TestHandlers_MapIndexErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"disabled", types.ErrDisabled, ErrorCodeDisabled},
		{"rebuild running", indexer.ErrIndexBusy, ErrorCodeIndexingInProgress},
		{"storage", types.NewStorageError("read", errors.New("disk full")), ErrorCodeInternalError},
		{"cancelled", types.NewCancellationError("search", context.Canceled), ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, &mockService{err: tt.err})
			assert.Equal(t, tt.want, errorCode(t, call(t, s.handleDeleteIndex, nil)))
			assert.Equal(t, tt.want, errorCode(t, call(t, s.handleSearchCode, map[string]interface{}{"query": "q"})))
		})
	}
}

func TestHandleIndexStatus_DefaultsToServerRoot(t *testing.T) {
	s, ws := newTestServer(t, &mockService{})

	var st types.IndexStatus
	decode(t, call(t, s.handleIndexStatus, nil), &st)
	assert.Equal(t, types.StateReady, st.State)
	assert.Equal(t, []string{s.defaultRoot}, ws.roots)

	other := t.TempDir()
	call(t, s.handleIndexStatus, map[string]interface{}{"path": other})
	assert.Equal(t, other, ws.roots[1])
}

func TestHandleRefreshPaths(t *testing.T) {
	svc := &mockService{}
	s, _ := newTestServer(t, svc)

	assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, call(t, s.handleRefreshPaths, nil)))

	res := call(t, s.handleRefreshPaths, map[string]interface{}{
		"paths": []interface{}{"src/a.ts", "file:///repo/b.ts"},
	})
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"src/a.ts", "file:///repo/b.ts"}, svc.refreshed)
}

func TestHandlePauseIndex(t *testing.T) {
	svc := &mockService{}
	s, _ := newTestServer(t, svc)

	call(t, s.handlePauseIndex, map[string]interface{}{"reason": "battery"})
	call(t, s.handlePauseIndex, nil)
	assert.Equal(t, []string{"battery", "requested by client"}, svc.pauses)
}

func TestHandleGetContext(t *testing.T) {
	svc := &mockService{}
	s, _ := newTestServer(t, svc)

	var bundle types.ContextBundle
	decode(t, call(t, s.handleGetContext, map[string]interface{}{
		"query":        "auth flow",
		"max_snippets": float64(3),
		"max_tokens":   float64(500),
	}), &bundle)
	assert.Equal(t, "auth flow", bundle.Query)
	assert.Equal(t, types.FreshnessFresh, bundle.IndexFreshness)
	assert.Equal(t, types.ContextOptions{MaxSnippets: 3, MaxTokens: 500}, svc.context)

	res := call(t, s.handleGetContext, map[string]interface{}{"query": "q", "max_tokens": float64(-1)})
	assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, res))
}

func TestWorkspaceResolutionError(t *testing.T) {
	s, ws := newTestServer(t, nil)
	ws.err = types.ErrDisabled

	assert.Equal(t, ErrorCodeDisabled, errorCode(t, call(t, s.handleIndexWorkspace, nil)))
}

func TestServer_EndToEnd(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.Root = t.TempDir()
	cfg.Embeddings.UseHeavyModel = false
	reg := router.NewRegistry(cfg, logging.Discard())
	t.Cleanup(func() { _ = reg.Close() })

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.go"),
		[]byte("package auth\n\nfunc ValidateToken(token string) bool {\n\treturn token != \"\"\n}\n"), 0o644))

	s := NewServer(reg, root, logging.Discard())

	var st types.IndexStatus
	decode(t, call(t, s.handleIndexWorkspace, nil), &st)
	assert.Equal(t, types.StateReady, st.State)
	assert.Equal(t, 1, st.IndexedFiles)

	var body struct {
		Results []types.SemanticSearchResult `json:"results"`
	}
	decode(t, call(t, s.handleSearchCode, map[string]interface{}{"query": "ValidateToken"}), &body)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "auth.go", body.Results[0].FilePath)

	var bundle types.ContextBundle
	decode(t, call(t, s.handleGetContext, map[string]interface{}{"query": "ValidateToken"}), &bundle)
	assert.Equal(t, types.FreshnessFresh, bundle.IndexFreshness)
	assert.NotEmpty(t, bundle.Snippets)

	cfg.Indexing.LocalEnabled = false
	decode(t, call(t, s.handleIndexStatus, nil), &st)
	assert.True(t, st.Disabled)
	assert.Equal(t, ErrorCodeDisabled, errorCode(t, call(t, s.handleSearchCode, map[string]interface{}{"query": "q"})))
}
