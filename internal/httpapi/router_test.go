package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/indexer/mocks"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/searcher"
	"github.com/dshills/hybridindex/pkg/types"
)

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	return NewRouter(&Deps{Service: svc, Logger: logging.Discard()}), svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Status(t *testing.T) {
	h, svc := newTestRouter(t)
	svc.EXPECT().GetStatus(gomock.Any()).Return(types.IndexStatus{
		State:        types.StateReady,
		TotalFiles:   3,
		IndexedFiles: 3,
		Backend:      types.BackendLocal,
	}, nil)

	rec := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st types.IndexStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, types.StateReady, st.State)
	assert.Equal(t, 3, st.IndexedFiles)
}

func TestRouter_Diagnostics(t *testing.T) {
	h, svc := newTestRouter(t)
	svc.EXPECT().GetDiagnostics(gomock.Any()).Return(types.Diagnostics{
		WorkspaceID:    "abc",
		TruncatedFiles: []types.FileIssue{{FilePath: "big.ts"}},
	}, nil)

	rec := do(t, h, http.MethodGet, "/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var d types.Diagnostics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "abc", d.WorkspaceID)
	assert.Equal(t, "big.ts", d.TruncatedFiles[0].FilePath)
}

func TestRouter_Search(t *testing.T) {
	h, svc := newTestRouter(t)
	svc.EXPECT().
		Search(gomock.Any(), "token validation", types.SearchOptions{Limit: 5, FocusFile: "src/auth.ts"}).
		Return([]types.SemanticSearchResult{{FilePath: "src/auth.ts", Score: 1.5}}, nil)

	rec := do(t, h, http.MethodPost, "/search", `{"query":"token validation","limit":5,"focusFile":"src/auth.ts"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1.5, resp.Results[0].Score)
}

func TestRouter_SearchEmptyResultsIsArray(t *testing.T) {
	h, svc := newTestRouter(t)
	svc.EXPECT().Search(gomock.Any(), "nothing", gomock.Any()).Return(nil, nil)

	rec := do(t, h, http.MethodPost, "/search", `{"query":"nothing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestRouter_Context(t *testing.T) {
	h, svc := newTestRouter(t)
	svc.EXPECT().
		GetContext(gomock.Any(), "auth", types.ContextOptions{MaxSnippets: 2, MaxTokens: 300}).
		Return(&types.ContextBundle{Query: "auth", IndexFreshness: types.FreshnessStale}, nil)

	rec := do(t, h, http.MethodPost, "/context", `{"query":"auth","maxSnippets":2,"maxTokens":300}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle types.ContextBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, types.FreshnessStale, bundle.IndexFreshness)
}

func TestRouter_Refresh(t *testing.T) {
	h, svc := newTestRouter(t)
	gomock.InOrder(
		svc.EXPECT().RefreshPaths(gomock.Any(), []string{"a.ts", "b.ts"}).Return(nil),
		svc.EXPECT().GetStatus(gomock.Any()).Return(types.IndexStatus{State: types.StateReady}, nil),
	)

	rec := do(t, h, http.MethodPost, "/refresh", `{"paths":["a.ts","b.ts"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_BadRequests(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/search", `{"query":`},
		{"unknown field", "/search", `{"query":"q","mode":"vector"}`},
		{"limit too large", "/search", `{"query":"q","limit":1000}`},
		{"refresh without paths", "/refresh", `{"paths":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"disabled", types.ErrDisabled, http.StatusServiceUnavailable, types.CodeFeatureDisabled},
		{"busy", indexer.ErrIndexBusy, http.StatusConflict, types.CodeRebuildInProcess},
		{"empty query", searcher.ErrEmptyQuery, http.StatusBadRequest, ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := newTestRouter(t)
			svc.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			rec := do(t, h, http.MethodPost, "/search", `{"query":"q"}`)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
