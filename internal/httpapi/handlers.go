package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/searcher"
	"github.com/dshills/hybridindex/pkg/types"
)

const maxBodyBytes = 1 << 20

type handler struct {
	svc    indexer.Service
	logger *slog.Logger
}

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
	FocusFile string `json:"focusFile,omitempty"`
}

// SearchResponse is the body returned by POST /search
type SearchResponse struct {
	Query   string                       `json:"query"`
	Results []types.SemanticSearchResult `json:"results"`
}

// ContextRequest is the body of POST /context
type ContextRequest struct {
	Query       string `json:"query"`
	FocusFile   string `json:"focusFile,omitempty"`
	MaxSnippets int    `json:"maxSnippets,omitempty"`
	MaxTokens   int    `json:"maxTokens,omitempty"`
}

// RefreshRequest is the body of POST /refresh
type RefreshRequest struct {
	Paths []string `json:"paths"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, http.StatusOK, st)
}

func (h *handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDiagnostics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, http.StatusOK, d)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Limit < 0 || req.Limit > searcher.MaxLimit {
		h.write(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 100"})
		return
	}

	results, err := h.svc.Search(r.Context(), req.Query, types.SearchOptions{
		Limit:     req.Limit,
		FocusFile: req.FocusFile,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if results == nil {
		results = []types.SemanticSearchResult{}
	}
	h.write(w, http.StatusOK, SearchResponse{Query: req.Query, Results: results})
}

func (h *handler) context(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if !h.decode(w, r, &req) {
		return
	}
	bundle, err := h.svc.GetContext(r.Context(), req.Query, types.ContextOptions{
		FocusFile:   req.FocusFile,
		MaxSnippets: req.MaxSnippets,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, http.StatusOK, bundle)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		h.write(w, http.StatusBadRequest, ErrorResponse{Error: "paths is required"})
		return
	}
	if err := h.svc.RefreshPaths(r.Context(), req.Paths); err != nil {
		h.fail(w, r, err)
		return
	}
	h.status(w, r)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.write(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// fail maps index errors onto HTTP statuses
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var ie *types.IndexError
	if errors.As(err, &ie) {
		resp.Code = ie.Code
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrDisabled):
		code = http.StatusServiceUnavailable
	case errors.Is(err, indexer.ErrIndexBusy):
		code = http.StatusConflict
	case errors.Is(err, searcher.ErrEmptyQuery), errors.Is(err, types.ErrConfiguration):
		code = http.StatusBadRequest
	case types.IsCancellation(err):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	h.write(w, code, resp)
}

func (h *handler) write(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
