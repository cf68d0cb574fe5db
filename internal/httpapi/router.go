package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
)

// Deps holds dependencies for the HTTP router
type Deps struct {
	Service indexer.Service
	Logger  *slog.Logger

	// RequestTimeout bounds each request; zero means 60s
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router for one workspace
func NewRouter(deps *Deps) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	h := &handler{svc: deps.Service, logger: logging.OrDefault(deps.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Timeout(timeout))

	r.Get("/status", h.status)
	r.Get("/diagnostics", h.diagnostics)
	r.Post("/search", h.search)
	r.Post("/context", h.context)
	r.Post("/refresh", h.refresh)

	return r
}

// requestLogger logs every request with its status and latency
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
