package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/config"
	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/graph"
	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/internal/vectorstore"
	"github.com/dshills/hybridindex/pkg/types"
)

// ModeFromConfig selects cloud when it is enabled, else local when that is
// enabled, else nothing
func ModeFromConfig(cfg *config.Config) ModeFunc {
	return func() types.BackendKind {
		switch {
		case cfg.Indexing.CloudEnabled:
			return types.BackendCloud
		case cfg.Indexing.LocalEnabled:
			return types.BackendLocal
		default:
			return types.BackendNone
		}
	}
}

// Registry owns the routers of every open workspace and the process-wide
// resources they share: the storage manager and the heavy model manager.
type Registry struct {
	cfg     *config.Config
	storage *storage.Manager
	models  *embedder.ModelManager
	mode    ModeFunc
	factory func(ws types.WorkspaceIdentity) Factory
	logger  *slog.Logger

	mu      sync.Mutex
	routers map[string]*Router
}

// RegistryOption customizes a Registry
type RegistryOption func(*Registry)

// WithMode overrides the mode derived from the configuration
func WithMode(mode ModeFunc) RegistryOption {
	return func(r *Registry) { r.mode = mode }
}

// WithFactory overrides how backends are built
func WithFactory(factory func(ws types.WorkspaceIdentity) Factory) RegistryOption {
	return func(r *Registry) { r.factory = factory }
}

// NewRegistry creates a registry over cfg
func NewRegistry(cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		cfg:     cfg,
		storage: storage.NewManager(cfg.Storage.Root),
		models:  embedder.NewModelManager(ollamaConfig(cfg), logger),
		mode:    ModeFromConfig(cfg),
		logger:  logging.OrDefault(logger),
		routers: make(map[string]*Router),
	}
	r.factory = r.backendFactory
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Models returns the heavy model manager
func (r *Registry) Models() *embedder.ModelManager {
	return r.models
}

// Storage returns the storage manager
func (r *Registry) Storage() *storage.Manager {
	return r.storage
}

// Get returns the router of the workspace rooted at rootPath, creating it on
// first use
func (r *Registry) Get(rootPath string) (*Router, error) {
	ws, err := types.NewWorkspaceIdentity(rootPath)
	if err != nil {
		return nil, types.NewConfigurationError(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.routers[ws.ID]; ok {
		return rt, nil
	}
	rt := New(ws, r.mode, r.factory(ws), Options{
		StatusTimeout: r.cfg.Indexing.StatusTimeout,
		Logger:        r.logger,
	})
	r.routers[ws.ID] = rt
	return rt, nil
}

// Close closes every router, then the workspace databases
func (r *Registry) Close() error {
	r.mu.Lock()
	routers := r.routers
	r.routers = make(map[string]*Router)
	r.mu.Unlock()

	var firstErr error
	for id, rt := range routers {
		if err := rt.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close workspace %s: %w", id, err)
		}
	}
	if err := r.storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// backendFactory wires storage, graph, runtime and vector sink for one
// workspace and backend kind. Both backends share the workspace's writer
// guard, so a build or rebuild started under one mode blocks the other.
func (r *Registry) backendFactory(ws types.WorkspaceIdentity) Factory {
	guard := indexer.NewGuard()
	return func(ctx context.Context, kind types.BackendKind) (indexer.Service, error) {
		logger := r.logger.With(slog.String("workspace_id", ws.ID))

		store, err := r.storage.Open(ctx, ws)
		if err != nil {
			return nil, err
		}

		opts := indexer.Options{
			Backend: kind,
			Workers: r.cfg.Indexing.Workers,
			Exclude: r.cfg.Indexing.Exclude,
			Chunker: chunker.Options{
				MaxLines:     r.cfg.Indexing.ChunkLines,
				MaxBytes:     r.cfg.Indexing.ChunkBytes,
				MaxFileBytes: r.cfg.Indexing.MaxFileBytes,
			},
			Guard:  guard,
			Logger: logger,
		}
		if r.cfg.Embeddings.UseHeavyModel {
			opts.ModelState = r.models.DownloadState
		}
		g := graph.New(r.cfg.Graph.Enabled, store)
		embedCfg := embedderConfig(r.cfg)

		switch kind {
		case types.BackendLocal:
			rt := embedder.NewLocalRuntime(embedCfg, logger)
			return indexer.New(store, g, rt, indexer.NewLocalSink(store, nil), opts), nil

		case types.BackendCloud:
			rt, err := embedder.NewCloudRuntime(embedCfg, logger)
			if err != nil {
				return nil, err
			}
			remote, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
				URL:        r.cfg.Cloud.QdrantURL,
				APIKey:     r.cfg.Cloud.QdrantAPIKey,
				Collection: r.cfg.Cloud.Collection,
			}, logger)
			if err != nil {
				_ = rt.Close()
				return nil, err
			}
			sink := indexer.NewCloudSink(remote,
				vectorstore.Namespace(r.cfg.Cloud.UserID, ws.RootPath),
				vectorstore.WorkspaceHash(ws.RootPath),
				indexer.NewLocalSink(store, nil),
				logger)
			return indexer.New(store, g, rt, sink, opts), nil

		default:
			return nil, types.NewConfigurationError(fmt.Sprintf("unknown backend %q", kind))
		}
	}
}

func ollamaConfig(cfg *config.Config) embedder.OllamaConfig {
	return embedder.OllamaConfig{
		Host:      cfg.Embeddings.OllamaHost,
		Model:     cfg.Embeddings.OllamaModel,
		BatchSize: cfg.Embeddings.BatchSize,
		CacheSize: cfg.Embeddings.CacheSize,
	}
}

func embedderConfig(cfg *config.Config) embedder.Config {
	return embedder.Config{
		UseHeavyModel: cfg.Embeddings.UseHeavyModel,
		Ollama:        ollamaConfig(cfg),
		Cloud: embedder.CloudConfig{
			Provider:          cfg.Embeddings.CloudProvider,
			Model:             cfg.Embeddings.CloudModel,
			APIKey:            cfg.Embeddings.APIKey,
			Dimension:         cfg.Embeddings.CloudDimension,
			BatchSize:         cfg.Embeddings.BatchSize,
			RequestsPerMinute: cfg.Embeddings.RequestsPerMinute,
			CacheSize:         cfg.Embeddings.CacheSize,
		},
	}
}

// Service is Get typed as the index contract
func (r *Registry) Service(rootPath string) (indexer.Service, error) {
	rt, err := r.Get(rootPath)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
