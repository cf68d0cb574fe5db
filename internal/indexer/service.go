package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_service.go -package=mocks github.com/dshills/hybridindex/internal/indexer Service

import (
	"context"

	"github.com/dshills/hybridindex/pkg/types"
)

// Service is the workspace-scoped index contract exposed to the host. The
// local and cloud orchestrators implement it, and so does the router that
// switches between them.
type Service interface {
	// BuildFullIndex indexes every workspace file. Files already indexed with
	// unchanged content are skipped, so an interrupted build resumes.
	BuildFullIndex(ctx context.Context) (types.IndexStatus, error)

	// RefreshPaths re-indexes the given file URIs or paths, skipping
	// unchanged content and removing files that no longer exist
	RefreshPaths(ctx context.Context, uris []string) error

	// GetStatus returns the aggregate status
	GetStatus(ctx context.Context) (types.IndexStatus, error)

	// Pause lets in-flight files finish and holds back new ones
	Pause(ctx context.Context, reason string) error
	Resume(ctx context.Context) error

	// RebuildWorkspaceIndex drops all rows and vectors and builds again.
	// A call made while a rebuild is running returns the current status.
	RebuildWorkspaceIndex(ctx context.Context, reason string) (types.IndexStatus, error)

	// DeleteIndex drops all rows and vectors of the workspace
	DeleteIndex(ctx context.Context) error

	GetDiagnostics(ctx context.Context) (types.Diagnostics, error)

	Search(ctx context.Context, query string, opts types.SearchOptions) ([]types.SemanticSearchResult, error)
	GetContext(ctx context.Context, query string, opts types.ContextOptions) (*types.ContextBundle, error)

	// Subscribe registers fn for every status transition and returns a
	// function that removes it
	Subscribe(fn func(types.IndexStatus)) func()

	Close() error
}
