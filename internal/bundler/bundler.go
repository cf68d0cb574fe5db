package bundler

import (
	"context"
	"log/slog"

	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/searcher"
	"github.com/dshills/hybridindex/pkg/types"
)

const (
	// DefaultMaxSnippets bounds a bundle when the request leaves it unset
	DefaultMaxSnippets = 8
	// DefaultMaxTokens bounds the estimated tokens of all snippets
	DefaultMaxTokens = 4000
)

// Retriever runs the hybrid search a bundle is built from
type Retriever interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
}

// Request describes one bundle
type Request struct {
	Query       string
	FocusURI    string
	MaxSnippets int
	MaxTokens   int
	// Status is the index status at request time, used for freshness
	Status types.IndexStatus
}

// Bundler builds context bundles
type Bundler struct {
	retriever Retriever
	logger    *slog.Logger
}

// New creates a Bundler over retriever
func New(retriever Retriever, logger *slog.Logger) *Bundler {
	return &Bundler{retriever: retriever, logger: logging.OrDefault(logger)}
}

// Bundle runs the query and keeps snippets in rank order until the next one
// would exceed either budget.
func (b *Bundler) Bundle(ctx context.Context, req Request) (*types.ContextBundle, error) {
	if req.MaxSnippets <= 0 {
		req.MaxSnippets = DefaultMaxSnippets
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	resp, err := b.retriever.Search(ctx, searcher.Request{
		Query:    req.Query,
		Limit:    req.MaxSnippets + 1,
		FocusURI: req.FocusURI,
	})
	if err != nil {
		return nil, err
	}

	bundle := &types.ContextBundle{
		Query:          req.Query,
		Snippets:       []types.SemanticSearchResult{},
		Symbols:        []types.Symbol{},
		Edges:          []types.Edge{},
		IndexFreshness: Freshness(req.Status),
		Status:         req.Status,
	}
	for _, r := range resp.Results {
		cost := chunker.EstimateTokenCount(r.Content)
		if len(bundle.Snippets) == req.MaxSnippets || bundle.TokenCount+cost > req.MaxTokens {
			bundle.Truncated = true
			break
		}
		bundle.Snippets = append(bundle.Snippets, r)
		bundle.TokenCount += cost
	}

	kept := make(map[string]bool)
	for _, sym := range resp.Symbols {
		if anchored(sym, bundle.Snippets) {
			bundle.Symbols = append(bundle.Symbols, sym)
			kept[sym.ID] = true
		}
	}
	for _, e := range resp.Edges {
		if kept[e.FromID] || kept[e.ToID] {
			bundle.Edges = append(bundle.Edges, e)
		}
	}

	b.logger.Debug("context bundle assembled",
		slog.Int("snippets", len(bundle.Snippets)),
		slog.Int("tokens", bundle.TokenCount),
		slog.Bool("truncated", bundle.Truncated),
		slog.String("freshness", string(bundle.IndexFreshness)))
	return bundle, nil
}

// anchored reports whether sym is defined inside one of the snippets
func anchored(sym types.Symbol, snippets []types.SemanticSearchResult) bool {
	for _, s := range snippets {
		if s.URI == sym.URI && s.Range.Overlaps(sym.Range) {
			return true
		}
	}
	return false
}

// Freshness maps an index status to the annotation attached to results
func Freshness(status types.IndexStatus) types.Freshness {
	switch {
	case status.State == types.StateBuilding:
		return types.FreshnessBuilding
	case status.Paused || status.State == types.StatePaused || status.State == types.StateError:
		return types.FreshnessStale
	case status.State == types.StateIdle && status.IndexedFiles == 0:
		return types.FreshnessUninitialized
	case status.IndexedFiles < status.TotalFiles:
		return types.FreshnessStale
	default:
		return types.FreshnessFresh
	}
}
