package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/graph"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/internal/vectorstore"
	"github.com/dshills/hybridindex/pkg/types"
)

// ErrEmptyQuery is returned for blank queries
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	// DefaultLimit is the result count when none is requested
	DefaultLimit = 10
	// MaxLimit caps the result count
	MaxLimit = 100
)

// ChunkSource is the lexical index and chunk store
type ChunkSource interface {
	SearchTerms(ctx context.Context, terms []string, limit int) ([]storage.TextResult, error)
	GetChunk(ctx context.Context, id string) (*storage.Chunk, error)
	GetFile(ctx context.Context, filePath string) (*storage.File, error)
	ChunkAt(ctx context.Context, uri string, line int) (*storage.Chunk, error)
}

// VectorIndex answers nearest-neighbor queries for vectors of a model
type VectorIndex interface {
	Query(ctx context.Context, model types.ModelInfo, vector []float32, topK int) ([]vectorstore.Result, error)
}

// Config tunes merging. Zero values take the defaults.
type Config struct {
	// LexicalWeight and VectorWeight scale the normalized signal scores
	LexicalWeight float64
	VectorWeight  float64
	// GraphWeight scales the score a graph neighbor inherits from its seed
	GraphWeight float64
	// CandidateFactor multiplies the limit when fetching per-signal candidates
	CandidateFactor int
	// MaxSeeds bounds how many symbols are expanded in the graph
	MaxSeeds int

	CacheSize int
	CacheTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.LexicalWeight <= 0 {
		c.LexicalWeight = 1
	}
	if c.VectorWeight <= 0 {
		c.VectorWeight = 1
	}
	if c.GraphWeight <= 0 {
		c.GraphWeight = 0.5
	}
	if c.CandidateFactor <= 0 {
		c.CandidateFactor = 3
	}
	if c.MaxSeeds <= 0 {
		c.MaxSeeds = 10
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

// Request contains parameters for a search operation
type Request struct {
	Query string
	Limit int
	// FocusURI seeds graph expansion with the symbols of one file
	FocusURI string
}

// Response holds ranked results and the graph context behind them
type Response struct {
	Results  []types.SemanticSearchResult
	Symbols  []types.Symbol
	Edges    []types.Edge
	Duration time.Duration
	CacheHit bool

	LexicalHits int
	VectorHits  int
	GraphHits   int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher runs hybrid retrieval over one workspace
type Searcher struct {
	chunks  ChunkSource
	vectors VectorIndex
	graph   graph.Store
	runtime embedder.Runtime
	cfg     Config
	logger  *slog.Logger

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Searcher. vectors and g may be nil to skip those signals.
func New(chunks ChunkSource, vectors VectorIndex, g graph.Store, rt embedder.Runtime, cfg Config, logger *slog.Logger) *Searcher {
	cfg = cfg.withDefaults()
	cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{
		chunks:  chunks,
		vectors: vectors,
		graph:   g,
		runtime: rt,
		cfg:     cfg,
		logger:  logging.OrDefault(logger),
		cache:   cache,
	}
}

// candidate is one chunk hit before hydration. Each signal contributes its
// best score once; the candidate score is their sum.
type candidate struct {
	chunkID string
	scores  map[types.Provenance]float64
}

func (c *candidate) total() float64 {
	sum := 0.0
	for _, s := range c.scores {
		sum += s
	}
	return sum
}

type candidates map[string]*candidate

func (c candidates) add(chunkID string, score float64, p types.Provenance) {
	if chunkID == "" {
		return
	}
	cand := c[chunkID]
	if cand == nil {
		cand = &candidate{chunkID: chunkID, scores: make(map[types.Provenance]float64)}
		c[chunkID] = cand
	}
	if prev, ok := cand.scores[p]; !ok || score > prev {
		cand.scores[p] = score
	}
}

// Search fans the query out to the lexical, vector and symbol-name signals,
// expands graph neighbors of what matched, then merges and ranks.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	key := cacheKey(req)
	if cached := s.checkCache(key); cached != nil {
		cached.CacheHit = true
		cached.Duration = time.Since(start)
		return cached, nil
	}

	fetch := req.Limit * s.cfg.CandidateFactor
	terms := chunker.QueryTerms(req.Query)

	var (
		lexical []storage.TextResult
		vectors []vectorstore.Result
		named   []types.Symbol
	)
	var lexErr, vecErr, nameErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical, lexErr = s.chunks.SearchTerms(gctx, terms, fetch)
		return cancelled(lexErr)
	})
	g.Go(func() error {
		vectors, vecErr = s.vectorSearch(gctx, req.Query, fetch)
		return cancelled(vecErr)
	})
	if s.graph != nil {
		g.Go(func() error {
			named, nameErr = s.graph.FindSymbols(gctx, identifiers(req.Query), s.cfg.MaxSeeds)
			return cancelled(nameErr)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, types.NewCancellationError("search", err)
	}
	for signal, err := range map[string]error{"lexical": lexErr, "vector": vecErr, "symbol": nameErr} {
		if err != nil {
			s.logger.Warn("search signal failed", slog.String("signal", signal), slog.String("error", err.Error()))
		}
	}
	if lexErr != nil && vecErr != nil {
		return nil, fmt.Errorf("both searches failed: lexical=%w, vector=%v", lexErr, vecErr)
	}

	cands := make(candidates)
	s.addLexical(cands, lexical)
	for _, v := range vectors {
		cands.add(v.ChunkID, s.cfg.VectorWeight*clamp01(v.Score), types.ProvenanceVector)
	}

	resp := &Response{LexicalHits: len(lexical), VectorHits: len(vectors)}
	if s.graph != nil {
		if err := s.expandGraph(ctx, req, cands, named, resp); err != nil {
			return nil, err
		}
	}

	results, err := s.hydrate(ctx, cands)
	if err != nil {
		return nil, err
	}
	results = Merge(results)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	resp.Results = results
	resp.Duration = time.Since(start)

	s.storeInCache(key, resp)
	return resp, nil
}

func (s *Searcher) addLexical(cands candidates, hits []storage.TextResult) {
	top := 0.0
	for _, h := range hits {
		if h.Score > top {
			top = h.Score
		}
	}
	if top <= 0 {
		return
	}
	for _, h := range hits {
		cands.add(h.ChunkID, s.cfg.LexicalWeight*h.Score/top, types.ProvenanceLexical)
	}
}

// vectorSearch embeds the query and asks the vector index. A zero query
// vector has no direction and yields nothing.
func (s *Searcher) vectorSearch(ctx context.Context, query string, topK int) ([]vectorstore.Result, error) {
	if s.vectors == nil || s.runtime == nil {
		return nil, nil
	}
	res, err := s.runtime.Embed(ctx, []string{query}, embedder.InputQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(res.Vectors) == 0 || isZero(res.Vectors[0]) {
		return nil, nil
	}
	return s.vectors.Query(ctx, res.Model, res.Vectors[0], topK)
}

// seed is a symbol graph expansion starts from
type seed struct {
	symbol types.Symbol
	score  float64
}

// expandGraph seeds from symbols matched by name, symbols defined in the top
// lexical and vector chunks and the focus file, then adds each seed's
// neighbors as graph candidates.
func (s *Searcher) expandGraph(ctx context.Context, req Request, cands candidates, named []types.Symbol, resp *Response) error {
	var seeds []seed
	seen := make(map[string]bool)
	addSeed := func(sym types.Symbol, score float64) {
		if seen[sym.ID] || len(seeds) >= s.cfg.MaxSeeds || sym.Kind == types.KindFile || sym.Kind == types.KindModule {
			return
		}
		seen[sym.ID] = true
		seeds = append(seeds, seed{symbol: sym, score: score})
	}

	for _, sym := range named {
		addSeed(sym, 1)
	}

	type scored struct {
		chunkID string
		score   float64
	}
	top := make([]scored, 0, len(cands))
	for _, c := range cands {
		top = append(top, scored{c.chunkID, c.total()})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].score != top[j].score {
			return top[i].score > top[j].score
		}
		return top[i].chunkID < top[j].chunkID
	})
	graphs := make(map[string]*types.FileGraph)
	for i := 0; i < len(top) && i < 5; i++ {
		chunk, err := s.chunks.GetChunk(ctx, top[i].chunkID)
		if err != nil {
			if types.IsCancellation(err) {
				return types.NewCancellationError("search", err)
			}
			continue
		}
		fg, err := s.fileGraph(ctx, graphs, chunk.URI)
		if err != nil {
			return err
		}
		for _, sym := range fg.Symbols {
			if sym.Range.Overlaps(chunk.Range) {
				addSeed(sym, top[i].score)
			}
		}
	}
	if req.FocusURI != "" {
		fg, err := s.fileGraph(ctx, graphs, req.FocusURI)
		if err != nil {
			return err
		}
		for _, sym := range fg.Symbols {
			addSeed(sym, 0.5)
		}
	}

	symbols := make(map[string]types.Symbol)
	edges := make(map[types.Edge]bool)
	for _, sd := range seeds {
		symbols[sd.symbol.ID] = sd.symbol
		if c, err := s.chunks.ChunkAt(ctx, sd.symbol.URI, sd.symbol.Range.StartLine); err == nil {
			cands.add(c.ID, s.cfg.GraphWeight*sd.score, types.ProvenanceGraph)
			resp.GraphHits++
		}

		neighbors, err := s.graph.GetNeighbors(ctx, sd.symbol.ID, types.DirectionBoth)
		if err != nil {
			if types.IsCancellation(err) {
				return types.NewCancellationError("search", err)
			}
			s.logger.Debug("neighbor expansion failed", slog.String("symbol", sd.symbol.ID), slog.String("error", err.Error()))
			continue
		}
		for _, n := range neighbors {
			edges[n.Edge] = true
			if n.Symbol == nil || n.Symbol.Kind == types.KindFile || n.Symbol.Kind == types.KindModule {
				continue
			}
			symbols[n.Symbol.ID] = *n.Symbol
			c, err := s.chunks.ChunkAt(ctx, n.Symbol.URI, n.Symbol.Range.StartLine)
			if err != nil {
				continue
			}
			cands.add(c.ID, s.cfg.GraphWeight*sd.score, types.ProvenanceGraph)
			resp.GraphHits++
		}
	}

	resp.Symbols = make([]types.Symbol, 0, len(symbols))
	for _, sym := range symbols {
		resp.Symbols = append(resp.Symbols, sym)
	}
	sort.Slice(resp.Symbols, func(i, j int) bool { return resp.Symbols[i].ID < resp.Symbols[j].ID })
	resp.Edges = make([]types.Edge, 0, len(edges))
	for e := range edges {
		resp.Edges = append(resp.Edges, e)
	}
	sort.Slice(resp.Edges, func(i, j int) bool {
		a, b := resp.Edges[i], resp.Edges[j]
		if a.FromID != b.FromID {
			return a.FromID < b.FromID
		}
		if a.ToID != b.ToID {
			return a.ToID < b.ToID
		}
		return a.Kind < b.Kind
	})
	return nil
}

func (s *Searcher) fileGraph(ctx context.Context, cache map[string]*types.FileGraph, uri string) (*types.FileGraph, error) {
	if fg, ok := cache[uri]; ok {
		return fg, nil
	}
	fg, err := s.graph.GetFileGraph(ctx, uri)
	if err != nil {
		if types.IsCancellation(err) {
			return nil, types.NewCancellationError("search", err)
		}
		fg = &types.FileGraph{URI: uri}
	}
	cache[uri] = fg
	return fg, nil
}

// hydrate loads chunk and file rows for candidates. Candidates whose chunk
// no longer exists, such as stale remote vectors, are dropped.
func (s *Searcher) hydrate(ctx context.Context, cands candidates) ([]types.SemanticSearchResult, error) {
	files := make(map[string]*storage.File)
	results := make([]types.SemanticSearchResult, 0, len(cands))
	for _, c := range cands {
		chunk, err := s.chunks.GetChunk(ctx, c.chunkID)
		if err != nil {
			if types.IsCancellation(err) {
				return nil, types.NewCancellationError("search", err)
			}
			continue
		}
		file, ok := files[chunk.FilePath]
		if !ok {
			file, err = s.chunks.GetFile(ctx, chunk.FilePath)
			if err != nil && types.IsCancellation(err) {
				return nil, types.NewCancellationError("search", err)
			}
			files[chunk.FilePath] = file
		}

		r := types.SemanticSearchResult{
			ChunkID:    chunk.ID,
			FilePath:   chunk.FilePath,
			URI:        chunk.URI,
			LanguageID: chunk.LanguageID,
			Range:      chunk.Range,
			Content:    chunk.Content,
			Score:      c.total(),
		}
		if file != nil && file.LastIndexedAt != nil {
			r.LastIndexedTime = *file.LastIndexedAt
		}
		for _, p := range []types.Provenance{types.ProvenanceLexical, types.ProvenanceVector, types.ProvenanceGraph} {
			if _, ok := c.scores[p]; ok {
				r.Provenance = append(r.Provenance, p)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// InvalidateCache drops every cached response. Called whenever index
// content changes.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(key [32]byte) *Response {
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(key [32]byte, resp *Response) {
	entry := &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(s.cfg.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(key, entry)
	s.cacheMu.Unlock()
}

// copyResponse creates a deep copy so cached entries are never shared
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SemanticSearchResult, len(src.Results))
	for i, r := range src.Results {
		r.Provenance = append([]types.Provenance(nil), r.Provenance...)
		dst.Results[i] = r
	}
	dst.Symbols = append([]types.Symbol(nil), src.Symbols...)
	dst.Edges = append([]types.Edge(nil), src.Edges...)
	return &dst
}

func cacheKey(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.Limit))
	data.WriteString("|")
	data.WriteString(req.FocusURI)
	return sha256.Sum256([]byte(data.String()))
}

// identifiers returns the identifier-like words of a query, for symbol lookup
func identifiers(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !(r == '_' || r == '$' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127)
	})
}

// cancelled passes only cancellation through to the group so one failing
// signal does not stop the others
func cancelled(err error) error {
	if types.IsCancellation(err) {
		return err
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
