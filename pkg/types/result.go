package types

import "time"

// Provenance records which retrieval signal produced a result
type Provenance string

const (
	ProvenanceLexical Provenance = "lexical"
	ProvenanceVector  Provenance = "vector"
	ProvenanceGraph   Provenance = "graph"
)

// Rank orders provenances for tie-breaking; lower wins
func (p Provenance) Rank() int {
	switch p {
	case ProvenanceLexical:
		return 0
	case ProvenanceVector:
		return 1
	case ProvenanceGraph:
		return 2
	default:
		return 3
	}
}

// Freshness annotates how current returned results are
type Freshness string

const (
	FreshnessFresh         Freshness = "fresh"
	FreshnessStale         Freshness = "stale"
	FreshnessBuilding      Freshness = "building"
	FreshnessUninitialized Freshness = "uninitialized"
)

// SemanticSearchResult represents a single ranked hit
type SemanticSearchResult struct {
	ChunkID         string       `json:"chunkId"`
	FilePath        string       `json:"filePath"`
	URI             string       `json:"uri"`
	LanguageID      string       `json:"languageId,omitempty"`
	Range           Range        `json:"range"`
	Content         string       `json:"content"`
	Score           float64      `json:"score"`
	Provenance      []Provenance `json:"provenance"`
	LastIndexedTime time.Time    `json:"lastIndexedTime"`
}

// BestProvenance returns the highest-priority provenance tag
func (r *SemanticSearchResult) BestProvenance() Provenance {
	best := Provenance("")
	for _, p := range r.Provenance {
		if best == "" || p.Rank() < best.Rank() {
			best = p
		}
	}
	return best
}

// HasProvenance reports whether p is among the result's tags
func (r *SemanticSearchResult) HasProvenance(p Provenance) bool {
	for _, existing := range r.Provenance {
		if existing == p {
			return true
		}
	}
	return false
}

// Validate checks if the search result is valid
func (r *SemanticSearchResult) Validate() error {
	if r.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if r.Score < 0 {
		return ErrInvalidRelevanceScore
	}
	if r.FilePath == "" {
		return ErrMissingFileInfo
	}
	if len(r.Provenance) == 0 {
		return ErrMissingProvenance
	}
	return nil
}

// SearchOptions configures a search request
type SearchOptions struct {
	Limit     int    `json:"limit,omitempty"`
	FocusFile string `json:"focusFile,omitempty"`
}

// ContextOptions configures a context bundle request
type ContextOptions struct {
	FocusFile   string `json:"focusFile,omitempty"`
	MaxSnippets int    `json:"maxSnippets,omitempty"`
	MaxTokens   int    `json:"maxTokens,omitempty"`
}

// ContextBundle is the assembled retrieval payload for a consumer
type ContextBundle struct {
	Query          string                 `json:"query"`
	Snippets       []SemanticSearchResult `json:"snippets"`
	Symbols        []Symbol               `json:"symbols"`
	Edges          []Edge                 `json:"edges"`
	IndexFreshness Freshness              `json:"indexFreshness"`
	Status         IndexStatus            `json:"status"`
	TokenCount     int                    `json:"tokenCount"`
	Truncated      bool                   `json:"truncated"`
}
