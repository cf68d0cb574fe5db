package searcher

import (
	"sort"

	"github.com/dshills/hybridindex/pkg/types"
)

// Merge collapses results whose ranges overlap within the same file into the
// highest-scoring one, carrying over the provenance of the others, and
// returns them in ranking order.
func Merge(results []types.SemanticSearchResult) []types.SemanticSearchResult {
	ranked := append([]types.SemanticSearchResult(nil), results...)
	Rank(ranked)

	kept := make([]types.SemanticSearchResult, 0, len(ranked))
	byFile := make(map[string][]int)
	for _, r := range ranked {
		merged := false
		for _, i := range byFile[r.FilePath] {
			if kept[i].Range.Overlaps(r.Range) {
				kept[i].Provenance = unionProvenance(kept[i].Provenance, r.Provenance)
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		r.Provenance = append([]types.Provenance(nil), r.Provenance...)
		byFile[r.FilePath] = append(byFile[r.FilePath], len(kept))
		kept = append(kept, r)
	}
	// Provenance unions can change the tie-break
	Rank(kept)
	return kept
}

// Rank sorts results by score, then best provenance (lexical before vector
// before graph), then most recently indexed, then path and line.
func Rank(results []types.SemanticSearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := a.BestProvenance().Rank(), b.BestProvenance().Rank(); ra != rb {
			return ra < rb
		}
		if !a.LastIndexedTime.Equal(b.LastIndexedTime) {
			return a.LastIndexedTime.After(b.LastIndexedTime)
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.Range.StartLine < b.Range.StartLine
	})
}

func unionProvenance(a, b []types.Provenance) []types.Provenance {
	seen := make(map[types.Provenance]bool, len(a)+len(b))
	for _, p := range a {
		seen[p] = true
	}
	out := append([]types.Provenance(nil), a...)
	for _, p := range b {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}
