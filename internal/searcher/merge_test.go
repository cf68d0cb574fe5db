package searcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/pkg/types"
)

func result(path string, start, end int, score float64, prov ...types.Provenance) types.SemanticSearchResult {
	return types.SemanticSearchResult{
		ChunkID:    path + ":" + string(rune('0'+start)),
		FilePath:   path,
		Range:      types.Range{StartLine: start, EndLine: end},
		Score:      score,
		Provenance: prov,
	}
}

func TestMerge_CollapsesOverlappingRanges(t *testing.T) {
	in := []types.SemanticSearchResult{
		result("a.ts", 0, 9, 0.4, types.ProvenanceGraph),
		result("a.ts", 5, 14, 0.9, types.ProvenanceVector),
		result("a.ts", 20, 29, 0.3, types.ProvenanceLexical),
		result("b.ts", 0, 9, 0.5, types.ProvenanceLexical),
	}

	out := Merge(in)
	require.Len(t, out, 3)

	assert.Equal(t, "a.ts", out[0].FilePath)
	assert.Equal(t, 5, out[0].Range.StartLine)
	assert.Equal(t, []types.Provenance{types.ProvenanceVector, types.ProvenanceGraph}, out[0].Provenance)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)

	assert.Equal(t, "b.ts", out[1].FilePath)
	assert.Equal(t, 20, out[2].Range.StartLine)

	// Input is untouched
	assert.Equal(t, []types.Provenance{types.ProvenanceVector}, in[1].Provenance)
}

func TestRank_TieBreaks(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	graphHit := result("a.ts", 0, 9, 1, types.ProvenanceGraph)
	vectorHit := result("b.ts", 0, 9, 1, types.ProvenanceVector)
	lexOld := result("c.ts", 0, 9, 1, types.ProvenanceLexical)
	lexOld.LastIndexedTime = older
	lexNew := result("d.ts", 0, 9, 1, types.ProvenanceLexical)
	lexNew.LastIndexedTime = newer
	lexSameB := result("e.ts", 30, 39, 1, types.ProvenanceLexical)
	lexSameB.LastIndexedTime = older
	lexSameA := result("e.ts", 10, 19, 1, types.ProvenanceLexical)
	lexSameA.LastIndexedTime = older
	best := result("z.ts", 0, 9, 2, types.ProvenanceGraph)

	rs := []types.SemanticSearchResult{graphHit, vectorHit, lexSameB, lexOld, best, lexSameA, lexNew}
	Rank(rs)

	var order []string
	for _, r := range rs {
		order = append(order, r.ChunkID)
	}
	assert.Equal(t, []string{
		best.ChunkID,
		lexNew.ChunkID,
		lexOld.ChunkID,
		lexSameA.ChunkID,
		lexSameB.ChunkID,
		vectorHit.ChunkID,
		graphHit.ChunkID,
	}, order)
}

func TestUnionProvenance(t *testing.T) {
	got := unionProvenance(
		[]types.Provenance{types.ProvenanceGraph},
		[]types.Provenance{types.ProvenanceVector, types.ProvenanceGraph, types.ProvenanceLexical},
	)
	assert.Equal(t, []types.Provenance{types.ProvenanceLexical, types.ProvenanceVector, types.ProvenanceGraph}, got)
}
