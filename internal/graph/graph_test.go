package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/pkg/types"
)

func newSQLiteGraph(t *testing.T) Store {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:", types.WorkspaceIdentity{ID: "ws-graph", RootPath: "/ws"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": New(false, nil),
		"sqlite": New(true, newSQLiteGraph(t)),
	}
}

func sym(uri, name string, kind types.SymbolKind, line int) types.Symbol {
	return types.Symbol{
		ID:    types.SymbolID(uri, "", name),
		URI:   uri,
		Kind:  kind,
		Name:  name,
		Range: types.Range{StartLine: line, EndLine: line + 2},
	}
}

// fileA defines Helper and Run; Run calls Helper and Format (defined in b)
func fileA() *types.FileGraph {
	uri := "file:///ws/a.go"
	helper := sym(uri, "Helper", types.KindFunction, 1)
	run := sym(uri, "Run", types.KindFunction, 5)
	return &types.FileGraph{
		URI:     uri,
		Symbols: []types.Symbol{helper, run},
		Definitions: []types.Occurrence{
			{SymbolID: helper.ID, URI: uri, Role: types.RoleDefinition, Range: helper.Range},
			{SymbolID: run.ID, URI: uri, Role: types.RoleDefinition, Range: run.Range},
		},
		References: []types.Occurrence{
			{SymbolID: helper.ID, URI: uri, Role: types.RoleReference, Range: types.Range{StartLine: 6, EndLine: 6}},
			{SymbolID: types.RefID("Format"), URI: uri, Role: types.RoleReference, Range: types.Range{StartLine: 7, EndLine: 7}},
		},
		Edges: []types.Edge{
			{FromID: types.FileNodeID(uri), ToID: types.ModuleNodeID("fmt"), Kind: types.EdgeImports},
			{FromID: run.ID, ToID: helper.ID, Kind: types.EdgeCalls},
			{FromID: run.ID, ToID: types.RefID("Format"), Kind: types.EdgeCalls},
		},
	}
}

func fileB() *types.FileGraph {
	uri := "file:///ws/b.go"
	format := sym(uri, "Format", types.KindFunction, 0)
	return &types.FileGraph{
		URI:         uri,
		Symbols:     []types.Symbol{format},
		Definitions: []types.Occurrence{{SymbolID: format.ID, URI: uri, Role: types.RoleDefinition, Range: format.Range}},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, g := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, g.UpdateFromFile(ctx, fileA()))
			require.NoError(t, g.UpdateFromFile(ctx, fileB()))

			runID := types.SymbolID("file:///ws/a.go", "", "Run")
			helperID := types.SymbolID("file:///ws/a.go", "", "Helper")
			formatID := types.SymbolID("file:///ws/b.go", "", "Format")

			t.Run("get symbol", func(t *testing.T) {
				got, err := g.GetSymbol(ctx, runID)
				require.NoError(t, err)
				assert.Equal(t, "Run", got.Name)

				_, err = g.GetSymbol(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("definitions and references", func(t *testing.T) {
				defs, err := g.GetDefinitions(ctx, helperID)
				require.NoError(t, err)
				require.Len(t, defs, 1)
				assert.Equal(t, types.RoleDefinition, defs[0].Role)

				refs, err := g.GetReferences(ctx, formatID)
				require.NoError(t, err)
				require.Len(t, refs, 1, "unresolved reference by name counts")
				assert.Equal(t, "file:///ws/a.go", refs[0].URI)
			})

			t.Run("neighbors both directions", func(t *testing.T) {
				out, err := g.GetNeighbors(ctx, runID, types.DirectionOutgoing)
				require.NoError(t, err)
				require.Len(t, out, 2)
				for _, n := range out {
					require.NotNil(t, n.Symbol, "targets resolve, including ref:Format")
				}

				in, err := g.GetNeighbors(ctx, formatID, types.DirectionIncoming)
				require.NoError(t, err)
				require.Len(t, in, 1)
				assert.Equal(t, runID, in[0].Edge.FromID)
				assert.Equal(t, "Run", in[0].Symbol.Name)

				both, err := g.GetNeighbors(ctx, helperID, types.DirectionBoth)
				require.NoError(t, err)
				assert.Len(t, both, 1)
				assert.Equal(t, types.DirectionIncoming, both[0].Direction)

				dangling, err := g.GetNeighbors(ctx, types.FileNodeID("file:///ws/a.go"), types.DirectionOutgoing)
				require.NoError(t, err)
				require.Len(t, dangling, 1)
				assert.Nil(t, dangling[0].Symbol)
			})

			t.Run("find symbols", func(t *testing.T) {
				found, err := g.FindSymbols(ctx, []string{"helper", "FORMAT", "nothing"}, 0)
				require.NoError(t, err)
				require.Len(t, found, 2)
				assert.Equal(t, helperID, found[0].ID)
				assert.Equal(t, formatID, found[1].ID)
			})

			t.Run("stats", func(t *testing.T) {
				stats, err := g.GraphStats(ctx)
				require.NoError(t, err)
				assert.Equal(t, 3, stats.NodeCount)
				assert.Equal(t, 3, stats.EdgeCount)
			})

			t.Run("update replaces file contribution", func(t *testing.T) {
				fg := fileA()
				fg.Symbols = fg.Symbols[:1]
				fg.Definitions = fg.Definitions[:1]
				fg.References = nil
				fg.Edges = nil
				require.NoError(t, g.UpdateFromFile(ctx, fg))

				got, err := g.GetFileGraph(ctx, fg.URI)
				require.NoError(t, err)
				assert.Len(t, got.Symbols, 1)
				assert.Empty(t, got.Edges)
				assert.Empty(t, got.References)
			})

			t.Run("delete leaves empty file graph", func(t *testing.T) {
				require.NoError(t, g.DeleteGraph(ctx, "file:///ws/b.go"))
				got, err := g.GetFileGraph(ctx, "file:///ws/b.go")
				require.NoError(t, err)
				assert.True(t, got.IsEmpty())
			})

			t.Run("reset", func(t *testing.T) {
				require.NoError(t, g.ResetGraph(ctx))
				stats, err := g.GraphStats(ctx)
				require.NoError(t, err)
				assert.Equal(t, types.GraphStats{}, stats)
			})
		})
	}
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	m := NewMemoryStore()
	assert.ErrorIs(t, m.UpdateFromFile(context.Background(), &types.FileGraph{}), types.ErrMissingFileInfo)
	err := m.UpdateFromFile(context.Background(), &types.FileGraph{URI: "u", Symbols: []types.Symbol{{ID: "x"}}})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	persistent := newSQLiteGraph(t)
	assert.True(t, IsPersistent(New(true, persistent)))
	assert.False(t, IsPersistent(New(false, persistent)))
	assert.False(t, IsPersistent(New(true, nil)))
}
