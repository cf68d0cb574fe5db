package parser

import (
	"path"
	"sort"

	"github.com/dshills/hybridindex/pkg/types"
)

// builder accumulates one file's graph contribution
type builder struct {
	uri   string
	fg    *types.FileGraph
	edges map[types.Edge]bool
	local map[string][]string // name -> symbol ids defined in this file
}

func newBuilder(uri string, lines int) *builder {
	b := &builder{
		uri:   uri,
		fg:    &types.FileGraph{URI: uri},
		edges: make(map[types.Edge]bool),
		local: make(map[string][]string),
	}
	if lines > 0 {
		lines--
	}
	b.fg.Symbols = append(b.fg.Symbols, types.Symbol{
		ID:    types.FileNodeID(uri),
		URI:   uri,
		Kind:  types.KindFile,
		Name:  path.Base(uri),
		Range: types.Range{EndLine: lines},
	})
	return b
}

// define adds a symbol with its definition occurrence and returns its id
func (b *builder) define(name, container string, kind types.SymbolKind, rng types.Range) string {
	if name == "" || name == "_" {
		return ""
	}
	id := types.SymbolID(b.uri, container, name)
	for _, existing := range b.local[name] {
		if existing == id {
			return id
		}
	}
	b.fg.Symbols = append(b.fg.Symbols, types.Symbol{
		ID:            id,
		URI:           b.uri,
		Kind:          kind,
		Name:          name,
		ContainerName: container,
		Range:         rng,
	})
	b.fg.Definitions = append(b.fg.Definitions, types.Occurrence{
		SymbolID: id, URI: b.uri, Role: types.RoleDefinition, Range: rng,
	})
	b.local[name] = append(b.local[name], id)

	parent := types.FileNodeID(b.uri)
	if container != "" {
		parent = types.SymbolID(b.uri, "", container)
	}
	b.edge(parent, id, types.EdgeContains)
	return id
}

// importModule records an import of modulePath by this file
func (b *builder) importModule(modulePath string) {
	if modulePath == "" {
		return
	}
	b.edge(types.FileNodeID(b.uri), types.ModuleNodeID(modulePath), types.EdgeImports)
}

// reference records a use of name from the symbol fromID
func (b *builder) reference(fromID, name string, kind types.EdgeKind, rng types.Range) {
	if fromID == "" || name == "" {
		return
	}
	target := types.RefID(name)
	b.fg.References = append(b.fg.References, types.Occurrence{
		SymbolID: target, URI: b.uri, Role: types.RoleReference, Range: rng,
	})
	b.edge(fromID, target, kind)
}

func (b *builder) edge(from, to string, kind types.EdgeKind) {
	e := types.Edge{FromID: from, ToID: to, Kind: kind}
	if b.edges[e] {
		return
	}
	b.edges[e] = true
	b.fg.Edges = append(b.fg.Edges, e)
}

// finish binds references to names defined exactly once in this file and
// returns the graph in a stable order
func (b *builder) finish() *types.FileGraph {
	resolve := func(id string) string {
		name, ok := types.RefName(id)
		if !ok {
			return id
		}
		if ids := b.local[name]; len(ids) == 1 {
			return ids[0]
		}
		return id
	}

	for i := range b.fg.References {
		b.fg.References[i].SymbolID = resolve(b.fg.References[i].SymbolID)
	}
	seen := make(map[types.Edge]bool, len(b.fg.Edges))
	edges := b.fg.Edges[:0]
	for _, e := range b.fg.Edges {
		e.ToID = resolve(e.ToID)
		if e.FromID == e.ToID || seen[e] {
			continue
		}
		seen[e] = true
		edges = append(edges, e)
	}
	b.fg.Edges = edges

	sort.SliceStable(b.fg.References, func(i, j int) bool {
		return b.fg.References[i].Range.Before(b.fg.References[j].Range)
	})
	return b.fg
}
