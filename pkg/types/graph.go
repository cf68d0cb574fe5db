package types

import (
	"errors"
	"strings"
)

// SymbolKind represents the kind of a graph node
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindFile      SymbolKind = "file"
	KindModule    SymbolKind = "module"
)

// EdgeKind represents the relationship between two graph nodes
type EdgeKind string

const (
	EdgeImports    EdgeKind = "imports"
	EdgeCalls      EdgeKind = "calls"
	EdgeReferences EdgeKind = "references"
	EdgeContains   EdgeKind = "contains"
)

// OccurrenceRole distinguishes definitions from references
type OccurrenceRole string

const (
	RoleDefinition OccurrenceRole = "definition"
	RoleReference  OccurrenceRole = "reference"
)

// Direction filters neighbor expansion
type Direction int

const (
	DirectionBoth Direction = iota
	DirectionOutgoing
	DirectionIncoming
)

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	default:
		return "both"
	}
}

// Symbol is a graph node
type Symbol struct {
	ID            string     `json:"id"`
	URI           string     `json:"uri"`
	Kind          SymbolKind `json:"kind"`
	Name          string     `json:"name"`
	ContainerName string     `json:"containerName,omitempty"`
	Range         Range      `json:"range"`
}

// Occurrence records where a symbol is defined or referenced
type Occurrence struct {
	SymbolID string         `json:"symbolId"`
	URI      string         `json:"uri"`
	Role     OccurrenceRole `json:"role"`
	Range    Range          `json:"range"`
}

// Edge is a directed relationship. Either end may name a node that has not been observed yet.
type Edge struct {
	FromID string   `json:"fromId"`
	ToID   string   `json:"toId"`
	Kind   EdgeKind `json:"kind"`
}

// Neighbor is one edge adjacent to a queried node
type Neighbor struct {
	Edge      Edge      `json:"edge"`
	Direction Direction `json:"direction"`
	Symbol    *Symbol   `json:"symbol,omitempty"` // nil when the other end is dangling
}

// FileGraph groups everything one file contributes to the graph
type FileGraph struct {
	URI         string
	Symbols     []Symbol
	Definitions []Occurrence
	References  []Occurrence
	Edges       []Edge
}

// IsEmpty reports whether the file contributes nothing
func (g *FileGraph) IsEmpty() bool {
	return g == nil || (len(g.Symbols) == 0 && len(g.Definitions) == 0 && len(g.References) == 0 && len(g.Edges) == 0)
}

// GraphStats is a cheap aggregate for diagnostics
type GraphStats struct {
	NodeCount int `json:"nodeCount"`
	EdgeCount int `json:"edgeCount"`
}

// SymbolID builds the id for a symbol defined in uri
func SymbolID(uri, container, name string) string {
	if container != "" {
		return uri + "#" + container + "." + name
	}
	return uri + "#" + name
}

// FileNodeID builds the node id for a whole file
func FileNodeID(uri string) string {
	return "file:" + uri
}

// ModuleNodeID builds the node id for an imported module
func ModuleNodeID(path string) string {
	return "module:" + path
}

// RefID builds the id for an unresolved reference by name
func RefID(name string) string {
	return "ref:" + name
}

// RefName returns the referenced name of an unresolved id, if it is one
func RefName(id string) (string, bool) {
	return strings.CutPrefix(id, "ref:")
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindClass, KindStruct, KindInterface, KindType,
		KindConst, KindVar, KindFile, KindModule:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// Validate performs basic validation of the symbol
func (s *Symbol) Validate() error {
	if s.ID == "" {
		return errors.New("symbol ID cannot be empty")
	}
	if s.Name == "" {
		return errors.New("symbol name cannot be empty")
	}
	if err := s.ValidateKind(); err != nil {
		return err
	}
	return s.Range.Validate()
}
