// Package parser extracts symbol graphs from source files.
//
// Go files are parsed with go/parser. JavaScript, TypeScript and Python use
// tree-sitter grammars when the binary is built with cgo; without cgo those
// languages contribute only their file node.
//
// Every parsed file yields a types.FileGraph with:
//   - a file node and one node per top-level declaration or method
//   - contains edges from the file (or class) to its declarations
//   - imports edges from the file to module nodes
//   - calls and references edges from declarations to the names they use
//
// Names used but not defined in the same file are recorded as unresolved
// references (ref:Name) and resolved by the graph store at query time.
package parser
