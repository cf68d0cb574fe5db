//go:build !cgo

package parser

// TreeSitterAvailable reports whether script languages get symbol extraction
const TreeSitterAvailable = false

// registerScriptExtractors leaves script languages with file nodes only;
// tree-sitter grammars need cgo.
func registerScriptExtractors(map[string]extractFunc) {}
