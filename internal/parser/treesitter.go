//go:build cgo

package parser

import (
	"context"
	"errors"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/hybridindex/pkg/types"
)

// TreeSitterAvailable reports whether script languages get symbol extraction
const TreeSitterAvailable = true

var errSyntax = errors.New("syntax error")

func registerScriptExtractors(m map[string]extractFunc) {
	m["javascript"] = scriptExtractor(javascript.GetLanguage(), scriptNodes)
	m["javascriptreact"] = scriptExtractor(javascript.GetLanguage(), scriptNodes)
	m["typescript"] = scriptExtractor(typescript.GetLanguage(), scriptNodes)
	m["typescriptreact"] = scriptExtractor(tsx.GetLanguage(), scriptNodes)
	m["python"] = scriptExtractor(python.GetLanguage(), pythonNodes)
}

// nodeKinds maps grammar node types onto graph concepts
type nodeKinds struct {
	symbols   map[string]types.SymbolKind
	classes   map[string]bool // symbol nodes that contain methods
	methods   map[string]bool // symbol nodes named relative to their class
	calls     map[string]bool
	imports   map[string]bool
	arrowDecl bool // const f = () => {} declares a function
}

var scriptNodes = nodeKinds{
	symbols: map[string]types.SymbolKind{
		"function_declaration":           types.KindFunction,
		"generator_function_declaration": types.KindFunction,
		"class_declaration":              types.KindClass,
		"abstract_class_declaration":     types.KindClass,
		"method_definition":              types.KindMethod,
		"interface_declaration":          types.KindInterface,
		"type_alias_declaration":         types.KindType,
		"enum_declaration":               types.KindType,
	},
	classes:   map[string]bool{"class_declaration": true, "abstract_class_declaration": true},
	methods:   map[string]bool{"method_definition": true},
	calls:     map[string]bool{"call_expression": true, "new_expression": true},
	imports:   map[string]bool{"import_statement": true},
	arrowDecl: true,
}

var pythonNodes = nodeKinds{
	symbols: map[string]types.SymbolKind{
		"function_definition": types.KindFunction,
		"class_definition":    types.KindClass,
	},
	classes: map[string]bool{"class_definition": true},
	calls:   map[string]bool{"call": true},
	imports: map[string]bool{"import_statement": true, "import_from_statement": true},
}

func scriptExtractor(lang *sitter.Language, kinds nodeKinds) extractFunc {
	return func(ctx context.Context, b *builder, content []byte) error {
		p := sitter.NewParser()
		defer p.Close()
		p.SetLanguage(lang)

		tree, err := p.ParseCtx(ctx, nil, content)
		if err != nil {
			return err
		}
		defer tree.Close()

		w := &scriptWalker{b: b, src: content, kinds: kinds}
		root := tree.RootNode()
		w.walk(root, types.FileNodeID(b.uri), "")
		if root.HasError() {
			return errSyntax
		}
		return nil
	}
}

type scriptWalker struct {
	b     *builder
	src   []byte
	kinds nodeKinds
}

func nodeRange(n *sitter.Node) types.Range {
	return types.Range{
		StartLine: int(n.StartPoint().Row),
		StartChar: int(n.StartPoint().Column),
		EndLine:   int(n.EndPoint().Row),
		EndChar:   int(n.EndPoint().Column),
	}
}

// walk visits n with owner as the symbol uses are attributed to and class as
// the enclosing class name
func (w *scriptWalker) walk(n *sitter.Node, owner, class string) {
	if n == nil {
		return
	}
	typ := n.Type()

	switch {
	case w.kinds.imports[typ]:
		w.importsOf(n)
		return
	case w.kinds.calls[typ]:
		w.callOf(n, owner)
	case w.kinds.arrowDecl && typ == "variable_declarator":
		if value := n.ChildByFieldName("value"); value != nil &&
			(value.Type() == "arrow_function" || value.Type() == "function_expression" || value.Type() == "function") {
			if name := n.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				owner = w.b.define(name.Content(w.src), class, types.KindFunction, nodeRange(n))
			}
		}
	}

	if kind, ok := w.kinds.symbols[typ]; ok {
		if name := n.ChildByFieldName("name"); name != nil {
			container := ""
			if class != "" && (w.kinds.methods[typ] || kind == types.KindFunction) {
				container = class
				if kind == types.KindFunction {
					kind = types.KindMethod
				}
			}
			id := w.b.define(name.Content(w.src), container, kind, nodeRange(n))
			if id != "" {
				owner = id
			}
			switch {
			case w.kinds.classes[typ]:
				class = name.Content(w.src)
			case kind == types.KindFunction || kind == types.KindMethod:
				class = ""
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i), owner, class)
	}
}

// callOf records the callee of a call or constructor expression
func (w *scriptWalker) callOf(n *sitter.Node, owner string) {
	target := n.ChildByFieldName("function")
	if target == nil {
		target = n.ChildByFieldName("constructor")
	}
	if target == nil {
		return
	}
	switch target.Type() {
	case "member_expression":
		target = target.ChildByFieldName("property")
	case "attribute":
		target = target.ChildByFieldName("attribute")
	}
	if target == nil {
		return
	}
	switch target.Type() {
	case "identifier", "property_identifier":
		w.b.reference(owner, target.Content(w.src), types.EdgeCalls, nodeRange(target))
	}
}

// importsOf records module paths named by an import statement
func (w *scriptWalker) importsOf(n *sitter.Node) {
	if source := n.ChildByFieldName("source"); source != nil {
		w.b.importModule(strings.Trim(source.Content(w.src), "\"'`"))
		return
	}
	if module := n.ChildByFieldName("module_name"); module != nil {
		w.b.importModule(module.Content(w.src))
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			w.b.importModule(child.Content(w.src))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				w.b.importModule(name.Content(w.src))
			}
		}
	}
}
