package parser

import (
	"context"
	"go/ast"
	goparser "go/parser"
	"go/token"
	gotypes "go/types"
	"strconv"

	"github.com/dshills/hybridindex/pkg/types"
)

// extractGo walks the Go AST. A partial AST from a file with syntax errors is
// still walked.
func extractGo(_ context.Context, b *builder, content []byte) error {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, b.uri, content, goparser.SkipObjectResolution)
	if file == nil {
		return err
	}

	e := &goExtractor{b: b, fset: fset}
	for _, imp := range file.Imports {
		if path, uerr := strconv.Unquote(imp.Path.Value); uerr == nil {
			b.importModule(path)
		}
	}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.extractFunction(d)
		case *ast.GenDecl:
			e.extractGenDecl(d)
		}
	}
	return err
}

type goExtractor struct {
	b    *builder
	fset *token.FileSet
}

func (e *goExtractor) rangeOf(node ast.Node) types.Range {
	start := e.fset.Position(node.Pos())
	end := e.fset.Position(node.End())
	return types.Range{
		StartLine: start.Line - 1,
		StartChar: start.Column - 1,
		EndLine:   end.Line - 1,
		EndChar:   end.Column - 1,
	}
}

// extractFunction extracts function and method declarations with their calls
func (e *goExtractor) extractFunction(fn *ast.FuncDecl) {
	kind := types.KindFunction
	receiver := ""
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		kind = types.KindMethod
		receiver = receiverType(fn.Recv.List[0].Type)
	}

	id := e.b.define(fn.Name.Name, receiver, kind, e.rangeOf(fn))
	if fn.Body != nil {
		e.extractUses(id, fn.Body)
	}
}

// extractGenDecl extracts type, const, and var declarations
func (e *goExtractor) extractGenDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			kind := types.KindType
			switch s.Type.(type) {
			case *ast.StructType:
				kind = types.KindStruct
			case *ast.InterfaceType:
				kind = types.KindInterface
			}
			e.b.define(s.Name.Name, "", kind, e.rangeOf(s))
		case *ast.ValueSpec:
			kind := types.KindVar
			if decl.Tok == token.CONST {
				kind = types.KindConst
			}
			for _, name := range s.Names {
				id := e.b.define(name.Name, "", kind, e.rangeOf(s))
				for _, v := range s.Values {
					e.extractUses(id, v)
				}
			}
		}
	}
}

// extractUses records calls and composite literal types inside node
func (e *goExtractor) extractUses(fromID string, node ast.Node) {
	ast.Inspect(node, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.CallExpr:
			if name, at := calleeName(x.Fun); name != "" && !isBuiltin(name) {
				e.b.reference(fromID, name, types.EdgeCalls, e.rangeOf(at))
			}
		case *ast.CompositeLit:
			if name, at := calleeName(x.Type); name != "" {
				e.b.reference(fromID, name, types.EdgeReferences, e.rangeOf(at))
			}
		}
		return true
	})
}

// calleeName returns the final identifier of a call target
func calleeName(expr ast.Expr) (string, ast.Node) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, t
	case *ast.SelectorExpr:
		return t.Sel.Name, t.Sel
	case *ast.IndexExpr:
		return calleeName(t.X)
	case *ast.IndexListExpr:
		return calleeName(t.X)
	}
	return "", nil
}

// receiverType extracts the receiver type name from a method
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}

func isBuiltin(name string) bool {
	obj := gotypes.Universe.Lookup(name)
	return obj != nil
}
