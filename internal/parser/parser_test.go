package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/pkg/types"
)

const goURI = "file:///ws/user.go"

const goSource = `package testpkg

import (
	"fmt"
	str "strings"
)

// User represents a user in the system
type User struct {
	ID   int
	Name string
}

type Namer interface {
	GetName() string
}

type ID = int

const MaxUsers = 10

var defaultUser = NewUser(0, "root")

// GetName returns the user's name
func (u *User) GetName() string {
	return str.TrimSpace(u.Name)
}

// NewUser creates a new user
func NewUser(id int, name string) *User {
	fmt.Println(len(name))
	return &User{ID: id, Name: name}
}
`

func symbolsByName(fg *types.FileGraph) map[string]types.Symbol {
	out := make(map[string]types.Symbol)
	for _, s := range fg.Symbols {
		out[s.Name] = s
	}
	return out
}

func hasEdge(fg *types.FileGraph, from, to string, kind types.EdgeKind) bool {
	for _, e := range fg.Edges {
		if e.FromID == from && e.ToID == to && e.Kind == kind {
			return true
		}
	}
	return false
}

func TestNew(t *testing.T) {
	p := New()
	assert.True(t, p.Supports("go"))
	assert.Equal(t, TreeSitterAvailable, p.Supports("typescript"))
	assert.False(t, p.Supports("markdown"))
}

func TestParse_Go(t *testing.T) {
	fg, err := New().Parse(context.Background(), goURI, "go", []byte(goSource))
	require.NoError(t, err)
	assert.Equal(t, goURI, fg.URI)

	syms := symbolsByName(fg)
	assert.Equal(t, types.KindFile, syms["user.go"].Kind)
	assert.Equal(t, types.FileNodeID(goURI), syms["user.go"].ID)
	assert.Equal(t, types.KindStruct, syms["User"].Kind)
	assert.Equal(t, types.KindInterface, syms["Namer"].Kind)
	assert.Equal(t, types.KindType, syms["ID"].Kind)
	assert.Equal(t, types.KindConst, syms["MaxUsers"].Kind)
	assert.Equal(t, types.KindVar, syms["defaultUser"].Kind)
	assert.Equal(t, types.KindFunction, syms["NewUser"].Kind)

	method := syms["GetName"]
	assert.Equal(t, types.KindMethod, method.Kind)
	assert.Equal(t, "User", method.ContainerName)
	assert.Equal(t, types.SymbolID(goURI, "User", "GetName"), method.ID)

	// Ranges are zero-based
	assert.Equal(t, 8, syms["User"].Range.StartLine)

	for _, s := range fg.Symbols {
		require.NoError(t, s.Validate(), s.Name)
	}

	fileID := types.FileNodeID(goURI)
	newUser := syms["NewUser"].ID
	assert.True(t, hasEdge(fg, fileID, types.ModuleNodeID("fmt"), types.EdgeImports))
	assert.True(t, hasEdge(fg, fileID, types.ModuleNodeID("strings"), types.EdgeImports))
	assert.True(t, hasEdge(fg, fileID, newUser, types.EdgeContains))
	assert.True(t, hasEdge(fg, types.SymbolID(goURI, "", "User"), method.ID, types.EdgeContains))

	// Local names resolve, foreign ones stay as references by name
	assert.True(t, hasEdge(fg, syms["defaultUser"].ID, newUser, types.EdgeCalls))
	assert.True(t, hasEdge(fg, newUser, types.RefID("Println"), types.EdgeCalls))
	assert.True(t, hasEdge(fg, newUser, syms["User"].ID, types.EdgeReferences))
	assert.True(t, hasEdge(fg, method.ID, types.RefID("TrimSpace"), types.EdgeCalls))
	assert.False(t, hasEdge(fg, newUser, types.RefID("len"), types.EdgeCalls), "builtins are skipped")

	assert.Len(t, fg.Definitions, len(fg.Symbols)-1)
	assert.NotEmpty(t, fg.References)
}

func TestParse_GoSyntaxError(t *testing.T) {
	src := "package broken\n\nfunc Good() {}\n\nfunc Bad( {\n"
	fg, err := New().Parse(context.Background(), "file:///ws/broken.go", "go", []byte(src))
	assert.Error(t, err)
	require.NotNil(t, fg)
	assert.Contains(t, symbolsByName(fg), "Good")
}

func TestParse_EmptyFile(t *testing.T) {
	fg, err := New().Parse(context.Background(), "file:///ws/empty.go", "go", nil)
	require.NoError(t, err)
	require.Len(t, fg.Symbols, 1)
	assert.Equal(t, types.KindFile, fg.Symbols[0].Kind)
	assert.Empty(t, fg.Edges)
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	fg, err := New().Parse(context.Background(), "file:///ws/readme.md", "markdown", []byte("# Title\n"))
	require.NoError(t, err)
	require.Len(t, fg.Symbols, 1)
	assert.Equal(t, "readme.md", fg.Symbols[0].Name)
}

func TestParse_MissingURI(t *testing.T) {
	_, err := New().Parse(context.Background(), "", "go", []byte("package x"))
	assert.ErrorIs(t, err, types.ErrMissingFileInfo)
}

func TestParse_TypeScript(t *testing.T) {
	if !TreeSitterAvailable {
		t.Skip("tree-sitter requires cgo")
	}
	const uri = "file:///ws/svc.ts"
	src := `import { format } from "./format";

export class Service {
  run(input: string): string {
    return format(helper(input));
  }
}

function helper(x: string) {
  return x.trim();
}

const shout = (s: string) => s.toUpperCase();

interface Options { verbose: boolean }
`
	fg, err := New().Parse(context.Background(), uri, "typescript", []byte(src))
	require.NoError(t, err)

	syms := symbolsByName(fg)
	assert.Equal(t, types.KindClass, syms["Service"].Kind)
	assert.Equal(t, types.KindMethod, syms["run"].Kind)
	assert.Equal(t, "Service", syms["run"].ContainerName)
	assert.Equal(t, types.KindFunction, syms["helper"].Kind)
	assert.Equal(t, types.KindFunction, syms["shout"].Kind)
	assert.Equal(t, types.KindInterface, syms["Options"].Kind)

	run := syms["run"].ID
	assert.True(t, hasEdge(fg, types.FileNodeID(uri), types.ModuleNodeID("./format"), types.EdgeImports))
	assert.True(t, hasEdge(fg, run, syms["helper"].ID, types.EdgeCalls))
	assert.True(t, hasEdge(fg, run, types.RefID("format"), types.EdgeCalls))
}

func TestParse_Python(t *testing.T) {
	if !TreeSitterAvailable {
		t.Skip("tree-sitter requires cgo")
	}
	const uri = "file:///ws/app.py"
	src := `import os
from pathlib import Path

class Loader:
    def load(self, name):
        return read(os.path.join("data", name))

def read(path):
    return Path(path).read_text()
`
	fg, err := New().Parse(context.Background(), uri, "python", []byte(src))
	require.NoError(t, err)

	syms := symbolsByName(fg)
	assert.Equal(t, types.KindClass, syms["Loader"].Kind)
	assert.Equal(t, types.KindMethod, syms["load"].Kind)
	assert.Equal(t, types.KindFunction, syms["read"].Kind)

	assert.True(t, hasEdge(fg, types.FileNodeID(uri), types.ModuleNodeID("os"), types.EdgeImports))
	assert.True(t, hasEdge(fg, types.FileNodeID(uri), types.ModuleNodeID("pathlib"), types.EdgeImports))
	assert.True(t, hasEdge(fg, syms["load"].ID, syms["read"].ID, types.EdgeCalls))
	assert.True(t, hasEdge(fg, syms["read"].ID, types.RefID("Path"), types.EdgeCalls))
}
