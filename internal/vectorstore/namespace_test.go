package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace(t *testing.T) {
	a := Namespace("alice", "/work/project")
	assert.Equal(t, a, Namespace("alice", "/work/project/"), "path is cleaned")
	assert.Len(t, a, len("ns_")+32)

	assert.NotEqual(t, a, Namespace("bob", "/work/project"))
	assert.NotEqual(t, a, Namespace("alice", "/work/other"))
	// The separator keeps user and path from sliding into each other
	assert.NotEqual(t, Namespace("ab", "/c"), Namespace("a", "b/c"))
}

func TestVectorID(t *testing.T) {
	ws := WorkspaceHash("/work/project")
	assert.Len(t, ws, 16)

	id := VectorID(ws, "src/a::b.go", 3)
	assert.Equal(t, ws+"::src/a::b.go::3", id)

	gotWS, path, idx, err := ParseVectorID(id)
	require.NoError(t, err)
	assert.Equal(t, ws, gotWS)
	assert.Equal(t, "src/a::b.go", path)
	assert.Equal(t, 3, idx)

	_, _, _, err = ParseVectorID("nope")
	assert.Error(t, err)
}

func TestPointUUID(t *testing.T) {
	id := VectorID("abc", "a.go", 0)
	assert.Equal(t, PointUUID("ns_1", id), PointUUID("ns_1", id))
	assert.NotEqual(t, PointUUID("ns_1", id), PointUUID("ns_2", id))
	assert.Len(t, PointUUID("ns_1", id), 36)
}
