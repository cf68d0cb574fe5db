package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"src/app.ts",
		"src/util/strings.go",
		"README.md",
		"notes.txt",
		".git/hooks/pre-commit.py",
		"src/.cache/x.ts",
		"node_modules/lib/index.js",
		"build/out.js",
	} {
		writeFile(t, root, rel, "x")
	}

	files, err := discoverFiles(context.Background(), root, []string{"node_modules", "build/*.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/app.ts", "src/util/strings.go"}, files)
}

func TestDiscoverFiles_MissingRoot(t *testing.T) {
	_, err := discoverFiles(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestDiscoverFiles_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := discoverFiles(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		rel      string
		patterns []string
		want     bool
	}{
		{"vendor/a.go", []string{"vendor"}, true},
		{"src/vendor/a.go", []string{"vendor"}, true},
		{"src/a.min.js", []string{"*.min.js"}, true},
		{"dist/a.js", []string{"dist/*.js"}, true},
		{"src/dist/a.js", []string{"dist/*.js"}, false},
		{"src/a.ts", []string{"vendor", "*.min.js"}, false},
		{"src/a.ts", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, Excluded(tt.rel, tt.patterns))
		})
	}
}

func TestRelPathAndFileURI(t *testing.T) {
	root := filepath.FromSlash("/ws/project")
	uri := FileURI(root, "src/a b.ts")
	assert.Equal(t, "file:///ws/project/src/a%20b.ts", uri)

	tests := []struct {
		location string
		want     string
		ok       bool
	}{
		{uri, "src/a b.ts", true},
		{"file:///ws/project/src/a.ts", "src/a.ts", true},
		{filepath.FromSlash("/ws/project/src/a.ts"), "src/a.ts", true},
		{"src/a.ts", "src/a.ts", true},
		{"./src/../src/a.ts", "src/a.ts", true},
		{filepath.FromSlash("/ws/other/a.ts"), "", false},
		{"../a.ts", "", false},
		{"file:///ws/project", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, ok := relPath(root, tt.location)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
