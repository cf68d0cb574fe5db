//go:build !sqlite_cgo
// +build !sqlite_cgo

package storage

// Compiled without the sqlite_cgo tag or with purego. No C compiler required.
//
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// NativeDriver reports whether the C SQLite library is linked
	NativeDriver = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
