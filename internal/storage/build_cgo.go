//go:build sqlite_cgo
// +build sqlite_cgo

package storage

// Compiled with CGO and the sqlite_cgo tag.
//
//   CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// NativeDriver reports whether the C SQLite library is linked
	NativeDriver = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
