// Package watcher keeps a workspace index current by following file system
// changes.
//
// fsnotify watches every non-hidden, non-excluded directory of the workspace.
// Events pass through a Debouncer that merges bursts per path, then each
// batch goes to the Sink: changed files to RefreshPaths, and a removed or
// renamed directory to BuildFullIndex, whose reconciliation drops the rows
// under it.
package watcher
