package indexer

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Guard holds the writer guards of one workspace: the build slot, the
// rebuilding flag and the per-file locks. Every orchestrator writing the same
// workspace database must share one Guard, whichever backend it serves.
type Guard struct {
	build      *semaphore.Weighted // one build, rebuild or delete at a time
	rebuilding IndexLock
	locks      *fileLocks
}

// NewGuard creates the guards of one workspace
func NewGuard() *Guard {
	return &Guard{
		build: semaphore.NewWeighted(1),
		locks: newFileLocks(),
	}
}

// IndexLock is the per-workspace "rebuilding" flag. It never blocks: callers
// check and set it cooperatively, and a failed TryAcquire means a rebuild is
// already running.
type IndexLock struct {
	state  atomic.Int32 // 0 = free, 1 = rebuilding
	reason atomic.Pointer[string]
}

// TryAcquire sets the flag if it is clear and records why.
func (l *IndexLock) TryAcquire(reason string) bool {
	if !l.state.CompareAndSwap(0, 1) {
		return false
	}
	l.reason.Store(&reason)
	return true
}

// Held reports whether a rebuild is in progress
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// Reason returns the reason given by the current holder
func (l *IndexLock) Reason() string {
	if r := l.reason.Load(); r != nil && l.Held() {
		return *r
	}
	return ""
}

// Release clears the flag.
// Must only be called by the goroutine that successfully acquired it.
func (l *IndexLock) Release() {
	l.reason.Store(nil)
	l.state.Store(0)
}
