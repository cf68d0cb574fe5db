package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/hybridindex/internal/indexer"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

// DefaultDebounce is the quiet window used when none is configured
const DefaultDebounce = 200 * time.Millisecond

// Operation is the kind of change observed on a path
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one change to a workspace-relative slash path
type Event struct {
	Path  string
	Op    Operation
	IsDir bool
}

// Sink receives the changes. Individual files go to RefreshPaths; a removed
// or renamed directory triggers a full build, which reconciles rows against
// the disk and skips unchanged files.
type Sink interface {
	RefreshPaths(ctx context.Context, uris []string) error
	BuildFullIndex(ctx context.Context) (types.IndexStatus, error)
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	Exclude  []string
	Logger   *slog.Logger
}

// Watcher follows a workspace tree with fsnotify and feeds debounced
// changes to a Sink
type Watcher struct {
	root      string
	sink      Sink
	exclude   []string
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	mu   sync.Mutex
	dirs map[string]bool
}

// New creates a watcher over root. Nothing is watched until Run.
func New(root string, sink Sink, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		root:      abs,
		sink:      sink,
		exclude:   opts.Exclude,
		fs:        fsw,
		debouncer: NewDebouncer(opts.Debounce),
		logger:    logging.OrDefault(opts.Logger).With(slog.String("root", abs)),
		dirs:      make(map[string]bool),
	}, nil
}

// Run watches until ctx is done, then releases the watcher. Batches already
// handed to the sink finish before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	if err := w.addRecursive(w.root, false); err != nil {
		w.debouncer.Stop()
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.logger.Info("watching workspace", slog.Int("directories", w.dirCount()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for batch := range w.debouncer.Output() {
			w.deliver(ctx, batch)
		}
	}()

	defer func() {
		w.debouncer.Stop()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, ok := w.rel(ev.Name)
	if !ok || w.ignored(rel) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			// Files created before the watch was added are picked up by the walk
			if err := w.addRecursive(ev.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", slog.String("path", rel), slog.String("error", err.Error()))
			}
			return
		}
		w.debouncer.Add(Event{Path: rel, Op: OpCreate})
	case ev.Op.Has(fsnotify.Write):
		w.debouncer.Add(Event{Path: rel, Op: OpModify})
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op := OpDelete
		if ev.Op.Has(fsnotify.Rename) {
			op = OpRename
		}
		w.debouncer.Add(Event{Path: rel, Op: op, IsDir: w.forgetDir(rel)})
	}
}

// deliver hands one batch to the sink
func (w *Watcher) deliver(ctx context.Context, batch []Event) {
	if ctx.Err() != nil {
		return
	}
	var uris []string
	rescan := false
	for _, ev := range batch {
		if ev.IsDir {
			rescan = true
			continue
		}
		uris = append(uris, indexer.FileURI(w.root, ev.Path))
	}

	if rescan {
		w.logger.Debug("directory removed, reconciling workspace")
		if _, err := w.sink.BuildFullIndex(ctx); err != nil && !types.IsCancellation(err) {
			w.logger.Warn("failed to reconcile workspace", slog.String("error", err.Error()))
		}
		return
	}
	if len(uris) == 0 {
		return
	}
	w.logger.Debug("refreshing changed files", slog.Int("count", len(uris)))
	if err := w.sink.RefreshPaths(ctx, uris); err != nil && !types.IsCancellation(err) {
		w.logger.Warn("failed to refresh changed files", slog.String("error", err.Error()))
	}
}

// addRecursive watches dir and every directory below it. With announce set,
// every file found is queued as created.
func (w *Watcher) addRecursive(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := w.rel(p)
		if !ok {
			if p == w.root {
				return w.watchDir(p, ".")
			}
			return nil
		}
		if w.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.watchDir(p, rel)
		}
		if announce {
			w.debouncer.Add(Event{Path: rel, Op: OpCreate})
		}
		return nil
	})
}

func (w *Watcher) watchDir(abs, rel string) error {
	if err := w.fs.Add(abs); err != nil {
		return err
	}
	w.mu.Lock()
	w.dirs[rel] = true
	w.mu.Unlock()
	return nil
}

// forgetDir reports whether rel was a watched directory, dropping it and
// everything below it
func (w *Watcher) forgetDir(rel string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[rel] {
		return false
	}
	prefix := rel + "/"
	for d := range w.dirs {
		if d == rel || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	return true
}

func (w *Watcher) dirCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func (w *Watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignored matches hidden path elements and the exclude patterns
func (w *Watcher) ignored(rel string) bool {
	for _, elem := range strings.Split(rel, "/") {
		if strings.HasPrefix(elem, ".") {
			return true
		}
	}
	return indexer.Excluded(rel, w.exclude)
}
