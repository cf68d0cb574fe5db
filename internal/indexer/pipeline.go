package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/hybridindex/internal/chunker"
	"github.com/dshills/hybridindex/internal/embedder"
	"github.com/dshills/hybridindex/internal/storage"
	"github.com/dshills/hybridindex/pkg/types"
)

// outcome is the result of processing one file
type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeSkipped
	outcomeRemoved
	outcomeSuperseded
	outcomeFailed
)

// fileLocks serializes passes over the same file while letting different
// files proceed in parallel. Each pass also takes a generation number; a pass
// whose generation is no longer the latest discards its work before commit.
type fileLocks struct {
	mu      sync.Mutex
	entries map[string]*fileEntry
}

type fileEntry struct {
	mu         sync.Mutex
	refs       int
	generation uint64
}

func newFileLocks() *fileLocks {
	return &fileLocks{entries: make(map[string]*fileEntry)}
}

// begin registers a new pass over path and returns its generation
func (l *fileLocks) begin(path string) (*fileEntry, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[path]
	if e == nil {
		e = &fileEntry{}
		l.entries[path] = e
	}
	e.refs++
	e.generation++
	return e, e.generation
}

func (l *fileLocks) current(e *fileEntry) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return e.generation
}

func (l *fileLocks) end(path string, e *fileEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, path)
	}
}

// indexFile runs the per-file pipeline: read and hash gate, chunk and
// tokenize, parse, embed, then commit content, graph and vectors. Per-file
// failures are recorded on the file row and reported as outcomeFailed with a
// nil error; only cancellation is returned as an error.
func (o *Orchestrator) indexFile(ctx context.Context, rel string) (outcome, error) {
	entry, gen := o.guard.locks.begin(rel)
	defer o.guard.locks.end(rel, entry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return outcomeSkipped, types.NewCancellationError("index file", err)
	}

	logger := o.logger.With(slog.String("file_path", rel))

	prior, err := o.store.GetFile(ctx, rel)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return o.fail(ctx, rel, nil, err)
	}

	abs := filepath.Join(o.ws.RootPath, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return o.removeFile(ctx, prior)
	}
	if err != nil {
		return o.fail(ctx, rel, prior, fmt.Errorf("failed to stat file: %w", err))
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return o.fail(ctx, rel, prior, fmt.Errorf("failed to read file: %w", err))
	}

	hash := chunker.ContentHash(string(content))
	if o.unchanged(prior, hash) {
		return outcomeSkipped, nil
	}

	uri := FileURI(o.ws.RootPath, rel)
	lang := chunker.DetectLanguage(rel)
	if err := o.markIndexing(ctx, rel, uri, lang, prior); err != nil {
		return o.fail(ctx, rel, prior, err)
	}

	body, diagnostic := o.chunker.Truncate(content)
	if diagnostic != "" {
		logger.Warn("file truncated", slog.String("diagnostic", diagnostic))
	}

	pieces := o.chunker.Chunk(string(body))
	chunks := make([]*storage.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	var tokens []*storage.Token
	for i, piece := range pieces {
		id := chunker.ChunkID(rel, piece.Index)
		chunks[i] = &storage.Chunk{
			ID:          id,
			FilePath:    rel,
			URI:         uri,
			Index:       piece.Index,
			Content:     piece.Content,
			LanguageID:  lang,
			Range:       piece.Range,
			ContentHash: piece.ContentHash,
			TokenCount:  piece.TokenCount,
		}
		texts[i] = piece.Content
		for _, tok := range chunker.Tokenize(piece.Content) {
			tokens = append(tokens, &storage.Token{
				Term:          tok.Term,
				ChunkID:       id,
				TermFrequency: tok.Frequency,
				Positions:     tok.Positions,
			})
		}
	}

	fg, perr := o.parser.Parse(ctx, uri, lang, body)
	if perr != nil {
		// Partial graphs are kept; the error is only a diagnostic
		logger.Debug("parse error", slog.String("error", perr.Error()))
		diagnostic = joinDiagnostic(diagnostic, perr.Error())
	}

	var (
		res      *embedder.Result
		embedErr error
	)
	if len(texts) > 0 {
		res, embedErr = o.runtime.Embed(ctx, texts, embedder.InputDocument)
	} else {
		res = &embedder.Result{Model: o.runtime.Model()}
	}
	if err := ctx.Err(); err != nil || types.IsCancellation(embedErr) {
		o.restore(rel, prior)
		if err == nil {
			err = embedErr
		}
		return outcomeSkipped, types.NewCancellationError("index file", err)
	}
	if o.guard.locks.current(entry) != gen {
		o.restore(rel, prior)
		logger.Debug("file changed during indexing, superseded")
		return outcomeSuperseded, nil
	}

	// Past this point the file is committed as a unit even if ctx is cancelled
	wctx := context.WithoutCancel(ctx)
	defer o.searcher.InvalidateCache()
	now := time.Now()
	prevCount := 0
	if prior != nil {
		prevCount = prior.ChunkCount
	}

	file := &storage.File{
		FilePath:       rel,
		URI:            uri,
		ModTime:        info.ModTime(),
		Size:           info.Size(),
		ContentHash:    hash,
		LanguageID:     lang,
		State:          types.FileIndexed,
		LastIndexedAt:  &now,
		EmbeddingState: types.EmbeddingPending,
		Diagnostic:     diagnostic,
	}
	if err := o.store.ReplaceFileContent(wctx, &storage.FileContent{File: file, Chunks: chunks, Tokens: tokens}); err != nil {
		return o.fail(wctx, rel, prior, err)
	}
	if fg != nil {
		if err := o.graph.UpdateFromFile(wctx, fg); err != nil {
			return o.fail(wctx, rel, file, err)
		}
	}

	if embedErr != nil {
		// No fallback produced vectors; the content is searchable lexically
		logger.Warn("embedding failed", slog.String("error", embedErr.Error()))
		o.recordError(embedErr)
		if err := o.store.SetEmbeddingState(wctx, rel, types.EmbeddingFailed, ""); err != nil {
			return o.fail(wctx, rel, file, err)
		}
		return outcomeIndexed, nil
	}

	degraded, err := o.sink.Write(wctx, file, chunks, res, prevCount)
	if err != nil {
		logger.Warn("failed to store vectors", slog.String("error", err.Error()))
		o.recordError(err)
		if serr := o.store.SetEmbeddingState(wctx, rel, types.EmbeddingFailed, ""); serr != nil {
			return o.fail(wctx, rel, file, serr)
		}
		return outcomeIndexed, nil
	}

	state, modelID := types.EmbeddingDone, res.Model.ID
	if degraded || res.Degraded {
		state = types.EmbeddingFallback
	}
	if err := o.store.SetEmbeddingState(wctx, rel, state, modelID); err != nil {
		return o.fail(wctx, rel, file, err)
	}
	return outcomeIndexed, nil
}

// unchanged is the hash gate: an indexed file with the same content whose
// vectors came from the current model is skipped. Fallback vectors are kept
// only while the runtime itself is the hash model; otherwise the file is
// re-embedded so it heals once the primary recovers.
func (o *Orchestrator) unchanged(prior *storage.File, hash string) bool {
	if prior == nil || prior.State != types.FileIndexed || prior.ContentHash != hash {
		return false
	}
	switch prior.EmbeddingState {
	case types.EmbeddingDone:
		return prior.EmbeddingModel == o.runtime.Model().ID
	case types.EmbeddingFallback:
		return o.runtime.Model().ID == embedder.HashModelID
	default:
		return false
	}
}

func (o *Orchestrator) markIndexing(ctx context.Context, rel, uri, lang string, prior *storage.File) error {
	if prior == nil {
		return o.store.UpsertDocument(ctx, &storage.File{
			FilePath:   rel,
			URI:        uri,
			LanguageID: lang,
			State:      types.FileIndexing,
		})
	}
	return o.store.SetFileState(ctx, rel, types.FileIndexing, prior.LastError)
}

// restore puts the file row back the way it was before this pass
func (o *Orchestrator) restore(rel string, prior *storage.File) {
	ctx := context.WithoutCancel(context.Background())
	var err error
	if prior == nil {
		err = o.store.DeleteFile(ctx, rel)
	} else {
		restored := *prior
		err = o.store.UpsertDocument(ctx, &restored)
	}
	if err != nil {
		o.logger.Error("failed to restore file row",
			slog.String("file_path", rel),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) removeFile(ctx context.Context, prior *storage.File) (outcome, error) {
	if prior == nil || prior.State == types.FileDeleted {
		return outcomeSkipped, nil
	}
	wctx := context.WithoutCancel(ctx)
	defer o.searcher.InvalidateCache()
	if err := o.store.RemoveFile(wctx, prior.FilePath); err != nil {
		return o.fail(wctx, prior.FilePath, prior, err)
	}
	if err := o.graph.DeleteGraph(wctx, prior.URI); err != nil {
		o.logger.Warn("failed to remove graph rows",
			slog.String("file_path", prior.FilePath),
			slog.String("error", err.Error()))
	}
	if err := o.sink.Remove(wctx, prior.FilePath, prior.ChunkCount); err != nil {
		o.logger.Warn("failed to remove vectors",
			slog.String("file_path", prior.FilePath),
			slog.String("error", err.Error()))
	}
	return outcomeRemoved, nil
}

// fail marks the file Error and records the message; the batch continues
func (o *Orchestrator) fail(ctx context.Context, rel string, prior *storage.File, cause error) (outcome, error) {
	if types.IsCancellation(cause) {
		o.restore(rel, prior)
		return outcomeSkipped, types.NewCancellationError("index file", cause)
	}

	o.logger.Warn("failed to index file",
		slog.String("file_path", rel),
		slog.String("kind", string(types.KindOf(cause))),
		slog.String("error", cause.Error()))
	o.recordError(fmt.Errorf("%s: %w", rel, cause))

	wctx := context.WithoutCancel(ctx)
	if prior == nil {
		if err := o.store.UpsertDocument(wctx, &storage.File{
			FilePath:   rel,
			URI:        FileURI(o.ws.RootPath, rel),
			LanguageID: chunker.DetectLanguage(rel),
			State:      types.FileError,
			LastError:  cause.Error(),
		}); err != nil {
			o.logger.Error("failed to record file error", slog.String("file_path", rel), slog.String("error", err.Error()))
		}
		return outcomeFailed, nil
	}
	if err := o.store.SetFileState(wctx, rel, types.FileError, cause.Error()); err != nil {
		o.logger.Error("failed to record file error", slog.String("file_path", rel), slog.String("error", err.Error()))
	}
	return outcomeFailed, nil
}

func joinDiagnostic(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}
