package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/hybridindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
	ws types.WorkspaceIdentity
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens dbPath, applies migrations and binds the storage to ws
func NewSQLiteStorage(dbPath string, ws types.WorkspaceIdentity) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, types.NewStorageError("open database", err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, types.NewStorageError("apply migrations", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO workspaces (id, root_path) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		ws.ID, ws.RootPath)
	if err != nil {
		_ = db.Close()
		return nil, types.NewStorageError("register workspace", err)
	}

	return &SQLiteStorage{db: db, ws: ws}, nil
}

// Workspace returns the workspace this storage is bound to
func (s *SQLiteStorage) Workspace() types.WorkspaceIdentity {
	return s.ws
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied schema version
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (string, error) {
	return SchemaVersion(ctx, s.db)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, types.NewStorageError("begin transaction", err)
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// withTx runs fn inside a transaction, rolling back on error
func (s *SQLiteStorage) withTx(ctx context.Context, op string, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewStorageError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return types.NewStorageError(op, err)
	}
	return nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return types.NewStorageError("commit", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertDocument(ctx context.Context, file *File) error {
	return t.storage.upsertDocumentWithQuerier(ctx, t.tx, file)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.tx, chunk)
}

func (t *sqliteTx) UpsertToken(ctx context.Context, token *Token) error {
	return t.storage.upsertTokenWithQuerier(ctx, t.tx, token)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.tx, emb)
}

func (t *sqliteTx) UpsertSymbol(ctx context.Context, sym *types.Symbol) error {
	return t.storage.upsertSymbolWithQuerier(ctx, t.tx, sym)
}

func (t *sqliteTx) InsertOccurrence(ctx context.Context, occ *types.Occurrence) error {
	return t.storage.insertOccurrenceWithQuerier(ctx, t.tx, occ)
}

func (t *sqliteTx) InsertEdge(ctx context.Context, uri string, edge types.Edge) error {
	return t.storage.insertEdgeWithQuerier(ctx, t.tx, uri, edge)
}

func (t *sqliteTx) DeleteForURI(ctx context.Context, uri string) error {
	return t.storage.deleteForURIWithQuerier(ctx, t.tx, uri)
}

// File operations

const fileColumns = `workspace_id, file_path, uri, mtime, size_bytes, content_hash, language_id, state,
	last_indexed_at, chunk_count, embedding_state, embedding_model, last_error, diagnostic, updated_at`

func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, file *File) error {
	if file.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	file.WorkspaceID = s.ws.ID
	if file.State == "" {
		file.State = types.FileUnindexed
	}
	if file.EmbeddingState == "" {
		file.EmbeddingState = types.EmbeddingPending
	}
	file.UpdatedAt = time.Now()

	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, file_path) DO UPDATE SET
			uri = excluded.uri,
			mtime = excluded.mtime,
			size_bytes = excluded.size_bytes,
			content_hash = excluded.content_hash,
			language_id = excluded.language_id,
			state = excluded.state,
			last_indexed_at = excluded.last_indexed_at,
			chunk_count = excluded.chunk_count,
			embedding_state = excluded.embedding_state,
			embedding_model = excluded.embedding_model,
			last_error = excluded.last_error,
			diagnostic = excluded.diagnostic,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		file.WorkspaceID, file.FilePath, file.URI, nullTime(file.ModTime), file.Size,
		file.ContentHash, file.LanguageID, string(file.State), file.LastIndexedAt,
		file.ChunkCount, string(file.EmbeddingState), file.EmbeddingModel,
		file.LastError, file.Diagnostic, file.UpdatedAt)
	if err != nil {
		return types.NewStorageError("upsert document", err)
	}
	return nil
}

// UpsertDocument inserts or replaces a file row
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, file *File) error {
	return s.upsertDocumentWithQuerier(ctx, s.db, file)
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE workspace_id = ? AND file_path = ?`
	file, err := scanFile(q.QueryRowContext(ctx, query, s.ws.ID, filePath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("get file", err)
	}
	return file, nil
}

// GetFile retrieves a file row by its workspace-relative path
func (s *SQLiteStorage) GetFile(ctx context.Context, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.db, filePath)
}

// ListFiles pages through file rows, optionally filtered by state
func (s *SQLiteStorage) ListFiles(ctx context.Context, opts ListOptions) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE workspace_id = ?`
	args := []interface{}{s.ws.ID}

	if len(opts.States) > 0 {
		query += " AND state IN (" + placeholders(len(opts.States)) + ")"
		for _, st := range opts.States {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY file_path"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewStorageError("list files", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, types.NewStorageError("scan file", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("list files", err)
	}
	return files, nil
}

// SetFileState updates state and last error of a file row
func (s *SQLiteStorage) SetFileState(ctx context.Context, filePath string, state types.FileState, lastError string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET state = ?, last_error = ?, updated_at = ? WHERE workspace_id = ? AND file_path = ?`,
		string(state), lastError, time.Now(), s.ws.ID, filePath)
	if err != nil {
		return types.NewStorageError("set file state", err)
	}
	return requireAffected(result)
}

// SetEmbeddingState records how a file's chunks were embedded
func (s *SQLiteStorage) SetEmbeddingState(ctx context.Context, filePath string, state types.EmbeddingState, modelID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET embedding_state = ?, embedding_model = ?, updated_at = ? WHERE workspace_id = ? AND file_path = ?`,
		string(state), modelID, time.Now(), s.ws.ID, filePath)
	if err != nil {
		return types.NewStorageError("set embedding state", err)
	}
	return requireAffected(result)
}

// DeleteFile removes a file row without touching its chunks or graph rows
func (s *SQLiteStorage) DeleteFile(ctx context.Context, filePath string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE workspace_id = ? AND file_path = ?`, s.ws.ID, filePath)
	if err != nil {
		return types.NewStorageError("delete file", err)
	}
	return nil
}

// RemoveFile handles a file that disappeared from the workspace: cascades its rows,
// prunes edges pointing at its symbols and marks the row Deleted.
func (s *SQLiteStorage) RemoveFile(ctx context.Context, filePath string) error {
	return s.withTx(ctx, "remove file", func(q querier) error {
		file, err := s.getFileWithQuerier(ctx, q, filePath)
		if err != nil {
			return err
		}

		if err := s.pruneIncomingEdgesWithQuerier(ctx, q, file.URI); err != nil {
			return err
		}
		if err := s.deleteForURIWithQuerier(ctx, q, file.URI); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `
			UPDATE files SET state = ?, chunk_count = 0, embedding_state = ?, last_error = '', updated_at = ?
			WHERE workspace_id = ? AND file_path = ?`,
			string(types.FileDeleted), string(types.EmbeddingPending), time.Now(), s.ws.ID, filePath)
		if err != nil {
			return types.NewStorageError("mark file deleted", err)
		}
		return nil
	})
}

// DeleteForURI removes chunks (and through them tokens and embeddings), symbols,
// occurrences and edges owned by uri. Call it before re-inserting rows for the same file.
func (s *SQLiteStorage) DeleteForURI(ctx context.Context, uri string) error {
	return s.withTx(ctx, "delete for uri", func(q querier) error {
		return s.deleteForURIWithQuerier(ctx, q, uri)
	})
}

func (s *SQLiteStorage) deleteForURIWithQuerier(ctx context.Context, q querier, uri string) error {
	statements := []string{
		`DELETE FROM chunks WHERE workspace_id = ? AND uri = ?`,
		`DELETE FROM symbols WHERE workspace_id = ? AND uri = ?`,
		`DELETE FROM occurrences WHERE workspace_id = ? AND uri = ?`,
		`DELETE FROM edges WHERE workspace_id = ? AND uri = ?`,
	}
	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt, s.ws.ID, uri); err != nil {
			return types.NewStorageError("delete for uri", err)
		}
	}
	return nil
}

// ReplaceFileContent deletes everything previously attributed to the file and
// writes the new file row, chunks and tokens in one transaction.
func (s *SQLiteStorage) ReplaceFileContent(ctx context.Context, content *FileContent) error {
	if content == nil || content.File == nil {
		return fmt.Errorf("file content is required")
	}
	return s.withTx(ctx, "replace file content", func(q querier) error {
		if err := s.deleteChunksWithQuerier(ctx, q, content.File.FilePath); err != nil {
			return err
		}
		content.File.ChunkCount = len(content.Chunks)
		if err := s.upsertDocumentWithQuerier(ctx, q, content.File); err != nil {
			return err
		}
		for _, chunk := range content.Chunks {
			if err := s.upsertChunkWithQuerier(ctx, q, chunk); err != nil {
				return err
			}
		}
		for _, token := range content.Tokens {
			if err := s.upsertTokenWithQuerier(ctx, q, token); err != nil {
				return err
			}
		}
		return nil
	})
}

// Counts aggregates row counts for status reporting
func (s *SQLiteStorage) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'indexed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'indexed' AND embedding_state IN ('embedded', 'fallback') THEN chunk_count ELSE 0 END), 0)
		FROM files
		WHERE workspace_id = ? AND state != 'deleted'`, s.ws.ID).
		Scan(&c.TotalFiles, &c.IndexedFiles, &c.ErrorFiles, &c.EmbeddedChunks)
	if err != nil {
		return Counts{}, types.NewStorageError("count files", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE workspace_id = ?`, s.ws.ID).Scan(&c.TotalChunks)
	if err != nil {
		return Counts{}, types.NewStorageError("count chunks", err)
	}
	return c, nil
}

// ResetWorkspace drops every row keyed by this workspace
func (s *SQLiteStorage) ResetWorkspace(ctx context.Context) error {
	return s.withTx(ctx, "reset workspace", func(q querier) error {
		tables := []string{"embeddings", "chunks", "occurrences", "symbols", "edges", "files"}
		for _, table := range tables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ?", s.ws.ID); err != nil {
				return types.NewStorageError("reset "+table, err)
			}
		}
		return nil
	})
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*File, error) {
	var (
		file          File
		modTime       sql.NullTime
		lastIndexedAt sql.NullTime
		updatedAt     sql.NullTime
		state         string
		embState      string
	)
	err := row.Scan(&file.WorkspaceID, &file.FilePath, &file.URI, &modTime, &file.Size,
		&file.ContentHash, &file.LanguageID, &state, &lastIndexedAt, &file.ChunkCount,
		&embState, &file.EmbeddingModel, &file.LastError, &file.Diagnostic, &updatedAt)
	if err != nil {
		return nil, err
	}
	file.State = types.FileState(state)
	file.EmbeddingState = types.EmbeddingState(embState)
	if modTime.Valid {
		file.ModTime = modTime.Time
	}
	if lastIndexedAt.Valid {
		t := lastIndexedAt.Time
		file.LastIndexedAt = &t
	}
	if updatedAt.Valid {
		file.UpdatedAt = updatedAt.Time
	}
	return &file, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return types.NewStorageError("rows affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
