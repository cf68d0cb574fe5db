package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dshills/hybridindex/pkg/types"
)

const chunkColumns = `id, workspace_id, file_path, uri, chunk_index, content, language_id,
	start_line, start_char, end_line, end_char, content_hash, token_count`

func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	if chunk.ID == "" {
		return types.ErrInvalidChunkID
	}
	if err := chunk.Range.Validate(); err != nil {
		return fmt.Errorf("invalid chunk range: %w", err)
	}
	chunk.WorkspaceID = s.ws.ID

	query := `
		INSERT INTO chunks (` + chunkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			content = excluded.content,
			language_id = excluded.language_id,
			start_line = excluded.start_line,
			start_char = excluded.start_char,
			end_line = excluded.end_line,
			end_char = excluded.end_char,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count
	`
	_, err := q.ExecContext(ctx, query,
		chunk.ID, chunk.WorkspaceID, chunk.FilePath, chunk.URI, chunk.Index, chunk.Content,
		chunk.LanguageID, chunk.Range.StartLine, chunk.Range.StartChar, chunk.Range.EndLine,
		chunk.Range.EndChar, chunk.ContentHash, chunk.TokenCount)
	if err != nil {
		return types.NewStorageError("upsert chunk", err)
	}
	return nil
}

// UpsertChunk inserts or replaces a chunk row
func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.db, chunk)
}

// GetChunk retrieves a chunk by id
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ? AND workspace_id = ?`
	chunk, err := scanChunk(s.db.QueryRowContext(ctx, query, id, s.ws.ID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("get chunk", err)
	}
	return chunk, nil
}

// ListChunksByFile returns a file's chunks ordered by position
func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, filePath string) ([]*Chunk, error) {
	return s.queryChunks(ctx, "list chunks",
		`SELECT `+chunkColumns+` FROM chunks WHERE workspace_id = ? AND file_path = ? ORDER BY chunk_index`,
		s.ws.ID, filePath)
}

// FindChunksByHash returns chunks whose content hash matches. Used by
// maintenance and diagnostics to spot duplicated content across files.
func (s *SQLiteStorage) FindChunksByHash(ctx context.Context, contentHash string) ([]*Chunk, error) {
	return s.queryChunks(ctx, "find chunks by hash",
		`SELECT `+chunkColumns+` FROM chunks WHERE workspace_id = ? AND content_hash = ? ORDER BY id`,
		s.ws.ID, contentHash)
}

// ChunkAt returns the chunk of uri that covers line
func (s *SQLiteStorage) ChunkAt(ctx context.Context, uri string, line int) (*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks
		WHERE workspace_id = ? AND uri = ? AND start_line <= ? AND end_line >= ?
		ORDER BY chunk_index LIMIT 1`
	chunk, err := scanChunk(s.db.QueryRowContext(ctx, query, s.ws.ID, uri, line, line))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("chunk at", err)
	}
	return chunk, nil
}

// ScanChunks pages through all chunks ordered by id, starting after afterID
func (s *SQLiteStorage) ScanChunks(ctx context.Context, afterID string, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.queryChunks(ctx, "scan chunks",
		`SELECT `+chunkColumns+` FROM chunks WHERE workspace_id = ? AND id > ? ORDER BY id LIMIT ?`,
		s.ws.ID, afterID, limit)
}

func (s *SQLiteStorage) queryChunks(ctx context.Context, op, query string, args ...interface{}) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewStorageError(op, err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, types.NewStorageError(op, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError(op, err)
	}
	return chunks, nil
}

// deleteChunksWithQuerier removes a file's chunks; tokens and embeddings cascade
func (s *SQLiteStorage) deleteChunksWithQuerier(ctx context.Context, q querier, filePath string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE workspace_id = ? AND file_path = ?`, s.ws.ID, filePath)
	if err != nil {
		return types.NewStorageError("delete chunks", err)
	}
	return nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.FilePath, &c.URI, &c.Index, &c.Content, &c.LanguageID,
		&c.Range.StartLine, &c.Range.StartChar, &c.Range.EndLine, &c.Range.EndChar,
		&c.ContentHash, &c.TokenCount)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, emb *Embedding) error {
	if emb.ChunkID == "" || emb.ModelID == "" {
		return fmt.Errorf("chunk id and model id are required")
	}
	if len(emb.Vector) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if emb.Dimension == 0 {
		emb.Dimension = len(emb.Vector)
	}
	if emb.Dimension != len(emb.Vector) {
		return fmt.Errorf("embedding dimension %d does not match vector length %d", emb.Dimension, len(emb.Vector))
	}

	// All vectors of one model share its dimension
	var existing int
	err := q.QueryRowContext(ctx,
		`SELECT dimension FROM embeddings WHERE workspace_id = ? AND model_id = ? LIMIT 1`,
		s.ws.ID, emb.ModelID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return types.NewStorageError("check embedding dimension", err)
	}
	if err == nil && existing != emb.Dimension {
		return fmt.Errorf("model %s has dimension %d, got %d", emb.ModelID, existing, emb.Dimension)
	}

	emb.WorkspaceID = s.ws.ID
	emb.Norm = vectorNorm(emb.Vector)

	query := `
		INSERT INTO embeddings (workspace_id, chunk_id, model_id, model_version, dimension, norm, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model_id) DO UPDATE SET
			model_version = excluded.model_version,
			dimension = excluded.dimension,
			norm = excluded.norm,
			vector = excluded.vector,
			created_at = CURRENT_TIMESTAMP
	`
	_, err = q.ExecContext(ctx, query, emb.WorkspaceID, emb.ChunkID, emb.ModelID, emb.ModelVersion,
		emb.Dimension, emb.Norm, serializeVector(emb.Vector))
	if err != nil {
		return types.NewStorageError("upsert embedding", err)
	}
	return nil
}

// UpsertEmbedding stores the vector for one (chunk, model) pair
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.db, emb)
}

// ReplaceEmbeddings supersedes every embedding of a file's chunks with the given set
func (s *SQLiteStorage) ReplaceEmbeddings(ctx context.Context, filePath string, embeddings []*Embedding) error {
	return s.withTx(ctx, "replace embeddings", func(q querier) error {
		if err := s.deleteEmbeddingsByFileWithQuerier(ctx, q, filePath); err != nil {
			return err
		}
		for _, emb := range embeddings {
			if err := s.upsertEmbeddingWithQuerier(ctx, q, emb); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListEmbeddings returns every stored vector of modelID
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, modelID string) ([]*Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id, chunk_id, model_id, model_version, dimension, norm, vector
		FROM embeddings WHERE workspace_id = ? AND model_id = ? ORDER BY chunk_id`,
		s.ws.ID, modelID)
	if err != nil {
		return nil, types.NewStorageError("list embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Embedding
	for rows.Next() {
		var (
			emb  Embedding
			blob []byte
		)
		if err := rows.Scan(&emb.WorkspaceID, &emb.ChunkID, &emb.ModelID, &emb.ModelVersion,
			&emb.Dimension, &emb.Norm, &blob); err != nil {
			return nil, types.NewStorageError("scan embedding", err)
		}
		emb.Vector = deserializeVector(blob)
		out = append(out, &emb)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("list embeddings", err)
	}
	return out, nil
}

// DeleteEmbeddingsByFile removes all vectors of a file's chunks
func (s *SQLiteStorage) DeleteEmbeddingsByFile(ctx context.Context, filePath string) error {
	return s.deleteEmbeddingsByFileWithQuerier(ctx, s.db, filePath)
}

func (s *SQLiteStorage) deleteEmbeddingsByFileWithQuerier(ctx context.Context, q querier, filePath string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE chunk_id IN (SELECT id FROM chunks WHERE workspace_id = ? AND file_path = ?)`,
		s.ws.ID, filePath)
	if err != nil {
		return types.NewStorageError("delete embeddings", err)
	}
	return nil
}
