package storage

import (
	"context"
	"time"

	"github.com/dshills/hybridindex/pkg/types"
)

// Storage defines the interface for workspace-scoped persistence.
// Every SQLiteStorage is bound to exactly one workspace.
type Storage interface {
	// Workspace
	Workspace() types.WorkspaceIdentity

	// File operations
	UpsertDocument(ctx context.Context, file *File) error
	GetFile(ctx context.Context, filePath string) (*File, error)
	ListFiles(ctx context.Context, opts ListOptions) ([]*File, error)
	SetFileState(ctx context.Context, filePath string, state types.FileState, lastError string) error
	SetEmbeddingState(ctx context.Context, filePath string, state types.EmbeddingState, modelID string) error
	DeleteFile(ctx context.Context, filePath string) error
	RemoveFile(ctx context.Context, filePath string) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	ListChunksByFile(ctx context.Context, filePath string) ([]*Chunk, error)
	FindChunksByHash(ctx context.Context, contentHash string) ([]*Chunk, error)
	ChunkAt(ctx context.Context, uri string, line int) (*Chunk, error)
	ScanChunks(ctx context.Context, afterID string, limit int) ([]*Chunk, error)

	// Lexical index
	UpsertToken(ctx context.Context, token *Token) error
	LookupTerms(ctx context.Context, terms []string, prefix bool) ([]Token, error)
	SearchTerms(ctx context.Context, terms []string, limit int) ([]TextResult, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, emb *Embedding) error
	ReplaceEmbeddings(ctx context.Context, filePath string, embeddings []*Embedding) error
	ListEmbeddings(ctx context.Context, modelID string) ([]*Embedding, error)
	DeleteEmbeddingsByFile(ctx context.Context, filePath string) error

	// Graph single-row writes
	UpsertSymbol(ctx context.Context, sym *types.Symbol) error
	InsertOccurrence(ctx context.Context, occ *types.Occurrence) error
	InsertEdge(ctx context.Context, uri string, edge types.Edge) error

	// File-level operations
	DeleteForURI(ctx context.Context, uri string) error
	ReplaceFileContent(ctx context.Context, content *FileContent) error

	// Maintenance
	Counts(ctx context.Context) (Counts, error)
	ResetWorkspace(ctx context.Context) error
	SchemaVersion(ctx context.Context) (string, error)

	// Lifecycle
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx represents a database transaction carrying the single-row writes
type Tx interface {
	Commit() error
	Rollback() error

	UpsertDocument(ctx context.Context, file *File) error
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	UpsertToken(ctx context.Context, token *Token) error
	UpsertEmbedding(ctx context.Context, emb *Embedding) error
	UpsertSymbol(ctx context.Context, sym *types.Symbol) error
	InsertOccurrence(ctx context.Context, occ *types.Occurrence) error
	InsertEdge(ctx context.Context, uri string, edge types.Edge) error
	DeleteForURI(ctx context.Context, uri string) error
}

// File represents one workspace file row
type File struct {
	WorkspaceID    string
	FilePath       string // slash-separated, relative to the workspace root
	URI            string
	ModTime        time.Time
	Size           int64
	ContentHash    string
	LanguageID     string
	State          types.FileState
	LastIndexedAt  *time.Time
	ChunkCount     int
	EmbeddingState types.EmbeddingState
	EmbeddingModel string
	LastError      string
	Diagnostic     string
	UpdatedAt      time.Time
}

// Chunk represents a contiguous range of one file
type Chunk struct {
	ID          string
	WorkspaceID string
	FilePath    string
	URI         string
	Index       int
	Content     string
	LanguageID  string
	Range       types.Range
	ContentHash string
	TokenCount  int
}

// Token is one inverted-index posting
type Token struct {
	Term          string
	ChunkID       string
	TermFrequency int
	Positions     []int
}

// Embedding represents a stored vector for one chunk and model
type Embedding struct {
	WorkspaceID  string
	ChunkID      string
	ModelID      string
	ModelVersion string
	Dimension    int
	Norm         float64
	Vector       []float32
}

// FileContent is everything written for one file in a single transaction
type FileContent struct {
	File   *File
	Chunks []*Chunk
	Tokens []*Token
}

// ListOptions pages through file rows
type ListOptions struct {
	States []types.FileState
	Offset int
	Limit  int
}

// Counts are the row aggregates behind IndexStatus
type Counts struct {
	TotalFiles     int
	IndexedFiles   int
	ErrorFiles     int
	TotalChunks    int
	EmbeddedChunks int
}

// TextResult represents a lexical search hit
type TextResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms int
}
