package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"time"
)

// WorkspaceIdentity identifies one open workspace
type WorkspaceIdentity struct {
	ID       string
	RootPath string
}

// NewWorkspaceIdentity derives a stable identity from the workspace root
func NewWorkspaceIdentity(rootPath string) (WorkspaceIdentity, error) {
	if rootPath == "" {
		return WorkspaceIdentity{}, errors.New("workspace root path is required")
	}
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return WorkspaceIdentity{}, err
	}
	abs = filepath.Clean(abs)
	sum := sha256.Sum256([]byte(abs))
	return WorkspaceIdentity{
		ID:       hex.EncodeToString(sum[:8]),
		RootPath: abs,
	}, nil
}

// FileState is the indexing state of one file row
type FileState string

const (
	FileUnindexed FileState = "unindexed"
	FileIndexing  FileState = "indexing"
	FileIndexed   FileState = "indexed"
	FileDeleted   FileState = "deleted"
	FileError     FileState = "error"
)

// EmbeddingState records how a file's chunks were embedded
type EmbeddingState string

const (
	EmbeddingPending  EmbeddingState = "pending"
	EmbeddingDone     EmbeddingState = "embedded"
	EmbeddingFallback EmbeddingState = "fallback"
	EmbeddingFailed   EmbeddingState = "failed"
)

// IndexState is the lifecycle state of a workspace index
type IndexState string

const (
	StateIdle     IndexState = "Idle"
	StateBuilding IndexState = "Building"
	StateReady    IndexState = "Ready"
	StatePaused   IndexState = "Paused"
	StateError    IndexState = "Error"
)

// ModelDownloadState tracks the heavy local model artifact
type ModelDownloadState string

const (
	ModelNone        ModelDownloadState = "none"
	ModelDownloading ModelDownloadState = "downloading"
	ModelReady       ModelDownloadState = "ready"
	ModelFailed      ModelDownloadState = "failed"
)

// BackendKind selects the local or cloud implementation
type BackendKind string

const (
	BackendLocal BackendKind = "local"
	BackendCloud BackendKind = "cloud"
	BackendNone  BackendKind = "none"
)

// IndexStatus is the per-workspace aggregate, recomputed on demand
type IndexStatus struct {
	State              IndexState         `json:"state"`
	TotalFiles         int                `json:"totalFiles"`
	IndexedFiles       int                `json:"indexedFiles"`
	TotalChunks        int                `json:"totalChunks"`
	EmbeddedChunks     int                `json:"embeddedChunks"`
	Paused             bool               `json:"paused"`
	PauseReason        string             `json:"pauseReason,omitempty"`
	LastError          string             `json:"lastError,omitempty"`
	ModelDownloadState ModelDownloadState `json:"modelDownloadState"`
	Backend            BackendKind        `json:"backend,omitempty"`
	Disabled           bool               `json:"disabled,omitempty"`
}

// DefaultStatus is the conservative status reported while a backend is unavailable
func DefaultStatus() IndexStatus {
	return IndexStatus{
		State:              StateIdle,
		ModelDownloadState: ModelNone,
	}
}

// FileIssue describes a file that failed or was truncated
type FileIssue struct {
	FilePath string `json:"filePath"`
	Message  string `json:"message"`
}

// Diagnostics is the extended status used for troubleshooting
type Diagnostics struct {
	Status         IndexStatus `json:"status"`
	WorkspaceID    string      `json:"workspaceId"`
	RootPath       string      `json:"rootPath"`
	Backend        BackendKind `json:"backend"`
	EmbeddingModel ModelInfo   `json:"embeddingModel"`
	Graph          GraphStats  `json:"graph"`
	ErroredFiles   []FileIssue `json:"erroredFiles,omitempty"`
	TruncatedFiles []FileIssue `json:"truncatedFiles,omitempty"`
	LastErrorAt    *time.Time  `json:"lastErrorAt,omitempty"`
	SchemaVersion  string      `json:"schemaVersion"`
	StorageDriver  string      `json:"storageDriver"`
}

// ModelInfo identifies the embedding model that produced a vector
type ModelInfo struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Dimension int    `json:"dimension"`
}

// ChangeKind is the kind of a host file-change notification
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeChanged ChangeKind = "changed"
	ChangeDeleted ChangeKind = "deleted"
)

// FileChange is one file-change notification from the host
type FileChange struct {
	URI  string
	Kind ChangeKind
}
