package types

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRelevanceScore = errors.New("relevance score must not be negative")
	ErrMissingFileInfo       = errors.New("file path is required")
	ErrMissingProvenance     = errors.New("at least one provenance tag is required")
)

// ErrorKind classifies engine errors
type ErrorKind string

const (
	KindStorage           ErrorKind = "storage"
	KindEmbeddingProvider ErrorKind = "embedding_provider"
	KindModelInstall      ErrorKind = "model_install"
	KindCancellation      ErrorKind = "cancellation"
	KindConfiguration     ErrorKind = "configuration"
)

// Error codes
const (
	CodeStorage          = "ERR_101_STORAGE"
	CodeStorageLocked    = "ERR_102_STORAGE_LOCKED"
	CodeProviderNetwork  = "ERR_201_PROVIDER_NETWORK"
	CodeProviderAuth     = "ERR_202_PROVIDER_AUTH"
	CodeProviderQuota    = "ERR_203_PROVIDER_QUOTA"
	CodeModelMissing     = "ERR_301_MODEL_MISSING"
	CodeCancelled        = "ERR_401_CANCELLED"
	CodeFeatureDisabled  = "ERR_501_FEATURE_DISABLED"
	CodeConfigInvalid    = "ERR_502_CONFIG_INVALID"
	CodeRebuildInProcess = "ERR_601_REBUILD_IN_PROGRESS"
)

// IndexError is the structured error type for the engine
type IndexError struct {
	Kind      ErrorKind
	Code      string
	Op        string
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface
func (e *IndexError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches another IndexError by kind, so kind sentinels work with errors.Is
func (e *IndexError) Is(target error) bool {
	t, ok := target.(*IndexError)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return e.Kind == t.Kind
}

// Kind sentinels for errors.Is
var (
	ErrStorage           = &IndexError{Kind: KindStorage}
	ErrEmbeddingProvider = &IndexError{Kind: KindEmbeddingProvider}
	ErrModelInstall      = &IndexError{Kind: KindModelInstall}
	ErrCancelled         = &IndexError{Kind: KindCancellation}
	ErrConfiguration     = &IndexError{Kind: KindConfiguration}

	// ErrDisabled is returned when an operation is invoked while indexing is turned off
	ErrDisabled = &IndexError{
		Kind:    KindConfiguration,
		Code:    CodeFeatureDisabled,
		Message: "indexing is disabled",
	}
)

// NewStorageError wraps a local database failure
func NewStorageError(op string, cause error) *IndexError {
	return &IndexError{Kind: KindStorage, Code: CodeStorage, Op: op, Cause: cause}
}

// NewEmbeddingProviderError wraps a remote embedding or vector service failure
func NewEmbeddingProviderError(code, op string, cause error, retryable bool) *IndexError {
	if code == "" {
		code = CodeProviderNetwork
	}
	return &IndexError{Kind: KindEmbeddingProvider, Code: code, Op: op, Cause: cause, Retryable: retryable}
}

// NewModelInstallError reports a missing or corrupt local model artifact
func NewModelInstallError(model string, cause error) *IndexError {
	return &IndexError{
		Kind:    KindModelInstall,
		Code:    CodeModelMissing,
		Op:      "model " + model,
		Message: "model artifact unavailable",
		Cause:   cause,
	}
}

// NewCancellationError marks an operation that stopped because it was cancelled
func NewCancellationError(op string, cause error) *IndexError {
	return &IndexError{Kind: KindCancellation, Code: CodeCancelled, Op: op, Cause: cause}
}

// NewConfigurationError reports invalid or disabled configuration
func NewConfigurationError(message string) *IndexError {
	return &IndexError{Kind: KindConfiguration, Code: CodeConfigInvalid, Message: message}
}

// IsCancellation reports whether err represents cancellation rather than failure
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCancelled)
}

// KindOf returns the kind of err, or an empty kind for foreign errors
func KindOf(err error) ErrorKind {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	if IsCancellation(err) {
		return KindCancellation
	}
	return ""
}

// IsRetryable reports whether the operation that produced err may be retried
func IsRetryable(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}
