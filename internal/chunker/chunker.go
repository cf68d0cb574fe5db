package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dshills/hybridindex/pkg/types"
)

const (
	// DefaultMaxLines is the line ceiling of one chunk
	DefaultMaxLines = 60

	// DefaultMaxBytes is the byte ceiling of one chunk
	DefaultMaxBytes = 4096

	// DefaultMaxFileBytes is the size above which file content is truncated
	DefaultMaxFileBytes = 1 << 20

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

// Options controls chunk boundaries. Identical options and content always
// yield identical chunks.
type Options struct {
	MaxLines     int
	MaxBytes     int
	MaxFileBytes int
}

// DefaultOptions returns the default chunking thresholds
func DefaultOptions() Options {
	return Options{
		MaxLines:     DefaultMaxLines,
		MaxBytes:     DefaultMaxBytes,
		MaxFileBytes: DefaultMaxFileBytes,
	}
}

// Chunk is one contiguous line range of a file
type Chunk struct {
	Index       int
	Content     string
	Range       types.Range
	ContentHash string
	TokenCount  int
}

// Chunker splits file content into line-bounded chunks
type Chunker struct {
	opts Options
}

// New creates a new Chunker instance, filling zero options with defaults
func New(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.MaxLines <= 0 {
		opts.MaxLines = def.MaxLines
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = def.MaxFileBytes
	}
	return &Chunker{opts: opts}
}

// Options returns the effective options
func (c *Chunker) Options() Options {
	return c.opts
}

// Truncate cuts content above MaxFileBytes at the last line break under the
// ceiling. The returned diagnostic is empty when nothing was cut.
func (c *Chunker) Truncate(content []byte) ([]byte, string) {
	limit := c.opts.MaxFileBytes
	if len(content) <= limit {
		return content, ""
	}

	cut := strings.LastIndexByte(string(content[:limit]), '\n')
	if cut <= 0 {
		// No line break; back off to a rune boundary
		cut = limit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
	}
	return content[:cut], fmt.Sprintf("truncated from %d to %d bytes", len(content), cut)
}

// Chunk splits content into chunks of at most MaxLines lines and MaxBytes
// bytes. A single line longer than MaxBytes becomes its own chunk. Empty or
// whitespace-only content produces no chunks.
func (c *Chunker) Chunk(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}

	var (
		chunks []Chunk
		start  int
		size   int
	)
	flush := func(end int) {
		if end <= start {
			return
		}
		body := strings.Join(lines[start:end], "\n")
		last := lines[end-1]
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: body,
			Range: types.Range{
				StartLine: start,
				EndLine:   end - 1,
				EndChar:   utf8.RuneCountInString(last),
			},
			ContentHash: ContentHash(body),
			TokenCount:  EstimateTokenCount(body),
		})
		start = end
		size = 0
	}

	for i, line := range lines {
		lineBytes := len(line) + 1
		if i > start && (i-start >= c.opts.MaxLines || size+lineBytes > c.opts.MaxBytes) {
			flush(i)
		}
		size += lineBytes
	}
	flush(len(lines))

	return chunks
}

// ChunkID derives a deterministic id from the file path and chunk index
func ChunkID(filePath string, index int) string {
	sum := sha256.Sum256([]byte(filePath + "\x00" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:16])
}

// ContentHash computes the SHA-256 hex digest of content
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EstimateTokenCount estimates the number of tokens in a string
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}
