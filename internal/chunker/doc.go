// Package chunker splits file content into chunks and chunks into lexical tokens.
//
// Chunks are contiguous line ranges bounded by a line count and a byte size.
// Boundaries depend only on the content and the Options, so re-chunking
// unchanged content yields the same ranges, hashes and ids.
//
// # Basic Usage
//
//	c := chunker.New(chunker.DefaultOptions())
//	content, diag := c.Truncate(raw)
//	for _, ch := range c.Chunk(string(content)) {
//	    id := chunker.ChunkID(path, ch.Index)
//	    tokens := chunker.Tokenize(ch.Content)
//	    ...
//	}
//
// # Tokens
//
// Tokenize applies NFKC normalization and Unicode case folding, splits on
// anything that is not a letter or digit and records term frequency plus the
// ordinal positions of each term within the chunk.
package chunker
