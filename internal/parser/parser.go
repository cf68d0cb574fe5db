package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dshills/hybridindex/pkg/types"
)

// extractFunc builds a graph for one language
type extractFunc func(ctx context.Context, b *builder, content []byte) error

// Parser extracts symbol graphs from source files
type Parser struct {
	extractors map[string]extractFunc
}

// New creates a Parser with every extractor available in this build
func New() *Parser {
	p := &Parser{extractors: map[string]extractFunc{
		"go": extractGo,
	}}
	registerScriptExtractors(p.extractors)
	return p
}

// Supports reports whether languageID gets symbols beyond the file node
func (p *Parser) Supports(languageID string) bool {
	_, ok := p.extractors[languageID]
	return ok
}

// Parse returns the graph uri contributes. Every file yields at least its
// file node. Syntax errors are not fatal: whatever could be extracted is
// returned along with the error.
func (p *Parser) Parse(ctx context.Context, uri, languageID string, content []byte) (*types.FileGraph, error) {
	if uri == "" {
		return nil, types.ErrMissingFileInfo
	}
	b := newBuilder(uri, bytes.Count(content, []byte("\n"))+1)

	extract, ok := p.extractors[languageID]
	if !ok || len(bytes.TrimSpace(content)) == 0 {
		return b.finish(), nil
	}
	if err := extract(ctx, b, content); err != nil {
		return b.finish(), fmt.Errorf("failed to parse %s: %w", uri, err)
	}
	return b.finish(), nil
}
