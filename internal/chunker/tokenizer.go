package chunker

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Token is one term of a chunk with its frequency and ordinal positions
type Token struct {
	Term      string
	Frequency int
	Positions []int
}

var folder = cases.Fold()

// Terms normalizes text (NFKC, case folded) and splits it on every rune that
// is not a letter or digit.
func Terms(text string) []string {
	normalized := folder.String(norm.NFKC.String(text))
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize returns the distinct terms of a chunk in order of first
// appearance. Positions are ordinal term indexes within the chunk.
func Tokenize(content string) []Token {
	terms := Terms(content)
	if len(terms) == 0 {
		return nil
	}

	index := make(map[string]int, len(terms))
	tokens := make([]Token, 0, len(terms))
	for pos, term := range terms {
		i, ok := index[term]
		if !ok {
			i = len(tokens)
			index[term] = i
			tokens = append(tokens, Token{Term: term})
		}
		tokens[i].Frequency++
		tokens[i].Positions = append(tokens[i].Positions, pos)
	}
	return tokens
}

// QueryTerms returns the distinct terms of a search query in order
func QueryTerms(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range Terms(query) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
