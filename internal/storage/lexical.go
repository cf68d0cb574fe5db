package storage

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/dshills/hybridindex/pkg/types"
)

// BM25 parameters
const (
	bm25K1 = 1.2
	bm25B  = 0.75

	// prefixWeight discounts fuzzy (prefix) term matches against exact ones
	prefixWeight = 0.5
	// minPrefixLen is the shortest query term expanded to prefix matches
	minPrefixLen = 3
)

func (s *SQLiteStorage) upsertTokenWithQuerier(ctx context.Context, q querier, token *Token) error {
	if token.Term == "" || token.ChunkID == "" {
		return types.ErrInvalidChunkID
	}
	positions, err := json.Marshal(token.Positions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tokens (term, chunk_id, term_frequency, positions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(term, chunk_id) DO UPDATE SET
			term_frequency = excluded.term_frequency,
			positions = excluded.positions
	`
	if _, err := q.ExecContext(ctx, query, token.Term, token.ChunkID, token.TermFrequency, string(positions)); err != nil {
		return types.NewStorageError("upsert token", err)
	}
	return nil
}

// UpsertToken inserts or replaces one posting
func (s *SQLiteStorage) UpsertToken(ctx context.Context, token *Token) error {
	return s.upsertTokenWithQuerier(ctx, s.db, token)
}

// LookupTerms returns the postings of terms. With prefix set, terms of at least
// three characters also match longer terms that start with them.
func (s *SQLiteStorage) LookupTerms(ctx context.Context, terms []string, prefix bool) ([]Token, error) {
	var out []Token
	for _, term := range dedupeTerms(terms) {
		rows, err := s.db.QueryContext(ctx, termQuery(prefix && len(term) >= minPrefixLen),
			termArgs(s.ws.ID, term, prefix && len(term) >= minPrefixLen)...)
		if err != nil {
			return nil, types.NewStorageError("lookup terms", err)
		}
		for rows.Next() {
			var (
				tok       Token
				tokens    int
				positions string
			)
			if err := rows.Scan(&tok.ChunkID, &tok.Term, &tok.TermFrequency, &positions, &tokens); err != nil {
				_ = rows.Close()
				return nil, types.NewStorageError("scan token", err)
			}
			if positions != "" {
				_ = json.Unmarshal([]byte(positions), &tok.Positions)
			}
			out = append(out, tok)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, types.NewStorageError("lookup terms", err)
		}
	}
	return out, nil
}

// SearchTerms ranks chunks against the query terms with BM25.
// Results are sorted by score descending, then chunk id.
func (s *SQLiteStorage) SearchTerms(ctx context.Context, terms []string, limit int) ([]TextResult, error) {
	terms = dedupeTerms(terms)
	if len(terms) == 0 {
		return []TextResult{}, nil
	}

	var (
		totalChunks int
		avgLen      float64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(token_count), 0) FROM chunks WHERE workspace_id = ?`, s.ws.ID).
		Scan(&totalChunks, &avgLen)
	if err != nil {
		return nil, types.NewStorageError("lexical stats", err)
	}
	if totalChunks == 0 {
		return []TextResult{}, nil
	}
	if avgLen <= 0 {
		avgLen = 1
	}

	type hit struct {
		tf       int
		docLen   int
		term     string
		weight   float64
		chunkID  string
		queryIdx int
	}

	scores := make(map[string]float64)
	matched := make(map[string]map[int]bool)

	for qi, term := range terms {
		usePrefix := len(term) >= minPrefixLen
		rows, err := s.db.QueryContext(ctx, termQuery(usePrefix), termArgs(s.ws.ID, term, usePrefix)...)
		if err != nil {
			return nil, types.NewStorageError("search terms", err)
		}

		var hits []hit
		docFreq := make(map[string]int)
		for rows.Next() {
			var (
				h         hit
				positions string
			)
			if err := rows.Scan(&h.chunkID, &h.term, &h.tf, &positions, &h.docLen); err != nil {
				_ = rows.Close()
				return nil, types.NewStorageError("scan token", err)
			}
			h.weight = 1
			if h.term != term {
				h.weight = prefixWeight
			}
			h.queryIdx = qi
			docFreq[h.term]++
			hits = append(hits, h)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, types.NewStorageError("search terms", err)
		}

		for _, h := range hits {
			df := float64(docFreq[h.term])
			idf := math.Log(1 + (float64(totalChunks)-df+0.5)/(df+0.5))
			tf := float64(h.tf)
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(h.docLen)/avgLen)
			scores[h.chunkID] += h.weight * idf * tf * (bm25K1 + 1) / norm

			if matched[h.chunkID] == nil {
				matched[h.chunkID] = make(map[int]bool)
			}
			matched[h.chunkID][h.queryIdx] = true
		}
	}

	results := make([]TextResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, TextResult{ChunkID: id, Score: score, MatchedTerms: len(matched[id])})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func termQuery(prefix bool) string {
	query := `
		SELECT t.chunk_id, t.term, t.term_frequency, t.positions, c.token_count
		FROM tokens t
		INNER JOIN chunks c ON c.id = t.chunk_id
		WHERE c.workspace_id = ? AND `
	if prefix {
		return query + `(t.term = ? OR t.term LIKE ? ESCAPE '\') ORDER BY t.chunk_id, t.term`
	}
	return query + `t.term = ? ORDER BY t.chunk_id`
}

func termArgs(workspaceID, term string, prefix bool) []interface{} {
	if prefix {
		return []interface{}{workspaceID, term, escapeLike(term) + "%"}
	}
	return []interface{}{workspaceID, term}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func dedupeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
