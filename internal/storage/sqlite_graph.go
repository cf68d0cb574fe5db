package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dshills/hybridindex/pkg/types"
)

// Graph tables. SQLiteStorage satisfies graph.Store through these methods.

const symbolColumns = `id, uri, kind, name, container_name, start_line, start_char, end_line, end_char`

func (s *SQLiteStorage) upsertSymbolWithQuerier(ctx context.Context, q querier, sym *types.Symbol) error {
	if err := sym.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO symbols (workspace_id, ` + symbolColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			kind = excluded.kind,
			name = excluded.name,
			container_name = excluded.container_name,
			start_line = excluded.start_line,
			start_char = excluded.start_char,
			end_line = excluded.end_line,
			end_char = excluded.end_char
	`
	_, err := q.ExecContext(ctx, query, s.ws.ID, sym.ID, sym.URI, string(sym.Kind), sym.Name, sym.ContainerName,
		sym.Range.StartLine, sym.Range.StartChar, sym.Range.EndLine, sym.Range.EndChar)
	if err != nil {
		return types.NewStorageError("upsert symbol", err)
	}
	return nil
}

// UpsertSymbol inserts or replaces a graph node
func (s *SQLiteStorage) UpsertSymbol(ctx context.Context, sym *types.Symbol) error {
	return s.upsertSymbolWithQuerier(ctx, s.db, sym)
}

func (s *SQLiteStorage) insertOccurrenceWithQuerier(ctx context.Context, q querier, occ *types.Occurrence) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO occurrences (workspace_id, symbol_id, uri, role, start_line, start_char, end_line, end_char)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ws.ID, occ.SymbolID, occ.URI, string(occ.Role),
		occ.Range.StartLine, occ.Range.StartChar, occ.Range.EndLine, occ.Range.EndChar)
	if err != nil {
		return types.NewStorageError("insert occurrence", err)
	}
	return nil
}

// InsertOccurrence records a definition or reference
func (s *SQLiteStorage) InsertOccurrence(ctx context.Context, occ *types.Occurrence) error {
	return s.insertOccurrenceWithQuerier(ctx, s.db, occ)
}

func (s *SQLiteStorage) insertEdgeWithQuerier(ctx context.Context, q querier, uri string, edge types.Edge) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO edges (workspace_id, from_id, to_id, kind, uri)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, kind, uri) DO NOTHING`,
		s.ws.ID, edge.FromID, edge.ToID, string(edge.Kind), uri)
	if err != nil {
		return types.NewStorageError("insert edge", err)
	}
	return nil
}

// InsertEdge records an edge owned by uri
func (s *SQLiteStorage) InsertEdge(ctx context.Context, uri string, edge types.Edge) error {
	return s.insertEdgeWithQuerier(ctx, s.db, uri, edge)
}

// UpdateFromFile replaces everything uri previously contributed to the graph
func (s *SQLiteStorage) UpdateFromFile(ctx context.Context, fg *types.FileGraph) error {
	if fg == nil || fg.URI == "" {
		return types.ErrMissingFileInfo
	}
	return s.withTx(ctx, "update graph", func(q querier) error {
		if err := s.deleteGraphWithQuerier(ctx, q, fg.URI); err != nil {
			return err
		}
		for i := range fg.Symbols {
			if err := s.upsertSymbolWithQuerier(ctx, q, &fg.Symbols[i]); err != nil {
				return err
			}
		}
		for i := range fg.Definitions {
			if err := s.insertOccurrenceWithQuerier(ctx, q, &fg.Definitions[i]); err != nil {
				return err
			}
		}
		for i := range fg.References {
			if err := s.insertOccurrenceWithQuerier(ctx, q, &fg.References[i]); err != nil {
				return err
			}
		}
		for _, edge := range fg.Edges {
			if err := s.insertEdgeWithQuerier(ctx, q, fg.URI, edge); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteGraph removes the graph rows owned by uri, leaving chunks alone
func (s *SQLiteStorage) DeleteGraph(ctx context.Context, uri string) error {
	return s.withTx(ctx, "delete graph", func(q querier) error {
		return s.deleteGraphWithQuerier(ctx, q, uri)
	})
}

func (s *SQLiteStorage) deleteGraphWithQuerier(ctx context.Context, q querier, uri string) error {
	for _, table := range []string{"symbols", "occurrences", "edges"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ? AND uri = ?", s.ws.ID, uri); err != nil {
			return types.NewStorageError("delete graph", err)
		}
	}
	return nil
}

// pruneIncomingEdgesWithQuerier drops edges from other files that target the
// symbols or the file node of uri
func (s *SQLiteStorage) pruneIncomingEdgesWithQuerier(ctx context.Context, q querier, uri string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM edges
		WHERE workspace_id = ?
		AND (to_id IN (SELECT id FROM symbols WHERE workspace_id = ? AND uri = ?) OR to_id = ?)`,
		s.ws.ID, s.ws.ID, uri, types.FileNodeID(uri))
	if err != nil {
		return types.NewStorageError("prune edges", err)
	}
	return nil
}

// ResetGraph drops all graph rows of the workspace
func (s *SQLiteStorage) ResetGraph(ctx context.Context) error {
	return s.withTx(ctx, "reset graph", func(q querier) error {
		for _, table := range []string{"symbols", "occurrences", "edges"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ?", s.ws.ID); err != nil {
				return types.NewStorageError("reset graph", err)
			}
		}
		return nil
	})
}

// GetSymbol retrieves one node by id
func (s *SQLiteStorage) GetSymbol(ctx context.Context, id string) (*types.Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRowContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols WHERE workspace_id = ? AND id = ?`, s.ws.ID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewStorageError("get symbol", err)
	}
	return sym, nil
}

// resolveSymbol looks up id, resolving ref:Name ids against symbol names
func (s *SQLiteStorage) resolveSymbol(ctx context.Context, id string) (*types.Symbol, error) {
	if name, ok := types.RefName(id); ok {
		sym, err := scanSymbol(s.db.QueryRowContext(ctx,
			`SELECT `+symbolColumns+` FROM symbols WHERE workspace_id = ? AND name = ? ORDER BY id LIMIT 1`,
			s.ws.ID, name))
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, types.NewStorageError("resolve symbol", err)
		}
		return sym, nil
	}
	sym, err := s.GetSymbol(ctx, id)
	if err == ErrNotFound {
		return nil, nil
	}
	return sym, err
}

// aliases returns id plus the unresolved-reference id that may point at it
func (s *SQLiteStorage) aliases(ctx context.Context, id string) ([]string, error) {
	ids := []string{id}
	sym, err := s.resolveSymbol(ctx, id)
	if err != nil {
		return nil, err
	}
	if sym != nil && sym.ID == id {
		ids = append(ids, types.RefID(sym.Name))
	}
	return ids, nil
}

// GetDefinitions returns where id is defined
func (s *SQLiteStorage) GetDefinitions(ctx context.Context, id string) ([]types.Occurrence, error) {
	return s.queryOccurrences(ctx, []string{id}, types.RoleDefinition)
}

// GetReferences returns where id is referenced, including unresolved references by name
func (s *SQLiteStorage) GetReferences(ctx context.Context, id string) ([]types.Occurrence, error) {
	ids, err := s.aliases(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.queryOccurrences(ctx, ids, types.RoleReference)
}

func (s *SQLiteStorage) queryOccurrences(ctx context.Context, ids []string, role types.OccurrenceRole) ([]types.Occurrence, error) {
	args := []interface{}{s.ws.ID, string(role)}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_id, uri, role, start_line, start_char, end_line, end_char
		FROM occurrences
		WHERE workspace_id = ? AND role = ? AND symbol_id IN (`+placeholders(len(ids))+`)
		ORDER BY uri, start_line, start_char`, args...)
	if err != nil {
		return nil, types.NewStorageError("query occurrences", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Occurrence
	for rows.Next() {
		var (
			occ     types.Occurrence
			roleStr string
		)
		if err := rows.Scan(&occ.SymbolID, &occ.URI, &roleStr,
			&occ.Range.StartLine, &occ.Range.StartChar, &occ.Range.EndLine, &occ.Range.EndChar); err != nil {
			return nil, types.NewStorageError("scan occurrence", err)
		}
		occ.Role = types.OccurrenceRole(roleStr)
		out = append(out, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("query occurrences", err)
	}
	return out, nil
}

// GetNeighbors expands edges adjacent to id in the requested direction
func (s *SQLiteStorage) GetNeighbors(ctx context.Context, id string, dir types.Direction) ([]types.Neighbor, error) {
	var neighbors []types.Neighbor

	if dir == types.DirectionBoth || dir == types.DirectionOutgoing {
		edges, err := s.queryEdges(ctx, "from_id", []string{id})
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			sym, err := s.resolveSymbol(ctx, e.ToID)
			if err != nil {
				return nil, err
			}
			neighbors = append(neighbors, types.Neighbor{Edge: e, Direction: types.DirectionOutgoing, Symbol: sym})
		}
	}

	if dir == types.DirectionBoth || dir == types.DirectionIncoming {
		ids, err := s.aliases(ctx, id)
		if err != nil {
			return nil, err
		}
		edges, err := s.queryEdges(ctx, "to_id", ids)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			sym, err := s.resolveSymbol(ctx, e.FromID)
			if err != nil {
				return nil, err
			}
			neighbors = append(neighbors, types.Neighbor{Edge: e, Direction: types.DirectionIncoming, Symbol: sym})
		}
	}

	return neighbors, nil
}

func (s *SQLiteStorage) queryEdges(ctx context.Context, column string, ids []string) ([]types.Edge, error) {
	args := []interface{}{s.ws.ID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT from_id, to_id, kind FROM edges
		WHERE workspace_id = ? AND `+column+` IN (`+placeholders(len(ids))+`)
		ORDER BY from_id, to_id, kind`, args...)
	if err != nil {
		return nil, types.NewStorageError("query edges", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

// GetFileGraph returns everything uri contributes to the graph
func (s *SQLiteStorage) GetFileGraph(ctx context.Context, uri string) (*types.FileGraph, error) {
	fg := &types.FileGraph{URI: uri}

	syms, err := s.querySymbols(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE workspace_id = ? AND uri = ? ORDER BY start_line, id`, s.ws.ID, uri)
	if err != nil {
		return nil, err
	}
	fg.Symbols = syms

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_id, uri, role, start_line, start_char, end_line, end_char
		FROM occurrences WHERE workspace_id = ? AND uri = ? ORDER BY start_line, start_char`, s.ws.ID, uri)
	if err != nil {
		return nil, types.NewStorageError("file occurrences", err)
	}
	for rows.Next() {
		var (
			occ     types.Occurrence
			roleStr string
		)
		if err := rows.Scan(&occ.SymbolID, &occ.URI, &roleStr,
			&occ.Range.StartLine, &occ.Range.StartChar, &occ.Range.EndLine, &occ.Range.EndChar); err != nil {
			_ = rows.Close()
			return nil, types.NewStorageError("scan occurrence", err)
		}
		occ.Role = types.OccurrenceRole(roleStr)
		if occ.Role == types.RoleDefinition {
			fg.Definitions = append(fg.Definitions, occ)
		} else {
			fg.References = append(fg.References, occ)
		}
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, types.NewStorageError("file occurrences", err)
	}

	edgeRows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, kind FROM edges WHERE workspace_id = ? AND uri = ? ORDER BY from_id, to_id, kind`,
		s.ws.ID, uri)
	if err != nil {
		return nil, types.NewStorageError("file edges", err)
	}
	defer func() { _ = edgeRows.Close() }()
	fg.Edges, err = scanEdges(edgeRows)
	if err != nil {
		return nil, err
	}
	return fg, nil
}

// FindSymbols returns symbols whose name matches one of names, case-insensitively
func (s *SQLiteStorage) FindSymbols(ctx context.Context, names []string, limit int) ([]types.Symbol, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	args := []interface{}{s.ws.ID}
	for _, n := range names {
		args = append(args, strings.ToLower(n))
	}
	args = append(args, limit)
	return s.querySymbols(ctx, `
		SELECT `+symbolColumns+` FROM symbols
		WHERE workspace_id = ? AND kind NOT IN ('file', 'module') AND lower(name) IN (`+placeholders(len(names))+`)
		ORDER BY id LIMIT ?`, args...)
}

// GraphStats counts nodes and distinct edges
func (s *SQLiteStorage) GraphStats(ctx context.Context) (types.GraphStats, error) {
	var stats types.GraphStats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols WHERE workspace_id = ?`, s.ws.ID).Scan(&stats.NodeCount)
	if err != nil {
		return stats, types.NewStorageError("count symbols", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (SELECT DISTINCT from_id, to_id, kind FROM edges WHERE workspace_id = ?)`,
		s.ws.ID).Scan(&stats.EdgeCount)
	if err != nil {
		return stats, types.NewStorageError("count edges", err)
	}
	return stats, nil
}

func (s *SQLiteStorage) querySymbols(ctx context.Context, query string, args ...interface{}) ([]types.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewStorageError("query symbols", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, types.NewStorageError("scan symbol", err)
		}
		out = append(out, *sym)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("query symbols", err)
	}
	return out, nil
}

func scanSymbol(row rowScanner) (*types.Symbol, error) {
	var (
		sym  types.Symbol
		kind string
	)
	err := row.Scan(&sym.ID, &sym.URI, &kind, &sym.Name, &sym.ContainerName,
		&sym.Range.StartLine, &sym.Range.StartChar, &sym.Range.EndLine, &sym.Range.EndChar)
	if err != nil {
		return nil, err
	}
	sym.Kind = types.SymbolKind(kind)
	return &sym, nil
}

func scanEdges(rows *sql.Rows) ([]types.Edge, error) {
	var out []types.Edge
	for rows.Next() {
		var (
			e    types.Edge
			kind string
		)
		if err := rows.Scan(&e.FromID, &e.ToID, &kind); err != nil {
			return nil, types.NewStorageError("scan edge", err)
		}
		e.Kind = types.EdgeKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("scan edges", err)
	}
	return out, nil
}
