package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/querysql"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the committed row for (model, id).
func (s *Store) Get(ctx context.Context, model, id string) (Row, bool, error) {
	return getRow(ctx, s.db, model, id)
}

// Query returns committed rows of model matching p.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Query(ctx context.Context, model string, p predicate.Predicate, page ir.Page) ([]Row, error) {
	return s.queryRows(ctx, s.db, model, p, page)
}

func getRow(ctx context.Context, q queryer, model, id string) (Row, bool, error) {
	var fieldsJSON string
	err := q.QueryRowContext(ctx, `
		SELECT fields FROM records WHERE model = ? AND id = ?
	`, model, id).Scan(&fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("get %s/%s: %w", model, id, err)
	}

	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return Row{}, false, fmt.Errorf("get %s/%s: %w", model, id, err)
	}
	return Row{Model: model, ID: id, Fields: fields}, true, nil
}

func (s *Store) queryRows(ctx context.Context, q queryer, model string, p predicate.Predicate, page ir.Page) ([]Row, error) {
	meta, ok := s.schema.Models[model]
	if !ok {
		return nil, fmt.Errorf("query %s: %w", model, ErrUnknownModel)
	}

	query, params, err := querysql.NewSQLCompiler(meta.Fields).CompileQuery(model, p, page)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}

	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", model, err)
		}
		fields, err := unmarshalFields(fieldsJSON)
		if err != nil {
			return nil, fmt.Errorf("scan %s/%s: %w", model, id, err)
		}
		result = append(result, Row{Model: model, ID: id, Fields: fields})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", model, err)
	}
	return result, nil
}
