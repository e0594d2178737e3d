package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

// sqliteTxn is a write transaction on the SQLite engine.
type sqliteTxn struct {
	s  *Store
	tx *sql.Tx
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (Txn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTxn{s: s, tx: tx}, nil
}

func (t *sqliteTxn) Get(ctx context.Context, model, id string) (Row, bool, error) {
	return getRow(ctx, t.tx, model, id)
}

func (t *sqliteTxn) Query(ctx context.Context, model string, p predicate.Predicate, page ir.Page) ([]Row, error) {
	return t.s.queryRows(ctx, t.tx, model, p, page)
}

// Put upserts a row. An update keeps the row's insertion sequence; an
// insert takes the next one.
func (t *sqliteTxn) Put(ctx context.Context, row Row) (bool, error) {
	if _, ok := t.s.schema.Models[row.Model]; !ok {
		return false, fmt.Errorf("put %s: %w", row.Model, ErrUnknownModel)
	}

	fieldsJSON, err := marshalFields(row.Fields)
	if err != nil {
		return false, fmt.Errorf("put %s/%s: %w", row.Model, row.ID, err)
	}
	digest, err := ir.RecordDigest(row.Model, row.Fields)
	if err != nil {
		return false, fmt.Errorf("put %s/%s: %w", row.Model, row.ID, err)
	}

	var exists int
	err = t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE model = ? AND id = ?
	`, row.Model, row.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("put %s/%s: %w", row.Model, row.ID, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO records (model, id, fields, digest, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records))
		ON CONFLICT(model, id) DO UPDATE SET
			fields = excluded.fields,
			digest = excluded.digest
	`, row.Model, row.ID, fieldsJSON, digest)
	if err != nil {
		return false, fmt.Errorf("put %s/%s: %w", row.Model, row.ID, err)
	}

	return exists > 0, nil
}

func (t *sqliteTxn) Delete(ctx context.Context, model, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM records WHERE model = ? AND id = ?
	`, model, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", model, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", model, id, err)
	}
	return n > 0, nil
}

func (t *sqliteTxn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is
// a no-op.
func (t *sqliteTxn) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
