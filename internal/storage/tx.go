package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn inside a SQL transaction, rolling back when fn fails. The
// connection opens transactions with BEGIN IMMEDIATE (see OpenSQLite), so
// the write lock is taken up front and two processes never deadlock
// upgrading a read lock.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// versionedWrite replaces a row whose stored version is one below the
// written one, or inserts the row when it does not exist. update must end in
// "AND version = ?" and gets expected appended; insert must be an
// INSERT ... ON CONFLICT DO NOTHING.
func versionedWrite(ctx context.Context, db execer, update string, updateArgs []any, expected int64, insert string, insertArgs []any) error {
	res, err := db.ExecContext(ctx, update, append(updateArgs, expected)...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	res, err = db.ExecContext(ctx, insert, insertArgs...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
