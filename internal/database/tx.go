package database

import (
	"context"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Begin starts a transaction. hint names the work in logs and errors.
func (d *Database) Begin(ctx context.Context, hint string) error {
	return d.txExec(ctx, "BEGIN TRANSACTION", "begin", hint)
}

// Commit commits the current transaction.
func (d *Database) Commit(ctx context.Context, hint string) error {
	return d.txExec(ctx, "COMMIT", "commit", hint)
}

// Rollback rolls back the current transaction.
func (d *Database) Rollback(ctx context.Context, hint string) error {
	return d.txExec(ctx, "ROLLBACK", "rollback", hint)
}

func (d *Database) txExec(ctx context.Context, query, op, hint string) error {
	if _, err := d.Exec(ctx, query); err != nil {
		d.logger.Error("transaction failed",
			"database", d.info.Name,
			"op", op,
			"hint", hint,
			"error", err,
		)
		if hint == "" {
			return fmt.Errorf("%s transaction: %w", op, err)
		}
		return fmt.Errorf("%s transaction (%s): %w", op, hint, err)
	}
	return nil
}

// InTransaction reports whether a transaction is open on the connection.
func (d *Database) InTransaction() (bool, error) {
	var inTx bool
	err := d.raw(func(c *sqlite3.SQLiteConn) error {
		inTx = !c.AutoCommit()
		return nil
	})
	return inTx, err
}
