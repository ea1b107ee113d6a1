package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// DryRun executes the DDL of every enabled built-in table and every custom
// table against a scratch in-memory database, attaching an in-memory database
// for each attachment schema. It runs on the pure-Go engine so it also works
// in tooling built without cgo.
func DryRun(ctx context.Context, info *DatabaseInfo) []ValidationError {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return []ValidationError{{Field: "dry_run", Message: fmt.Sprintf("open scratch database: %v", err), Code: ErrDryRunUnavailable}}
	}
	defer db.Close()

	// Attachments and temp tables live on one connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return []ValidationError{{Field: "dry_run", Message: fmt.Sprintf("open scratch connection: %v", err), Code: ErrDryRunUnavailable}}
	}
	defer conn.Close()

	var errs []ValidationError
	for i, a := range info.Attachments {
		if a.Schema == "" {
			continue
		}
		stmt := fmt.Sprintf("ATTACH DATABASE ':memory:' AS %s", QuoteIdent(a.Schema))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("attachments[%d].schema", i),
				Message: describeEngineError(err),
				Code:    ErrDryRun,
			})
		}
	}

	for _, t := range info.EnabledDefaultTables() {
		if err := execDDL(ctx, conn, t); err != nil {
			errs = append(errs, ValidationError{
				Field:   "default_tables." + t.Name,
				Message: err.Error(),
				Code:    ErrDryRun,
			})
		}
	}

	for i, t := range info.Tables {
		if err := execDDL(ctx, conn, t); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tables[%d]", i),
				Message: err.Error(),
				Code:    ErrDryRun,
			})
		}
	}

	return errs
}

func execDDL(ctx context.Context, conn *sql.Conn, t Table) error {
	ddl := GenerateCreateTable(t)
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("table %s:\n\n%s\n\n%s", t.Name, ddl, describeEngineError(err))
	}
	return nil
}

func describeEngineError(err error) string {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code&0xff == sqlite3lib.SQLITE_ERROR {
			return fmt.Sprintf("SQLITE_ERROR: %s", sqliteErr.Error())
		}
		return fmt.Sprintf("code %d: %s", code, sqliteErr.Error())
	}
	return err.Error()
}
