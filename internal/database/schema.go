package database

import (
	"context"
	"fmt"
)

// Schemas lists the attached schema names, excluding main and temp.
func (d *Database) Schemas(ctx context.Context) ([]string, error) {
	rows, err := d.Query(ctx, "SELECT name FROM pragma_database_list WHERE name NOT IN ('main', 'temp') ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// SchemaExists reports whether schema is attached (main and temp included).
func (d *Database) SchemaExists(ctx context.Context, schema string) (bool, error) {
	rows, err := d.Query(ctx, "SELECT COUNT(*) FROM pragma_database_list WHERE name = ?", schema)
	if err != nil {
		return false, fmt.Errorf("check schema %s: %w", schema, err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, err
		}
	}
	return n > 0, rows.Err()
}

// Attach attaches the database file name under schema. Plain names are
// joined to the database directory; ":memory:" attaches a private
// in-memory database.
func (d *Database) Attach(ctx context.Context, name, schema string) error {
	return d.attach(ctx, attachmentPath(name, d.dir), schema)
}

func (d *Database) attach(ctx context.Context, path, schema string) error {
	if _, err := d.Exec(ctx, "ATTACH DATABASE ? AS ?", path, schema); err != nil {
		return fmt.Errorf("attach %s as %s: %w", path, schema, err)
	}
	d.logger.Debug("database attached",
		"database", d.info.Name,
		"schema", schema,
		"path", path,
	)
	return nil
}

// Detach detaches schema.
func (d *Database) Detach(ctx context.Context, schema string) error {
	if _, err := d.Exec(ctx, "DETACH DATABASE ?", schema); err != nil {
		return fmt.Errorf("detach %s: %w", schema, err)
	}
	return nil
}
