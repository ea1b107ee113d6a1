package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/embedsql/internal/capability"
)

// Serialize returns the content of schema as the bytes of a database file.
func (d *Database) Serialize(schema string) ([]byte, error) {
	if !d.flags.Enabled(capability.FeatureDeserialize) {
		return nil, fmt.Errorf("serialize: %w: %s", ErrFeatureDisabled, capability.FeatureDeserialize)
	}
	var data []byte
	err := d.raw(func(c *sqlite3.SQLiteConn) error {
		var err error
		data, err = c.Serialize(schema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", schema, err)
	}
	return data, nil
}

// Deserialize replaces schema with an in-memory database holding data.
func (d *Database) Deserialize(data []byte, schema string) error {
	if !d.flags.Enabled(capability.FeatureDeserialize) {
		return fmt.Errorf("deserialize: %w: %s", ErrFeatureDisabled, capability.FeatureDeserialize)
	}
	err := d.raw(func(c *sqlite3.SQLiteConn) error {
		return c.Deserialize(data, schema)
	})
	if err != nil {
		return fmt.Errorf("deserialize %s: %w", schema, err)
	}
	return nil
}

// LoadExtension loads a run-time extension. entry may be empty to use the
// default entry point.
func (d *Database) LoadExtension(lib, entry string) error {
	if !d.flags.ExtensionLoading() {
		return fmt.Errorf("load extension %s: %w: extension loading", lib, ErrFeatureDisabled)
	}
	err := d.raw(func(c *sqlite3.SQLiteConn) error {
		return c.LoadExtension(lib, entry)
	})
	if err != nil {
		return fmt.Errorf("load extension %s: %w", lib, d.record(err))
	}
	return nil
}

// BackupTo copies the main schema into the database file at path, replacing
// its content.
func (d *Database) BackupTo(ctx context.Context, path string) error {
	dest, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open backup destination: %w", err)
	}
	defer dest.Close()

	destConn, err := dest.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect backup destination: %w", err)
	}
	defer destConn.Close()

	err = destConn.Raw(func(destDriver any) error {
		dc, ok := destDriver.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", destDriver)
		}
		return d.raw(func(src *sqlite3.SQLiteConn) error {
			b, err := dc.Backup("main", src, d.info.Schema)
			if err != nil {
				return err
			}
			for {
				done, err := b.Step(-1)
				if err != nil {
					b.Finish()
					return err
				}
				if done {
					break
				}
			}
			return b.Finish()
		})
	})
	if err != nil {
		return fmt.Errorf("backup %s to %s: %w", d.info.Name, path, err)
	}
	d.logger.Info("database backed up", "name", d.info.Name, "path", path)
	return nil
}
