package profile

import (
	"strings"
)

// Column is one column of a table definition.
type Column struct {
	Name string `yaml:"name"`

	// Type is the declared type; empty declares none.
	Type string `yaml:"type,omitempty"`

	// Constraint is appended verbatim, e.g. "NOT NULL" or "PRIMARY KEY".
	Constraint string `yaml:"constraint,omitempty"`
}

// Table is a table definition that GenerateCreateTable renders as DDL.
type Table struct {
	Name        string   `yaml:"name"`
	Schema      string   `yaml:"schema,omitempty"`
	Temporary   bool     `yaml:"temporary,omitempty"`
	IfNotExists bool     `yaml:"if_not_exists,omitempty"`
	Columns     []Column `yaml:"columns"`

	// Constraints are table constraints appended verbatim after the columns.
	Constraints []string `yaml:"constraints,omitempty"`

	WithoutRowID bool `yaml:"without_rowid,omitempty"`
	Strict       bool `yaml:"strict,omitempty"`
}

// GenerateCreateTable renders a CREATE TABLE statement for t.
//
//	CREATE TABLE IF NOT EXISTS "main"."Items"
//	(
//		"Id" INTEGER PRIMARY KEY,
//		"Name" TEXT NOT NULL,
//	UNIQUE("Name")
//	) WITHOUT ROWID, STRICT
func GenerateCreateTable(t Table) string {
	var b strings.Builder
	b.WriteString("CREATE")
	if t.Temporary {
		b.WriteString(" TEMPORARY")
	}
	b.WriteString(" TABLE ")
	if t.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	if t.Schema != "" {
		b.WriteString(QuoteIdent(t.Schema))
		b.WriteString(".")
	}
	b.WriteString(QuoteIdent(t.Name))
	b.WriteString("\n(\n")

	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("\t")
		b.WriteString(QuoteIdent(c.Name))
		if c.Type != "" {
			b.WriteString(" ")
			b.WriteString(c.Type)
		}
		if c.Constraint != "" {
			b.WriteString(" ")
			b.WriteString(c.Constraint)
		}
	}

	for _, constraint := range t.Constraints {
		b.WriteString(",\n")
		b.WriteString(constraint)
	}
	b.WriteString("\n)")

	var options []string
	if t.WithoutRowID {
		options = append(options, "WITHOUT ROWID")
	}
	if t.Strict {
		options = append(options, "STRICT")
	}
	if len(options) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(options, ", "))
	}
	return b.String()
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Built-in tables, created with a new database when enabled in DefaultTables.
var (
	StoredStatementsTable = Table{
		Name:        "StoredStatements",
		IfNotExists: true,
		Columns: []Column{
			{Name: "Key", Type: "TEXT", Constraint: "PRIMARY KEY"},
			{Name: "Group", Type: "TEXT", Constraint: "NOT NULL"},
			{Name: "Schema", Type: "TEXT", Constraint: "NOT NULL"},
			{Name: "Query", Type: "TEXT", Constraint: "NOT NULL"},
		},
	}

	PropertiesTable = Table{
		Name:        "Properties",
		IfNotExists: true,
		Columns: []Column{
			{Name: "Key", Type: "TEXT", Constraint: "PRIMARY KEY"},
			{Name: "Value", Type: "ANY"},
		},
	}

	ActorsStoreTable = Table{
		Name:        "ActorsStore",
		IfNotExists: true,
		Columns: []Column{
			{Name: "Id", Type: "INTEGER", Constraint: "PRIMARY KEY"},
			{Name: "Class", Type: "TEXT", Constraint: "NOT NULL"},
			{Name: "Name", Type: "TEXT"},
			{Name: "Location_X", Type: "REAL"},
			{Name: "Location_Y", Type: "REAL"},
			{Name: "Location_Z", Type: "REAL"},
			{Name: "Rotation_Roll", Type: "REAL"},
			{Name: "Rotation_Pitch", Type: "REAL"},
			{Name: "Rotation_Yaw", Type: "REAL"},
			{Name: "Scale_X", Type: "REAL"},
			{Name: "Scale_Y", Type: "REAL"},
			{Name: "Scale_Z", Type: "REAL"},
		},
	}

	LogTable = Table{
		Name:        "Log",
		IfNotExists: true,
		Columns: []Column{
			{Name: "Id", Type: "INTEGER", Constraint: "PRIMARY KEY"},
			{Name: "Time", Type: "TEXT", Constraint: "NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))"},
			{Name: "Level", Type: "TEXT", Constraint: "NOT NULL"},
			{Name: "Message", Type: "TEXT", Constraint: "NOT NULL"},
			{Name: "Attributes", Type: "TEXT"},
		},
	}
)
