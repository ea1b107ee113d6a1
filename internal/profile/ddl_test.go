package profile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGenerateCreateTable_Golden(t *testing.T) {
	info, err := LoadDatabaseInfo(filepath.Join(assetsDir(), "game.yaml"))
	require.NoError(t, err)

	g := newGolden(t)
	g.Assert(t, "inventory_ddl", []byte(GenerateCreateTable(info.Tables[0])+"\n"))
	g.Assert(t, "log_ddl", []byte(GenerateCreateTable(LogTable)+"\n"))
}

func TestGenerateCreateTable_Options(t *testing.T) {
	base := Table{Name: "T", Columns: []Column{{Name: "A"}}}

	tests := []struct {
		name  string
		setup func(*Table)
		want  string
	}{
		{"bare", func(*Table) {}, "CREATE TABLE \"T\"\n(\n\t\"A\"\n)"},
		{"temporary", func(t *Table) { t.Temporary = true }, "CREATE TEMPORARY TABLE \"T\"\n(\n\t\"A\"\n)"},
		{"schema", func(t *Table) { t.Schema = "saves" }, "CREATE TABLE \"saves\".\"T\"\n(\n\t\"A\"\n)"},
		{"without rowid", func(t *Table) { t.WithoutRowID = true }, "CREATE TABLE \"T\"\n(\n\t\"A\"\n) WITHOUT ROWID"},
		{"strict", func(t *Table) { t.Strict = true }, "CREATE TABLE \"T\"\n(\n\t\"A\"\n) STRICT"},
		{"both", func(t *Table) {
			t.WithoutRowID = true
			t.Strict = true
		}, "CREATE TABLE \"T\"\n(\n\t\"A\"\n) WITHOUT ROWID, STRICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := base
			tt.setup(&table)
			assert.Equal(t, tt.want, GenerateCreateTable(table))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Group"`, QuoteIdent("Group"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}

func TestDryRun_Game(t *testing.T) {
	info, err := LoadDatabaseInfo(filepath.Join(assetsDir(), "game.yaml"))
	require.NoError(t, err)

	assert.Empty(t, DryRun(context.Background(), info))
}

func TestDryRun_BadDDL(t *testing.T) {
	info := NewDatabaseInfo()
	info.FileName = "a.db"
	info.Tables = []Table{
		{Name: "Good", Columns: []Column{{Name: "Id", Type: "INTEGER", Constraint: "PRIMARY KEY"}}},
		{Name: "Bad", Columns: []Column{{Name: "Id", Type: "INTEGER", Constraint: "PRIMARY KEY PRIMARY KEY"}}},
		{Name: "Lost", Schema: "nowhere", Columns: []Column{{Name: "Id"}}},
	}

	errs := DryRun(context.Background(), info)
	require.Len(t, errs, 2)
	assert.Equal(t, "tables[1]", errs[0].Field)
	assert.Equal(t, ErrDryRun, errs[0].Code)
	assert.Contains(t, errs[0].Message, "table Bad:")
	assert.Contains(t, errs[0].Message, "SQLITE_ERROR")
	assert.Equal(t, "tables[2]", errs[1].Field)
	assert.Contains(t, errs[1].Message, "unknown database")
}
