package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/embedsql/internal/capability"
	"github.com/roach88/embedsql/internal/profile"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	handler := &recordingHandler{}

	db, outcome := openInDir(t, testInfo(), dir, WithHandler(handler))
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, 1, handler.created)

	if _, err := os.Stat(tablePath(dir)); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	appID, err := db.ApplicationID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(0x454d4244), appID)

	version, err := db.UserVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), version)

	var software string
	require.NoError(t, queryRow(ctx, db, "SELECT Value FROM Properties WHERE Key = 'software'", &software))
	assert.Equal(t, Software, software)

	var group, schema, query string
	require.NoError(t, queryRow(ctx, db,
		`SELECT "Group", "Schema", "Query" FROM StoredStatements WHERE "Key" = 'property'`,
		&group, &schema, &query))
	assert.Equal(t, "meta", group)
	assert.Equal(t, "main", schema)
	assert.Equal(t, "SELECT Value FROM Properties WHERE Key = :key", query)

	for _, table := range []string{"ActorsStore", "Log"} {
		var n int
		require.NoError(t, queryRow(ctx, db, "SELECT COUNT(*) FROM "+table, &n), table)
	}

	var mode string
	require.NoError(t, queryRow(ctx, db, "PRAGMA journal_mode", &mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_ReopenMatchingVersions(t *testing.T) {
	dir := t.TempDir()
	db, _ := openInDir(t, testInfo(), dir)
	require.NoError(t, db.Close())

	handler := &recordingHandler{}
	_, outcome := openInDir(t, testInfo(), dir, WithHandler(handler))
	assert.Equal(t, OutcomeOpened, outcome)
	assert.Zero(t, handler.created)
	assert.Empty(t, handler.updates)
}

func TestOpen_UpdatesUserVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, _ := openInDir(t, testInfo(), dir)
	require.NoError(t, db.Close())

	info := testInfo()
	info.UserVersion = 4
	handler := &recordingHandler{}
	db, outcome := openInDir(t, info, dir, WithHandler(handler))
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, [][2]int32{{4, 1}}, handler.updates)

	version, err := db.UserVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(4), version)
}

func TestOpen_ApplicationIDMismatch(t *testing.T) {
	dir := t.TempDir()
	db, _ := openInDir(t, testInfo(), dir)
	require.NoError(t, db.Close())

	info := testInfo()
	info.ApplicationID = 7
	other, err := New(info, hostFlags(t), dir)
	require.NoError(t, err)

	_, err = other.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrApplicationIDMismatch)
	assert.False(t, other.IsOpen())
}

func TestOpen_HandlerErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	handler := &recordingHandler{createErr: errors.New("boom")}
	db, err := New(testInfo(), hostFlags(t), dir, WithHandler(handler))
	require.NoError(t, err)

	_, err = db.Open(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, db.IsOpen())

	// Nothing was stamped, so the next open creates again.
	_, outcome := openInDir(t, testInfo(), dir)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestOpen_HandlerUsesDatabase(t *testing.T) {
	ctx := context.Background()
	handler := &recordingHandler{
		onCreate: func(ctx context.Context, db *Database) error {
			if _, err := db.Exec(ctx, "CREATE TABLE Scores (Player TEXT, Points INTEGER)"); err != nil {
				return err
			}
			_, err := db.Exec(ctx, "INSERT INTO Scores VALUES (?, ?)", "ada", 42)
			return err
		},
	}
	db, _ := openTestDatabase(t, testInfo(), WithHandler(handler))

	var points int
	require.NoError(t, queryRow(ctx, db, "SELECT Points FROM Scores WHERE Player = 'ada'", &points))
	assert.Equal(t, 42, points)
}

func TestOpen_CustomTablesAndAttachments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	info := testInfo()
	info.Attachments = []profile.Attachment{
		{FileName: "saves.db", Schema: "saves", UserVersion: 3},
		{FileName: ":memory:", Schema: "scratch", UserVersion: 2},
	}
	info.Tables = []profile.Table{
		{Name: "Slots", Schema: "saves", Columns: []profile.Column{{Name: "Slot", Type: "INTEGER", Constraint: "PRIMARY KEY"}}},
	}
	db, outcome := openInDir(t, info, dir)
	require.Equal(t, OutcomeCreated, outcome)

	_, err := os.Stat(filepath.Join(dir, "saves.db"))
	assert.NoError(t, err, "attachment file is created next to the database")

	saves, err := db.SchemaUserVersion(ctx, "saves")
	require.NoError(t, err)
	assert.Equal(t, int32(3), saves)
	scratch, err := db.SchemaUserVersion(ctx, "scratch")
	require.NoError(t, err)
	assert.Equal(t, int32(2), scratch)

	var n int
	require.NoError(t, queryRow(ctx, db, "SELECT COUNT(*) FROM saves.Slots", &n))

	schemas, err := db.Schemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"saves", "scratch"}, schemas)
}

func TestOpen_DeleteBeforeOpen(t *testing.T) {
	dir := t.TempDir()
	db, _ := openInDir(t, testInfo(), dir)
	require.NoError(t, db.Close())

	info := testInfo()
	info.DeleteBeforeOpen = true
	_, outcome := openInDir(t, info, dir)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestOpen_NoFollowRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	db, _ := openInDir(t, testInfo(), dir)
	require.NoError(t, db.Close())
	require.NoError(t, os.Symlink(tablePath(dir), filepath.Join(dir, "link.db")))

	info := testInfo()
	info.FileName = "link.db"
	info.NoFollow = true
	linked, err := New(info, hostFlags(t), dir)
	require.NoError(t, err)

	_, err = linked.Open(context.Background())
	assert.ErrorIs(t, err, ErrSymlink)
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	info := testInfo()
	info.FileName = ":memory:"

	db, outcome := openTestDatabase(t, info)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, ":memory:", db.Path())

	var mode string
	require.NoError(t, queryRow(ctx, db, "PRAGMA journal_mode", &mode))
	assert.Equal(t, "memory", mode)
}

func TestOpen_Twice(t *testing.T) {
	db, _ := openTestDatabase(t, testInfo())
	_, err := db.Open(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestNew_FullMutexNeedsMutexes(t *testing.T) {
	fs, err := capability.Resolve(capability.Descriptor{
		Target:       "tiny",
		Platform:     "linux",
		ThreadSafety: capability.ThreadSafetySingleThread,
	})
	require.NoError(t, err)

	info := testInfo()
	info.ThreadingMode = profile.ThreadingFullMutex
	_, err = New(info, fs, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single_thread")
}

func TestClose_FinalizesStatements(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t, testInfo())

	s, err := db.Prepare(ctx, "SELECT Key FROM Properties")
	require.NoError(t, err)
	res, err := s.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, StepRow, res)

	require.NoError(t, db.Close())
	assert.False(t, db.IsOpen())

	_, err = s.Step(ctx)
	assert.Error(t, err)
	assert.NoError(t, s.Finalize())

	_, err = db.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, db.Close(), "closing twice is a no-op")
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDatabase(t, testInfo())

	inTx, err := db.InTransaction()
	require.NoError(t, err)
	assert.False(t, inTx)

	require.NoError(t, db.Begin(ctx, "seed"))
	inTx, err = db.InTransaction()
	require.NoError(t, err)
	assert.True(t, inTx)

	_, err = db.Exec(ctx, "INSERT INTO Properties VALUES ('k', 'v')")
	require.NoError(t, err)
	require.NoError(t, db.Rollback(ctx, "seed"))

	var n int
	require.NoError(t, queryRow(ctx, db, "SELECT COUNT(*) FROM Properties WHERE Key = 'k'", &n))
	assert.Zero(t, n)

	err = db.Commit(ctx, "nothing open")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction (nothing open)")
}

func TestPaths(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*profile.DatabaseInfo)
		want  string
	}{
		{"joined", func(i *profile.DatabaseInfo) { i.FileName = "a.db" }, filepath.Join("data", "a.db")},
		{"directory override", func(i *profile.DatabaseInfo) {
			i.FileName = "a.db"
			i.Directory = "other"
		}, filepath.Join("other", "a.db")},
		{"memory", func(i *profile.DatabaseInfo) { i.FileName = ":MEMORY:" }, ":memory:"},
		{"temporary", func(i *profile.DatabaseInfo) { i.FileName = "" }, ""},
		{"named in-memory", func(i *profile.DatabaseInfo) {
			i.FileName = "shared"
			i.InMemory = true
		}, "shared"},
		{"uri", func(i *profile.DatabaseInfo) {
			i.FileName = "file:/var/a.db"
			i.URI = true
		}, "file:/var/a.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := profile.NewDatabaseInfo()
			tt.setup(info)
			db, err := New(info, hostFlags(t), "data")
			require.NoError(t, err)
			assert.Equal(t, tt.want, db.Path())
		})
	}
}

func TestBuildDSN(t *testing.T) {
	host := hostFlags(t)
	noFK, err := capability.Resolve(capability.Descriptor{Target: "t", Platform: "linux", ForeignKeys: capability.Bool(false)})
	require.NoError(t, err)

	tests := []struct {
		name  string
		flags *capability.FlagSet
		setup func(*profile.DatabaseInfo)
		path  string
		want  string
	}{
		{"defaults", host, func(*profile.DatabaseInfo) {}, "/data/a.db",
			"file:/data/a.db?_busy_timeout=5000&_fk=1&mode=rwc"},
		{"read only", host, func(i *profile.DatabaseInfo) { i.OpenMode = profile.OpenReadOnly }, "/data/a.db",
			"file:/data/a.db?_busy_timeout=5000&_fk=1&mode=ro"},
		{"read write", noFK, func(i *profile.DatabaseInfo) { i.OpenMode = profile.OpenReadWrite }, "/data/a.db",
			"file:/data/a.db?_busy_timeout=5000&_fk=0&mode=rw"},
		{"shared memory", host, func(i *profile.DatabaseInfo) {
			i.InMemory = true
			i.CacheMode = profile.CacheShared
			i.ThreadingMode = profile.ThreadingNoMutex
		}, "shared",
			"file:shared?_busy_timeout=5000&_fk=1&_mutex=no&cache=shared&mode=memory"},
		{"escaped", host, func(i *profile.DatabaseInfo) { i.CacheMode = profile.CachePrivate }, "/tmp/a?b#c%d/x.db",
			"file:/tmp/a%3fb%23c%25d/x.db?_busy_timeout=5000&_fk=1&cache=private&mode=rwc"},
		{"uri with query", host, func(i *profile.DatabaseInfo) { i.URI = true }, "file:a.db?vfs=unix",
			"file:a.db?vfs=unix&_busy_timeout=5000&_fk=1&mode=rwc"},
		{"uri without scheme", host, func(i *profile.DatabaseInfo) { i.URI = true }, "a.db",
			"file:a.db?_busy_timeout=5000&_fk=1&mode=rwc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := profile.NewDatabaseInfo()
			tt.setup(info)
			assert.Equal(t, tt.want, buildDSN(info, tt.flags, tt.path))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "created", OutcomeCreated.String())
	assert.Equal(t, "updated", OutcomeUpdated.String())
	assert.Equal(t, "opened", OutcomeOpened.String())
}

func queryRow(ctx context.Context, db *Database, query string, dest ...any) error {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return errors.New("no rows")
	}
	return rows.Scan(dest...)
}
