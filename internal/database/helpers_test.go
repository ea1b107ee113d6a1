package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/embedsql/internal/capability"
	"github.com/roach88/embedsql/internal/profile"
)

// hostFlags resolves the flag set used by most tests.
func hostFlags(t *testing.T) *capability.FlagSet {
	t.Helper()
	fs, err := capability.Resolve(capability.HostDescriptor("linux"))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	return fs
}

// shimFlags resolves a flag set for a target built with the custom OS shim.
func shimFlags(t *testing.T) *capability.FlagSet {
	t.Helper()
	fs, err := capability.Resolve(capability.Descriptor{
		Target:       "console",
		Platform:     "linux",
		CustomOSShim: true,
	})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	return fs
}

// testInfo returns an asset for a file database with every default table.
func testInfo() *profile.DatabaseInfo {
	info := profile.NewDatabaseInfo()
	info.Name = "test"
	info.FileName = "test.db"
	info.ApplicationID = 0x454d4244
	info.UserVersion = 1
	info.DefaultTables = profile.DefaultTables{
		StoredStatements: true,
		Properties:       true,
		ActorsStore:      true,
		Log:              true,
	}
	info.StoredStatements = []profile.StoredStatement{
		{Key: "property", Group: "meta", Query: "SELECT Value FROM Properties WHERE Key = :key"},
	}
	return info
}

// openTestDatabase opens info in a temporary directory.
func openTestDatabase(t *testing.T, info *profile.DatabaseInfo, opts ...Option) (*Database, Outcome) {
	t.Helper()
	return openInDir(t, info, t.TempDir(), opts...)
}

func openInDir(t *testing.T, info *profile.DatabaseInfo, dir string, opts ...Option) (*Database, Outcome) {
	t.Helper()
	db, err := New(info, hostFlags(t), dir, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	outcome, err := db.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, outcome
}

// recordingHandler records the callbacks it receives.
type recordingHandler struct {
	created   int
	updates   [][2]int32
	createErr error
	updateErr error
	onCreate  func(ctx context.Context, db *Database) error
}

func (h *recordingHandler) OnCreate(ctx context.Context, db *Database) error {
	h.created++
	if h.onCreate != nil {
		if err := h.onCreate(ctx, db); err != nil {
			return err
		}
	}
	return h.createErr
}

func (h *recordingHandler) OnUpdate(_ context.Context, _ *Database, newVersion, oldVersion int32) error {
	h.updates = append(h.updates, [2]int32{newVersion, oldVersion})
	return h.updateErr
}

func tablePath(dir string) string {
	return filepath.Join(dir, "test.db")
}
