package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/embedsql/internal/capability"
	"github.com/roach88/embedsql/internal/profile"
)

// DefaultBusyTimeout is the busy timeout in milliseconds passed to the driver.
const DefaultBusyTimeout = 5000

// Software is the value seeded under the "software" key of the Properties table.
const Software = "embedsql"

// Outcome reports what Open did to the database.
type Outcome int

const (
	// OutcomeOpened means the stored versions matched the asset.
	OutcomeOpened Outcome = iota
	// OutcomeCreated means the database was new and has been initialized.
	OutcomeCreated
	// OutcomeUpdated means the stored user version differed and has been updated.
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "opened"
	}
}

// Handler receives the create and update callbacks of Open. Both run inside
// the open transaction; returning an error rolls it back.
type Handler interface {
	OnCreate(ctx context.Context, db *Database) error
	OnUpdate(ctx context.Context, db *Database, newVersion, oldVersion int32) error
}

// NopHandler accepts every create and update.
type NopHandler struct{}

func (NopHandler) OnCreate(context.Context, *Database) error { return nil }

func (NopHandler) OnUpdate(context.Context, *Database, int32, int32) error { return nil }

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) {
		d.logger = logger
	}
}

// WithHandler sets the create/update handler.
func WithHandler(h Handler) Option {
	return func(d *Database) {
		d.handler = h
	}
}

type attachment struct {
	schema      string
	path        string
	userVersion int32
}

// Database is one embedded database and its pinned connection.
//
// Statements and the connection are not safe for concurrent use; the mutex
// only guards lifecycle state.
type Database struct {
	info    *profile.DatabaseInfo
	flags   *capability.FlagSet
	logger  *slog.Logger
	handler Handler

	dir         string
	path        string
	dsn         string
	attachments []attachment

	mu         sync.Mutex
	db         *sql.DB
	conn       *sql.Conn
	statements map[*Statement]struct{}
	lastErr    *Error

	hooks hookSet
}

// New prepares a Database for info without opening it. dir is the default
// database directory; info.Directory overrides it.
func New(info *profile.DatabaseInfo, flags *capability.FlagSet, dir string, opts ...Option) (*Database, error) {
	if info == nil {
		return nil, errors.New("database info is required")
	}
	if flags == nil {
		return nil, errors.New("flag set is required")
	}
	if info.ThreadingMode == profile.ThreadingFullMutex && flags.ThreadSafety() == capability.ThreadSafetySingleThread {
		return nil, fmt.Errorf("database %s: full_mutex threading needs an engine built with mutexes, target %s is single_thread",
			info.Name, flags.Target())
	}

	d := &Database{
		info:       info,
		flags:      flags,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler:    NopHandler{},
		statements: make(map[*Statement]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.dir = dir
	if info.Directory != "" {
		d.dir = info.Directory
	}
	d.path = resolvePath(info, d.dir)
	d.dsn = buildDSN(info, flags, d.path)
	for _, a := range info.Attachments {
		d.attachments = append(d.attachments, attachment{
			schema:      a.Schema,
			path:        attachmentPath(a.FileName, d.dir),
			userVersion: a.UserVersion,
		})
	}
	return d, nil
}

// resolvePath returns the name handed to the engine. Plain file names are
// joined to dir; in-memory names and URIs are used verbatim.
func resolvePath(info *profile.DatabaseInfo, dir string) string {
	if profile.IsMemoryName(info.FileName) {
		return profile.MemoryName
	}
	if !info.UsesDirectory() || info.FileName == "" {
		return info.FileName
	}
	return filepath.Join(dir, info.FileName)
}

func attachmentPath(name, dir string) string {
	if profile.IsMemoryName(name) {
		return profile.MemoryName
	}
	return filepath.Join(dir, name)
}

// buildDSN renders the driver data source name. The driver only honors
// query parameters on "file:" names, so every name is turned into one.
func buildDSN(info *profile.DatabaseInfo, flags *capability.FlagSet, path string) string {
	params := url.Values{}
	switch {
	case info.InMemory:
		params.Set("mode", "memory")
	case info.OpenMode == profile.OpenReadOnly:
		params.Set("mode", "ro")
	case info.OpenMode == profile.OpenReadWrite:
		params.Set("mode", "rw")
	default:
		params.Set("mode", "rwc")
	}
	switch info.CacheMode {
	case profile.CacheShared:
		params.Set("cache", "shared")
	case profile.CachePrivate:
		params.Set("cache", "private")
	}
	switch info.ThreadingMode {
	case profile.ThreadingNoMutex:
		params.Set("_mutex", "no")
	case profile.ThreadingFullMutex:
		params.Set("_mutex", "full")
	}
	if flags.ForeignKeys() {
		params.Set("_fk", "1")
	} else {
		params.Set("_fk", "0")
	}
	params.Set("_busy_timeout", fmt.Sprint(DefaultBusyTimeout))

	if info.URI && !profile.IsMemoryName(path) {
		base := path
		if !strings.HasPrefix(base, "file:") {
			base = "file:" + base
		}
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		return base + sep + params.Encode()
	}
	return "file:" + escapePath(path) + "?" + params.Encode()
}

// escapePath escapes the characters that end the path part of a URI.
func escapePath(path string) string {
	return strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(filepath.ToSlash(path))
}

// Info returns the asset the database was created from.
func (d *Database) Info() *profile.DatabaseInfo { return d.info }

// Flags returns the resolved flag set the database runs under.
func (d *Database) Flags() *capability.FlagSet { return d.flags }

// Path returns the name handed to the engine.
func (d *Database) Path() string { return d.path }

// IsOpen reports whether the database is open.
func (d *Database) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Open opens the database, attaches the asset's attachments and brings the
// stored versions in line with the asset.
func (d *Database) Open(ctx context.Context) (Outcome, error) {
	d.mu.Lock()
	if d.conn != nil {
		d.mu.Unlock()
		return OutcomeOpened, ErrAlreadyOpen
	}
	d.mu.Unlock()

	if err := d.prepareFile(); err != nil {
		return OutcomeOpened, err
	}

	db, err := sql.Open("sqlite3", d.dsn)
	if err != nil {
		return OutcomeOpened, fmt.Errorf("failed to open database: %w", err)
	}
	// Hooks and attachments belong to one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return OutcomeOpened, fmt.Errorf("failed to connect to database %s: %w", d.info.Name, d.record(err))
	}

	d.mu.Lock()
	d.db, d.conn = db, conn
	d.mu.Unlock()

	outcome, err := d.initialize(ctx)
	if err != nil {
		d.Close()
		return OutcomeOpened, err
	}

	d.logger.Info("database open",
		"name", d.info.Name,
		"path", d.path,
		"outcome", outcome.String(),
		"user_version", d.info.UserVersion,
	)
	return outcome, nil
}

// prepareFile applies delete-before-open and no-follow, and creates the
// directory of a new file.
func (d *Database) prepareFile() error {
	if !d.info.UsesDirectory() || d.info.FileName == "" {
		return nil
	}
	if d.info.DeleteBeforeOpen {
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			if err := os.Remove(d.path + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete %s: %w", d.path+suffix, err)
			}
		}
		d.logger.Debug("database file deleted", "path", d.path)
	}
	if d.info.NoFollow {
		if fi, err := os.Lstat(d.path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrSymlink, d.path)
		}
	}
	if d.info.OpenMode == profile.OpenReadWriteCreate {
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

func (d *Database) initialize(ctx context.Context) (Outcome, error) {
	if err := d.registerHooks(); err != nil {
		return OutcomeOpened, fmt.Errorf("failed to register hooks: %w", err)
	}
	if err := d.applyPragmas(ctx); err != nil {
		return OutcomeOpened, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	for _, a := range d.attachments {
		if err := d.attach(ctx, a.path, a.schema); err != nil {
			return OutcomeOpened, err
		}
	}
	return d.reconcile(ctx)
}

// applyPragmas sets connection configuration. WAL needs shared memory and a
// writable on-disk file.
func (d *Database) applyPragmas(ctx context.Context) error {
	var pragmas []string
	if d.walEligible() {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")

	for _, pragma := range pragmas {
		if _, err := d.Exec(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (d *Database) walEligible() bool {
	if !d.flags.SharedMemory() {
		return false
	}
	if d.info.InMemory || profile.IsMemoryName(d.info.FileName) || d.info.FileName == "" {
		return false
	}
	return d.info.OpenMode != profile.OpenReadOnly
}

// reconcile compares the stored versions with the asset.
func (d *Database) reconcile(ctx context.Context) (Outcome, error) {
	appID, err := d.ApplicationID(ctx)
	if err != nil {
		return OutcomeOpened, err
	}
	version, err := d.UserVersion(ctx)
	if err != nil {
		return OutcomeOpened, err
	}

	switch {
	case appID == 0:
		return OutcomeCreated, d.inTransaction(ctx, "create "+d.info.Name, d.create)
	case appID != d.info.ApplicationID:
		return OutcomeOpened, fmt.Errorf("%w: %s stores %d, asset %s expects %d",
			ErrApplicationIDMismatch, d.path, appID, d.info.Name, d.info.ApplicationID)
	case version != d.info.UserVersion:
		d.logger.Info("updating database",
			"name", d.info.Name,
			"from", version,
			"to", d.info.UserVersion,
		)
		return OutcomeUpdated, d.inTransaction(ctx, "update "+d.info.Name, func(ctx context.Context) error {
			return d.update(ctx, version)
		})
	default:
		return OutcomeOpened, nil
	}
}

func (d *Database) inTransaction(ctx context.Context, hint string, fn func(context.Context) error) error {
	if err := d.Begin(ctx, hint); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := d.Rollback(ctx, hint); rbErr != nil {
			d.logger.Error("rollback failed", "hint", hint, "error", rbErr)
		}
		return err
	}
	return d.Commit(ctx, hint)
}

func (d *Database) create(ctx context.Context) error {
	for _, t := range d.info.EnabledDefaultTables() {
		if err := d.createTable(ctx, t); err != nil {
			return err
		}
	}
	if d.info.DefaultTables.Properties {
		if err := d.seedProperties(ctx); err != nil {
			return err
		}
	}
	if d.info.DefaultTables.StoredStatements {
		if err := d.seedStoredStatements(ctx); err != nil {
			return err
		}
	}
	for _, t := range d.info.Tables {
		if err := d.createTable(ctx, t); err != nil {
			return err
		}
	}

	if err := d.handler.OnCreate(ctx, d); err != nil {
		return fmt.Errorf("create handler for %s: %w", d.info.Name, err)
	}

	if err := d.setApplicationID(ctx, d.info.Schema, d.info.ApplicationID); err != nil {
		return err
	}
	if err := d.setUserVersion(ctx, d.info.Schema, d.info.UserVersion); err != nil {
		return err
	}
	for _, a := range d.attachments {
		if err := d.setApplicationID(ctx, a.schema, d.info.ApplicationID); err != nil {
			return err
		}
		if err := d.setUserVersion(ctx, a.schema, a.userVersion); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) update(ctx context.Context, oldVersion int32) error {
	if err := d.handler.OnUpdate(ctx, d, d.info.UserVersion, oldVersion); err != nil {
		return fmt.Errorf("update handler for %s: %w", d.info.Name, err)
	}
	if err := d.setUserVersion(ctx, d.info.Schema, d.info.UserVersion); err != nil {
		return err
	}
	for _, a := range d.attachments {
		if err := d.setUserVersion(ctx, a.schema, a.userVersion); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) createTable(ctx context.Context, t profile.Table) error {
	if _, err := d.Exec(ctx, profile.GenerateCreateTable(t)); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	return nil
}

func (d *Database) seedProperties(ctx context.Context) error {
	seeds := []string{
		"INSERT INTO Properties VALUES ('software', ?)",
		"INSERT INTO Properties VALUES ('creation.date', DATE('now'))",
		"INSERT INTO Properties VALUES ('creation.time', TIME('now'))",
	}
	if _, err := d.Exec(ctx, seeds[0], Software); err != nil {
		return fmt.Errorf("seed properties: %w", err)
	}
	for _, s := range seeds[1:] {
		if _, err := d.Exec(ctx, s); err != nil {
			return fmt.Errorf("seed properties: %w", err)
		}
	}
	return nil
}

func (d *Database) seedStoredStatements(ctx context.Context) error {
	for _, st := range d.info.StoredStatements {
		schema := st.Schema
		if schema == "" {
			schema = d.info.Schema
		}
		_, err := d.Exec(ctx,
			`INSERT INTO StoredStatements ("Key", "Group", "Schema", "Query") VALUES (?, ?, ?, ?)`,
			st.Key, st.Group, schema, st.Query)
		if err != nil {
			return fmt.Errorf("seed stored statement %s: %w", st.Key, err)
		}
	}
	return nil
}

// ApplicationID returns the application id stored in the main schema.
func (d *Database) ApplicationID(ctx context.Context) (int32, error) {
	return d.pragmaInt(ctx, d.info.Schema, "application_id")
}

// UserVersion returns the user version stored in the main schema.
func (d *Database) UserVersion(ctx context.Context) (int32, error) {
	return d.pragmaInt(ctx, d.info.Schema, "user_version")
}

// SchemaUserVersion returns the user version stored in schema.
func (d *Database) SchemaUserVersion(ctx context.Context, schema string) (int32, error) {
	return d.pragmaInt(ctx, schema, "user_version")
}

func (d *Database) pragmaInt(ctx context.Context, schema, name string) (int32, error) {
	conn, err := d.connection()
	if err != nil {
		return 0, err
	}
	var v int32
	query := fmt.Sprintf("PRAGMA %s.%s", profile.QuoteIdent(schema), name)
	if err := conn.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, fmt.Errorf("read %s: %w", name, d.record(err))
	}
	return v, nil
}

func (d *Database) setApplicationID(ctx context.Context, schema string, id int32) error {
	query := fmt.Sprintf("PRAGMA %s.application_id = %d", profile.QuoteIdent(schema), id)
	if _, err := d.Exec(ctx, query); err != nil {
		return fmt.Errorf("set application_id on %s: %w", schema, err)
	}
	return nil
}

func (d *Database) setUserVersion(ctx context.Context, schema string, version int32) error {
	query := fmt.Sprintf("PRAGMA %s.user_version = %d", profile.QuoteIdent(schema), version)
	if _, err := d.Exec(ctx, query); err != nil {
		return fmt.Errorf("set user_version on %s: %w", schema, err)
	}
	return nil
}

// Exec executes a statement that returns no rows.
func (d *Database) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, d.record(err)
	}
	return res, nil
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (d *Database) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, d.record(err)
	}
	return rows, nil
}

// LastError returns the last engine error raised on this database, or nil.
func (d *Database) LastError() *Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// record remembers engine errors for LastError and returns them as *Error.
// Other errors pass through unchanged.
func (d *Database) record(err error) error {
	e := asError(err, d.info.ExtendedResultCodes)
	if e == nil {
		return err
	}
	d.mu.Lock()
	d.lastErr = e
	d.mu.Unlock()
	return e
}

func (d *Database) connection() (*sql.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil, ErrNotOpen
	}
	return d.conn, nil
}

// raw runs fn with the driver connection.
func (d *Database) raw(fn func(*sqlite3.SQLiteConn) error) error {
	conn, err := d.connection()
	if err != nil {
		return err
	}
	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return fn(c)
	})
}

// Close finalizes any statement still prepared and closes the connection.
// Closing a closed database is a no-op.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}

	for s := range d.statements {
		d.logger.Warn("finalizing statement left open",
			"database", d.info.Name,
			"sql", s.query,
		)
		s.release()
	}
	clear(d.statements)

	connErr := d.conn.Close()
	dbErr := d.db.Close()
	d.conn, d.db = nil, nil

	d.logger.Debug("database closed", "name", d.info.Name)
	if connErr != nil {
		return fmt.Errorf("failed to close connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}
