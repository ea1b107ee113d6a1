// Package subsystem owns the process-wide database state: the default
// directory, the linked engine's compile options and a registry of every
// database created through it.
//
// Initialize must succeed before databases are created. Shutdown closes
// whatever is still registered.
package subsystem

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/embedsql/internal/capability"
	"github.com/roach88/embedsql/internal/config"
	"github.com/roach88/embedsql/internal/database"
	"github.com/roach88/embedsql/internal/profile"
)

var (
	// ErrNotInitialized is returned when the subsystem is used before
	// Initialize succeeded or after Shutdown.
	ErrNotInitialized = errors.New("subsystem not initialized")

	// ErrUnknownDatabase is returned for a handle that is not registered.
	ErrUnknownDatabase = errors.New("unknown database handle")
)

// Subsystem is the library lifecycle and database registry.
type Subsystem struct {
	cfg     config.Config
	flags   *capability.FlagSet
	logger  *slog.Logger
	handles HandleGenerator

	mu             sync.Mutex
	initialized    bool
	dir            string
	compileOptions []string
	databases      map[uuid.UUID]*database.Database
}

// New returns an uninitialized subsystem. A nil logger discards output.
func New(cfg config.Config, flags *capability.FlagSet, logger *slog.Logger, opts ...Option) *Subsystem {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Subsystem{
		cfg:       cfg,
		flags:     flags,
		logger:    logger,
		handles:   UUIDv7Generator{},
		databases: make(map[uuid.UUID]*database.Database),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize prepares the default directory and inspects the linked engine.
// Calling it again after success is a no-op.
func (s *Subsystem) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	dir, err := s.defaultDir()
	if err != nil {
		return fmt.Errorf("failed to resolve database directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	opts, err := ReadCompileOptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read compile options: %w", err)
	}

	s.dir = dir
	s.compileOptions = opts
	s.initialized = true

	s.logger.Info("subsystem initialized",
		"engine", LibVersion(),
		"source_id", LibSourceID(),
		"directory", dir,
	)
	if s.flags != nil {
		if missing := s.flags.Missing(opts); len(missing) > 0 {
			s.logger.Warn("engine lacks requested switches",
				"target", s.flags.Target(),
				"missing", missing,
			)
		}
	}
	return nil
}

func (s *Subsystem) defaultDir() (string, error) {
	if s.cfg.DatabaseDir != "" {
		return s.cfg.DatabaseDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, s.cfg.Project), nil
}

// ReadCompileOptions returns the linked engine's PRAGMA compile_options.
func ReadCompileOptions(ctx context.Context) ([]string, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "PRAGMA compile_options")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []string
	for rows.Next() {
		var opt string
		if err := rows.Scan(&opt); err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, rows.Err()
}

// Directory returns the default database directory.
func (s *Subsystem) Directory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Flags returns the flag set databases are created with.
func (s *Subsystem) Flags() *capability.FlagSet { return s.flags }

// CompileOptions returns the engine's PRAGMA compile_options as read by
// Initialize.
func (s *Subsystem) CompileOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.compileOptions...)
}

// MissingOptions returns the requested switches the engine was not built with.
func (s *Subsystem) MissingOptions() []string {
	if s.flags == nil {
		return nil
	}
	return s.flags.Missing(s.CompileOptions())
}

// CreateDatabase builds a database for info in the default directory and
// registers it. The database is returned unopened.
func (s *Subsystem) CreateDatabase(info *profile.DatabaseInfo, handler database.Handler) (*database.Database, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, uuid.Nil, ErrNotInitialized
	}

	opts := []database.Option{database.WithLogger(s.logger.With("database", info.Name))}
	if handler != nil {
		opts = append(opts, database.WithHandler(handler))
	}
	db, err := database.New(info, s.flags, s.dir, opts...)
	if err != nil {
		return nil, uuid.Nil, err
	}

	id, err := s.handles.Generate()
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to allocate handle: %w", err)
	}
	s.databases[id] = db

	s.logger.Debug("database registered",
		"id", id,
		"name", info.Name,
		"path", db.Path(),
	)
	return db, id, nil
}

// Lookup returns the database registered under id.
func (s *Subsystem) Lookup(id uuid.UUID) (*database.Database, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.databases[id]
	return db, ok
}

// Databases returns every registered handle in handle order, which for
// UUIDv7 handles is creation order.
func (s *Subsystem) Databases() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.databases))
	for id := range s.databases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// Release closes the database registered under id and forgets it.
func (s *Subsystem) Release(id uuid.UUID) error {
	s.mu.Lock()
	db, ok := s.databases[id]
	delete(s.databases, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDatabase, id)
	}
	return db.Close()
}

// Shutdown closes every registered database in handle order. The
// subsystem must be initialized again before further use.
func (s *Subsystem) Shutdown(ctx context.Context) error {
	ids := s.Databases()

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Release(id); err != nil {
			s.logger.Error("failed to close database", "id", id, "error", err)
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()

	s.logger.Info("subsystem shut down", "databases", len(ids))
	return errors.Join(errs...)
}

// LibVersion returns the linked engine's version string.
func LibVersion() string {
	v, _, _ := sqlite3.Version()
	return v
}

// LibVersionNumber returns the linked engine's version as an integer,
// e.g. 3050004.
func LibVersionNumber() int {
	_, n, _ := sqlite3.Version()
	return n
}

// LibSourceID returns the linked engine's source identifier.
func LibSourceID() string {
	_, _, id := sqlite3.Version()
	return id
}
