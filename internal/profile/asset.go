package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemoryName is the special file name of a private in-memory database.
const MemoryName = ":memory:"

// OpenMode selects how the main database file is opened.
type OpenMode string

const (
	OpenReadOnly        OpenMode = "read_only"
	OpenReadWrite       OpenMode = "read_write"
	OpenReadWriteCreate OpenMode = "read_write_create"
)

// ThreadingMode selects the per-connection mutex mode.
// Empty leaves the engine default.
type ThreadingMode string

const (
	ThreadingDefault   ThreadingMode = ""
	ThreadingNoMutex   ThreadingMode = "no_mutex"
	ThreadingFullMutex ThreadingMode = "full_mutex"
)

// CacheMode selects shared or private page cache.
// Empty leaves the engine default.
type CacheMode string

const (
	CacheDefault CacheMode = ""
	CacheShared  CacheMode = "shared"
	CachePrivate CacheMode = "private"
)

// Attachment is a database attached to the main connection under its own schema.
type Attachment struct {
	FileName string `yaml:"file"`
	Schema   string `yaml:"schema"`

	// UserVersion is written to the attachment on create and update.
	// Zero means the default of 1.
	UserVersion int32 `yaml:"user_version,omitempty"`
}

// StoredStatement is a named query kept with the asset and, when the
// StoredStatements table is enabled, seeded into it on create.
type StoredStatement struct {
	Key    string `yaml:"key"`
	Group  string `yaml:"group,omitempty"`
	Schema string `yaml:"schema,omitempty"`
	Query  string `yaml:"query"`
}

// DefaultTables switches the built-in tables created with a new database.
type DefaultTables struct {
	StoredStatements bool `yaml:"stored_statements"`
	Properties       bool `yaml:"properties"`
	ActorsStore      bool `yaml:"actors_store"`
	Log              bool `yaml:"log"`
}

// DatabaseInfo describes one database: where it lives, how it is opened,
// how it is versioned and what it contains when first created.
type DatabaseInfo struct {
	// Name identifies the asset in logs. Defaults to the file base name.
	Name string `yaml:"name,omitempty"`

	// FileName is the database file name.
	//   - empty opens a private temporary on-disk database
	//   - ":memory:" opens a private in-memory database
	//   - with URI set, it is an RFC 3986 URI
	FileName string   `yaml:"file"`
	OpenMode OpenMode `yaml:"open_mode"`

	Attachments      []Attachment      `yaml:"attachments,omitempty"`
	StoredStatements []StoredStatement `yaml:"stored_statements,omitempty"`

	Schema        string        `yaml:"schema"`
	DefaultTables DefaultTables `yaml:"default_tables"`

	// Directory overrides the subsystem's default database directory.
	Directory           string        `yaml:"directory,omitempty"`
	URI                 bool          `yaml:"uri"`
	InMemory            bool          `yaml:"in_memory"`
	ThreadingMode       ThreadingMode `yaml:"threading_mode,omitempty"`
	CacheMode           CacheMode     `yaml:"cache_mode,omitempty"`
	ExtendedResultCodes bool          `yaml:"extended_result_codes"`
	NoFollow            bool          `yaml:"no_follow"`

	// ApplicationID is stamped on create; a stored value that differs fails the open.
	ApplicationID int32 `yaml:"application_id"`

	// UserVersion is stamped on create; a stored value that differs triggers an update.
	UserVersion int32 `yaml:"user_version"`

	DeleteBeforeOpen bool `yaml:"delete_before_open"`

	Tables []Table `yaml:"tables,omitempty"`
}

// NewDatabaseInfo returns a DatabaseInfo with defaults applied.
func NewDatabaseInfo() *DatabaseInfo {
	return &DatabaseInfo{
		OpenMode:      OpenReadWriteCreate,
		Schema:        "main",
		ApplicationID: 1,
		UserVersion:   1,
	}
}

// LoadDatabaseInfo reads and parses a database asset YAML file.
// Returns an error if the file doesn't exist, is malformed, or
// contains unknown fields (typos).
func LoadDatabaseInfo(path string) (*DatabaseInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database asset: %w", err)
	}
	info, err := ParseDatabaseInfo(data)
	if err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return info, nil
}

// ParseDatabaseInfo decodes a database asset. Defaults are applied before
// decoding, so fields absent from the document keep their default value.
func ParseDatabaseInfo(data []byte) (*DatabaseInfo, error) {
	info := NewDatabaseInfo()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(info); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i := range info.Attachments {
		if info.Attachments[i].UserVersion == 0 {
			info.Attachments[i].UserVersion = 1
		}
	}
	if info.Name == "" {
		info.Name = info.FileName
	}
	return info, nil
}

// IsMemoryName reports whether name is the special in-memory file name.
func IsMemoryName(name string) bool {
	return strings.EqualFold(name, MemoryName)
}

// UsesDirectory reports whether FileName is joined to a directory. Special
// in-memory names and URIs are passed to the engine verbatim.
func (info *DatabaseInfo) UsesDirectory() bool {
	if IsMemoryName(info.FileName) {
		return false
	}
	return !info.InMemory && !info.URI
}

// EnabledDefaultTables returns the definitions of the enabled built-in tables.
func (info *DatabaseInfo) EnabledDefaultTables() []Table {
	var tables []Table
	if info.DefaultTables.StoredStatements {
		tables = append(tables, StoredStatementsTable)
	}
	if info.DefaultTables.Properties {
		tables = append(tables, PropertiesTable)
	}
	if info.DefaultTables.ActorsStore {
		tables = append(tables, ActorsStoreTable)
	}
	if info.DefaultTables.Log {
		tables = append(tables, LogTable)
	}
	return tables
}

// StoredStatement returns the stored statement with the given key.
func (info *DatabaseInfo) StoredStatement(key string) (StoredStatement, bool) {
	for _, st := range info.StoredStatements {
		if st.Key == key {
			return st, true
		}
	}
	return StoredStatement{}, false
}
