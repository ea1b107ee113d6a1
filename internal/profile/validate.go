package profile

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// reservedSchemas cannot be used as attachment schema names.
var reservedSchemas = []string{"main", "temp"}

// Validate checks a database asset against its static rules.
// Returns all errors found (does not fail-fast).
func Validate(info *DatabaseInfo) []ValidationError {
	var errs []ValidationError

	// Zero is what a fresh database stores, and marks it for creation.
	if info.ApplicationID == 0 {
		errs = append(errs, ValidationError{
			Field:   "application_id",
			Message: "application_id must be non-zero",
			Code:    ErrApplicationID,
		})
	}

	errs = append(errs, validateModes(info)...)
	errs = append(errs, validateFileName(info)...)
	errs = append(errs, validateAttachments(info)...)
	errs = append(errs, validateStoredStatements(info)...)
	errs = append(errs, validateTables(info)...)

	return errs
}

func validateModes(info *DatabaseInfo) []ValidationError {
	var errs []ValidationError
	switch info.OpenMode {
	case OpenReadOnly, OpenReadWrite, OpenReadWriteCreate:
	default:
		errs = append(errs, ValidationError{
			Field:   "open_mode",
			Message: fmt.Sprintf("unknown open mode %q (want read_only, read_write or read_write_create)", info.OpenMode),
			Code:    ErrInvalidEnum,
		})
	}
	switch info.ThreadingMode {
	case ThreadingDefault, ThreadingNoMutex, ThreadingFullMutex:
	default:
		errs = append(errs, ValidationError{
			Field:   "threading_mode",
			Message: fmt.Sprintf("unknown threading mode %q (want no_mutex or full_mutex)", info.ThreadingMode),
			Code:    ErrInvalidEnum,
		})
	}
	switch info.CacheMode {
	case CacheDefault, CacheShared, CachePrivate:
	default:
		errs = append(errs, ValidationError{
			Field:   "cache_mode",
			Message: fmt.Sprintf("unknown cache mode %q (want shared or private)", info.CacheMode),
			Code:    ErrInvalidEnum,
		})
	}
	// The engine always names the main database "main"; versioning pragmas
	// are addressed to it.
	if !strings.EqualFold(info.Schema, "main") {
		errs = append(errs, ValidationError{
			Field:   "schema",
			Message: fmt.Sprintf("schema %q is not the main database schema \"main\"", info.Schema),
			Code:    ErrAttachmentSchema,
		})
	}
	return errs
}

func validateFileName(info *DatabaseInfo) []ValidationError {
	name := info.FileName
	switch {
	case name == "":
		// A shared in-memory cache is found by name; an unnamed one cannot be shared.
		if info.InMemory && info.CacheMode == CacheShared {
			return []ValidationError{{
				Field:   "file",
				Message: "in-memory database with shared cache must have a name",
				Code:    ErrDatabaseName,
			}}
		}
	case strings.HasPrefix(name, ":"):
		if !IsMemoryName(name) {
			return []ValidationError{{
				Field:   "file",
				Message: `file name starts with a colon; prefix it with "./"`,
				Code:    ErrDatabaseName,
			}}
		}
	default:
		if !info.URI && strings.ContainsAny(name, `/\:`) {
			return []ValidationError{{
				Field:   "file",
				Message: "file name contains a path separator but is not opened as a URI",
				Code:    ErrDatabaseName,
			}}
		}
	}
	return nil
}

func validateAttachments(info *DatabaseInfo) []ValidationError {
	var errs []ValidationError
	files := make(map[string]bool)
	schemas := make(map[string]bool)
	for _, s := range reservedSchemas {
		schemas[foldName(s)] = true
	}
	schemas[foldName(info.Schema)] = true

	for i, a := range info.Attachments {
		field := fmt.Sprintf("attachments[%d]", i)

		switch {
		case a.FileName == "":
			errs = append(errs, ValidationError{
				Field:   field + ".file",
				Message: `attachment file name cannot be empty; use ":memory:" or a valid name`,
				Code:    ErrAttachmentFile,
			})
		case IsMemoryName(a.FileName):
		case files[norm.NFC.String(a.FileName)]:
			errs = append(errs, ValidationError{
				Field:   field + ".file",
				Message: fmt.Sprintf("database %q is already used", a.FileName),
				Code:    ErrAttachmentDup,
			})
		default:
			files[norm.NFC.String(a.FileName)] = true
		}

		key := foldName(a.Schema)
		switch {
		case strings.TrimSpace(a.Schema) == "":
			errs = append(errs, ValidationError{
				Field:   field + ".schema",
				Message: "schema name cannot be empty",
				Code:    ErrAttachmentSchema,
			})
		case schemas[key]:
			errs = append(errs, ValidationError{
				Field:   field + ".schema",
				Message: fmt.Sprintf("schema %q is already used", a.Schema),
				Code:    ErrAttachmentSchema,
			})
		default:
			schemas[key] = true
		}
	}
	return errs
}

func validateStoredStatements(info *DatabaseInfo) []ValidationError {
	var errs []ValidationError
	keys := make(map[string]bool)
	for i, st := range info.StoredStatements {
		field := fmt.Sprintf("stored_statements[%d]", i)
		if strings.TrimSpace(st.Key) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".key",
				Message: "stored statement key cannot be empty",
				Code:    ErrStoredStatement,
			})
		} else if keys[st.Key] {
			errs = append(errs, ValidationError{
				Field:   field + ".key",
				Message: fmt.Sprintf("stored statement %q is defined twice", st.Key),
				Code:    ErrStoredStatement,
			})
		} else {
			keys[st.Key] = true
		}
		if strings.TrimSpace(st.Query) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".query",
				Message: "stored statement query cannot be empty",
				Code:    ErrStoredStatement,
			})
		}
	}
	return errs
}

func validateTables(info *DatabaseInfo) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)
	for _, t := range info.EnabledDefaultTables() {
		names[tableKey(info, t)] = true
	}

	for i, t := range info.Tables {
		field := fmt.Sprintf("tables[%d]", i)
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "table name cannot be empty",
				Code:    ErrTableDefinition,
			})
		} else if key := tableKey(info, t); names[key] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("table %q is defined twice", t.Name),
				Code:    ErrTableDefinition,
			})
		} else {
			names[key] = true
		}
		if len(t.Columns) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".columns",
				Message: fmt.Sprintf("table %q has no columns", t.Name),
				Code:    ErrTableDefinition,
			})
		}
		for j, c := range t.Columns {
			if strings.TrimSpace(c.Name) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.columns[%d].name", field, j),
					Message: "column name cannot be empty",
					Code:    ErrTableDefinition,
				})
			}
		}
	}
	return errs
}

// tableKey identifies a table by the schema it lands in and its name.
func tableKey(info *DatabaseInfo, t Table) string {
	schema := t.Schema
	switch {
	case schema != "":
	case t.Temporary:
		schema = "temp"
	default:
		schema = info.Schema
	}
	return foldName(schema) + "." + foldName(t.Name)
}

// foldName normalizes an identifier for case-insensitive comparison.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
