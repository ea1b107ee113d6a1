package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// StepResult is the result of Statement.Step.
type StepResult int

const (
	// StepDone means the statement has run to completion.
	StepDone StepResult = iota
	// StepRow means a result row is available.
	StepRow
)

// ErrMixedBindings is returned by Step when a statement has both positional
// and named bindings.
var ErrMixedBindings = errors.New("statement mixes positional and named bindings")

// Statement is a prepared statement stepped one row at a time.
//
// Bindings are applied when the statement starts executing, on the first
// Step after Prepare or Reset. Column metadata is known once it has started.
type Statement struct {
	db     *Database
	query  string
	stmt   *sql.Stmt
	params int
	names  []string

	positional map[int]any
	named      map[string]any

	rows     *sql.Rows
	columns  []string
	declared []string
	current  []Value
	done     bool
}

// Prepare compiles query on the database connection.
func (d *Database) Prepare(ctx context.Context, query string) (*Statement, error) {
	conn, err := d.connection()
	if err != nil {
		return nil, err
	}

	var params int
	err = d.raw(func(c *sqlite3.SQLiteConn) error {
		st, err := c.Prepare(query)
		if err != nil {
			return err
		}
		params = st.NumInput()
		return st.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", query, d.record(err))
	}

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", query, d.record(err))
	}

	s := &Statement{
		db:         d,
		query:      query,
		stmt:       stmt,
		params:     params,
		names:      parameterNames(query),
		positional: make(map[int]any),
		named:      make(map[string]any),
	}
	d.mu.Lock()
	d.statements[s] = struct{}{}
	d.mu.Unlock()
	return s, nil
}

// PrepareStored prepares the asset's stored statement with the given key.
func (d *Database) PrepareStored(ctx context.Context, key string) (*Statement, error) {
	st, ok := d.info.StoredStatement(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoStatement, key)
	}
	return d.Prepare(ctx, st.Query)
}

// SQL returns the statement text.
func (s *Statement) SQL() string { return s.query }

// BindParameterCount returns the number of parameters in the statement.
func (s *Statement) BindParameterCount() int { return s.params }

// Bind binds v to the 1-based parameter index.
func (s *Statement) Bind(index int, v any) error {
	if index < 1 || index > s.params {
		return fmt.Errorf("bind index %d out of range [1, %d]", index, s.params)
	}
	if val, ok := v.(Value); ok {
		v = val.Any()
	}
	s.positional[index] = v
	return nil
}

// BindNamed binds v to a named parameter. The name may carry its ":", "@"
// or "$" prefix.
func (s *Statement) BindNamed(name string, v any) error {
	name = strings.TrimLeft(name, ":@$")
	if name == "" {
		return errors.New("bind name is empty")
	}
	if val, ok := v.(Value); ok {
		v = val.Any()
	}
	s.named[name] = v
	return nil
}

func (s *Statement) BindNull(index int) error { return s.Bind(index, nil) }

func (s *Statement) BindInt64(index int, v int64) error { return s.Bind(index, v) }

func (s *Statement) BindFloat(index int, v float64) error { return s.Bind(index, v) }

func (s *Statement) BindText(index int, v string) error { return s.Bind(index, v) }

func (s *Statement) BindBlob(index int, v []byte) error { return s.Bind(index, v) }

// ClearBindings removes every binding. Unbound parameters are NULL.
func (s *Statement) ClearBindings() {
	clear(s.positional)
	clear(s.named)
}

func (s *Statement) args() ([]any, error) {
	if len(s.named) > 0 {
		if len(s.positional) > 0 {
			return nil, ErrMixedBindings
		}
		if len(s.names) != s.params {
			args := make([]any, 0, len(s.named))
			for name, v := range s.named {
				args = append(args, sql.Named(name, v))
			}
			return args, nil
		}
		for name := range s.named {
			if !slices.Contains(s.names, name) {
				return nil, fmt.Errorf("statement has no parameter named %q", name)
			}
		}
		// one argument per parameter so unbound names are NULL
		args := make([]any, s.params)
		for i, name := range s.names {
			if name != "" {
				args[i] = sql.Named(name, s.named[name])
			}
		}
		return args, nil
	}
	args := make([]any, s.params)
	for i, v := range s.positional {
		args[i-1] = v
	}
	return args, nil
}

// Step advances the statement. The first Step executes it.
func (s *Statement) Step(ctx context.Context) (StepResult, error) {
	if s.stmt == nil {
		return StepDone, errors.New("statement is finalized")
	}
	if s.done {
		return StepDone, nil
	}
	if s.rows == nil {
		args, err := s.args()
		if err != nil {
			return StepDone, err
		}
		rows, err := s.stmt.QueryContext(ctx, args...)
		if err != nil {
			return StepDone, s.db.record(err)
		}
		s.rows = rows
		if s.columns, err = rows.Columns(); err != nil {
			return StepDone, err
		}
		types, err := rows.ColumnTypes()
		if err != nil {
			return StepDone, err
		}
		s.declared = make([]string, len(types))
		for i, t := range types {
			s.declared[i] = t.DatabaseTypeName()
		}
	}

	if !s.rows.Next() {
		err := s.rows.Err()
		s.rows.Close()
		s.done = true
		s.current = nil
		if err != nil {
			return StepDone, s.db.record(err)
		}
		return StepDone, nil
	}

	raw := make([]any, len(s.columns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return StepDone, err
	}
	s.current = make([]Value, len(raw))
	for i, v := range raw {
		s.current[i] = valueOf(v)
	}
	return StepRow, nil
}

// Reset rewinds the statement so the next Step executes it again. Bindings
// are kept.
func (s *Statement) Reset() error {
	s.current = nil
	s.done = false
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows = nil
	return err
}

// Finalize releases the statement. It is a no-op on a finalized statement.
func (s *Statement) Finalize() error {
	s.db.mu.Lock()
	delete(s.db.statements, s)
	s.db.mu.Unlock()
	return s.release()
}

// release closes the statement without touching the database registry.
func (s *Statement) release() error {
	if s.stmt == nil {
		return nil
	}
	var err error
	if s.rows != nil {
		err = s.rows.Close()
		s.rows = nil
	}
	if cerr := s.stmt.Close(); err == nil {
		err = cerr
	}
	s.stmt = nil
	s.current = nil
	return err
}

// ColumnCount returns the number of result columns.
func (s *Statement) ColumnCount() int { return len(s.columns) }

// ColumnName returns the name of result column i.
func (s *Statement) ColumnName(i int) string {
	if i < 0 || i >= len(s.columns) {
		return ""
	}
	return s.columns[i]
}

// ColumnNames returns every result column name.
func (s *Statement) ColumnNames() []string {
	return append([]string(nil), s.columns...)
}

// DeclaredType returns the declared type of result column i as written in
// the table definition, or "" for expressions.
func (s *Statement) DeclaredType(i int) string {
	if i < 0 || i >= len(s.declared) {
		return ""
	}
	return s.declared[i]
}

// Column returns column i of the current row. Out of range is NULL.
func (s *Statement) Column(i int) Value {
	if i < 0 || i >= len(s.current) {
		return Null()
	}
	return s.current[i]
}

// ColumnType returns the storage class of column i of the current row.
func (s *Statement) ColumnType(i int) ValueType { return s.Column(i).Type }

func (s *Statement) ColumnInt64(i int) int64 { return s.Column(i).AsInt64() }

func (s *Statement) ColumnFloat(i int) float64 { return s.Column(i).AsFloat() }

func (s *Statement) ColumnText(i int) string { return s.Column(i).AsText() }

func (s *Statement) ColumnBlob(i int) []byte { return s.Column(i).AsBlob() }

// Row returns a copy of the current row.
func (s *Statement) Row() []Value {
	return append([]Value(nil), s.current...)
}

// ResultSet is every row a statement produced.
type ResultSet struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// ResultSet steps the statement to completion and collects the rows.
func (s *Statement) ResultSet(ctx context.Context) (*ResultSet, error) {
	rs := &ResultSet{}
	for {
		res, err := s.Step(ctx)
		if err != nil {
			return nil, err
		}
		if rs.Columns == nil {
			rs.Columns = s.ColumnNames()
		}
		if res == StepDone {
			return rs, nil
		}
		rs.Rows = append(rs.Rows, s.Row())
	}
}
