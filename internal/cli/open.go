package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/embedsql/internal/config"
	"github.com/roach88/embedsql/internal/database"
	"github.com/roach88/embedsql/internal/profile"
	"github.com/roach88/embedsql/internal/subsystem"
)

// SessionOptions holds the flags shared by commands that open a database.
type SessionOptions struct {
	*RootOptions
	Targets string // targets directory; empty uses the host target
	Target  string
	Dir     string // overrides EMBEDSQL_DATABASE_DIR
}

func (o *SessionOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Targets, "targets", "", "targets directory (default: host target)")
	cmd.Flags().StringVar(&o.Target, "target", "", "target name within --targets")
	cmd.Flags().StringVar(&o.Dir, "dir", "", "database directory (overrides EMBEDSQL_DATABASE_DIR)")
}

// session is an initialized subsystem with one open database.
type session struct {
	sys     *subsystem.Subsystem
	db      *database.Database
	id      uuid.UUID
	outcome database.Outcome
}

func (s *session) close(ctx context.Context) error {
	return s.sys.Shutdown(ctx)
}

// openSession validates the asset, resolves flags and opens the database.
func openSession(ctx context.Context, opts *SessionOptions, formatter *OutputFormatter, assetPath string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Dir != "" {
		cfg.DatabaseDir = opts.Dir
	}
	logger := cfg.NewLogger(formatter.GetErrWriter(), opts.Verbose)

	info, err := loadAsset(formatter, assetPath)
	if err != nil {
		return nil, err
	}
	if errs := profile.Validate(info); len(errs) > 0 {
		return nil, outputValidationErrors(formatter, errs)
	}

	flags, err := resolveFlags(formatter, opts.Targets, opts.Target)
	if err != nil {
		return nil, err
	}

	sys := subsystem.New(cfg, flags, logger)
	if err := sys.Initialize(ctx); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err.Error(), nil)
	}

	db, id, err := sys.CreateDatabase(info, nil)
	if err != nil {
		_ = sys.Shutdown(ctx)
		return nil, formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err.Error(), nil)
	}
	outcome, err := db.Open(ctx)
	if err != nil {
		_ = sys.Shutdown(ctx)
		return nil, formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err.Error(), engineDetails(err))
	}
	formatter.VerboseLog("Opened %s (%s)", db.Path(), outcome)

	return &session{sys: sys, db: db, id: id, outcome: outcome}, nil
}

// OpenResult describes an opened database.
type OpenResult struct {
	Handle        string   `json:"handle"`
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Target        string   `json:"target"`
	Outcome       string   `json:"outcome"`
	ApplicationID int32    `json:"application_id"`
	UserVersion   int32    `json:"user_version"`
	Schemas       []string `json:"schemas"`
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "open <asset.yaml>",
		Short: "Open a database asset, creating or updating it as needed",
		Long: `Open the database described by a YAML asset.

A new database is created with its default and custom tables and stamped
with the asset's application_id and user_version. A stored user_version
that differs triggers an update; a stored application_id that differs is
an error.

Example:
  embedsql open ./assets/game.yaml --dir ./saves
  embedsql open ./assets/game.yaml --targets ./targets --target server`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(opts, args[0], cmd)
		},
	}
	opts.bind(cmd)

	return cmd
}

func runOpen(opts *SessionOptions, assetPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(ctx, opts, formatter, assetPath)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	result := OpenResult{
		Handle:  s.id.String(),
		Name:    s.db.Info().Name,
		Path:    s.db.Path(),
		Target:  s.db.Flags().Target(),
		Outcome: s.outcome.String(),
	}
	if result.ApplicationID, err = s.db.ApplicationID(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFailed, err.Error(), nil)
	}
	if result.UserVersion, err = s.db.UserVersion(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFailed, err.Error(), nil)
	}
	if result.Schemas, err = s.db.Schemas(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFailed, err.Error(), nil)
	}
	if result.Schemas == nil {
		result.Schemas = []string{}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s %s\n", result.Name, result.Outcome)
	fmt.Fprintf(w, "  path:           %s\n", result.Path)
	fmt.Fprintf(w, "  target:         %s\n", result.Target)
	fmt.Fprintf(w, "  application_id: %d\n", result.ApplicationID)
	fmt.Fprintf(w, "  user_version:   %d\n", result.UserVersion)
	if len(result.Schemas) > 0 {
		fmt.Fprintf(w, "  attached:       %s\n", strings.Join(result.Schemas, ", "))
	}
	return nil
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	SessionOptions
	Stored bool     // treat the statement argument as a stored statement key
	Params []string // name=value or index=value
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{SessionOptions: SessionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "query <asset.yaml> <sql|key>",
		Short: "Run a statement against a database asset",
		Long: `Open the database described by a YAML asset and run one statement.

Parameters are bound by name (--param key=software) or by 1-based
position (--param 1=software); a statement uses one style or the other.

Example:
  embedsql query ./assets/game.yaml "SELECT * FROM Properties"
  embedsql query ./assets/game.yaml property --stored --param key=software`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.Stored, "stored", false, "run the asset's stored statement with this key")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "bind a parameter (name=value or index=value)")

	return cmd
}

func runQuery(opts *QueryOptions, assetPath, statement string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(ctx, &opts.SessionOptions, formatter, assetPath)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	var stmt *database.Statement
	if opts.Stored {
		stmt, err = s.db.PrepareStored(ctx, statement)
	} else {
		stmt, err = s.db.Prepare(ctx, statement)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFailed, err.Error(), engineDetails(err))
	}
	defer stmt.Finalize()

	if err := bindParams(stmt, opts.Params); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFailed, err.Error(), nil)
	}

	rs, err := stmt.ResultSet(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQueryFailed, err.Error(), engineDetails(err))
	}
	formatter.VerboseLog("%d row(s)", len(rs.Rows))

	if formatter.Format == "json" {
		if rs.Rows == nil {
			rs.Rows = [][]database.Value{}
		}
		return formatter.Success(rs)
	}

	if len(rs.Columns) == 0 {
		fmt.Fprintln(formatter.Writer, "✓ done")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.Columns, "\t"))
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// engineDetails returns the engine error carried by err, if any.
func engineDetails(err error) any {
	var dbErr *database.Error
	if errors.As(err, &dbErr) {
		return dbErr
	}
	return nil
}

func bindParams(stmt *database.Statement, params []string) error {
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("invalid parameter %q: want name=value", p)
		}
		if index, err := strconv.Atoi(name); err == nil {
			if err := stmt.BindText(index, value); err != nil {
				return err
			}
			continue
		}
		if err := stmt.BindNamed(name, value); err != nil {
			return err
		}
	}
	return nil
}
