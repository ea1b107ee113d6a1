package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/embedsql/internal/profile"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	DryRun bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                      `json:"valid"`
	Errors []profile.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <asset.yaml>",
		Short: "Validate a database asset without opening it",
		Long: `Validate a YAML database asset without touching the database it describes.

Checks file naming, attachments, stored statements and custom tables.
With --dry-run the generated DDL is also executed against a scratch
in-memory engine.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "execute generated DDL against a scratch database")

	return cmd
}

func runValidate(opts *ValidateOptions, assetPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := loadAsset(formatter, assetPath)
	if err != nil {
		return err
	}

	errs := profile.Validate(info)
	if len(errs) == 0 && opts.DryRun {
		formatter.VerboseLog("Dry-running %d table(s)", len(info.EnabledDefaultTables())+len(info.Tables))
		errs = profile.DryRun(cmd.Context(), info)
	}
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid\n", info.Name)
	return nil
}

// loadAsset reads a database asset, reporting a missing or malformed file
// through formatter.
func loadAsset(formatter *OutputFormatter, path string) (*profile.DatabaseInfo, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, formatter.Fail(ExitCommandError, profile.ErrCodeNotFound,
			fmt.Sprintf("asset not found: %s", path), nil)
	}
	info, err := profile.LoadDatabaseInfo(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, profile.ErrCodeParseFailed, err.Error(), nil)
	}
	formatter.VerboseLog("Loaded asset %s from %s", info.Name, path)
	return info, nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []profile.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
