package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/embedsql/internal/subsystem"
)

// VersionOptions holds flags for the version command.
type VersionOptions struct {
	*RootOptions
	Targets string
	Target  string
}

// VersionResult describes the linked engine.
type VersionResult struct {
	Version        string   `json:"version"`
	VersionNumber  int      `json:"version_number"`
	SourceID       string   `json:"source_id"`
	CompileOptions []string `json:"compile_options"`
	Target         string   `json:"target,omitempty"`
	Missing        []string `json:"missing,omitempty"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the linked SQLite engine and its compile options",
		Long: `Show the linked SQLite engine version, source id and compile options.

With --targets and --target, also list the switches the target requests
that the linked engine was not built with.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Targets, "targets", "", "targets directory")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target to compare against the engine")

	return cmd
}

func runVersion(opts *VersionOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	compileOptions, err := subsystem.ReadCompileOptions(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeEngineFailed, err.Error(), nil)
	}

	result := VersionResult{
		Version:        subsystem.LibVersion(),
		VersionNumber:  subsystem.LibVersionNumber(),
		SourceID:       subsystem.LibSourceID(),
		CompileOptions: compileOptions,
	}

	if opts.Targets != "" {
		flags, err := resolveFlags(formatter, opts.Targets, opts.Target)
		if err != nil {
			return err
		}
		result.Target = flags.Target()
		result.Missing = flags.Missing(compileOptions)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "SQLite %s (%d)\n", result.Version, result.VersionNumber)
	fmt.Fprintf(w, "source: %s\n", result.SourceID)
	if formatter.Verbose {
		fmt.Fprintln(w, "compile options:")
		for _, opt := range result.CompileOptions {
			fmt.Fprintf(w, "  %s\n", opt)
		}
	}
	if result.Target != "" {
		if len(result.Missing) == 0 {
			fmt.Fprintf(w, "✓ engine provides every switch target %s requests\n", result.Target)
		} else {
			fmt.Fprintf(w, "target %s requests switches the engine lacks:\n", result.Target)
			for _, m := range result.Missing {
				fmt.Fprintf(w, "  %s\n", m)
			}
		}
	}
	return nil
}
