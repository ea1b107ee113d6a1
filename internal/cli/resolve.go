package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Target  string
	Emit    string // defines | cflags | tags | cgo
	Package string
}

// ValidEmits lists the text renderings of a resolved flag set.
var ValidEmits = []string{"defines", "cflags", "tags", "cgo"}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <targets-dir>",
		Short: "Resolve a build target into SQLite compile flags",
		Long: `Resolve a build target from CUE definitions into SQLite compile flags.

Every conflict between the requested switches is reported and the command
fails; nothing is emitted for a target that does not resolve.

Example:
  embedsql resolve ./targets --target console
  embedsql resolve ./targets --target server --emit tags
  embedsql resolve ./targets --target desktop --emit cgo --package sqlitecfg > cgo_flags.go`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "target name (required)")
	cmd.Flags().StringVar(&opts.Emit, "emit", "defines", "text rendering (defines|cflags|tags|cgo)")
	cmd.Flags().StringVar(&opts.Package, "package", "sqlitecfg", "package name for --emit cgo")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runResolve(opts *ResolveOptions, targetsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if !isValidEmit(opts.Emit) {
		return formatter.Fail(ExitCommandError, ErrCodeConfig,
			fmt.Sprintf("invalid emit %q: must be one of %v", opts.Emit, ValidEmits), nil)
	}

	flags, err := resolveFlags(formatter, targetsDir, opts.Target)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Resolved %s: %d define(s)", opts.Target, len(flags.Defines()))

	if formatter.Format == "json" {
		return formatter.Success(flags)
	}

	w := formatter.Writer
	switch opts.Emit {
	case "cflags":
		fmt.Fprintln(w, flags.CFlags())
	case "tags":
		fmt.Fprintln(w, strings.Join(flags.BuildTags(), ","))
	case "cgo":
		fmt.Fprint(w, flags.CgoSource(opts.Package))
	default:
		for _, d := range flags.Defines() {
			fmt.Fprintln(w, d)
		}
	}
	return nil
}

func isValidEmit(emit string) bool {
	for _, e := range ValidEmits {
		if e == emit {
			return true
		}
	}
	return false
}
