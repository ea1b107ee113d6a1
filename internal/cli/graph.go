package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/embedsql/internal/profile"
)

// GraphResult is the checked module graph.
type GraphResult struct {
	Engine  string        `json:"engine"`
	Modules []GraphModule `json:"modules"`
}

// GraphModule is one module and everything that consumes it.
type GraphModule struct {
	Name      string             `json:"name"`
	Kind      profile.ModuleKind `json:"kind"`
	Deps      []string           `json:"deps,omitempty"`
	Consumers []string           `json:"consumers"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <targets-dir>",
		Short: "Check the module graph that links the engine",
		Long: `Check the modules defined next to the build targets.

Exactly one library may link the engine artifact; integrations and
applications consume it through that library. Cycles, unknown dependencies
and dependencies on applications are rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runGraph(opts *RootOptions, targetsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	set, err := loadTargetSet(formatter, targetsDir)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Checking %d module(s)", len(set.Modules))

	if errs := profile.ValidateGraph(set.Modules); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	engine, _ := profile.EngineLibrary(set.Modules)
	result := GraphResult{Engine: engine}
	for _, m := range set.Modules {
		result.Modules = append(result.Modules, GraphModule{
			Name:      m.Name,
			Kind:      m.Kind,
			Deps:      m.Deps,
			Consumers: profile.Consumers(set.Modules, m.Name),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Module graph valid (engine library %s)\n", engine)
	for _, m := range result.Modules {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s (%s)\n", m.Name, m.Kind)
		if len(m.Consumers) > 0 {
			fmt.Fprintf(w, "  consumers: %s\n", strings.Join(m.Consumers, ", "))
		}
	}
	return nil
}
