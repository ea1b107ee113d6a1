package profile

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
)

// EngineArtifact is the dependency name of the compiled engine itself.
const EngineArtifact = "engine"

// ModuleKind is the role a module plays in the consumption graph.
type ModuleKind string

const (
	KindLibrary     ModuleKind = "library"
	KindIntegration ModuleKind = "integration"
	KindApplication ModuleKind = "application"
)

// Module is a node of the consumption graph. Edges carry no protocol beyond
// "links against".
type Module struct {
	Name string     `json:"name"`
	Kind ModuleKind `json:"kind"`
	Deps []string   `json:"deps,omitempty"`
	Pos  token.Pos  `json:"-"`
}

// CompileModule parses a CUE module struct into a Module.
func CompileModule(v cue.Value) (*Module, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Module{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		m.Name = labels[len(labels)-1].String()
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{Field: "kind", Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m.Kind = ModuleKind(kind)

	if m.Deps, err = optionalStrings(v, "deps"); err != nil {
		return nil, err
	}
	return m, nil
}

// ValidateGraph checks the consumption graph.
// Returns all errors found (does not fail-fast).
func ValidateGraph(modules []Module) []ValidationError {
	var errs []ValidationError
	byName := make(map[string]*Module, len(modules))
	for i := range modules {
		byName[modules[i].Name] = &modules[i]
	}

	var engineLibs []string
	for _, m := range modules {
		switch m.Kind {
		case KindLibrary, KindIntegration, KindApplication:
		default:
			errs = append(errs, ValidationError{
				Field:   "module." + m.Name + ".kind",
				Message: fmt.Sprintf("unknown module kind %q (want library, integration or application)", m.Kind),
				Code:    ErrModuleKind,
				Line:    m.Pos.Line(),
			})
		}

		for _, dep := range m.Deps {
			if dep == EngineArtifact {
				if m.Kind == KindLibrary {
					if !slices.Contains(engineLibs, m.Name) {
						engineLibs = append(engineLibs, m.Name)
					}
				} else {
					errs = append(errs, ValidationError{
						Field:   "module." + m.Name + ".deps",
						Message: fmt.Sprintf("%s %s links the engine directly; consume it through the engine library", m.Kind, m.Name),
						Code:    ErrEngineBypass,
						Line:    m.Pos.Line(),
					})
				}
				continue
			}
			target, ok := byName[dep]
			if !ok {
				errs = append(errs, ValidationError{
					Field:   "module." + m.Name + ".deps",
					Message: fmt.Sprintf("unknown dependency %q", dep),
					Code:    ErrModuleUnknownDep,
					Line:    m.Pos.Line(),
				})
				continue
			}
			if target.Kind == KindApplication {
				errs = append(errs, ValidationError{
					Field:   "module." + m.Name + ".deps",
					Message: fmt.Sprintf("application %s is an entry point and cannot be a dependency", dep),
					Code:    ErrApplicationDep,
					Line:    m.Pos.Line(),
				})
			}
		}
	}

	switch len(engineLibs) {
	case 0:
		errs = append(errs, ValidationError{
			Field:   "module",
			Message: fmt.Sprintf("no library links the %s artifact", EngineArtifact),
			Code:    ErrEngineLinks,
		})
	case 1:
	default:
		sort.Strings(engineLibs)
		errs = append(errs, ValidationError{
			Field:   "module",
			Message: fmt.Sprintf("%s artifact is linked by more than one library: %s", EngineArtifact, strings.Join(engineLibs, ", ")),
			Code:    ErrEngineLinks,
		})
	}

	graph := buildModuleGraph(modules)
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			sort.Strings(scc)
			errs = append(errs, ValidationError{
				Field:   "module",
				Message: fmt.Sprintf("dependency cycle: %s", strings.Join(append(scc, scc[0]), " → ")),
				Code:    ErrModuleCycle,
			})
		}
	}

	if len(engineLibs) == 1 {
		lib := engineLibs[0]
		for _, m := range modules {
			if m.Kind != KindIntegration && m.Kind != KindApplication {
				continue
			}
			if !reaches(graph, m.Name, lib) {
				errs = append(errs, ValidationError{
					Field:   "module." + m.Name + ".deps",
					Message: fmt.Sprintf("%s %s does not consume the engine library %s", m.Kind, m.Name, lib),
					Code:    ErrEngineUnreached,
					Line:    m.Pos.Line(),
				})
			}
		}
	}

	return errs
}

// EngineLibrary returns the library that links the engine artifact, if
// exactly one does.
func EngineLibrary(modules []Module) (string, bool) {
	var found []string
	for _, m := range modules {
		if m.Kind != KindLibrary {
			continue
		}
		for _, dep := range m.Deps {
			if dep == EngineArtifact {
				found = append(found, m.Name)
				break
			}
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// Consumers returns every module that depends on name, directly or
// transitively, sorted by name.
func Consumers(modules []Module, name string) []string {
	reverse := make(map[string][]string)
	for _, m := range modules {
		for _, dep := range m.Deps {
			reverse[dep] = append(reverse[dep], m.Name)
		}
	}

	seen := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range reverse[cur] {
			if !seen[c] && c != name {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// moduleGraph maps module name → names it depends on. The engine artifact
// is not a node.
type moduleGraph map[string][]string

func buildModuleGraph(modules []Module) moduleGraph {
	known := make(map[string]bool, len(modules))
	for _, m := range modules {
		known[m.Name] = true
	}
	graph := make(moduleGraph, len(modules))
	for _, m := range modules {
		edges := []string{}
		for _, dep := range m.Deps {
			if known[dep] {
				edges = append(edges, dep)
			}
		}
		sort.Strings(edges)
		graph[m.Name] = edges
	}
	return graph
}

func (g moduleGraph) nodes() []string {
	out := make([]string, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func hasSelfLoop(node string, graph moduleGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

func reaches(graph moduleGraph, from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range graph[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the output is deterministic.
func tarjanSCC(graph moduleGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range graph.nodes() {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}
