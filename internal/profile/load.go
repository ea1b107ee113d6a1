package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// TargetSet is the result of loading a targets directory.
type TargetSet struct {
	Targets   []Target // sorted by name
	Modules   []Module // sorted by name
	FileCount int      // Number of CUE files found
}

// Lookup returns the target with the given name.
func (s *TargetSet) Lookup(name string) (*Target, bool) {
	for i := range s.Targets {
		if s.Targets[i].Name == name {
			return &s.Targets[i], true
		}
	}
	return nil, false
}

// Names returns the target names in order.
func (s *TargetSet) Names() []string {
	names := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		names[i] = t.Name
	}
	return names
}

// LoadTargets loads every CUE file in dir and compiles its targets and modules.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadTargets(dir string, mode LoadMode) (*TargetSet, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("targets directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing targets directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	set := &TargetSet{FileCount: len(cueFiles)}

	failed := each(value, "target", func(v cue.Value, label string) error {
		t, err := CompileTarget(v)
		if err != nil {
			return convertCompileError(err, ErrTargetField, "target."+label)
		}
		set.Targets = append(set.Targets, *t)
		return nil
	}, mode, &errs)
	if failed {
		return set, errs
	}

	failed = each(value, "module", func(v cue.Value, label string) error {
		m, err := CompileModule(v)
		if err != nil {
			return convertCompileError(err, ErrModuleKind, "module."+label)
		}
		set.Modules = append(set.Modules, *m)
		return nil
	}, mode, &errs)
	if failed {
		return set, errs
	}

	sort.Slice(set.Targets, func(i, j int) bool { return set.Targets[i].Name < set.Targets[j].Name })
	sort.Slice(set.Modules, func(i, j int) bool { return set.Modules[i].Name < set.Modules[j].Name })

	if len(set.Targets) == 0 && len(set.Modules) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no targets or modules found"})
	}

	return set, errs
}

// each compiles every field under path. It reports true when loading should
// stop because mode is fail-fast and an error was recorded.
func each(value cue.Value, path string, compile func(cue.Value, string) error, mode LoadMode, errs *[]error) bool {
	v := value.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return false
	}
	iter, err := v.Fields()
	if err != nil {
		*errs = append(*errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", path, err)})
		return mode == LoadModeFailFast
	}
	for iter.Next() {
		if err := compile(iter.Value(), iter.Label()); err != nil {
			*errs = append(*errs, err)
			if mode == LoadModeFailFast {
				return true
			}
		}
	}
	return false
}

// FindCUEFiles returns the .cue file paths directly in dir. Subdirectories
// are not part of the loaded package and are skipped.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != dir {
			return filepath.SkipDir
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, code, context string) *LoadError {
	var ce *CompileError
	if errors.As(err, &ce) {
		if ce.Field == "cue" {
			code = ErrCodeBuildFailed
		}
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", context, ce.Message),
			Pos:     ce.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
