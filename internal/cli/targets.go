package cli

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/roach88/embedsql/internal/capability"
	"github.com/roach88/embedsql/internal/profile"
)

// loadTargetSet loads dir fail-fast and reports the first error through
// formatter.
func loadTargetSet(formatter *OutputFormatter, dir string) (*profile.TargetSet, error) {
	set, errs := profile.LoadTargets(dir, profile.LoadModeFailFast)
	if len(errs) > 0 {
		var loadErr *profile.LoadError
		if errors.As(errs[0], &loadErr) {
			return nil, formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return nil, formatter.Fail(ExitCommandError, profile.ErrCodeGeneric, errs[0].Error(), nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", set.FileCount, dir)
	return set, nil
}

// lookupTarget loads dir and returns the named target.
func lookupTarget(formatter *OutputFormatter, dir, name string) (*profile.Target, error) {
	set, err := loadTargetSet(formatter, dir)
	if err != nil {
		return nil, err
	}
	target, ok := set.Lookup(name)
	if !ok {
		return nil, formatter.Fail(ExitCommandError, profile.ErrTargetNotFound,
			fmt.Sprintf("target %q not found", name), set.Names())
	}
	return target, nil
}

// resolveFlags resolves the named target, or the host when dir is empty.
func resolveFlags(formatter *OutputFormatter, dir, name string) (*capability.FlagSet, error) {
	var desc capability.Descriptor
	if dir == "" {
		desc = capability.HostDescriptor(runtime.GOOS)
		formatter.VerboseLog("Using host target for %s", runtime.GOOS)
	} else {
		if name == "" {
			return nil, formatter.Fail(ExitCommandError, profile.ErrTargetNotFound, "--target is required with --targets", nil)
		}
		target, err := lookupTarget(formatter, dir, name)
		if err != nil {
			return nil, err
		}
		desc = target.Descriptor
	}

	flags, conflicts := capability.ResolveAll(desc)
	if len(conflicts) > 0 {
		return nil, formatter.Fail(ExitFailure, profile.ErrTargetConflict, conflicts[0].Error(), conflicts)
	}
	return flags, nil
}
