package capability

import (
	"fmt"
	"sort"
)

// Descriptor is the resolver input for one build target.
//
// Pointer fields distinguish "not requested" (nil) from an explicit choice,
// so an explicit request is either honored or rejected, never replaced.
type Descriptor struct {
	Target       string
	Platform     string
	CustomOSShim bool
	ThreadSafety ThreadSafety

	// ForeignKeys sets SQLITE_DEFAULT_FOREIGN_KEYS. Nil means enabled.
	ForeignKeys *bool

	// Features lists requested subsystems. A false entry is the same as absent.
	Features map[Feature]bool

	// ExtensionLoading nil means "built-in default": on without the shim, off with it.
	ExtensionLoading   *bool
	DelegatedAllocator *bool
	DelegatedMutex     *bool

	// Overrides opts into experimental features or, with OverridePlatform,
	// into an experimental platform.
	Overrides []string
}

// Bool returns a pointer to v, for populating Descriptor fields.
func Bool(v bool) *bool {
	return &v
}

// Resolve validates d and returns its finalized flag set.
// On conflict it returns the first *ConfigurationConflict found and no flag set.
func Resolve(d Descriptor) (*FlagSet, error) {
	fs, conflicts := ResolveAll(d)
	if len(conflicts) > 0 {
		return nil, conflicts[0]
	}
	return fs, nil
}

// ResolveAll is Resolve but reports every conflict instead of the first.
// The flag set is nil whenever conflicts is non-empty.
func ResolveAll(d Descriptor) (*FlagSet, []*ConfigurationConflict) {
	var conflicts []*ConfigurationConflict
	add := func(code ConflictCode, msg string, flags ...string) {
		conflicts = append(conflicts, newConflict(d.Target, code, msg, flags...))
	}

	platform, known := LookupPlatform(d.Platform)
	if !known {
		if d.Platform == "" {
			add(ErrCodeUnknownPlatform, "platform is required")
		} else {
			add(ErrCodeUnknownPlatform, fmt.Sprintf("unknown platform %q", d.Platform), d.Platform)
		}
	}

	threadSafety, err := ParseThreadSafety(string(d.ThreadSafety))
	if err != nil {
		add(ErrCodeInvalidThreadSafety, err.Error(), "SQLITE_THREADSAFE")
	}
	if threadSafety == ThreadSafetyUnset {
		threadSafety = ThreadSafetySerialized
	}

	overrides := make(map[string]bool, len(d.Overrides))
	for _, o := range d.Overrides {
		if o != OverridePlatform && !Feature(o).IsKnown() {
			add(ErrCodeUnknownFeature, fmt.Sprintf("unknown override %q", o), o)
			continue
		}
		overrides[o] = true
	}

	requested := make(map[Feature]bool)
	for _, f := range sortedFeatureKeys(d.Features) {
		if !d.Features[f] {
			continue
		}
		if !f.IsKnown() {
			add(ErrCodeUnknownFeature, fmt.Sprintf("unknown feature %q", f), string(f))
			continue
		}
		requested[f] = true
	}

	// Delegation: the shim delegates allocator and mutex together or not at all.
	extensionLoading := !d.CustomOSShim
	delegatedAllocator := d.CustomOSShim
	delegatedMutex := d.CustomOSShim

	if d.ExtensionLoading != nil {
		if *d.ExtensionLoading && d.CustomOSShim {
			add(ErrCodeShimExtensionLoading,
				"extension loading cannot be enabled with the custom-OS shim",
				"SQLITE_OS_OTHER", "SQLITE_ENABLE_LOAD_EXTENSION")
		}
		extensionLoading = *d.ExtensionLoading && !d.CustomOSShim
	}

	if d.CustomOSShim {
		if d.DelegatedAllocator != nil && !*d.DelegatedAllocator {
			add(ErrCodePartialDelegation,
				"the custom-OS shim requires the host allocator",
				"SQLITE_OS_OTHER", "SQLITE_ZERO_MALLOC")
		}
		if d.DelegatedMutex != nil && !*d.DelegatedMutex {
			add(ErrCodePartialDelegation,
				"the custom-OS shim requires the host mutex",
				"SQLITE_OS_OTHER", "SQLITE_MUTEX_NOOP")
		}
	} else {
		if d.DelegatedAllocator != nil && *d.DelegatedAllocator {
			add(ErrCodeDelegationWithoutShim,
				"a delegated allocator needs the custom-OS shim",
				"SQLITE_ZERO_MALLOC")
		}
		if d.DelegatedMutex != nil && *d.DelegatedMutex {
			add(ErrCodeDelegationWithoutShim,
				"a delegated mutex needs the custom-OS shim",
				"SQLITE_MUTEX_NOOP")
		}
	}

	wantsDelegatedMutex := d.CustomOSShim || (d.DelegatedMutex != nil && *d.DelegatedMutex)
	if threadSafety == ThreadSafetySingleThread && wantsDelegatedMutex {
		add(ErrCodeThreadSafetyMutex,
			"single-thread mode compiles mutexes out; there is nothing to delegate",
			"SQLITE_THREADSAFE=0", "SQLITE_MUTEX_NOOP")
	}

	if known && !platform.Supported && !overrides[OverridePlatform] {
		add(ErrCodeExperimental,
			fmt.Sprintf("platform %q is experimental; add override %q", platform.Name, OverridePlatform),
			platform.Name)
	}

	for _, spec := range catalog {
		if !requested[spec.feature] {
			continue
		}
		if dep, ok := requires[spec.feature]; ok && !requested[dep] {
			add(ErrCodeFeatureDependency,
				fmt.Sprintf("feature %q requires %q", spec.feature, dep),
				spec.define, defineOf(dep))
		}
		if known && unstable(spec.feature, platform, d.CustomOSShim) && !overrides[string(spec.feature)] {
			add(ErrCodeExperimental,
				fmt.Sprintf("feature %q is experimental on %s; add override %q", spec.feature, describeHost(platform, d.CustomOSShim), spec.feature),
				spec.define)
		}
	}

	if len(conflicts) > 0 {
		return nil, conflicts
	}

	foreignKeys := true
	if d.ForeignKeys != nil {
		foreignKeys = *d.ForeignKeys
	}

	return newFlagSet(flagSetInput{
		target:             d.Target,
		platform:           platform,
		shim:               d.CustomOSShim,
		threadSafety:       threadSafety,
		foreignKeys:        foreignKeys,
		features:           requested,
		extensionLoading:   extensionLoading,
		delegatedAllocator: delegatedAllocator,
		delegatedMutex:     delegatedMutex,
	}), nil
}

// unstable reports whether f needs an explicit override on this host.
// Snapshots read the WAL index through shared memory, which neither the
// shim nor shared-memory-less platforms provide.
func unstable(f Feature, p Platform, shim bool) bool {
	return f == FeatureSnapshot && (shim || !p.SharedMemory)
}

func describeHost(p Platform, shim bool) string {
	if shim {
		return p.Name + " with the custom-OS shim"
	}
	return p.Name
}

func defineOf(f Feature) string {
	spec, _ := lookupFeature(f)
	return spec.define
}

func sortedFeatureKeys(m map[Feature]bool) []Feature {
	keys := make([]Feature, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
