package capability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FlagSet is a finalized, immutable engine configuration for one target.
// It is constructed only by Resolve and shared by pointer with every consumer.
type FlagSet struct {
	target             string
	platform           Platform
	shim               bool
	threadSafety       ThreadSafety
	foreignKeys        bool
	features           map[Feature]bool
	extensionLoading   bool
	delegatedAllocator bool
	delegatedMutex     bool
	defines            []string
}

type flagSetInput struct {
	target             string
	platform           Platform
	shim               bool
	threadSafety       ThreadSafety
	foreignKeys        bool
	features           map[Feature]bool
	extensionLoading   bool
	delegatedAllocator bool
	delegatedMutex     bool
}

func newFlagSet(in flagSetInput) *FlagSet {
	features := make(map[Feature]bool, len(in.features))
	for f, on := range in.features {
		if on {
			features[f] = true
		}
	}
	fs := &FlagSet{
		target:             in.target,
		platform:           in.platform,
		shim:               in.shim,
		threadSafety:       in.threadSafety,
		foreignKeys:        in.foreignKeys,
		features:           features,
		extensionLoading:   in.extensionLoading,
		delegatedAllocator: in.delegatedAllocator,
		delegatedMutex:     in.delegatedMutex,
	}
	fs.defines = fs.buildDefines()
	return fs
}

// buildDefines emits defines in a fixed order: engine setup, features, OS layer.
func (fs *FlagSet) buildDefines() []string {
	defines := []string{
		"SQLITE_OMIT_AUTOINIT",
		"SQLITE_HAVE_ISNAN=1",
		fmt.Sprintf("SQLITE_DEFAULT_FOREIGN_KEYS=%d", boolInt(fs.foreignKeys)),
		fmt.Sprintf("SQLITE_THREADSAFE=%d", fs.threadSafety.Level()),
	}
	for _, spec := range catalog {
		if fs.features[spec.feature] {
			defines = append(defines, spec.define)
		}
	}
	if fs.shim {
		defines = append(defines, "SQLITE_OS_OTHER=1")
	}
	if fs.delegatedAllocator {
		defines = append(defines, "SQLITE_ZERO_MALLOC")
	}
	if fs.delegatedMutex {
		defines = append(defines, "SQLITE_MUTEX_NOOP")
	}
	if !fs.extensionLoading {
		defines = append(defines, "SQLITE_OMIT_LOAD_EXTENSION")
	}
	return defines
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Target returns the build target name.
func (fs *FlagSet) Target() string { return fs.target }

// Platform returns the resolved platform.
func (fs *FlagSet) Platform() Platform { return fs.platform }

// CustomOSShim reports whether the host supplies the OS layer.
func (fs *FlagSet) CustomOSShim() bool { return fs.shim }

// ThreadSafety returns the resolved SQLITE_THREADSAFE mode.
func (fs *FlagSet) ThreadSafety() ThreadSafety { return fs.threadSafety }

// ForeignKeys reports whether foreign keys are enforced by default.
func (fs *FlagSet) ForeignKeys() bool { return fs.foreignKeys }

// ExtensionLoading reports whether run-time extension loading is compiled in.
func (fs *FlagSet) ExtensionLoading() bool { return fs.extensionLoading }

// DelegatedAllocator reports whether allocation is delegated to the host.
func (fs *FlagSet) DelegatedAllocator() bool { return fs.delegatedAllocator }

// DelegatedMutex reports whether locking is delegated to the host.
func (fs *FlagSet) DelegatedMutex() bool { return fs.delegatedMutex }

// SharedMemory reports whether the engine can use shared memory (WAL index).
func (fs *FlagSet) SharedMemory() bool { return fs.platform.SharedMemory && !fs.shim }

// Enabled reports whether feature f is compiled in.
func (fs *FlagSet) Enabled(f Feature) bool { return fs.features[f] }

// Features returns the enabled features in emission order.
func (fs *FlagSet) Features() []Feature {
	var out []Feature
	for _, spec := range catalog {
		if fs.features[spec.feature] {
			out = append(out, spec.feature)
		}
	}
	return out
}

// Defines returns the SQLITE_* compile definitions.
func (fs *FlagSet) Defines() []string {
	out := make([]string, len(fs.defines))
	copy(out, fs.defines)
	return out
}

// CFlags returns the defines formatted for CGO_CFLAGS.
func (fs *FlagSet) CFlags() string {
	parts := make([]string, len(fs.defines))
	for i, d := range fs.defines {
		parts[i] = "-D" + d
	}
	return strings.Join(parts, " ")
}

// BuildTags returns the github.com/mattn/go-sqlite3 build tags that match
// this configuration, sorted. Switches with no tag travel through CFlags.
func (fs *FlagSet) BuildTags() []string {
	var tags []string
	if fs.foreignKeys {
		tags = append(tags, "sqlite_foreign_keys")
	}
	for _, spec := range catalog {
		if fs.features[spec.feature] && spec.tag != "" {
			tags = append(tags, spec.tag)
		}
	}
	if !fs.extensionLoading {
		tags = append(tags, "sqlite_omit_load_extension")
	}
	sort.Strings(tags)
	return tags
}

// CgoSource renders a Go file carrying the defines as #cgo CFLAGS directives,
// for a package that compiles the SQLite amalgamation itself.
func (fs *FlagSet) CgoSource(pkg string) string {
	var b strings.Builder
	b.WriteString("// Code generated by embedsql resolve. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "// target: %s (%s)\n\n", fs.target, fs.platform.Name)
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	for _, d := range fs.defines {
		fmt.Fprintf(&b, "// #cgo CFLAGS: -D%s\n", d)
	}
	b.WriteString("import \"C\"\n")
	return b.String()
}

// Equal reports whether two flag sets select the same configuration.
func (fs *FlagSet) Equal(other *FlagSet) bool {
	if fs == nil || other == nil {
		return fs == other
	}
	if fs.target != other.target || fs.platform != other.platform {
		return false
	}
	if len(fs.defines) != len(other.defines) {
		return false
	}
	for i := range fs.defines {
		if fs.defines[i] != other.defines[i] {
			return false
		}
	}
	return true
}

// Missing compares the flag set against an engine's PRAGMA compile_options
// output and returns the requested switches the engine lacks.
//
// Only switches the engine reports are checked: ENABLE_* features,
// THREADSAFE and OMIT_LOAD_EXTENSION. JSON (since 3.38) and deserialize
// (since 3.36) are built in and count as present unless the engine reports
// OMIT_JSON or OMIT_DESERIALIZE.
func (fs *FlagSet) Missing(compileOptions []string) []string {
	have := make(map[string]bool, len(compileOptions))
	for _, opt := range compileOptions {
		have[strings.TrimPrefix(opt, "SQLITE_")] = true
	}

	var missing []string
	for _, d := range fs.defines {
		opt := strings.TrimPrefix(d, "SQLITE_")
		switch {
		case d == "SQLITE_ENABLE_JSON1":
			if have["OMIT_JSON"] {
				missing = append(missing, d)
			}
		case d == "SQLITE_ENABLE_DESERIALIZE":
			if have["OMIT_DESERIALIZE"] {
				missing = append(missing, d)
			}
		case strings.HasPrefix(opt, "ENABLE_"), strings.HasPrefix(opt, "THREADSAFE="), opt == "OMIT_LOAD_EXTENSION":
			if !have[opt] {
				missing = append(missing, d)
			}
		}
	}
	return missing
}

type flagSetJSON struct {
	Target             string    `json:"target"`
	Platform           string    `json:"platform"`
	CustomOSShim       bool      `json:"custom_os_shim"`
	ThreadSafety       string    `json:"thread_safety"`
	ForeignKeys        bool      `json:"foreign_keys"`
	Features           []Feature `json:"features"`
	ExtensionLoading   bool      `json:"extension_loading"`
	DelegatedAllocator bool      `json:"delegated_allocator"`
	DelegatedMutex     bool      `json:"delegated_mutex"`
	Defines            []string  `json:"defines"`
	BuildTags          []string  `json:"build_tags"`
}

// MarshalJSON implements json.Marshaler.
func (fs *FlagSet) MarshalJSON() ([]byte, error) {
	features := fs.Features()
	if features == nil {
		features = []Feature{}
	}
	tags := fs.BuildTags()
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(flagSetJSON{
		Target:             fs.target,
		Platform:           fs.platform.Name,
		CustomOSShim:       fs.shim,
		ThreadSafety:       string(fs.threadSafety),
		ForeignKeys:        fs.foreignKeys,
		Features:           features,
		ExtensionLoading:   fs.extensionLoading,
		DelegatedAllocator: fs.delegatedAllocator,
		DelegatedMutex:     fs.delegatedMutex,
		Defines:            fs.Defines(),
		BuildTags:          tags,
	})
}

// String returns a one-line summary.
func (fs *FlagSet) String() string {
	return fmt.Sprintf("%s/%s: %s", fs.target, fs.platform.Name, strings.Join(fs.defines, " "))
}
