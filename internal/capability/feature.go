package capability

import "fmt"

// Feature names an optional engine subsystem.
type Feature string

const (
	FeatureFTS4           Feature = "fts4"
	FeatureFTS5           Feature = "fts5"
	FeatureRBU            Feature = "rbu"
	FeatureJSON1          Feature = "json1"
	FeatureOffsetSQLFunc  Feature = "offset_sql_func"
	FeaturePreupdateHook  Feature = "preupdate_hook"
	FeatureDeserialize    Feature = "deserialize"
	FeatureRTree          Feature = "rtree"
	FeatureColumnMetadata Feature = "column_metadata"
	FeatureSession        Feature = "session"
	FeatureSnapshot       Feature = "snapshot"
	FeatureDebug          Feature = "debug"
)

// OverridePlatform is the override name that opts into an experimental platform.
const OverridePlatform = "platform"

// featureSpec describes how a feature reaches the compiled artifact.
type featureSpec struct {
	feature Feature
	define  string
	tag     string // mattn/go-sqlite3 build tag, if one exists
}

// catalog is the canonical emission order for feature defines.
var catalog = []featureSpec{
	{FeatureFTS4, "SQLITE_ENABLE_FTS4", ""},
	{FeatureFTS5, "SQLITE_ENABLE_FTS5", "sqlite_fts5"},
	{FeatureRBU, "SQLITE_ENABLE_RBU", ""},
	{FeatureOffsetSQLFunc, "SQLITE_ENABLE_OFFSET_SQL_FUNC", ""},
	{FeaturePreupdateHook, "SQLITE_ENABLE_PREUPDATE_HOOK", "sqlite_preupdate_hook"},
	{FeatureDeserialize, "SQLITE_ENABLE_DESERIALIZE", ""},
	{FeatureRTree, "SQLITE_ENABLE_RTREE", ""},
	{FeatureJSON1, "SQLITE_ENABLE_JSON1", "sqlite_json"},
	{FeatureColumnMetadata, "SQLITE_ENABLE_COLUMN_METADATA", ""},
	{FeatureSession, "SQLITE_ENABLE_SESSION", ""},
	{FeatureSnapshot, "SQLITE_ENABLE_SNAPSHOT", ""},
	{FeatureDebug, "SQLITE_DEBUG", ""},
}

// requires lists features that cannot be compiled without another one.
var requires = map[Feature]Feature{
	FeatureSession: FeaturePreupdateHook,
}

// Features returns every known feature in emission order.
func Features() []Feature {
	out := make([]Feature, len(catalog))
	for i, spec := range catalog {
		out[i] = spec.feature
	}
	return out
}

// IsKnown reports whether f is a feature the configurator understands.
func (f Feature) IsKnown() bool {
	_, ok := lookupFeature(f)
	return ok
}

func lookupFeature(f Feature) (featureSpec, bool) {
	for _, spec := range catalog {
		if spec.feature == f {
			return spec, true
		}
	}
	return featureSpec{}, false
}

// ThreadSafety is the SQLITE_THREADSAFE compile mode.
// The zero value means "not requested" and resolves to ThreadSafetySerialized.
type ThreadSafety string

const (
	ThreadSafetyUnset        ThreadSafety = ""
	ThreadSafetySingleThread ThreadSafety = "single_thread"
	ThreadSafetySerialized   ThreadSafety = "serialized"
	ThreadSafetyMultiThread  ThreadSafety = "multi_thread"
)

// ParseThreadSafety converts a profile string into a ThreadSafety.
func ParseThreadSafety(s string) (ThreadSafety, error) {
	switch ThreadSafety(s) {
	case ThreadSafetyUnset, ThreadSafetySingleThread, ThreadSafetySerialized, ThreadSafetyMultiThread:
		return ThreadSafety(s), nil
	}
	return ThreadSafetyUnset, fmt.Errorf("invalid thread safety %q: must be one of single_thread, serialized, multi_thread", s)
}

// Level returns the numeric SQLITE_THREADSAFE value.
func (t ThreadSafety) Level() int {
	switch t {
	case ThreadSafetySingleThread:
		return 0
	case ThreadSafetyMultiThread:
		return 2
	default:
		return 1
	}
}

// Platform describes what a target platform offers the engine.
type Platform struct {
	Name string `json:"name"`

	// Supported platforms need no override.
	Supported bool `json:"supported"`

	// SharedMemory is required by WAL snapshots.
	SharedMemory bool `json:"shared_memory"`
}

var platforms = map[string]Platform{
	"windows": {Name: "windows", Supported: true, SharedMemory: true},
	"linux":   {Name: "linux", Supported: true, SharedMemory: true},
	"mac":     {Name: "mac", SharedMemory: true},
	"ios":     {Name: "ios", SharedMemory: true},
	"android": {Name: "android", SharedMemory: true},
	"js":      {Name: "js"},
}

// LookupPlatform returns the catalog entry for name.
func LookupPlatform(name string) (Platform, bool) {
	p, ok := platforms[name]
	return p, ok
}
