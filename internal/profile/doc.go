// Package profile loads the two kinds of definitions embedsql works from.
//
// Build targets and the module graph are written in CUE:
//
//	target: desktop: {
//		platform: "windows"
//		features: ["fts5", "json1", "rtree"]
//	}
//
//	module: SQLiteCore: {
//		kind: "library"
//		deps: ["engine"]
//	}
//
// Each target compiles to a capability.Descriptor. The module graph is checked
// so that the engine artifact is linked by exactly one library and every
// integration and application consumes the engine through it.
//
// Database assets are written in YAML and decode into DatabaseInfo, which
// drives how a database is named, opened, versioned and populated on
// creation. Validate applies static checks; DryRun executes the generated
// table definitions against a scratch in-memory database.
package profile
