// Package capability resolves the compile-time feature switches of the
// embedded SQLite engine for one build target.
//
// A Descriptor states what a target wants: its platform, whether the host
// supplies its own OS layer (the custom-OS shim), the thread-safety mode and
// the optional subsystems to compile in. Resolve turns a Descriptor into an
// immutable FlagSet or fails with a *ConfigurationConflict. Resolution is a
// single pass with no side effects; every check runs before any flag is
// produced, so a conflicting descriptor never yields a partial flag set.
//
// # Custom-OS shim
//
// When the host supplies the OS layer, the engine is built with
// SQLITE_OS_OTHER and delegates allocation (SQLITE_ZERO_MALLOC) and locking
// (SQLITE_MUTEX_NOOP) to the host. Extension loading is compiled out
// (SQLITE_OMIT_LOAD_EXTENSION). The shim provides no shared memory, so WAL
// snapshots are unavailable unless explicitly overridden.
//
// # Rendering
//
// A FlagSet renders as SQLITE_* defines, a CGO_CFLAGS string, the matching
// github.com/mattn/go-sqlite3 build tags, or a cgo directive file for a
// package that compiles the amalgamation itself.
package capability
