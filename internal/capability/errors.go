package capability

import (
	"errors"
	"fmt"
	"strings"
)

// ConflictCode categorizes configuration conflicts.
type ConflictCode string

const (
	// ErrCodeShimExtensionLoading: the custom-OS shim with extension loading enabled.
	ErrCodeShimExtensionLoading ConflictCode = "SHIM_EXTENSION_LOADING"

	// ErrCodePartialDelegation: the shim with the allocator or mutex kept built-in.
	ErrCodePartialDelegation ConflictCode = "PARTIAL_DELEGATION"

	// ErrCodeDelegationWithoutShim: delegated allocator or mutex with no host shim to delegate to.
	ErrCodeDelegationWithoutShim ConflictCode = "DELEGATION_WITHOUT_SHIM"

	// ErrCodeThreadSafetyMutex: single-thread mode with a delegated mutex.
	ErrCodeThreadSafetyMutex ConflictCode = "THREADSAFE_DELEGATED_MUTEX"

	// ErrCodeExperimental: an experimental feature or platform requested without override.
	ErrCodeExperimental ConflictCode = "EXPERIMENTAL_FEATURE"

	// ErrCodeFeatureDependency: a feature requested without the feature it builds on.
	ErrCodeFeatureDependency ConflictCode = "FEATURE_DEPENDENCY"

	// ErrCodeUnknownPlatform: the platform is missing or not in the catalog.
	ErrCodeUnknownPlatform ConflictCode = "UNKNOWN_PLATFORM"

	// ErrCodeUnknownFeature: a feature or override name the configurator does not know.
	ErrCodeUnknownFeature ConflictCode = "UNKNOWN_FEATURE"

	// ErrCodeInvalidThreadSafety: the thread-safety value is not a known mode.
	ErrCodeInvalidThreadSafety ConflictCode = "INVALID_THREAD_SAFETY"
)

// ConfigurationConflict is raised when requested flags cannot be resolved
// together. It is always fatal to the build; there is no fallback value.
type ConfigurationConflict struct {
	// Code identifies the conflict category.
	Code ConflictCode `json:"code"`

	// Target is the build target being resolved.
	Target string `json:"target,omitempty"`

	// Flags names the incompatible switches.
	Flags []string `json:"flags,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ConfigurationConflict) Error() string {
	var b strings.Builder
	b.WriteString("configuration conflict ")
	b.WriteString(string(e.Code))
	if e.Target != "" {
		fmt.Fprintf(&b, " (target=%s)", e.Target)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Flags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Flags, ", "))
	}
	return b.String()
}

// IsConfigurationConflict returns true if err is, or wraps, a ConfigurationConflict.
func IsConfigurationConflict(err error) bool {
	var cc *ConfigurationConflict
	return errors.As(err, &cc)
}

// ConflictCodeOf extracts the conflict code from err.
// Returns "" if err is not a ConfigurationConflict.
func ConflictCodeOf(err error) ConflictCode {
	var cc *ConfigurationConflict
	if errors.As(err, &cc) {
		return cc.Code
	}
	return ""
}

func newConflict(target string, code ConflictCode, message string, flags ...string) *ConfigurationConflict {
	return &ConfigurationConflict{
		Code:    code,
		Target:  target,
		Flags:   flags,
		Message: message,
	}
}
