package profile

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Load error codes (E001-E009).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeParseFailed = "E007" // YAML parse failed
)

// Asset validation codes (E200-E299).
const (
	ErrApplicationID     = "E201" // application_id must be non-zero
	ErrInvalidEnum       = "E202" // unknown open, threading or cache mode
	ErrDatabaseName      = "E203" // database file name rules
	ErrAttachmentFile    = "E204" // empty attachment file name
	ErrAttachmentDup     = "E205" // attachment file used twice
	ErrAttachmentSchema  = "E206" // empty, duplicate or reserved schema
	ErrStoredStatement   = "E207" // empty or duplicate stored statement
	ErrTableDefinition   = "E208" // invalid custom table
	ErrDryRun            = "E210" // generated DDL rejected by the engine
	ErrDryRunUnavailable = "E211" // scratch database could not be opened
)

// Target and module graph codes (E300-E399).
const (
	ErrTargetField      = "E301" // unknown or mistyped target field
	ErrTargetConflict   = "E302" // target does not resolve
	ErrTargetNotFound   = "E303" // no target with that name
	ErrModuleKind       = "E310" // unknown module kind
	ErrModuleUnknownDep = "E311" // dependency on an undefined module
	ErrEngineLinks      = "E312" // engine not linked by exactly one library
	ErrEngineBypass     = "E313" // non-library links the engine directly
	ErrModuleCycle      = "E314" // dependency cycle
	ErrEngineUnreached  = "E315" // consumer does not reach the engine library
	ErrApplicationDep   = "E316" // something depends on an application
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationError represents a rule violation in a definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}
