package profile

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/embedsql/internal/capability"
)

// Target is a named build target and the descriptor it resolves from.
type Target struct {
	Name       string
	Descriptor capability.Descriptor
	Pos        token.Pos
}

// Resolve resolves the target's descriptor into its flag set.
func (t *Target) Resolve() (*capability.FlagSet, error) {
	return capability.Resolve(t.Descriptor)
}

var targetFields = map[string]bool{
	"platform":            true,
	"custom_os_shim":      true,
	"thread_safety":       true,
	"foreign_keys":        true,
	"features":            true,
	"overrides":           true,
	"extension_loading":   true,
	"delegated_allocator": true,
	"delegated_mutex":     true,
}

// CompileTarget parses a CUE target struct into a Target.
//
// The CUE value should be the target struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`target: desktop: { platform: "windows" }`)
//	t, err := CompileTarget(v.LookupPath(cue.ParsePath("target.desktop")))
//
// Field values are not checked against each other here; that is
// capability.Resolve's job.
func CompileTarget(v cue.Value) (*Target, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	t := &Target{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		t.Name = labels[len(labels)-1].String()
	}
	t.Descriptor.Target = t.Name

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		if !targetFields[iter.Label()] {
			return nil, &CompileError{
				Field:   "target",
				Message: fmt.Sprintf("unknown field %q in target %s", iter.Label(), t.Name),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	d := &t.Descriptor
	if d.Platform, err = optionalString(v, "platform"); err != nil {
		return nil, err
	}
	var threadSafety string
	if threadSafety, err = optionalString(v, "thread_safety"); err != nil {
		return nil, err
	}
	d.ThreadSafety = capability.ThreadSafety(threadSafety)

	shim, err := optionalBool(v, "custom_os_shim")
	if err != nil {
		return nil, err
	}
	d.CustomOSShim = shim != nil && *shim

	if d.ForeignKeys, err = optionalBool(v, "foreign_keys"); err != nil {
		return nil, err
	}
	if d.ExtensionLoading, err = optionalBool(v, "extension_loading"); err != nil {
		return nil, err
	}
	if d.DelegatedAllocator, err = optionalBool(v, "delegated_allocator"); err != nil {
		return nil, err
	}
	if d.DelegatedMutex, err = optionalBool(v, "delegated_mutex"); err != nil {
		return nil, err
	}

	features, err := optionalStrings(v, "features")
	if err != nil {
		return nil, err
	}
	if len(features) > 0 {
		d.Features = make(map[capability.Feature]bool, len(features))
		for _, f := range features {
			d.Features[capability.Feature(f)] = true
		}
	}

	if d.Overrides, err = optionalStrings(v, "overrides"); err != nil {
		return nil, err
	}

	return t, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (*bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a bool", Pos: fv.Pos()}
	}
	return &b, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: fv.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}
