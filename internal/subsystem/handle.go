package subsystem

import (
	"github.com/google/uuid"
)

// HandleGenerator allocates registry handles.
// Implemented by UUIDv7Generator (production) and testutil.SequentialHandles (tests).
type HandleGenerator interface {
	Generate() (uuid.UUID, error)
}

// UUIDv7Generator generates time-sortable UUIDv7 handles, so sorting the
// registry by handle lists databases in creation order.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7.
func (UUIDv7Generator) Generate() (uuid.UUID, error) {
	return uuid.NewV7()
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithHandleGenerator replaces the UUIDv7 handle generator.
func WithHandleGenerator(g HandleGenerator) Option {
	return func(s *Subsystem) {
		s.handles = g
	}
}
