// Package testutil holds helpers shared by package tests.
package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialHandles generates predictable UUIDv7-shaped handles:
// 00000000-0000-7000-8000-000000000001, ...000002 and so on.
//
// This enables deterministic registry assertions. Handles sort in the order
// they were generated.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialHandles struct {
	mu  sync.Mutex
	seq uint32
}

// NewSequentialHandles creates a generator whose first handle ends in 1.
func NewSequentialHandles() *SequentialHandles {
	return &SequentialHandles{}
}

// Generate returns the next handle.
func (g *SequentialHandles) Generate() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return Handle(g.seq), nil
}

// Handle returns the n-th handle SequentialHandles generates.
func Handle(n uint32) uuid.UUID {
	var id uuid.UUID
	id[6] = 0x70 // version 7
	id[8] = 0x80 // RFC 4122 variant
	binary.BigEndian.PutUint32(id[12:], n)
	return id
}
