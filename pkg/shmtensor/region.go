// Package shmtensor implements the C9 shared-memory tensor regions: fixed-
// size named byte regions identified by a UUID v4, reference-counted so
// only the final release frees the OS resource, with a process-global
// quota allocator and TTL-based cleanup sweep. Grounded on
// api/pkg/runner/gpu_memory_tracker.go's xsync.MapOf-keyed, ticker-swept
// tracking of a reference-counted resource set, generalized from GPU slots
// to named memory regions.
package shmtensor

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// Region is a fixed-size named shared-memory mapping. Layout is raw
// bytes; shape/dtype metadata belongs to the logical tensor built on top
// (streamtype.RuntimeData), not to the region itself.
type Region struct {
	id       uuid.UUID
	size     int64
	mapping  mapping
	refCount atomic.Int64
	released atomic.Bool
}

// ID is the region's portable UUID v4 name.
func (r *Region) ID() uuid.UUID { return r.id }

// Size is the region's fixed byte size, set at creation.
func (r *Region) Size() int64 { return r.size }

// Bytes exposes the region's backing memory. Producers write once and
// hand off read-only; concurrent writers are not supported at the region
// level.
func (r *Region) Bytes() []byte { return r.mapping.bytes() }

// ReadAt copies a bounds-checked slice out of the region.
func (r *Region) ReadAt(offset, length int64) ([]byte, error) {
	b := r.mapping.bytes()
	if offset < 0 || length < 0 || offset+length > int64(len(b)) {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "shmtensor: read out of bounds")
	}
	out := make([]byte, length)
	copy(out, b[offset:offset+length])
	return out, nil
}

// WriteAt copies data into the region at offset, bounds-checked.
func (r *Region) WriteAt(offset int64, data []byte) error {
	b := r.mapping.bytes()
	if offset < 0 || offset+int64(len(data)) > int64(len(b)) {
		return corepipeerr.New(corepipeerr.KindValidation, "shmtensor: write out of bounds")
	}
	copy(b[offset:], data)
	return nil
}

// acquire increments the reference count; call once per retained handle
// beyond the one returned by Allocate.
func (r *Region) acquire() { r.refCount.Add(1) }

// release decrements the reference count, returning true when it reaches
// zero (the caller is then responsible for freeing the OS resource).
func (r *Region) release() bool {
	return r.refCount.Add(-1) == 0
}

func (r *Region) refs() int64 { return r.refCount.Load() }

// mapping is the platform-specific backing for a Region's bytes.
type mapping interface {
	bytes() []byte
	close() error
}
