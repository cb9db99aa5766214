//go:build !linux && !windows

package shmtensor

import (
	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"golang.org/x/sys/unix"
)

// platformCapable is conservative on platforms where we only have the
// anonymous-mapping fallback: capability detection lets callers prefer
// the inline byte-payload path instead.
func platformCapable() bool { return false }

// anonMapping degrades to an anonymous private mapping: it satisfies the
// Region contract (fixed-size addressable bytes, freed on close) but does
// not name a facility other processes can attach to.
type anonMapping struct {
	data []byte
}

func newMapping(_ uuid.UUID, size int64) (mapping, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindResourceLimit, err, "shmtensor: anonymous mmap failed")
	}
	return &anonMapping{data: data}, nil
}

func (m *anonMapping) bytes() []byte { return m.data }

func (m *anonMapping) close() error {
	return unix.Munmap(m.data)
}
