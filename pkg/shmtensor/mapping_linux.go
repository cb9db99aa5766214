//go:build linux

package shmtensor

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"golang.org/x/sys/unix"
)

// platformCapable reports POSIX shared-memory support: presence of the
// /dev/shm tmpfs mount.
func platformCapable() bool {
	info, err := os.Stat("/dev/shm")
	return err == nil && info.IsDir()
}

type unixMapping struct {
	f    *os.File
	data []byte
}

func newMapping(id uuid.UUID, size int64) (mapping, error) {
	path := fmt.Sprintf("/dev/shm/corepipe-%s", id.String())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindResourceLimit, err, "shmtensor: failed to create shared-memory file")
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, corepipeerr.Wrap(corepipeerr.KindResourceLimit, err, "shmtensor: failed to size shared-memory region")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, corepipeerr.Wrap(corepipeerr.KindResourceLimit, err, "shmtensor: mmap failed")
	}

	return &unixMapping{f: f, data: data}, nil
}

func (m *unixMapping) bytes() []byte { return m.data }

func (m *unixMapping) close() error {
	name := m.f.Name()
	if err := unix.Munmap(m.data); err != nil {
		return err
	}
	if err := m.f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
