//go:build windows

package shmtensor

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"golang.org/x/sys/windows"
)

func unsafeSliceFromPtr(addr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// platformCapable is unconditionally true: named file mappings are a
// standard Windows kernel facility.
func platformCapable() bool { return true }

type windowsMapping struct {
	handle windows.Handle
	addr   uintptr
	data   []byte
}

func newMapping(id uuid.UUID, size int64) (mapping, error) {
	name, err := windows.UTF16PtrFromString(fmt.Sprintf("Local\\corepipe-%s", id.String()))
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "shmtensor: failed to encode mapping name")
	}

	handle, err := windows.CreateFileMapping(
		windows.InvalidHandle,
		nil,
		windows.PAGE_READWRITE,
		uint32(size>>32),
		uint32(size&0xffffffff),
		name,
	)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindResourceLimit, err, "shmtensor: CreateFileMapping failed")
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, corepipeerr.Wrap(corepipeerr.KindResourceLimit, err, "shmtensor: MapViewOfFile failed")
	}

	data := unsafeSliceFromPtr(addr, int(size))
	return &windowsMapping{handle: handle, addr: addr, data: data}, nil
}

func (m *windowsMapping) bytes() []byte { return m.data }

func (m *windowsMapping) close() error {
	if err := windows.UnmapViewOfFile(m.addr); err != nil {
		return err
	}
	return windows.CloseHandle(m.handle)
}
