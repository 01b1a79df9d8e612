//go:build mmap && (linux || darwin)

package exec

import (
	"golang.org/x/sys/unix"

	"github.com/wispvm/wisp/wasm"
)

// mmapAllocator reserves the memory's maximum size up front with PROT_NONE
// and opens pages read-write as the memory grows. Grow never moves the
// backing bytes, so views handed out by Bytes stay valid across growth.
type mmapAllocator struct {
	region []byte
}

func newAllocator(reservePages uint32) allocator {
	region, err := unix.Mmap(-1, 0, int(uint64(reservePages)*wasm.PageSize),
		unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// Reservation failed; fall back to slice-backed growth.
		return sliceFallback{}
	}
	return &mmapAllocator{region: region}
}

func (a *mmapAllocator) grow(m *Memory, newPages uint32) error {
	newLen := int(uint64(newPages) * wasm.PageSize)
	if newLen > len(a.region) {
		return ErrLimitExceeded
	}
	if newLen > len(m.data) {
		if err := unix.Mprotect(a.region[len(m.data):newLen], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return err
		}
	}
	m.data = a.region[:newLen]
	return nil
}

func (a *mmapAllocator) free(m *Memory) error {
	m.data = nil
	if a.region == nil {
		return nil
	}
	region := a.region
	a.region = nil
	return unix.Munmap(region)
}

type sliceFallback struct{}

func (sliceFallback) grow(m *Memory, newPages uint32) error {
	data := make([]byte, uint64(newPages)*wasm.PageSize)
	copy(data, m.data)
	m.data = data
	return nil
}

func (sliceFallback) free(m *Memory) error {
	m.data = nil
	return nil
}
