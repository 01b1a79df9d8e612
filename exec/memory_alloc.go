//go:build !mmap

package exec

import "github.com/wispvm/wisp/wasm"

// sliceAllocator backs a memory with ordinary Go slices. Growth copies the
// old contents; new pages are zero by construction.
type sliceAllocator struct{}

func newAllocator(reservePages uint32) allocator {
	return sliceAllocator{}
}

func (sliceAllocator) grow(m *Memory, newPages uint32) error {
	data := make([]byte, uint64(newPages)*wasm.PageSize)
	copy(data, m.data)
	m.data = data
	return nil
}

func (sliceAllocator) free(m *Memory) error {
	m.data = nil
	return nil
}
