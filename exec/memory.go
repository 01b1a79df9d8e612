package exec

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/wispvm/wisp/wasm"
)

var ErrLimitExceeded = errors.New("memory limit exceeded")

// DefaultMemoryPagesLimit is the default hard ceiling for memory growth.
const DefaultMemoryPagesLimit = wasm.MaxMemoryPages

// An allocator provides the backing storage for a linear memory. The default
// allocator copies into freshly made slices; the mmap-tagged build reserves
// the maximum up front and adjusts page protection instead.
type allocator interface {
	grow(m *Memory, newPages uint32) error
	free(m *Memory) error
}

// Memory is a WASM linear memory. The byte slice always has length equal to
// the current size, so slice bounds checks double as access traps.
type Memory struct {
	min, max uint32 // declared limits in pages; max only valid if hasMax
	hasMax   bool
	hardMax  uint32 // growth ceiling in pages

	data  []byte
	alloc allocator
}

// NewMemory allocates a linear memory of min pages that may grow to the
// declared maximum, capped by the hard ceiling.
func NewMemory(min, max uint32, hasMax bool, hardMax uint32) (*Memory, error) {
	if hardMax == 0 || hardMax > wasm.MaxMemoryPages {
		hardMax = DefaultMemoryPagesLimit
	}
	m := &Memory{min: min, max: max, hasMax: hasMax, hardMax: hardMax}
	m.alloc = newAllocator(m.reserve())
	if min > m.reserve() {
		return nil, ErrLimitExceeded
	}
	if err := m.alloc.grow(m, min); err != nil {
		return nil, err
	}
	return m, nil
}

// reserve returns the number of pages this memory may ever occupy.
func (m *Memory) reserve() uint32 {
	if m.hasMax && m.max < m.hardMax {
		return m.max
	}
	return m.hardMax
}

// Limits returns the declared minimum and maximum size in pages.
func (m *Memory) Limits() (min, max uint32, hasMax bool) {
	return m.min, m.max, m.hasMax
}

// Size returns the current size of the memory in pages.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data) / wasm.PageSize)
}

// Grow grows the memory by the given number of pages and returns the
// previous size in pages. Growth past the declared maximum or the hard
// ceiling fails with ErrLimitExceeded; the memory is unchanged on failure.
func (m *Memory) Grow(pages uint32) (uint32, error) {
	currentSize := m.Size()
	newSize := uint64(currentSize) + uint64(pages)
	if newSize > uint64(m.reserve()) {
		return currentSize, ErrLimitExceeded
	}
	if pages == 0 {
		return currentSize, nil
	}
	if err := m.alloc.grow(m, uint32(newSize)); err != nil {
		return currentSize, err
	}
	return currentSize, nil
}

// Bytes returns the memory's bytes. The slice is invalidated by Grow.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Close releases the memory's backing storage.
func (m *Memory) Close() error {
	return m.alloc.free(m)
}

func effectiveAddress(base, offset uint32) uint64 {
	return uint64(base) + uint64(offset)
}

// Byte returns the byte stored at the given effective address.
func (m *Memory) Byte(base, offset uint32) byte {
	return m.data[effectiveAddress(base, offset)]
}

// PutByte writes the given byte to the given effective address.
func (m *Memory) PutByte(v byte, base, offset uint32) {
	m.data[effectiveAddress(base, offset)] = v
}

// Uint16 returns the uint16 stored at the given effective address.
func (m *Memory) Uint16(base, offset uint32) uint16 {
	return binary.LittleEndian.Uint16(m.view(base, offset, 2))
}

// PutUint16 writes the given uint16 to the given effective address.
func (m *Memory) PutUint16(v uint16, base, offset uint32) {
	binary.LittleEndian.PutUint16(m.view(base, offset, 2), v)
}

// Uint32 returns the uint32 stored at the given effective address.
func (m *Memory) Uint32(base, offset uint32) uint32 {
	return binary.LittleEndian.Uint32(m.view(base, offset, 4))
}

// PutUint32 writes the given uint32 to the given effective address.
func (m *Memory) PutUint32(v uint32, base, offset uint32) {
	binary.LittleEndian.PutUint32(m.view(base, offset, 4), v)
}

// Uint64 returns the uint64 stored at the given effective address.
func (m *Memory) Uint64(base, offset uint32) uint64 {
	return binary.LittleEndian.Uint64(m.view(base, offset, 8))
}

// PutUint64 writes the given uint64 to the given effective address.
func (m *Memory) PutUint64(v uint64, base, offset uint32) {
	binary.LittleEndian.PutUint64(m.view(base, offset, 8), v)
}

// Float32 returns the float32 stored at the given effective address.
func (m *Memory) Float32(base, offset uint32) float32 {
	return math.Float32frombits(m.Uint32(base, offset))
}

// PutFloat32 writes the given float32 to the given effective address.
func (m *Memory) PutFloat32(v float32, base, offset uint32) {
	m.PutUint32(math.Float32bits(v), base, offset)
}

// Float64 returns the float64 stored at the given effective address.
func (m *Memory) Float64(base, offset uint32) float64 {
	return math.Float64frombits(m.Uint64(base, offset))
}

// PutFloat64 writes the given float64 to the given effective address.
func (m *Memory) PutFloat64(v float64, base, offset uint32) {
	m.PutUint64(math.Float64bits(v), base, offset)
}

// view slices size bytes at the effective address, trapping when the access
// extends past the current memory size. The backing slice may have spare
// capacity (the mmap allocator reserves the maximum up front), so the bound
// is checked against the length explicitly.
func (m *Memory) view(base, offset uint32, size uint64) []byte {
	ea := effectiveAddress(base, offset)
	if ea+size > uint64(len(m.data)) {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	return m.data[ea:]
}
