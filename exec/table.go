package exec

// Table is a WASM table of function references. A nil entry is
// uninitialized; calling through it traps.
type Table struct {
	min, max uint32
	hasMax   bool
	entries  []*Function
}

// NewTable creates a new table with the given limits.
func NewTable(min, max uint32, hasMax bool) *Table {
	return &Table{min: min, max: max, hasMax: hasMax, entries: make([]*Function, min)}
}

// Limits returns the declared minimum and maximum size of the table.
func (t *Table) Limits() (min, max uint32, hasMax bool) {
	return t.min, t.max, t.hasMax
}

// Size returns the current number of entries.
func (t *Table) Size() uint32 {
	return uint32(len(t.entries))
}

// Entries returns the table's entries.
func (t *Table) Entries() []*Function {
	return t.entries
}

// Get returns the function reference at the given index.
func (t *Table) Get(index uint32) (*Function, bool) {
	if index >= uint32(len(t.entries)) {
		return nil, false
	}
	return t.entries[int(index)], true
}

// Set stores a function reference at the given index.
func (t *Table) Set(index uint32, f *Function) bool {
	if index >= uint32(len(t.entries)) {
		return false
	}
	t.entries[int(index)] = f
	return true
}
