package exec

import (
	"errors"
	"fmt"

	"github.com/wispvm/wisp/wasm"
)

// InvalidImportError is returned when a supplied import does not match the
// module's declaration.
type InvalidImportError struct {
	ModuleName string
	FieldName  string
	Kind       wasm.External
}

func (e *InvalidImportError) Error() string {
	return fmt.Sprintf("wasm: invalid %v import %s.%s", e.Kind, e.ModuleName, e.FieldName)
}

var (
	ErrImportCountMismatch = errors.New("wasm: wrong number of imported functions")
	ErrModuleInstantiated  = errors.New("wasm: module definition already instantiated")

	// ErrDataSegmentDoesNotFit is returned by Instantiate if a data segment
	// attempts to write outside of its target memory's bounds.
	ErrDataSegmentDoesNotFit = errors.New("wasm: data segment does not fit")

	// ErrElementSegmentDoesNotFit is returned by Instantiate if an element
	// segment attempts to write outside of its target table's bounds.
	ErrElementSegmentDoesNotFit = errors.New("wasm: element segment does not fit")

	// ErrStartFunctionTrapped is returned by Instantiate when the module's
	// start function traps. No instance is produced.
	ErrStartFunctionTrapped = errors.New("wasm: start function trapped")
)

// Imports carries the positional import vectors consumed by Instantiate.
// Functions must match the module's declared function imports in order.
// Table, Memory, and Globals are only consulted when the module imports the
// corresponding kind.
type Imports struct {
	Functions []Function
	Table     *Table
	Memory    *Memory
	Globals   []*Global

	// MemoryPagesLimit caps growth of an instance-allocated memory. Zero
	// means DefaultMemoryPagesLimit.
	MemoryPagesLimit uint32
}

// An Instance is the runtime incarnation of a module: its memory, table,
// globals, and bound imports. An Instance is not safe for concurrent use.
type Instance struct {
	def *ModuleDefinition

	memory      *Memory
	memoryOwned bool

	table      *Table
	tableOwned bool

	globals           []*Global // module-defined globals, in declaration order
	importedGlobals   []*Global
	importedFunctions []Function
}

// Instantiate consumes a validated module definition and the given imports
// and produces a live instance. On any failure all resources allocated by
// this call are released and no instance is returned.
func Instantiate(def *ModuleDefinition, imports *Imports) (*Instance, error) {
	if def.instantiated {
		return nil, ErrModuleInstantiated
	}
	if imports == nil {
		imports = &Imports{}
	}

	m := def.module
	inst := &Instance{def: def}

	ok := false
	defer func() {
		if !ok {
			inst.release()
		}
	}()

	// Match imports in declaration order.
	var importedTable *Table
	var importedMemory *Memory
	nextFunc, nextGlobal := 0, 0
	if m.Import != nil {
		for _, entry := range m.Import.Entries {
			switch decl := entry.Type.(type) {
			case wasm.FuncImport:
				if nextFunc >= len(imports.Functions) {
					return nil, ErrImportCountMismatch
				}
				f := imports.Functions[nextFunc]
				nextFunc++
				sig, _ := def.FunctionType(uint32(len(inst.importedFunctions)))
				if !f.Sig.Equals(sig) {
					return nil, importError(entry)
				}
				inst.importedFunctions = append(inst.importedFunctions, f)
			case wasm.TableImport:
				if imports.Table == nil || !limitsMatch(imports.Table.min, imports.Table.max, imports.Table.hasMax, decl.Type.Limits) {
					return nil, importError(entry)
				}
				importedTable = imports.Table
			case wasm.MemoryImport:
				if imports.Memory == nil || !limitsMatch(imports.Memory.min, imports.Memory.max, imports.Memory.hasMax, decl.Type.Limits) {
					return nil, importError(entry)
				}
				importedMemory = imports.Memory
			case wasm.GlobalVarImport:
				if nextGlobal >= len(imports.Globals) {
					return nil, importError(entry)
				}
				g := imports.Globals[nextGlobal]
				nextGlobal++
				if g == nil || g.Type() != decl.Type {
					return nil, importError(entry)
				}
				inst.importedGlobals = append(inst.importedGlobals, g)
			}
		}
	}
	if nextFunc != len(imports.Functions) {
		return nil, ErrImportCountMismatch
	}

	// Allocate memory.
	switch {
	case importedMemory != nil:
		inst.memory = importedMemory
	case m.Memory != nil && len(m.Memory.Entries) != 0:
		limits := m.Memory.Entries[0].Limits
		memory, err := NewMemory(limits.Initial, limits.Maximum, limits.HasMax(), imports.MemoryPagesLimit)
		if err != nil {
			return nil, err
		}
		inst.memory, inst.memoryOwned = memory, true
	}

	// Allocate table.
	switch {
	case importedTable != nil:
		inst.table = importedTable
	case m.Table != nil && len(m.Table.Entries) != 0:
		limits := m.Table.Entries[0].Limits
		inst.table, inst.tableOwned = NewTable(limits.Initial, limits.Maximum, limits.HasMax()), true
	}

	// Evaluate global initializers in declaration order.
	if m.Global != nil {
		for _, g := range m.Global.Globals {
			value, err := evalConstantExpression(inst.importedGlobals, g.Init)
			if err != nil {
				return nil, err
			}
			inst.globals = append(inst.globals, &Global{
				typ:     g.Type.Type,
				mutable: g.Type.Mutable,
				value:   value,
			})
		}
	}

	// Element segments: fully bounds-check every segment before any write so
	// a failure leaves the table unchanged.
	if m.Elements != nil && len(m.Elements.Entries) != 0 {
		offsets := make([]uint32, len(m.Elements.Entries))
		for i, seg := range m.Elements.Entries {
			offset, err := evalConstantExpression(inst.importedGlobals, seg.Offset)
			if err != nil {
				return nil, err
			}
			offsets[i] = uint32(offset)
			if uint64(offsets[i])+uint64(len(seg.Elems)) > uint64(inst.table.Size()) {
				return nil, ErrElementSegmentDoesNotFit
			}
		}
		for i, seg := range m.Elements.Entries {
			for j, funcidx := range seg.Elems {
				inst.table.entries[int(offsets[i])+j] = inst.funcref(funcidx)
			}
		}
	}

	// Data segments: same two-phase discipline on memory bytes.
	if m.Data != nil && len(m.Data.Entries) != 0 {
		offsets := make([]uint32, len(m.Data.Entries))
		var memSize uint64
		if inst.memory != nil {
			memSize = uint64(len(inst.memory.data))
		}
		for i, seg := range m.Data.Entries {
			offset, err := evalConstantExpression(inst.importedGlobals, seg.Offset)
			if err != nil {
				return nil, err
			}
			offsets[i] = uint32(offset)
			if uint64(offsets[i])+uint64(len(seg.Data)) > memSize {
				return nil, ErrDataSegmentDoesNotFit
			}
		}
		for i, seg := range m.Data.Entries {
			copy(inst.memory.data[offsets[i]:], seg.Data)
		}
	}

	// Invoke the start function, if any.
	if m.Start != nil {
		if result := Execute(inst, m.Start.Index, nil, 0); result.Trapped {
			return nil, ErrStartFunctionTrapped
		}
	}

	def.instantiated = true
	ok = true
	return inst, nil
}

func importError(entry wasm.ImportEntry) error {
	return &InvalidImportError{
		ModuleName: entry.ModuleName,
		FieldName:  entry.FieldName,
		Kind:       entry.Type.Kind(),
	}
}

// limitsMatch reports whether provided limits satisfy a declared import: at
// least the declared minimum and, when the declaration is bounded, a bound
// no greater than the declared maximum.
func limitsMatch(min, max uint32, hasMax bool, declared wasm.ResizableLimits) bool {
	if min < declared.Initial {
		return false
	}
	if declared.HasMax() && (!hasMax || max > declared.Maximum) {
		return false
	}
	return true
}

// funcref builds the function reference for the given function index:
// imported functions are referenced directly, module-defined functions are
// wrapped as an (instance, index) pair.
func (i *Instance) funcref(funcidx uint32) *Function {
	if funcidx < uint32(len(i.importedFunctions)) {
		return &i.importedFunctions[int(funcidx)]
	}
	sig, _ := i.def.FunctionType(funcidx)
	return &Function{
		Sig: sig,
		Fn: func(_ any, _ *Instance, args []Value, depth int) ExecutionResult {
			return Execute(i, funcidx, args, depth)
		},
		Env: i,
	}
}

// release frees instance-owned resources. Imported borrows are dropped, not
// freed.
func (i *Instance) release() {
	if i.memoryOwned && i.memory != nil {
		i.memory.Close()
	}
	i.memory = nil
	i.table = nil
	i.globals = nil
	i.importedGlobals = nil
	i.importedFunctions = nil
}

// Close releases the instance's owned resources. The instance must not be
// used afterwards.
func (i *Instance) Close() error {
	i.release()
	return nil
}

// Definition returns the module definition this instance was built from. The
// instance retains ownership.
func (i *Instance) Definition() *ModuleDefinition {
	return i.def
}

// Memory returns the instance's linear memory, or nil if the module declares
// none.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// MemoryData returns the instance's linear memory bytes, or nil if the
// module declares none. The slice is invalidated by memory growth.
func (i *Instance) MemoryData() []byte {
	if i.memory == nil {
		return nil
	}
	return i.memory.Bytes()
}

// MemorySize returns the current size of the instance's linear memory in
// bytes.
func (i *Instance) MemorySize() uint64 {
	if i.memory == nil {
		return 0
	}
	return uint64(len(i.memory.data))
}

// Table returns the instance's table, or nil if the module declares none.
func (i *Instance) Table() *Table {
	return i.table
}

// global returns the global cell for the given index in the global index
// space, imported globals first.
func (i *Instance) global(globalidx uint32) *Global {
	if globalidx < uint32(len(i.importedGlobals)) {
		return i.importedGlobals[int(globalidx)]
	}
	return i.globals[int(globalidx)-len(i.importedGlobals)]
}
