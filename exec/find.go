package exec

import "github.com/wispvm/wisp/wasm"

// FindExportedFunction returns a callable view of the instance's export with
// the given name. The returned function may be used as another module's
// function import, wiring instances together.
func FindExportedFunction(i *Instance, name string) (*Function, bool) {
	funcidx, ok := i.def.ExportedFunction(name)
	if !ok {
		return nil, false
	}
	return i.funcref(funcidx), true
}

// FindExportedGlobal returns a borrow of the instance's exported global cell
// with the given name. Writes through the borrow are observed by the
// exporting instance.
func FindExportedGlobal(i *Instance, name string) (*Global, bool) {
	index, ok := i.findExport(name, wasm.ExternalGlobal)
	if !ok {
		return nil, false
	}
	return i.global(index), true
}

// FindExportedTable returns a borrow of the instance's exported table.
func FindExportedTable(i *Instance, name string) (*Table, bool) {
	if _, ok := i.findExport(name, wasm.ExternalTable); !ok || i.table == nil {
		return nil, false
	}
	return i.table, true
}

// FindExportedMemory returns a borrow of the instance's exported memory.
func FindExportedMemory(i *Instance, name string) (*Memory, bool) {
	if _, ok := i.findExport(name, wasm.ExternalMemory); !ok || i.memory == nil {
		return nil, false
	}
	return i.memory, true
}

func (i *Instance) findExport(name string, kind wasm.External) (uint32, bool) {
	if i.def.module.Export == nil {
		return 0, false
	}
	for _, e := range i.def.module.Export.Entries {
		if e.Kind == kind && e.FieldStr == name {
			return e.Index, true
		}
	}
	return 0, false
}
