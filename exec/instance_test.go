package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
)

func TestInstantiateStartTrapAbortsInstantiation(t *testing.T) {
	m := &wasm.Module{
		Version:  1,
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, nil)}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Start:    &wasm.SectionStartFunction{Index: 0},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Unreachable(), code.End())}},
		},
	}
	inst, err := Instantiate(definition(t, m), nil)
	require.ErrorIs(t, err, ErrStartFunctionTrapped)
	assert.Nil(t, inst)
}

func TestInstantiateStartRuns(t *testing.T) {
	// The start function writes a marker into memory before any export is
	// callable.
	m := &wasm.Module{
		Version:  1,
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, nil)}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Start: &wasm.SectionStartFunction{Index: 0},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(code.I32Const(0), code.I32Const(0x1234), code.I32Store(0, 2), code.End()),
			}},
		},
	}
	inst := instantiate(t, m, nil)
	assert.Equal(t, byte(0x34), inst.MemoryData()[0])
	assert.Equal(t, byte(0x12), inst.MemoryData()[1])
}

func TestInstantiateImportSignatureMismatch(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types:   &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, nil)}},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "log", Type: wasm.FuncImport{Type: 0}},
			},
		},
	}
	wrong := Function{
		Sig: sig([]wasm.ValueType{i64}, nil),
		Fn:  func(any, *Instance, []Value, int) ExecutionResult { return Void },
	}

	_, err := Instantiate(definition(t, m), &Imports{Functions: []Function{wrong}})
	var importErr *InvalidImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, "env", importErr.ModuleName)
	assert.Equal(t, "log", importErr.FieldName)
}

func TestInstantiateImportCountMismatch(t *testing.T) {
	def := definition(t, addModule())
	extra := Function{
		Sig: sig(nil, nil),
		Fn:  func(any, *Instance, []Value, int) ExecutionResult { return Void },
	}
	_, err := Instantiate(def, &Imports{Functions: []Function{extra}})
	require.ErrorIs(t, err, ErrImportCountMismatch)
}

func TestInstantiateConsumesDefinition(t *testing.T) {
	def := definition(t, addModule())

	inst, err := Instantiate(def, nil)
	require.NoError(t, err)
	defer inst.Close()

	_, err = Instantiate(def, nil)
	require.ErrorIs(t, err, ErrModuleInstantiated)
}

func globalImportModule(mutable bool) *wasm.Module {
	return &wasm.Module{
		Version: 1,
		Types:   &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, []wasm.ValueType{i32})}},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "g", Type: wasm.GlobalVarImport{
					Type: wasm.GlobalVar{Type: i32, Mutable: mutable},
				}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "get", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.GlobalGet(0), code.End())}},
		},
	}
}

func TestImportedGlobalTypeMismatch(t *testing.T) {
	m := globalImportModule(false)
	_, err := Instantiate(definition(t, m), &Imports{Globals: []*Global{NewGlobalI32(true, 1)}})
	var importErr *InvalidImportError
	require.ErrorAs(t, err, &importErr)
}

func TestImportedMutableGlobalIsShared(t *testing.T) {
	m := globalImportModule(true)

	cell := NewGlobalI32(true, 7)
	inst, err := Instantiate(definition(t, m), &Imports{Globals: []*Global{cell}})
	require.NoError(t, err)
	defer inst.Close()

	assert.Equal(t, int32(7), execute(t, inst, "get").Value.I32())

	// A write through the exporter's view is observed by the instance.
	cell.Set(uint64(uint32(99)))
	assert.Equal(t, int32(99), execute(t, inst, "get").Value.I32())
}

func TestGlobalInitFromImportedGlobal(t *testing.T) {
	m := globalImportModule(false)
	m.Global = &wasm.SectionGlobals{
		Globals: []wasm.GlobalEntry{{
			Type: wasm.GlobalVar{Type: i32},
			Init: expr(code.GlobalGet(0), code.End()),
		}},
	}
	m.Code.Bodies[0].Code = expr(code.GlobalGet(1), code.End())

	inst, err := Instantiate(definition(t, m), &Imports{Globals: []*Global{NewGlobalI32(false, 41)}})
	require.NoError(t, err)
	defer inst.Close()

	assert.Equal(t, int32(41), execute(t, inst, "get").Value.I32())
}

func TestElementSegmentOutOfBoundsLeavesTableUnchanged(t *testing.T) {
	m := &wasm.Module{
		Version:  1,
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, nil)}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "t", Type: wasm.TableImport{
					Type: wasm.Table{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 2}},
				}},
			},
		},
		Elements: &wasm.SectionElements{
			Entries: []wasm.ElementSegment{
				{Offset: i32Const(0), Elems: []uint32{0}},
				{Offset: i32Const(5), Elems: []uint32{0}},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.End())}},
		},
	}

	table := NewTable(2, 0, false)
	_, err := Instantiate(definition(t, m), &Imports{Table: table})
	require.ErrorIs(t, err, ErrElementSegmentDoesNotFit)

	// The first, in-bounds segment must not have been applied.
	for _, entry := range table.Entries() {
		assert.Nil(t, entry)
	}
}

func TestElementSegmentBoundaryIsInclusive(t *testing.T) {
	m := &wasm.Module{
		Version:  1,
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, nil)}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Table: &wasm.SectionTables{
			Entries: []wasm.Table{{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Elements: &wasm.SectionElements{
			// An empty segment placed exactly at the table size is legal.
			Entries: []wasm.ElementSegment{{Offset: i32Const(1), Elems: nil}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.End())}},
		},
	}
	inst, err := Instantiate(definition(t, m), nil)
	require.NoError(t, err)
	inst.Close()
}

func TestDataSegmentOutOfBoundsLeavesMemoryUnchanged(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "m", Type: wasm.MemoryImport{
					Type: wasm.Memory{Limits: wasm.ResizableLimits{Initial: 1}},
				}},
			},
		},
		Data: &wasm.SectionData{
			Entries: []wasm.DataSegment{
				{Offset: i32Const(0), Data: []byte{1, 2, 3}},
				{Offset: i32Const(wasm.PageSize - 1), Data: []byte{4, 5}},
			},
		},
	}

	memory, err := NewMemory(1, 0, false, 0)
	require.NoError(t, err)
	defer memory.Close()

	_, err = Instantiate(definition(t, m), &Imports{Memory: memory})
	require.ErrorIs(t, err, ErrDataSegmentDoesNotFit)

	for _, b := range memory.Bytes()[:8] {
		assert.Zero(t, b)
	}
}

func TestDataSegmentsApplied(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Data: &wasm.SectionData{
			Entries: []wasm.DataSegment{
				{Offset: i32Const(8), Data: []byte("hello")},
			},
		},
	}
	inst := instantiate(t, m, nil)
	assert.Equal(t, []byte("hello"), inst.MemoryData()[8:13])
}

func TestImportedTableLimitsMismatch(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "t", Type: wasm.TableImport{
					Type: wasm.Table{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 4}},
				}},
			},
		},
	}

	_, err := Instantiate(definition(t, m), &Imports{Table: NewTable(2, 0, false)})
	var importErr *InvalidImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, wasm.ExternalTable, importErr.Kind)
}

func TestImportedMemoryTooSmall(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "m", Type: wasm.MemoryImport{
					Type: wasm.Memory{Limits: wasm.ResizableLimits{Initial: 2}},
				}},
			},
		},
	}

	memory, err := NewMemory(1, 0, false, 0)
	require.NoError(t, err)
	defer memory.Close()

	_, err = Instantiate(definition(t, m), &Imports{Memory: memory})
	var importErr *InvalidImportError
	require.ErrorAs(t, err, &importErr)
}
