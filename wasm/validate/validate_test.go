package validate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
)

func expr(instrs ...code.Instruction) []byte {
	var buf bytes.Buffer
	if err := code.Encode(&buf, instrs); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func i32Const(v int32) []byte {
	return expr(code.I32Const(v), code.End())
}

func validModule() *wasm.Module {
	return &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				{Form: wasm.TypeFunc, ParamTypes: nil, ReturnTypes: nil},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.End())}},
		},
	}
}

func TestValidModule(t *testing.T) {
	require.NoError(t, ValidateModule(validModule(), true))
}

func TestFunctionCodeLengthMismatch(t *testing.T) {
	m := validModule()
	m.Code.Bodies = nil
	require.Error(t, ValidateModule(m, false))

	m = validModule()
	m.Function = nil
	require.Error(t, ValidateModule(m, false))
}

func TestUnknownTypeIndex(t *testing.T) {
	m := validModule()
	m.Function.Types = []uint32{3}
	require.Error(t, ValidateModule(m, false))
}

func TestLimitsMinGreaterThanMax(t *testing.T) {
	m := validModule()
	m.Memory = &wasm.SectionMemories{
		Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Flags: 1, Initial: 4, Maximum: 2}}},
	}
	require.Error(t, ValidateModule(m, false))
}

func TestMemoryPageCeiling(t *testing.T) {
	m := validModule()
	m.Memory = &wasm.SectionMemories{
		Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 65537}}},
	}
	require.Error(t, ValidateModule(m, false))

	m.Memory.Entries[0].Limits = wasm.ResizableLimits{Flags: 1, Initial: 1, Maximum: 70000}
	require.Error(t, ValidateModule(m, false))

	m.Memory.Entries[0].Limits = wasm.ResizableLimits{Flags: 1, Initial: 1, Maximum: 65536}
	require.NoError(t, ValidateModule(m, false))
}

func TestMultipleMemoriesRejected(t *testing.T) {
	m := validModule()
	m.Import = &wasm.SectionImports{
		Entries: []wasm.ImportEntry{
			{ModuleName: "a", FieldName: "m", Type: wasm.MemoryImport{
				Type: wasm.Memory{Limits: wasm.ResizableLimits{Initial: 1}},
			}},
		},
	}
	m.Memory = &wasm.SectionMemories{
		Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
	}
	require.Error(t, ValidateModule(m, false))
}

func TestMultipleTablesRejected(t *testing.T) {
	m := validModule()
	m.Import = &wasm.SectionImports{
		Entries: []wasm.ImportEntry{
			{ModuleName: "a", FieldName: "t", Type: wasm.TableImport{
				Type: wasm.Table{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 1}},
			}},
		},
	}
	m.Table = &wasm.SectionTables{
		Entries: []wasm.Table{{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 1}}},
	}
	require.Error(t, ValidateModule(m, false))
}

func TestStartFunctionSignature(t *testing.T) {
	m := validModule()
	m.Start = &wasm.SectionStartFunction{Index: 0}
	require.NoError(t, ValidateModule(m, true))

	m = validModule()
	m.Types.Entries[0] = wasm.FunctionSig{
		Form:        wasm.TypeFunc,
		ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32},
	}
	m.Code.Bodies[0].Code = i32Const(1)
	m.Start = &wasm.SectionStartFunction{Index: 0}
	require.Error(t, ValidateModule(m, true))

	m = validModule()
	m.Start = &wasm.SectionStartFunction{Index: 9}
	require.Error(t, ValidateModule(m, false))
}

func TestDuplicateExportNames(t *testing.T) {
	m := validModule()
	m.Export = &wasm.SectionExports{
		Entries: []wasm.ExportEntry{
			{FieldStr: "f", Kind: wasm.ExternalFunction, Index: 0},
			{FieldStr: "f", Kind: wasm.ExternalFunction, Index: 0},
		},
	}
	require.Error(t, ValidateModule(m, false))
}

func TestExportUnknownIndex(t *testing.T) {
	m := validModule()
	m.Export = &wasm.SectionExports{
		Entries: []wasm.ExportEntry{{FieldStr: "f", Kind: wasm.ExternalFunction, Index: 4}},
	}
	require.Error(t, ValidateModule(m, false))

	m = validModule()
	m.Export = &wasm.SectionExports{
		Entries: []wasm.ExportEntry{{FieldStr: "m", Kind: wasm.ExternalMemory, Index: 0}},
	}
	require.Error(t, ValidateModule(m, false))
}

func TestElementSegmentValidation(t *testing.T) {
	m := validModule()
	m.Table = &wasm.SectionTables{
		Entries: []wasm.Table{{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 1}}},
	}
	m.Elements = &wasm.SectionElements{
		Entries: []wasm.ElementSegment{{Offset: i32Const(0), Elems: []uint32{0}}},
	}
	require.NoError(t, ValidateModule(m, true))

	// Unknown function index in the segment.
	m.Elements.Entries[0].Elems = []uint32{5}
	require.Error(t, ValidateModule(m, true))

	// Offset expression of the wrong type.
	m.Elements.Entries[0] = wasm.ElementSegment{
		Offset: expr(code.I64Const(0), code.End()),
		Elems:  []uint32{0},
	}
	require.Error(t, ValidateModule(m, true))

	// No table at all.
	m2 := validModule()
	m2.Elements = &wasm.SectionElements{
		Entries: []wasm.ElementSegment{{Offset: i32Const(0), Elems: []uint32{0}}},
	}
	require.Error(t, ValidateModule(m2, true))
}

func TestDataSegmentValidation(t *testing.T) {
	m := validModule()
	m.Memory = &wasm.SectionMemories{
		Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
	}
	m.Data = &wasm.SectionData{
		Entries: []wasm.DataSegment{{Offset: i32Const(0), Data: []byte{1}}},
	}
	require.NoError(t, ValidateModule(m, true))

	m.Data.Entries[0].Offset = expr(code.F32Const(0), code.End())
	require.Error(t, ValidateModule(m, true))
}

func TestGlobalInitValidation(t *testing.T) {
	m := validModule()
	m.Global = &wasm.SectionGlobals{
		Globals: []wasm.GlobalEntry{
			{Type: wasm.GlobalVar{Type: wasm.ValueTypeI64}, Init: expr(code.I64Const(9), code.End())},
		},
	}
	require.NoError(t, ValidateModule(m, true))

	// Initializer type mismatch.
	m.Global.Globals[0].Init = i32Const(9)
	require.Error(t, ValidateModule(m, true))
}

func TestGlobalInitFromImportedGlobal(t *testing.T) {
	m := validModule()
	m.Import = &wasm.SectionImports{
		Entries: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "g", Type: wasm.GlobalVarImport{
				Type: wasm.GlobalVar{Type: wasm.ValueTypeI32},
			}},
		},
	}
	m.Global = &wasm.SectionGlobals{
		Globals: []wasm.GlobalEntry{
			{Type: wasm.GlobalVar{Type: wasm.ValueTypeI32}, Init: expr(code.GlobalGet(0), code.End())},
		},
	}
	require.NoError(t, ValidateModule(m, true))

	// A mutable imported global is not a constant expression.
	m.Import.Entries[0].Type = wasm.GlobalVarImport{
		Type: wasm.GlobalVar{Type: wasm.ValueTypeI32, Mutable: true},
	}
	require.Error(t, ValidateModule(m, true))

	// Unknown global index.
	m.Import.Entries[0].Type = wasm.GlobalVarImport{
		Type: wasm.GlobalVar{Type: wasm.ValueTypeI32},
	}
	m.Global.Globals[0].Init = expr(code.GlobalGet(7), code.End())
	require.Error(t, ValidateModule(m, true))
}

func TestTooManyLocals(t *testing.T) {
	m := validModule()
	m.Code.Bodies[0].Locals = []wasm.LocalEntry{
		{Count: 40000, Type: wasm.ValueTypeI32},
		{Count: 20000, Type: wasm.ValueTypeI32},
	}
	require.Error(t, ValidateModule(m, false))
}

func TestBodyValidationRunsWhenRequested(t *testing.T) {
	m := validModule()
	m.Code.Bodies[0].Code = expr(code.I32Const(1), code.End()) // leaves a value on a void function

	require.NoError(t, ValidateModule(m, false))
	require.Error(t, ValidateModule(m, true))
}
