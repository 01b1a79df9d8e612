package exec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
)

func addModule() *wasm.Module {
	return &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32, i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "add", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(code.LocalGet(0), code.LocalGet(1), code.Op(code.OpI32Add), code.End()),
			}},
		},
	}
}

func TestAdd(t *testing.T) {
	inst := instantiate(t, addModule(), nil)

	result := execute(t, inst, "add", I32Value(2), I32Value(3))
	require.True(t, result.HasValue)
	assert.Equal(t, int32(5), result.Value.I32())
}

func TestDivTrapsOnZero(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "div", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(code.I32Const(10), code.LocalGet(0), code.Op(code.OpI32DivS), code.End()),
			}},
		},
	}
	inst := instantiate(t, m, nil)

	result := execute(t, inst, "div", I32Value(2))
	assert.Equal(t, int32(5), result.Value.I32())

	executeTrap(t, inst, "div", I32Value(0))
}

func TestSignedDivisionOverflowTraps(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32, i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "div", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(code.LocalGet(0), code.LocalGet(1), code.Op(code.OpI32DivS), code.End()),
			}},
		},
	}
	inst := instantiate(t, m, nil)

	executeTrap(t, inst, "div", I32Value(math.MinInt32), I32Value(-1))

	// rem_s of the same operands is 0, not a trap.
	m2 := addModule()
	m2.Code.Bodies[0].Code = expr(code.LocalGet(0), code.LocalGet(1), code.Op(code.OpI32RemS), code.End())
	inst2 := instantiate(t, m2, nil)
	result := execute(t, inst2, "add", I32Value(math.MinInt32), I32Value(-1))
	assert.Equal(t, int32(0), result.Value.I32())
}

func TestMemoryGrowAndSize(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sig([]wasm.ValueType{i32}, []wasm.ValueType{i32}),
				sig(nil, []wasm.ValueType{i32}),
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 1}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "grow", Kind: wasm.ExternalFunction, Index: 0},
				{FieldStr: "size", Kind: wasm.ExternalFunction, Index: 1},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.MemoryGrow(), code.End())},
				{Code: expr(code.MemorySize(), code.End())},
			},
		},
	}
	inst := instantiate(t, m, nil)

	assert.Equal(t, int32(1), execute(t, inst, "grow", I32Value(2)).Value.I32())
	assert.Equal(t, int32(3), execute(t, inst, "size").Value.I32())
	assert.Equal(t, uint64(3*wasm.PageSize), inst.MemorySize())
}

func TestMemoryGrowPastLimitReturnsNegative(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "grow", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.MemoryGrow(), code.End())},
			},
		},
	}
	inst := instantiate(t, m, &Imports{MemoryPagesLimit: 4})

	assert.Equal(t, int32(1), execute(t, inst, "grow", I32Value(3)).Value.I32())
	assert.Equal(t, int32(-1), execute(t, inst, "grow", I32Value(1)).Value.I32())
	assert.Equal(t, uint64(4*wasm.PageSize), inst.MemorySize())
}

func indirectModule() *wasm.Module {
	return &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sig(nil, []wasm.ValueType{i32}),
				sig([]wasm.ValueType{i32}, []wasm.ValueType{i32}),
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 1}},
		Table: &wasm.SectionTables{
			Entries: []wasm.Table{{
				ElementType: wasm.ElemTypeAnyFunc,
				Limits:      wasm.ResizableLimits{Initial: 2},
			}},
		},
		Elements: &wasm.SectionElements{
			Entries: []wasm.ElementSegment{{Offset: i32Const(0), Elems: []uint32{0}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "call", Kind: wasm.ExternalFunction, Index: 1}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.I32Const(42), code.End())},
				{Code: expr(code.LocalGet(0), code.CallIndirect(0), code.End())},
			},
		},
	}
}

func TestCallIndirect(t *testing.T) {
	inst := instantiate(t, indirectModule(), nil)

	// Slot 0 holds the function returning 42; slot 1 is uninitialized and
	// slot 2 is out of bounds.
	assert.Equal(t, int32(42), execute(t, inst, "call", I32Value(0)).Value.I32())
	executeTrap(t, inst, "call", I32Value(1))
	executeTrap(t, inst, "call", I32Value(2))
}

func TestCallIndirectSignatureMismatch(t *testing.T) {
	m := indirectModule()
	// Point the indirect call at type 1 (i32 -> i32); the table holds a
	// function of type 0 (-> i32).
	m.Code.Bodies[1].Code = expr(code.I32Const(7), code.LocalGet(0), code.CallIndirect(1), code.End())
	inst := instantiate(t, m, nil)

	executeTrap(t, inst, "call", I32Value(0))
}

func TestHostImport(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sig([]wasm.ValueType{i32}, nil),
				sig(nil, []wasm.ValueType{i32}),
			},
		},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "log", Type: wasm.FuncImport{Type: 0}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{1}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 1}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.I32Const(7), code.Call(0), code.I32Const(0), code.End())},
			},
		},
	}

	var seen []int32
	logFn := Function{
		Sig: sig([]wasm.ValueType{i32}, nil),
		Fn: func(env any, i *Instance, args []Value, depth int) ExecutionResult {
			seen = append(seen, args[0].I32())
			return Void
		},
	}
	inst := instantiate(t, m, &Imports{Functions: []Function{logFn}})

	result := execute(t, inst, "main")
	assert.Equal(t, int32(0), result.Value.I32())
	assert.Equal(t, []int32{7}, seen)
}

func TestHostTrapPropagates(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig(nil, nil)},
		},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "fail", Type: wasm.FuncImport{Type: 0}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 1}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Call(0), code.End())}},
		},
	}
	failFn := Function{
		Sig: sig(nil, nil),
		Fn: func(env any, i *Instance, args []Value, depth int) ExecutionResult {
			return TrapResult
		},
	}
	inst := instantiate(t, m, &Imports{Functions: []Function{failFn}})

	executeTrap(t, inst, "main")
}

func TestHostArityViolationTraps(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig(nil, nil)},
		},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "void", Type: wasm.FuncImport{Type: 0}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 1}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Call(0), code.End())}},
		},
	}
	// The host claims a value for a void-typed signature; this must surface
	// as a trap, not corrupt the operand stack.
	badFn := Function{
		Sig: sig(nil, nil),
		Fn: func(env any, i *Instance, args []Value, depth int) ExecutionResult {
			return ValueResult(I32Value(1))
		},
	}
	inst := instantiate(t, m, &Imports{Functions: []Function{badFn}})

	executeTrap(t, inst, "main")
}

func TestUnreachableTraps(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, nil)}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Unreachable(), code.End())}},
		},
	}
	inst := instantiate(t, m, nil)
	executeTrap(t, inst, "main")
}

func TestCallStackExhaustion(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig(nil, nil)}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Call(0), code.End())}},
		},
	}
	inst := instantiate(t, m, nil)
	executeTrap(t, inst, "main")
}

func TestFibLoop(t *testing.T) {
	// fib(n) computed with a loop, a block, and br_if branches.
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "fib", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Locals: []wasm.LocalEntry{{Count: 2, Type: i32}}, // a (1), b (2)
				Code: expr(
					code.I32Const(0),
					code.LocalSet(1), // a = 0
					code.I32Const(1),
					code.LocalSet(2), // b = 1
					code.Block(),
					code.Loop(),
					code.LocalGet(0),
					code.Op(code.OpI32Eqz),
					code.BrIf(1), // exit when n == 0
					code.LocalGet(2),
					code.LocalGet(1),
					code.LocalGet(2),
					code.Op(code.OpI32Add),
					code.LocalSet(2), // b = a + b
					code.LocalSet(1), // a = old b
					code.LocalGet(0),
					code.I32Const(-1),
					code.Op(code.OpI32Add),
					code.LocalSet(0), // n--
					code.Br(0),
					code.End(),
					code.End(),
					code.LocalGet(1),
					code.End(),
				),
			}},
		},
	}
	inst := instantiate(t, m, nil)

	for _, tc := range []struct{ n, want int32 }{
		{0, 0}, {1, 1}, {2, 1}, {3, 2}, {10, 55}, {30, 832040},
	} {
		assert.Equal(t, tc.want, execute(t, inst, "fib", I32Value(tc.n)).Value.I32(), "fib(%d)", tc.n)
	}
}

func TestIfElse(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "abs1", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(
					code.LocalGet(0),
					code.I32Const(0),
					code.Op(code.OpI32LtS),
					code.If(i32),
					code.I32Const(0),
					code.LocalGet(0),
					code.Op(code.OpI32Sub),
					code.Else(),
					code.LocalGet(0),
					code.End(),
					code.End(),
				),
			}},
		},
	}
	inst := instantiate(t, m, nil)

	assert.Equal(t, int32(5), execute(t, inst, "abs1", I32Value(-5)).Value.I32())
	assert.Equal(t, int32(5), execute(t, inst, "abs1", I32Value(5)).Value.I32())
	assert.Equal(t, int32(0), execute(t, inst, "abs1", I32Value(0)).Value.I32())
}

func TestBrTable(t *testing.T) {
	// br_table with two targets and clamp-to-default.
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "select3", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(
					code.Block(), // 2: default
					code.Block(), // 1
					code.Block(), // 0
					code.LocalGet(0),
					code.BrTable([]int{0, 1}, 2),
					code.End(),
					code.I32Const(100),
					code.Return(),
					code.End(),
					code.I32Const(101),
					code.Return(),
					code.End(),
					code.I32Const(102),
					code.End(),
				),
			}},
		},
	}
	inst := instantiate(t, m, nil)

	assert.Equal(t, int32(100), execute(t, inst, "select3", I32Value(0)).Value.I32())
	assert.Equal(t, int32(101), execute(t, inst, "select3", I32Value(1)).Value.I32())
	assert.Equal(t, int32(102), execute(t, inst, "select3", I32Value(2)).Value.I32())
	assert.Equal(t, int32(102), execute(t, inst, "select3", I32Value(-1)).Value.I32())
}

func TestGlobals(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sig([]wasm.ValueType{i32}, nil),
				sig(nil, []wasm.ValueType{i32}),
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 1}},
		Global: &wasm.SectionGlobals{
			Globals: []wasm.GlobalEntry{
				{Type: wasm.GlobalVar{Type: i32, Mutable: true}, Init: i32Const(11)},
			},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "set", Kind: wasm.ExternalFunction, Index: 0},
				{FieldStr: "get", Kind: wasm.ExternalFunction, Index: 1},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.GlobalSet(0), code.End())},
				{Code: expr(code.GlobalGet(0), code.End())},
			},
		},
	}
	inst := instantiate(t, m, nil)

	assert.Equal(t, int32(11), execute(t, inst, "get").Value.I32())
	execute(t, inst, "set", I32Value(-3))
	assert.Equal(t, int32(-3), execute(t, inst, "get").Value.I32())
}

func TestMemoryLoadStore(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sig([]wasm.ValueType{i32, i32}, nil),
				sig([]wasm.ValueType{i32}, []wasm.ValueType{i32}),
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 1}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "store", Kind: wasm.ExternalFunction, Index: 0},
				{FieldStr: "load", Kind: wasm.ExternalFunction, Index: 1},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.LocalGet(1), code.I32Store(0, 2), code.End())},
				{Code: expr(code.LocalGet(0), code.I32Load(0, 2), code.End())},
			},
		},
	}
	inst := instantiate(t, m, nil)

	execute(t, inst, "store", I32Value(16), I32Value(-558038585))
	assert.Equal(t, int32(-558038585), execute(t, inst, "load", I32Value(16)).Value.I32())

	// Unaligned accesses do not trap; alignment is only a hint.
	assert.NotPanics(t, func() { execute(t, inst, "load", I32Value(17)) })

	// The last in-bounds word is at 65532; 65533 extends past the end.
	execute(t, inst, "load", I32Value(65532))
	executeTrap(t, inst, "load", I32Value(65533))
	executeTrap(t, inst, "load", I32Value(-1))
	executeTrap(t, inst, "store", I32Value(65533), I32Value(1))
}

func TestMemoryGrowPreservesAndZeroes(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "grow", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.MemoryGrow(), code.End())},
			},
		},
	}
	inst := instantiate(t, m, nil)

	inst.MemoryData()[1234] = 0xab
	execute(t, inst, "grow", I32Value(1))

	data := inst.MemoryData()
	require.Len(t, data, 2*wasm.PageSize)
	assert.Equal(t, byte(0xab), data[1234])
	for _, idx := range []int{wasm.PageSize, wasm.PageSize + 1, 2*wasm.PageSize - 1} {
		assert.Zero(t, data[idx])
	}
}

func TestFloatSemantics(t *testing.T) {
	unop := func(op byte) *wasm.Module {
		return &wasm.Module{
			Version: 1,
			Types: &wasm.SectionTypes{
				Entries: []wasm.FunctionSig{sig([]wasm.ValueType{f64, f64}, []wasm.ValueType{f64})},
			},
			Function: &wasm.SectionFunctions{Types: []uint32{0}},
			Export: &wasm.SectionExports{
				Entries: []wasm.ExportEntry{{FieldStr: "f", Kind: wasm.ExternalFunction, Index: 0}},
			},
			Code: &wasm.SectionCode{
				Bodies: []wasm.FunctionBody{{
					Code: expr(code.LocalGet(0), code.LocalGet(1), code.Op(op), code.End()),
				}},
			},
		}
	}

	t.Run("min", func(t *testing.T) {
		inst := instantiate(t, unop(code.OpF64Min), nil)
		assert.True(t, math.IsNaN(execute(t, inst, "f", F64Value(math.NaN()), F64Value(1)).Value.F64()))
		// -0 orders before +0.
		r := execute(t, inst, "f", F64Value(math.Copysign(0, -1)), F64Value(0))
		assert.True(t, math.Signbit(r.Value.F64()))
	})

	t.Run("max", func(t *testing.T) {
		inst := instantiate(t, unop(code.OpF64Max), nil)
		assert.True(t, math.IsNaN(execute(t, inst, "f", F64Value(1), F64Value(math.NaN())).Value.F64()))
		r := execute(t, inst, "f", F64Value(math.Copysign(0, -1)), F64Value(0))
		assert.False(t, math.Signbit(r.Value.F64()))
	})

	t.Run("copysign", func(t *testing.T) {
		inst := instantiate(t, unop(code.OpF64Copysign), nil)
		assert.Equal(t, -3.0, execute(t, inst, "f", F64Value(3), F64Value(-1)).Value.F64())
		assert.Equal(t, 3.0, execute(t, inst, "f", F64Value(-3), F64Value(1)).Value.F64())
	})

	t.Run("nan comparison", func(t *testing.T) {
		m := unop(code.OpF64Eq)
		m.Types.Entries[0] = sig([]wasm.ValueType{f64, f64}, []wasm.ValueType{i32})
		inst := instantiate(t, m, nil)
		assert.Equal(t, int32(0), execute(t, inst, "f", F64Value(math.NaN()), F64Value(math.NaN())).Value.I32())

		m2 := unop(code.OpF64Ne)
		m2.Types.Entries[0] = sig([]wasm.ValueType{f64, f64}, []wasm.ValueType{i32})
		inst2 := instantiate(t, m2, nil)
		assert.Equal(t, int32(1), execute(t, inst2, "f", F64Value(math.NaN()), F64Value(math.NaN())).Value.I32())
	})
}

func TestTruncTrapsAndSaturation(t *testing.T) {
	truncModule := func(body []byte) *wasm.Module {
		return &wasm.Module{
			Version: 1,
			Types: &wasm.SectionTypes{
				Entries: []wasm.FunctionSig{sig([]wasm.ValueType{f64}, []wasm.ValueType{i32})},
			},
			Function: &wasm.SectionFunctions{Types: []uint32{0}},
			Export: &wasm.SectionExports{
				Entries: []wasm.ExportEntry{{FieldStr: "trunc", Kind: wasm.ExternalFunction, Index: 0}},
			},
			Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{{Code: body}}},
		}
	}

	trapping := instantiate(t, truncModule(expr(code.LocalGet(0), code.Op(code.OpI32TruncF64S), code.End())), nil)
	assert.Equal(t, int32(-2), execute(t, trapping, "trunc", F64Value(-2.75)).Value.I32())
	executeTrap(t, trapping, "trunc", F64Value(math.NaN()))
	executeTrap(t, trapping, "trunc", F64Value(3e10))
	executeTrap(t, trapping, "trunc", F64Value(math.Inf(1)))

	saturating := instantiate(t, truncModule(expr(code.LocalGet(0), code.SatOp(code.OpI32TruncSatF64S), code.End())), nil)
	assert.Equal(t, int32(0), execute(t, saturating, "trunc", F64Value(math.NaN())).Value.I32())
	assert.Equal(t, int32(math.MaxInt32), execute(t, saturating, "trunc", F64Value(3e10)).Value.I32())
	assert.Equal(t, int32(math.MinInt32), execute(t, saturating, "trunc", F64Value(math.Inf(-1))).Value.I32())
}

func TestShiftsAndRotates(t *testing.T) {
	binop := func(op byte) *Instance {
		m := addModule()
		m.Code.Bodies[0].Code = expr(code.LocalGet(0), code.LocalGet(1), code.Op(op), code.End())
		return instantiate(t, m, nil)
	}

	// Shift amounts use only the low 5 bits.
	shl := binop(code.OpI32Shl)
	assert.Equal(t, int32(4), execute(t, shl, "add", I32Value(1), I32Value(2)).Value.I32())
	assert.Equal(t, int32(4), execute(t, shl, "add", I32Value(1), I32Value(34)).Value.I32())

	shrS := binop(code.OpI32ShrS)
	assert.Equal(t, int32(-1), execute(t, shrS, "add", I32Value(-2), I32Value(1)).Value.I32())

	shrU := binop(code.OpI32ShrU)
	assert.Equal(t, int32(0x7fffffff), execute(t, shrU, "add", I32Value(-2), I32Value(1)).Value.I32())

	rotl := binop(code.OpI32Rotl)
	assert.Equal(t, int32(3), execute(t, rotl, "add", I32Value(int32(-2147483647)), I32Value(1)).Value.I32())
}

func TestSignExtensionOps(t *testing.T) {
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig([]wasm.ValueType{i32}, []wasm.ValueType{i32})},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "ext8", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.Op(code.OpI32Extend8S), code.End())},
			},
		},
	}
	inst := instantiate(t, m, nil)

	assert.Equal(t, int32(-1), execute(t, inst, "ext8", I32Value(0xff)).Value.I32())
	assert.Equal(t, int32(127), execute(t, inst, "ext8", I32Value(127)).Value.I32())
}

func TestReentrantHostCall(t *testing.T) {
	// The host function calls back into the instance; the depth counter
	// carries across the boundary.
	m := &wasm.Module{
		Version: 1,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sig([]wasm.ValueType{i32}, []wasm.ValueType{i32}),
			},
		},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "echo", Type: wasm.FuncImport{Type: 0}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 1},
				{FieldStr: "double", Kind: wasm.ExternalFunction, Index: 2},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				// main(x) = echo(x) + 1
				{Code: expr(code.LocalGet(0), code.Call(0), code.I32Const(1), code.Op(code.OpI32Add), code.End())},
				// double(x) = x * 2
				{Code: expr(code.LocalGet(0), code.I32Const(2), code.Op(code.OpI32Mul), code.End())},
			},
		},
	}

	echo := Function{
		Sig: sig([]wasm.ValueType{i32}, []wasm.ValueType{i32}),
		Fn: func(env any, i *Instance, args []Value, depth int) ExecutionResult {
			doubleIdx, ok := i.Definition().ExportedFunction("double")
			if !ok {
				return TrapResult
			}
			return Execute(i, doubleIdx, args, depth)
		},
	}
	inst := instantiate(t, m, &Imports{Functions: []Function{echo}})

	assert.Equal(t, int32(21), execute(t, inst, "main", I32Value(10)).Value.I32())
}
