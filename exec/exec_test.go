package exec

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
)

func expr(instrs ...code.Instruction) []byte {
	var buf bytes.Buffer
	if err := code.Encode(&buf, instrs); err != nil {
		panic(fmt.Errorf("encoding expression: %w", err))
	}
	return buf.Bytes()
}

func i32Const(v int32) []byte {
	return expr(code.I32Const(v), code.End())
}

func sig(params, results []wasm.ValueType) wasm.FunctionSig {
	return wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: params, ReturnTypes: results}
}

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

func definition(t *testing.T, m *wasm.Module) *ModuleDefinition {
	t.Helper()
	def, err := NewModuleDefinition(m)
	require.NoError(t, err)
	return def
}

func instantiate(t *testing.T, m *wasm.Module, imports *Imports) *Instance {
	t.Helper()
	inst, err := Instantiate(definition(t, m), imports)
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst
}

// execute invokes the exported function with the given name and requires a
// successful (non-trapping) completion.
func execute(t *testing.T, inst *Instance, name string, args ...Value) ExecutionResult {
	t.Helper()
	funcidx, ok := inst.Definition().ExportedFunction(name)
	require.True(t, ok, "no export named %q", name)
	result := Execute(inst, funcidx, args, 0)
	require.False(t, result.Trapped, "unexpected trap in %q", name)
	return result
}

func executeTrap(t *testing.T, inst *Instance, name string, args ...Value) {
	t.Helper()
	funcidx, ok := inst.Definition().ExportedFunction(name)
	require.True(t, ok, "no export named %q", name)
	result := Execute(inst, funcidx, args, 0)
	require.True(t, result.Trapped, "expected a trap in %q", name)
	require.False(t, result.HasValue)
}
