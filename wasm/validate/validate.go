// Package validate checks a decoded module against the structural and type
// rules of WebAssembly 1.0. Code bodies are validated with the fused
// decoder in wasm/code, which also computes their label metadata.
package validate

import (
	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
	"github.com/wispvm/wisp/wasm/leb128"
)

// maxFunctionLocals caps the number of locals a single function may declare,
// parameters included.
const maxFunctionLocals = 50000

type validator struct {
	module *wasm.Module
	scope  *code.StaticScope

	validateCode bool
}

// ValidateModule validates the given module. If validateCode is false, code
// bodies are skipped; this is used by tooling that only needs the module's
// structure.
func ValidateModule(m *wasm.Module, validateCode bool) error {
	v := validator{
		module:       m,
		scope:        code.NewStaticScope(m),
		validateCode: validateCode,
	}
	return v.validateModule()
}

func (v *validator) validateModule() error {
	if err := v.validateImports(); err != nil {
		return err
	}
	if err := v.validateFunctions(); err != nil {
		return err
	}
	if err := v.validateTables(); err != nil {
		return err
	}
	if err := v.validateMemories(); err != nil {
		return err
	}
	if err := v.validateGlobals(); err != nil {
		return err
	}
	if err := v.validateExports(); err != nil {
		return err
	}
	if err := v.validateStart(); err != nil {
		return err
	}
	if err := v.validateElements(); err != nil {
		return err
	}
	return v.validateData()
}

func (v *validator) validateLimits(limits wasm.ResizableLimits) error {
	if limits.HasMax() && limits.Initial > limits.Maximum {
		return wasm.ValidationError("size minimum must not be greater than maximum")
	}
	return nil
}

func (v *validator) validateImports() error {
	if v.module.Import == nil {
		return nil
	}
	for _, i := range v.module.Import.Entries {
		switch i := i.Type.(type) {
		case wasm.FuncImport:
			if _, ok := v.scope.GetType(i.Type); !ok {
				return wasm.ValidationError("unknown type")
			}
		case wasm.TableImport:
			if err := v.validateLimits(i.Type.Limits); err != nil {
				return err
			}
		case wasm.MemoryImport:
			if err := v.validateMemoryLimits(i.Type.Limits); err != nil {
				return err
			}
		case wasm.GlobalVarImport:
			// any global type is importable
		}
	}
	return nil
}

func (v *validator) validateFunctions() error {
	var types []uint32
	if v.module.Function != nil {
		types = v.module.Function.Types
	}
	var bodies []wasm.FunctionBody
	if v.module.Code != nil {
		bodies = v.module.Code.Bodies
	}
	if len(types) != len(bodies) {
		return wasm.ValidationError("function and code section have inconsistent lengths")
	}

	for i, typeidx := range types {
		sig, ok := v.scope.GetType(typeidx)
		if !ok {
			return wasm.ValidationError("unknown type")
		}

		body := bodies[i]
		numLocals := uint64(len(sig.ParamTypes))
		for _, l := range body.Locals {
			numLocals += uint64(l.Count)
			if numLocals > maxFunctionLocals {
				return wasm.ValidationError("too many locals")
			}
		}

		if !v.validateCode {
			continue
		}

		v.scope.SetFunction(sig, body)
		if _, err := code.Decode(body.Code, v.scope, sig.ReturnTypes); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateTables() error {
	if v.module.Table == nil || len(v.module.Table.Entries) == 0 {
		return nil
	}
	if v.scope.Tables > 1 {
		return wasm.ValidationError("multiple tables")
	}
	return v.validateLimits(v.module.Table.Entries[0].Limits)
}

func (v *validator) validateMemoryLimits(limits wasm.ResizableLimits) error {
	if err := v.validateLimits(limits); err != nil {
		return err
	}
	if limits.Initial > wasm.MaxMemoryPages || limits.HasMax() && limits.Maximum > wasm.MaxMemoryPages {
		return wasm.ValidationError("memory size must be at most 65536 pages (4GiB)")
	}
	return nil
}

func (v *validator) validateMemories() error {
	if v.module.Memory == nil || len(v.module.Memory.Entries) == 0 {
		return nil
	}
	if v.scope.Memories > 1 {
		return wasm.ValidationError("multiple memories")
	}
	return v.validateMemoryLimits(v.module.Memory.Entries[0].Limits)
}

func (v *validator) validateGlobals() error {
	if v.module.Global == nil {
		return nil
	}
	for _, g := range v.module.Global.Globals {
		if err := v.validateInitExpr(g.Init, g.Type.Type); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateExports() error {
	if v.module.Export == nil {
		return nil
	}
	names := map[string]bool{}
	for _, e := range v.module.Export.Entries {
		if names[e.FieldStr] {
			return wasm.ValidationError("duplicate export name")
		}
		names[e.FieldStr] = true

		switch e.Kind {
		case wasm.ExternalFunction:
			if _, ok := v.scope.GetFunctionSignature(e.Index); !ok {
				return wasm.ValidationError("unknown function")
			}
		case wasm.ExternalTable:
			if e.Index >= uint32(v.scope.Tables) {
				return wasm.ValidationError("unknown table")
			}
		case wasm.ExternalMemory:
			if e.Index >= uint32(v.scope.Memories) {
				return wasm.ValidationError("unknown memory")
			}
		case wasm.ExternalGlobal:
			if _, ok := v.scope.GetGlobalType(e.Index); !ok {
				return wasm.ValidationError("unknown global")
			}
		}
	}
	return nil
}

func (v *validator) validateStart() error {
	if v.module.Start == nil {
		return nil
	}
	sig, ok := v.scope.GetFunctionSignature(v.module.Start.Index)
	if !ok {
		return wasm.ValidationError("unknown function")
	}
	if len(sig.ParamTypes) != 0 || len(sig.ReturnTypes) != 0 {
		return wasm.ValidationError("invalid start function type")
	}
	return nil
}

func (v *validator) validateElements() error {
	if v.module.Elements == nil {
		return nil
	}
	for _, elem := range v.module.Elements.Entries {
		if elem.Index >= uint32(v.scope.Tables) {
			return wasm.ValidationError("unknown table")
		}
		if err := v.validateInitExpr(elem.Offset, wasm.ValueTypeI32); err != nil {
			return err
		}
		for _, funcidx := range elem.Elems {
			if _, ok := v.scope.GetFunctionSignature(funcidx); !ok {
				return wasm.ValidationError("unknown function")
			}
		}
	}
	return nil
}

func (v *validator) validateData() error {
	if v.module.Data == nil {
		return nil
	}
	for _, data := range v.module.Data.Entries {
		if data.Index >= uint32(v.scope.Memories) {
			return wasm.ValidationError("unknown memory")
		}
		if err := v.validateInitExpr(data.Offset, wasm.ValueTypeI32); err != nil {
			return err
		}
	}
	return nil
}

// validateInitExpr checks that expr is a constant expression yielding the
// expected type: a single literal or a global.get of an imported immutable
// global, terminated by end.
func (v *validator) validateInitExpr(expr []byte, expected wasm.ValueType) error {
	if len(expr) == 0 {
		return wasm.ErrEmptyInitExpr
	}

	var actual wasm.ValueType
	op := expr[0]
	expr = expr[1:]
	switch op {
	case code.OpI32Const:
		_, n, err := leb128.GetVarint32(expr)
		if err != nil {
			return err
		}
		actual, expr = wasm.ValueTypeI32, expr[n:]
	case code.OpI64Const:
		_, n, err := leb128.GetVarint64(expr)
		if err != nil {
			return err
		}
		actual, expr = wasm.ValueTypeI64, expr[n:]
	case code.OpF32Const:
		if len(expr) < 4 {
			return wasm.ValidationError("truncated initializer expression")
		}
		actual, expr = wasm.ValueTypeF32, expr[4:]
	case code.OpF64Const:
		if len(expr) < 8 {
			return wasm.ValidationError("truncated initializer expression")
		}
		actual, expr = wasm.ValueTypeF64, expr[8:]
	case code.OpGlobalGet:
		index, n, err := leb128.GetVarUint32(expr)
		if err != nil {
			return err
		}
		expr = expr[n:]
		if index >= uint32(len(v.scope.ImportedGlobals)) {
			return wasm.ValidationError("unknown global in initializer expression")
		}
		g := v.scope.ImportedGlobals[int(index)]
		if g.Mutable {
			return wasm.ValidationError("constant expression required")
		}
		actual = g.Type
	default:
		return wasm.InvalidInitExprOpError(op)
	}

	if len(expr) != 1 || expr[0] != code.OpEnd {
		return wasm.ValidationError("constant expression required")
	}
	if actual != expected {
		return wasm.ValidationError("type mismatch in initializer expression")
	}
	return nil
}
