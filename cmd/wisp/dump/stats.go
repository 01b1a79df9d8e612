package dump

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/willf/bitset"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
)

// One row per module-defined function: signature shape, body metrics from
// the fused decoder, an instruction breakdown, and whether the function is
// reachable from the module's roots.
type row struct {
	Funcidx          int    `csv:"funcidx"`
	Export           string `csv:"export"`
	In               int    `csv:"in"`
	Out              int    `csv:"out"`
	LocalCount       int    `csv:"local count"`
	MaxStack         int    `csv:"max stack"`
	MaxNesting       int    `csv:"max nesting"`
	LabelCount       int    `csv:"label count"`
	InstructionCount int    `csv:"instruction count"`
	Reachable        bool   `csv:"reachable"`

	Blocks       int `csv:"blocks"`
	Loops        int `csv:"loops"`
	Ifs          int `csv:"ifs"`
	Branches     int `csv:"branches"`
	Calls        int `csv:"calls"`
	IndirectCall int `csv:"indirect calls"`
	MemoryOps    int `csv:"memory ops"`
	Consts       int `csv:"consts"`
}

func dumpStats(w io.Writer, m *wasm.Module) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	encoder := csvutil.NewEncoder(csvWriter)

	s := code.NewStaticScope(m)
	reachable := reachableFunctions(m, s)
	exports := exportNames(m)

	var bodies []wasm.FunctionBody
	if m.Code != nil {
		bodies = m.Code.Bodies
	}
	for idx, body := range bodies {
		funcidx := idx + len(s.ImportedFunctions)
		sig, _ := s.GetType(m.Function.Types[idx])
		s.SetFunction(sig, body)

		decoded, err := code.Decode(body.Code, s, sig.ReturnTypes)
		if err != nil {
			return err
		}

		r := row{
			Funcidx:          funcidx,
			Export:           exports[uint32(funcidx)],
			In:               len(sig.ParamTypes),
			Out:              len(sig.ReturnTypes),
			LocalCount:       len(s.Locals),
			MaxStack:         decoded.Metrics.MaxStackDepth,
			MaxNesting:       decoded.Metrics.MaxNesting,
			LabelCount:       decoded.Metrics.LabelCount,
			InstructionCount: len(decoded.Instructions),
			Reachable:        reachable.Test(uint(funcidx)),
		}
		for _, instr := range decoded.Instructions {
			switch instr.Opcode {
			case code.OpBlock:
				r.Blocks++
			case code.OpLoop:
				r.Loops++
			case code.OpIf:
				r.Ifs++
			case code.OpBr, code.OpBrIf, code.OpBrTable:
				r.Branches++
			case code.OpCall:
				r.Calls++
			case code.OpCallIndirect:
				r.IndirectCall++
			case code.OpI32Const, code.OpI64Const, code.OpF32Const, code.OpF64Const:
				r.Consts++
			default:
				if _, ok := memoryOpcodes[instr.Opcode]; ok {
					r.MemoryOps++
				}
			}
		}

		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

var memoryOpcodes = map[byte]struct{}{
	code.OpI32Load: {}, code.OpI64Load: {}, code.OpF32Load: {}, code.OpF64Load: {},
	code.OpI32Load8S: {}, code.OpI32Load8U: {}, code.OpI32Load16S: {}, code.OpI32Load16U: {},
	code.OpI64Load8S: {}, code.OpI64Load8U: {}, code.OpI64Load16S: {}, code.OpI64Load16U: {},
	code.OpI64Load32S: {}, code.OpI64Load32U: {},
	code.OpI32Store: {}, code.OpI64Store: {}, code.OpF32Store: {}, code.OpF64Store: {},
	code.OpI32Store8: {}, code.OpI32Store16: {},
	code.OpI64Store8: {}, code.OpI64Store16: {}, code.OpI64Store32: {},
	code.OpMemorySize: {}, code.OpMemoryGrow: {},
}

func exportNames(m *wasm.Module) map[uint32]string {
	names := map[uint32]string{}
	if m.Export == nil {
		return names
	}
	for _, e := range m.Export.Entries {
		if e.Kind == wasm.ExternalFunction {
			names[e.Index] = e.FieldStr
		}
	}
	return names
}

// reachableFunctions marks every function transitively callable from the
// module's roots: exports, the start function, and element segments.
func reachableFunctions(m *wasm.Module, s *code.StaticScope) *bitset.BitSet {
	numFuncs := len(s.ImportedFunctions)
	if m.Function != nil {
		numFuncs += len(m.Function.Types)
	}
	marked := bitset.New(uint(numFuncs))

	var worklist []uint32
	mark := func(funcidx uint32) {
		if uint(funcidx) < uint(numFuncs) && !marked.Test(uint(funcidx)) {
			marked.Set(uint(funcidx))
			worklist = append(worklist, funcidx)
		}
	}

	if m.Export != nil {
		for _, e := range m.Export.Entries {
			if e.Kind == wasm.ExternalFunction {
				mark(e.Index)
			}
		}
	}
	if m.Start != nil {
		mark(m.Start.Index)
	}
	if m.Elements != nil {
		for _, seg := range m.Elements.Entries {
			for _, funcidx := range seg.Elems {
				mark(funcidx)
			}
		}
	}

	imported := len(s.ImportedFunctions)
	for len(worklist) != 0 {
		funcidx := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if int(funcidx) < imported {
			continue
		}

		body := m.Code.Bodies[int(funcidx)-imported]
		sig, _ := s.GetType(m.Function.Types[int(funcidx)-imported])
		s.SetFunction(sig, body)
		decoded, err := code.Decode(body.Code, s, sig.ReturnTypes)
		if err != nil {
			continue
		}
		for _, instr := range decoded.Instructions {
			if instr.Opcode == code.OpCall {
				mark(instr.Funcidx())
			}
		}
	}
	return marked
}
