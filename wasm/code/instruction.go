package code

import (
	"fmt"
	"math"
	"strings"

	"github.com/wispvm/wisp/wasm"
)

// Instruction is a single decoded instruction. Immediate packs the
// instruction's operand; its interpretation depends on the opcode.
//
// For branch instructions decoded by Decode, Immediate is an index into the
// enclosing Body's label table rather than a relative label depth; br_table
// target depths are likewise resolved into Labels. For if, Labels holds the
// program counters used when the condition is false ([0] past the matching
// end, [1] past the else, zero if absent).
type Instruction struct {
	Opcode    byte
	Immediate uint64
	Labels    []int
}

// BlockTypes returns the result types of a block, loop, or if instruction.
func (i *Instruction) BlockTypes() []wasm.ValueType {
	switch byte(i.Immediate) {
	case blockTypeEmpty:
		return nil
	default:
		return []wasm.ValueType{wasm.ValueType(i.Immediate)}
	}
}

// LabelIndex returns the label-table index of a br or br_if target, or the
// default target of a br_table.
func (i *Instruction) LabelIndex() int {
	return int(i.Immediate)
}

// EndPC returns the continuation of an if instruction whose condition is
// false and that has no else branch, and of an else instruction: the pc just
// past the matching end.
func (i *Instruction) EndPC() int {
	return i.Labels[0]
}

// ElsePC returns the pc just past the else instruction of an if, or zero if
// the if has no else branch.
func (i *Instruction) ElsePC() int {
	return i.Labels[1]
}

func (i *Instruction) Funcidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Localidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Globalidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Typeidx() uint32 {
	return uint32(i.Immediate)
}

// Memarg returns the static offset and alignment hint of a memory access.
func (i *Instruction) Memarg() (offset uint32, align uint32) {
	return uint32(i.Immediate), uint32(i.Immediate >> 32)
}

// Offset returns the static offset of a memory access.
func (i *Instruction) Offset() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) I32() int32 {
	return int32(i.Immediate)
}

func (i *Instruction) I64() int64 {
	return int64(i.Immediate)
}

func (i *Instruction) F32() float32 {
	return math.Float32frombits(uint32(i.Immediate))
}

func (i *Instruction) F64() float64 {
	return math.Float64frombits(i.Immediate)
}

// SatOp returns the sub-opcode of a 0xfc-prefixed instruction.
func (i *Instruction) SatOp() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) OpString() string {
	return OpName(i.Opcode, uint32(i.Immediate))
}

func (i *Instruction) String() string {
	switch i.Opcode {
	case OpBlock, OpLoop, OpIf:
		if ts := i.BlockTypes(); len(ts) != 0 {
			return fmt.Sprintf("%s (result %v)", i.OpString(), ts[0])
		}
		return i.OpString()
	case OpBr, OpBrIf:
		return fmt.Sprintf("%s %d", i.OpString(), i.LabelIndex())
	case OpBrTable:
		var b strings.Builder
		b.WriteString("br_table")
		for _, l := range i.Labels {
			fmt.Fprintf(&b, " %d", l)
		}
		fmt.Fprintf(&b, " %d", i.LabelIndex())
		return b.String()
	case OpCall:
		return fmt.Sprintf("call %d", i.Funcidx())
	case OpCallIndirect:
		return fmt.Sprintf("call_indirect (type %d)", i.Typeidx())
	case OpLocalGet, OpLocalSet, OpLocalTee:
		return fmt.Sprintf("%s %d", i.OpString(), i.Localidx())
	case OpGlobalGet, OpGlobalSet:
		return fmt.Sprintf("%s %d", i.OpString(), i.Globalidx())
	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		offset, align := i.Memarg()
		var b strings.Builder
		b.WriteString(i.OpString())
		if offset != 0 {
			fmt.Fprintf(&b, " offset=%d", offset)
		}
		if align != 0 {
			fmt.Fprintf(&b, " align=%d", align)
		}
		return b.String()
	case OpI32Const:
		return fmt.Sprintf("i32.const %d", i.I32())
	case OpI64Const:
		return fmt.Sprintf("i64.const %d", i.I64())
	case OpF32Const:
		return fmt.Sprintf("f32.const %g", i.F32())
	case OpF64Const:
		return fmt.Sprintf("f64.const %g", i.F64())
	default:
		return i.OpString()
	}
}

func memarg(offset, align uint32) uint64 {
	return uint64(align)<<32 | uint64(offset)
}

const blockTypeEmpty = 0x40
