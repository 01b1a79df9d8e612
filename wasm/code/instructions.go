package code

import (
	"math"

	"github.com/wispvm/wisp/wasm"
)

// Constructors for hand-building instruction sequences, mostly used by tests
// and tooling. Branch constructors take relative label depths, exactly as in
// the binary format.

func Unreachable() Instruction { return Instruction{Opcode: OpUnreachable} }
func Nop() Instruction         { return Instruction{Opcode: OpNop} }

func blockImmediate(result ...wasm.ValueType) uint64 {
	if len(result) == 0 {
		return blockTypeEmpty
	}
	return uint64(result[0])
}

func Block(result ...wasm.ValueType) Instruction {
	return Instruction{Opcode: OpBlock, Immediate: blockImmediate(result...)}
}

func Loop(result ...wasm.ValueType) Instruction {
	return Instruction{Opcode: OpLoop, Immediate: blockImmediate(result...)}
}

func If(result ...wasm.ValueType) Instruction {
	return Instruction{Opcode: OpIf, Immediate: blockImmediate(result...), Labels: []int{0, 0}}
}

func Else() Instruction { return Instruction{Opcode: OpElse, Labels: []int{0}} }
func End() Instruction  { return Instruction{Opcode: OpEnd} }

func Br(depth int) Instruction {
	return Instruction{Opcode: OpBr, Immediate: uint64(depth)}
}

func BrIf(depth int) Instruction {
	return Instruction{Opcode: OpBrIf, Immediate: uint64(depth)}
}

// BrTable takes the table of target depths followed by the default depth.
func BrTable(depths []int, defaultDepth int) Instruction {
	return Instruction{Opcode: OpBrTable, Immediate: uint64(defaultDepth), Labels: depths}
}

func Return() Instruction { return Instruction{Opcode: OpReturn} }

func Call(funcidx uint32) Instruction {
	return Instruction{Opcode: OpCall, Immediate: uint64(funcidx)}
}

func CallIndirect(typeidx uint32) Instruction {
	return Instruction{Opcode: OpCallIndirect, Immediate: uint64(typeidx)}
}

func Drop() Instruction   { return Instruction{Opcode: OpDrop} }
func Select() Instruction { return Instruction{Opcode: OpSelect} }

func LocalGet(localidx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Immediate: uint64(localidx)}
}

func LocalSet(localidx uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Immediate: uint64(localidx)}
}

func LocalTee(localidx uint32) Instruction {
	return Instruction{Opcode: OpLocalTee, Immediate: uint64(localidx)}
}

func GlobalGet(globalidx uint32) Instruction {
	return Instruction{Opcode: OpGlobalGet, Immediate: uint64(globalidx)}
}

func GlobalSet(globalidx uint32) Instruction {
	return Instruction{Opcode: OpGlobalSet, Immediate: uint64(globalidx)}
}

// Mem builds any memory access instruction with the given memarg.
func Mem(opcode byte, offset, align uint32) Instruction {
	return Instruction{Opcode: opcode, Immediate: memarg(offset, align)}
}

func I32Load(offset, align uint32) Instruction  { return Mem(OpI32Load, offset, align) }
func I64Load(offset, align uint32) Instruction  { return Mem(OpI64Load, offset, align) }
func I32Store(offset, align uint32) Instruction { return Mem(OpI32Store, offset, align) }
func I64Store(offset, align uint32) Instruction { return Mem(OpI64Store, offset, align) }

func MemorySize() Instruction { return Instruction{Opcode: OpMemorySize} }
func MemoryGrow() Instruction { return Instruction{Opcode: OpMemoryGrow} }

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Immediate: uint64(uint32(v))}
}

func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpI64Const, Immediate: uint64(v)}
}

func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpF32Const, Immediate: uint64(math.Float32bits(v))}
}

func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Immediate: math.Float64bits(v)}
}

// Op builds any instruction that carries no immediate.
func Op(opcode byte) Instruction { return Instruction{Opcode: opcode} }

// SatOp builds a 0xfc-prefixed saturating truncation.
func SatOp(satOp uint32) Instruction {
	return Instruction{Opcode: OpPrefix, Immediate: uint64(satOp)}
}
