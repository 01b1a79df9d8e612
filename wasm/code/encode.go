package code

import (
	"encoding/binary"
	"io"

	"github.com/wispvm/wisp/wasm/leb128"
)

// Encode writes a sequence of instructions in binary form. Branch
// instructions built with the constructors carry relative label depths; a
// body produced by Decode is not encodable because its branch immediates
// have been resolved into label-table indices.
func Encode(w io.Writer, body []Instruction) error {
	for i := range body {
		if err := encodeInstruction(w, body[i]); err != nil {
			return err
		}
	}
	return nil
}

func encodeInstruction(w io.Writer, instr Instruction) error {
	if _, err := w.Write([]byte{instr.Opcode}); err != nil {
		return err
	}

	switch instr.Opcode {
	case OpBlock, OpLoop, OpIf:
		_, err := w.Write([]byte{byte(instr.Immediate)})
		return err
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet, OpPrefix:
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err
	case OpBrTable:
		if _, err := leb128.WriteVarUint32(w, uint32(len(instr.Labels))); err != nil {
			return err
		}
		for _, l := range instr.Labels {
			if _, err := leb128.WriteVarUint32(w, uint32(l)); err != nil {
				return err
			}
		}
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err
	case OpCallIndirect:
		if _, err := leb128.WriteVarUint32(w, uint32(instr.Immediate)); err != nil {
			return err
		}
		_, err := w.Write([]byte{0x00})
		return err
	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		offset, align := instr.Memarg()
		if _, err := leb128.WriteVarUint32(w, align); err != nil {
			return err
		}
		_, err := leb128.WriteVarUint32(w, offset)
		return err
	case OpMemorySize, OpMemoryGrow:
		_, err := w.Write([]byte{0x00})
		return err
	case OpI32Const:
		_, err := leb128.WriteVarint32(w, int32(instr.Immediate))
		return err
	case OpI64Const:
		_, err := leb128.WriteVarint64(w, int64(instr.Immediate))
		return err
	case OpF32Const:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(instr.Immediate))
		_, err := w.Write(buf[:])
		return err
	case OpF64Const:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], instr.Immediate)
		_, err := w.Write(buf[:])
		return err
	default:
		return nil
	}
}
