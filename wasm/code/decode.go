package code

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/leb128"
)

var ErrInvalidInstruction = errors.New("wasm: invalid instruction")

// Metrics summarizes a decoded body.
type Metrics struct {
	MaxStackDepth int  // maximum operand stack depth
	MaxNesting    int  // maximum block nesting, function frame included
	LabelCount    int  // number of labels in the function
	HasLoops      bool // true if the body contains loop instructions
}

// A Label is the branch metadata of a single structured block, computed once
// during decoding: the continuation pc a branch jumps to, the operand stack
// height at block entry, and the number of values a branch transfers.
// Label 0 is always the function frame itself; return branches to it.
type Label struct {
	Continuation int
	StackHeight  int
	Arity        int
}

// Body is a validated, decoded function body. Branch instructions reference
// Labels by index, so execution never scans for block boundaries.
type Body struct {
	Instructions []Instruction
	Labels       []Label
	Metrics      Metrics
}

// Decode decodes and validates a single code body against the given scope
// and result types, producing the instruction stream and its label table.
func Decode(body []byte, scope Scope, out []wasm.ValueType) (Body, error) {
	d := decoder{Scope: scope}
	return d.decode(body, out)
}

type block struct {
	opcode      byte // OpBlock, OpLoop, or OpIf; 0 for the function frame
	instr       int  // ibuf index of the opening instruction, -1 for the frame
	label       int  // index into d.labels
	out         []wasm.ValueType
	stackHeight int
	elseInstr   int // ibuf index of the else instruction, -1 until seen
	unreachable bool
}

type decoder struct {
	Scope

	ibuf    []Instruction
	labels  []Label
	blocks  []block
	stack   []wasm.ValueType
	metrics Metrics
}

func (d *decoder) popOpd() (wasm.ValueType, error) {
	b := &d.blocks[len(d.blocks)-1]
	if len(d.stack) == b.stackHeight {
		if b.unreachable {
			return wasm.ValueTypeT, nil
		}
		return 0, wasm.ValidationError("stack underflow")
	}
	t := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return t, nil
}

func (d *decoder) popOpds(types ...wasm.ValueType) error {
	for i := len(types) - 1; i >= 0; i-- {
		expected := types[i]
		actual, err := d.popOpd()
		if err != nil {
			return err
		}
		if actual != wasm.ValueTypeT && expected != wasm.ValueTypeT && actual != expected {
			return wasm.ValidationError("stack type mismatch")
		}
	}
	return nil
}

func (d *decoder) pushOpds(types ...wasm.ValueType) {
	d.stack = append(d.stack, types...)
	if len(d.stack) > d.metrics.MaxStackDepth {
		d.metrics.MaxStackDepth = len(d.stack)
	}
}

func (d *decoder) pushBlock(opcode byte, instr, continuation int, out []wasm.ValueType) {
	arity := len(out)
	if opcode == OpLoop {
		arity = 0
	}
	d.labels = append(d.labels, Label{
		Continuation: continuation,
		StackHeight:  len(d.stack),
		Arity:        arity,
	})
	d.blocks = append(d.blocks, block{
		opcode:      opcode,
		instr:       instr,
		label:       len(d.labels) - 1,
		out:         out,
		stackHeight: len(d.stack),
		elseInstr:   -1,
	})
	if len(d.blocks) > d.metrics.MaxNesting {
		d.metrics.MaxNesting = len(d.blocks)
	}
}

func (d *decoder) popBlock() (block, error) {
	if len(d.blocks) == 0 {
		return block{}, wasm.ValidationError("label stack underflow")
	}
	b := d.blocks[len(d.blocks)-1]
	if err := d.popOpds(b.out...); err != nil {
		return block{}, err
	}
	if len(d.stack) != b.stackHeight {
		return block{}, wasm.ValidationError("unbalanced stack")
	}
	d.blocks = d.blocks[:len(d.blocks)-1]
	return b, nil
}

// labelOf resolves a relative branch depth to a label-table index.
func (d *decoder) labelOf(depth int) (int, error) {
	if depth >= len(d.blocks) {
		return 0, wasm.ValidationError("unknown label")
	}
	return d.blocks[len(d.blocks)-1-depth].label, nil
}

// labelTypes returns the types a branch with the given relative depth must
// transfer: the target's results for block and if, nothing for loop.
func (d *decoder) labelTypes(depth int) ([]wasm.ValueType, error) {
	if depth >= len(d.blocks) {
		return nil, wasm.ValidationError("unknown label")
	}
	b := &d.blocks[len(d.blocks)-1-depth]
	if b.opcode == OpLoop {
		return nil, nil
	}
	return b.out, nil
}

func (d *decoder) markUnreachable() {
	b := &d.blocks[len(d.blocks)-1]
	d.stack = d.stack[:b.stackHeight]
	b.unreachable = true
}

func decodeBlockType(body []byte) (byte, []byte, error) {
	if len(body) == 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	switch body[0] {
	case blockTypeEmpty, byte(wasm.ValueTypeI32), byte(wasm.ValueTypeI64), byte(wasm.ValueTypeF32), byte(wasm.ValueTypeF64):
		return body[0], body[1:], nil
	default:
		return 0, nil, wasm.ValidationError("invalid block type")
	}
}

// decodeInstruction reads one instruction and its immediates from the front
// of body and appends it to the instruction buffer.
func (d *decoder) decodeInstruction(body []byte) (*Instruction, []byte, error) {
	if len(body) == 0 {
		return nil, nil, io.ErrUnexpectedEOF
	}

	opcode := body[0]
	body = body[1:]

	var immediate uint64
	var labels []int
	switch opcode {
	case OpBlock, OpLoop:
		bt, rest, err := decodeBlockType(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(bt), rest
		if opcode == OpLoop {
			d.metrics.HasLoops = true
		}
	case OpIf:
		bt, rest, err := decodeBlockType(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(bt), rest
		labels = []int{0, 0}
	case OpElse:
		labels = []int{0}
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		index, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(index), body[read:]
	case OpBrTable:
		numLabels, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		body = body[read:]

		labels = make([]int, int(numLabels))
		for i := range labels {
			label, read, err := leb128.GetVarUint32(body)
			if err != nil {
				return nil, nil, err
			}
			labels[i], body = int(label), body[read:]
		}

		defaultLabel, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(defaultLabel), body[read:]
	case OpCallIndirect:
		index, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(index), body[read:]

		// The table index byte is reserved and must be zero.
		if len(body) == 0 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		if body[0] != 0x00 {
			return nil, nil, ErrInvalidInstruction
		}
		body = body[1:]
	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		align, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		body = body[read:]

		offset, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		body = body[read:]

		immediate = memarg(offset, align)
	case OpMemorySize, OpMemoryGrow:
		// The memory index byte is reserved and must be zero.
		if len(body) == 0 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		if body[0] != 0x00 {
			return nil, nil, ErrInvalidInstruction
		}
		body = body[1:]
	case OpI32Const:
		value, read, err := leb128.GetVarint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(uint32(value)), body[read:]
	case OpI64Const:
		value, read, err := leb128.GetVarint64(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(value), body[read:]
	case OpF32Const:
		if len(body) < 4 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		immediate, body = uint64(binary.LittleEndian.Uint32(body)), body[4:]
	case OpF64Const:
		if len(body) < 8 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		immediate, body = binary.LittleEndian.Uint64(body), body[8:]
	case OpPrefix:
		satOp, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		if satOp > OpI64TruncSatF64U {
			return nil, nil, ErrInvalidInstruction
		}
		immediate, body = uint64(satOp), body[read:]
	default:
		if opNames[opcode] == "" {
			return nil, nil, ErrInvalidInstruction
		}
	}

	d.ibuf = append(d.ibuf, Instruction{
		Opcode:    opcode,
		Immediate: immediate,
		Labels:    labels,
	})
	return &d.ibuf[len(d.ibuf)-1], body, nil
}

func (d *decoder) decode(body []byte, out []wasm.ValueType) (Body, error) {
	d.ibuf = make([]Instruction, 0, len(body))
	d.pushBlock(0, -1, -1, out)

	var instr *Instruction
	var err error
	for {
		ip := len(d.ibuf)
		if instr, body, err = d.decodeInstruction(body); err != nil {
			return Body{}, err
		}

		switch instr.Opcode {
		case OpUnreachable:
			d.markUnreachable()

		case OpNop:
			// no operands

		case OpBlock, OpLoop:
			continuation := 0 // patched at the matching end
			if instr.Opcode == OpLoop {
				continuation = ip
			}
			d.pushBlock(instr.Opcode, ip, continuation, instr.BlockTypes())

		case OpIf:
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			d.pushBlock(OpIf, ip, 0, instr.BlockTypes())

		case OpElse:
			b, err := d.popBlock()
			if err != nil {
				return Body{}, err
			}
			if b.opcode != OpIf || b.elseInstr != -1 {
				return Body{}, wasm.ValidationError("invalid nesting")
			}
			// When the condition is false, execution resumes just past the
			// else instruction.
			d.ibuf[b.instr].Labels[1] = ip + 1

			b.elseInstr = ip
			b.unreachable = false
			d.blocks = append(d.blocks, b)

		case OpEnd:
			b, err := d.popBlock()
			if err != nil {
				return Body{}, err
			}

			if b.instr == -1 {
				// The function frame: this must be the last instruction.
				if len(d.stack) != 0 {
					return Body{}, wasm.ValidationError("type mismatch")
				}
				if len(body) != 0 {
					return Body{}, wasm.ValidationError("unexpected instructions after function end")
				}
				d.labels[0].Continuation = ip + 1
				d.metrics.LabelCount = len(d.labels)

				if cap(d.ibuf)-len(d.ibuf) > len(d.ibuf)/10 {
					condensed := make([]Instruction, len(d.ibuf))
					copy(condensed, d.ibuf)
					d.ibuf = condensed
				}
				return Body{
					Instructions: d.ibuf,
					Labels:       d.labels,
					Metrics:      d.metrics,
				}, nil
			}

			if b.opcode == OpIf {
				if b.elseInstr == -1 {
					if len(b.out) != 0 {
						return Body{}, wasm.ValidationError("if without else requires empty result type")
					}
				} else {
					d.ibuf[b.elseInstr].Labels[0] = ip + 1
				}
				d.ibuf[b.instr].Labels[0] = ip + 1
			}
			if b.opcode != OpLoop {
				d.labels[b.label].Continuation = ip + 1
			}
			d.pushOpds(b.out...)

		case OpBr:
			depth := int(instr.Immediate)
			pop, err := d.labelTypes(depth)
			if err != nil {
				return Body{}, err
			}
			if err := d.popOpds(pop...); err != nil {
				return Body{}, err
			}
			label, _ := d.labelOf(depth)
			instr.Immediate = uint64(label)
			d.markUnreachable()

		case OpBrIf:
			depth := int(instr.Immediate)
			pop, err := d.labelTypes(depth)
			if err != nil {
				return Body{}, err
			}
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			if err := d.popOpds(pop...); err != nil {
				return Body{}, err
			}
			d.pushOpds(pop...)
			label, _ := d.labelOf(depth)
			instr.Immediate = uint64(label)

		case OpBrTable:
			pop, err := d.labelTypes(int(instr.Immediate))
			if err != nil {
				return Body{}, err
			}
			for i, depth := range instr.Labels {
				typs, err := d.labelTypes(depth)
				if err != nil {
					return Body{}, err
				}
				if len(typs) != len(pop) {
					return Body{}, wasm.ValidationError("br_table type mismatch")
				}
				for j, t := range typs {
					if pop[j] != t {
						return Body{}, wasm.ValidationError("br_table type mismatch")
					}
				}
				label, _ := d.labelOf(depth)
				instr.Labels[i] = label
			}
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			if err := d.popOpds(pop...); err != nil {
				return Body{}, err
			}
			label, _ := d.labelOf(int(instr.Immediate))
			instr.Immediate = uint64(label)
			d.markUnreachable()

		case OpReturn:
			if err := d.popOpds(d.blocks[0].out...); err != nil {
				return Body{}, err
			}
			instr.Immediate = 0 // label 0 is the function frame
			d.markUnreachable()

		case OpCall:
			sig, ok := d.GetFunctionSignature(instr.Funcidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown function")
			}
			if err := d.popOpds(sig.ParamTypes...); err != nil {
				return Body{}, err
			}
			d.pushOpds(sig.ReturnTypes...)

		case OpCallIndirect:
			if !d.HasTable(0) {
				return Body{}, wasm.ValidationError("unknown table")
			}
			sig, ok := d.GetType(instr.Typeidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown type")
			}
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			if err := d.popOpds(sig.ParamTypes...); err != nil {
				return Body{}, err
			}
			d.pushOpds(sig.ReturnTypes...)

		case OpDrop:
			if _, err := d.popOpd(); err != nil {
				return Body{}, err
			}

		case OpSelect:
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			t2, err := d.popOpd()
			if err != nil {
				return Body{}, err
			}
			t1, err := d.popOpd()
			if err != nil {
				return Body{}, err
			}
			if t1 != wasm.ValueTypeT && t2 != wasm.ValueTypeT && t1 != t2 {
				return Body{}, wasm.ValidationError("select type mismatch")
			}
			if t1 == wasm.ValueTypeT {
				t1 = t2
			}
			d.pushOpds(t1)

		case OpLocalGet:
			t, ok := d.GetLocalType(instr.Localidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown local")
			}
			d.pushOpds(t)

		case OpLocalSet:
			t, ok := d.GetLocalType(instr.Localidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown local")
			}
			if err := d.popOpds(t); err != nil {
				return Body{}, err
			}

		case OpLocalTee:
			t, ok := d.GetLocalType(instr.Localidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown local")
			}
			if err := d.popOpds(t); err != nil {
				return Body{}, err
			}
			d.pushOpds(t)

		case OpGlobalGet:
			t, ok := d.GetGlobalType(instr.Globalidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown global")
			}
			d.pushOpds(t.Type)

		case OpGlobalSet:
			t, ok := d.GetGlobalType(instr.Globalidx())
			if !ok {
				return Body{}, wasm.ValidationError("unknown global")
			}
			if !t.Mutable {
				return Body{}, wasm.ValidationError("global is immutable")
			}
			if err := d.popOpds(t.Type); err != nil {
				return Body{}, err
			}

		case OpMemorySize:
			if !d.HasMemory(0) {
				return Body{}, wasm.ValidationError("unknown memory")
			}
			d.pushOpds(wasm.ValueTypeI32)

		case OpMemoryGrow:
			if !d.HasMemory(0) {
				return Body{}, wasm.ValidationError("unknown memory")
			}
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			d.pushOpds(wasm.ValueTypeI32)

		case OpPrefix:
			ot := satOpTypes[instr.SatOp()]
			if err := d.popOpds(ot.pop...); err != nil {
				return Body{}, err
			}
			d.pushOpds(ot.push...)

		default:
			ot, ok := simpleOpTypes[instr.Opcode]
			if !ok {
				if ot, ok = memoryOpTypes[instr.Opcode]; !ok {
					return Body{}, ErrInvalidInstruction
				}
				if !d.HasMemory(0) {
					return Body{}, wasm.ValidationError("unknown memory")
				}
			}
			if err := d.popOpds(ot.pop...); err != nil {
				return Body{}, err
			}
			d.pushOpds(ot.push...)
		}
	}
}
