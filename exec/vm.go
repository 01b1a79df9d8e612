package exec

import (
	"math"
	"math/bits"
	"runtime"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
)

// CallStackDepthLimit bounds the call depth of a single execution. Exceeding
// it traps.
const CallStackDepthLimit = 2048

// Execute runs the function with the given index on the instance. The
// arguments must match the function's parameter count and types; depth is
// the current call depth and should be zero for top-level calls. Traps are
// reported in the result, never as panics.
func Execute(i *Instance, funcidx uint32, args []Value, depth int) (result ExecutionResult) {
	defer func() {
		if x := recover(); x != nil {
			if _, ok := x.(Trap); ok {
				result = TrapResult
				return
			}
			if err, ok := x.(runtime.Error); ok {
				if _, ok := TranslateRuntimeError(err); ok {
					result = TrapResult
					return
				}
			}
			panic(x)
		}
	}()

	if _, ok := i.def.FunctionType(funcidx); !ok {
		return TrapResult
	}

	value, hasValue := i.execute(funcidx, args, depth)
	if !hasValue {
		return Void
	}
	return ValueResult(value)
}

// execute dispatches a call to a host or guest function. Traps propagate as
// panics and are recovered at the Execute boundary.
func (i *Instance) execute(funcidx uint32, args []Value, depth int) (Value, bool) {
	if depth >= CallStackDepthLimit {
		panic(TrapCallStackExhausted)
	}

	if funcidx < uint32(len(i.importedFunctions)) {
		f := &i.importedFunctions[int(funcidx)]
		r := f.Fn(f.Env, i, args, depth)
		if r.Trapped {
			panic(TrapHostFunction)
		}
		return checkResultArity(f.Sig, r)
	}

	fn := &i.def.funcs[int(funcidx)-len(i.importedFunctions)]
	locals := make([]Value, len(fn.sig.ParamTypes)+fn.numLocals)
	copy(locals, args)

	f := frame{
		inst:   i,
		fn:     fn,
		locals: locals,
		stack:  make([]Value, 0, fn.body.Metrics.MaxStackDepth),
		depth:  depth,
	}
	f.run()

	if len(fn.sig.ReturnTypes) != 0 {
		return f.stack[len(f.stack)-1], true
	}
	return 0, false
}

// checkResultArity enforces the declared result arity at the host boundary.
// A host function that violates its signature surfaces as a trap rather than
// corrupting the operand stack.
func checkResultArity(sig wasm.FunctionSig, r ExecutionResult) (Value, bool) {
	if r.HasValue != (len(sig.ReturnTypes) == 1) {
		panic(TrapHostFunction)
	}
	return r.Value, r.HasValue
}

// A frame is a single guest activation: its locals, operand stack, and the
// instance whose state it reads.
type frame struct {
	inst   *Instance
	fn     *funcBody
	locals []Value
	stack  []Value
	depth  int
}

func (f *frame) push(v Value)      { f.stack = append(f.stack, v) }
func (f *frame) pushI32(v int32)   { f.push(I32Value(v)) }
func (f *frame) pushU32(v uint32)  { f.push(Value(v)) }
func (f *frame) pushI64(v int64)   { f.push(I64Value(v)) }
func (f *frame) pushU64(v uint64)  { f.push(Value(v)) }
func (f *frame) pushF32(v float32) { f.push(F32Value(v)) }
func (f *frame) pushF64(v float64) { f.push(F64Value(v)) }

func (f *frame) pushBool(v bool) {
	if v {
		f.push(1)
	} else {
		f.push(0)
	}
}

func (f *frame) pop() Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) pop2() (v1, v2 Value) {
	v1, v2 = f.stack[len(f.stack)-2], f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-2]
	return v1, v2
}

func (f *frame) popI32() int32     { return f.pop().I32() }
func (f *frame) popU32() uint32    { return uint32(f.pop()) }
func (f *frame) popI64() int64     { return f.pop().I64() }
func (f *frame) popU64() uint64    { return uint64(f.pop()) }
func (f *frame) popF32() float32   { return f.pop().F32() }
func (f *frame) popF64() float64   { return f.pop().F64() }
func (f *frame) popBool() bool     { return f.pop() != 0 }

func (f *frame) pop2I32() (int32, int32) {
	v1, v2 := f.pop2()
	return v1.I32(), v2.I32()
}

func (f *frame) pop2U32() (uint32, uint32) {
	v1, v2 := f.pop2()
	return uint32(v1), uint32(v2)
}

func (f *frame) pop2I64() (int64, int64) {
	v1, v2 := f.pop2()
	return v1.I64(), v2.I64()
}

func (f *frame) pop2U64() (uint64, uint64) {
	v1, v2 := f.pop2()
	return uint64(v1), uint64(v2)
}

func (f *frame) pop2F32() (float32, float32) {
	v1, v2 := f.pop2()
	return v1.F32(), v2.F32()
}

func (f *frame) pop2F64() (float64, float64) {
	v1, v2 := f.pop2()
	return v1.F64(), v2.F64()
}

// branch transfers control to the given label: the label's arity values are
// moved down to the label's entry height, the rest of the operand stack is
// unwound, and execution resumes at the label's continuation.
func (f *frame) branch(labelidx int) int {
	l := &f.fn.body.Labels[labelidx]
	copy(f.stack[l.StackHeight:], f.stack[len(f.stack)-l.Arity:])
	f.stack = f.stack[:l.StackHeight+l.Arity]
	return l.Continuation
}

// call invokes the function with the given index in the frame's instance,
// popping its arguments and pushing its result.
func (f *frame) call(funcidx uint32) {
	sig, _ := f.inst.def.FunctionType(funcidx)
	f.invoke(sig, func(args []Value) (Value, bool) {
		return f.inst.execute(funcidx, args, f.depth+1)
	})
}

// callRef invokes a function reference, as stored in tables and import
// vectors, popping its arguments and pushing its result.
func (f *frame) callRef(fn *Function) {
	f.invoke(fn.Sig, func(args []Value) (Value, bool) {
		r := fn.Fn(fn.Env, f.inst, args, f.depth+1)
		if r.Trapped {
			panic(TrapHostFunction)
		}
		return checkResultArity(fn.Sig, r)
	})
}

func (f *frame) invoke(sig wasm.FunctionSig, call func(args []Value) (Value, bool)) {
	nparams := len(sig.ParamTypes)
	args := make([]Value, nparams)
	copy(args, f.stack[len(f.stack)-nparams:])
	f.stack = f.stack[:len(f.stack)-nparams]

	if v, ok := call(args); ok {
		f.push(v)
	}
}

func (f *frame) run() {
	body := f.fn.body.Instructions
	mem := f.inst.memory

	ip := 0
	for ip < len(body) {
		instr := &body[ip]
		ip++

		switch instr.Opcode {
		case code.OpUnreachable:
			panic(TrapUnreachable)

		case code.OpNop, code.OpBlock, code.OpLoop, code.OpEnd:
			// Labels are resolved at decode time; structured markers are
			// no-ops during execution.

		case code.OpIf:
			if !f.popBool() {
				if elsePC := instr.ElsePC(); elsePC != 0 {
					ip = elsePC
				} else {
					ip = instr.EndPC()
				}
			}

		case code.OpElse:
			// End of a taken then-branch.
			ip = instr.EndPC()

		case code.OpBr:
			ip = f.branch(instr.LabelIndex())

		case code.OpBrIf:
			if f.popBool() {
				ip = f.branch(instr.LabelIndex())
			}

		case code.OpBrTable:
			if li := int(f.popU32()); li >= 0 && li < len(instr.Labels) {
				ip = f.branch(instr.Labels[li])
			} else {
				ip = f.branch(instr.LabelIndex())
			}

		case code.OpReturn:
			ip = f.branch(0)

		case code.OpCall:
			f.call(instr.Funcidx())

		case code.OpCallIndirect:
			table := f.inst.table
			index := f.popU32()
			fn, ok := table.Get(index)
			if !ok {
				panic(TrapUndefinedElement)
			}
			if fn == nil {
				panic(TrapUninitializedElement)
			}
			expected := f.inst.def.types[int(instr.Typeidx())]
			if !fn.Sig.Equals(expected) {
				panic(TrapIndirectCallTypeMismatch)
			}
			f.callRef(fn)

		case code.OpDrop:
			f.pop()

		case code.OpSelect:
			condition := f.popBool()
			v2, v1 := f.pop(), f.pop()
			if condition {
				f.push(v1)
			} else {
				f.push(v2)
			}

		case code.OpLocalGet:
			f.push(f.locals[int(instr.Localidx())])
		case code.OpLocalSet:
			f.locals[int(instr.Localidx())] = f.pop()
		case code.OpLocalTee:
			f.locals[int(instr.Localidx())] = f.stack[len(f.stack)-1]

		case code.OpGlobalGet:
			f.push(Value(f.inst.global(instr.Globalidx()).Get()))
		case code.OpGlobalSet:
			f.inst.global(instr.Globalidx()).Set(uint64(f.pop()))

		case code.OpI32Load:
			f.pushU32(mem.Uint32(f.popU32(), instr.Offset()))
		case code.OpI64Load:
			f.pushU64(mem.Uint64(f.popU32(), instr.Offset()))
		case code.OpF32Load:
			f.pushF32(mem.Float32(f.popU32(), instr.Offset()))
		case code.OpF64Load:
			f.pushF64(mem.Float64(f.popU32(), instr.Offset()))

		case code.OpI32Load8S:
			f.pushI32(int32(int8(mem.Byte(f.popU32(), instr.Offset()))))
		case code.OpI32Load8U:
			f.pushI32(int32(mem.Byte(f.popU32(), instr.Offset())))
		case code.OpI32Load16S:
			f.pushI32(int32(int16(mem.Uint16(f.popU32(), instr.Offset()))))
		case code.OpI32Load16U:
			f.pushI32(int32(mem.Uint16(f.popU32(), instr.Offset())))

		case code.OpI64Load8S:
			f.pushI64(int64(int8(mem.Byte(f.popU32(), instr.Offset()))))
		case code.OpI64Load8U:
			f.pushI64(int64(mem.Byte(f.popU32(), instr.Offset())))
		case code.OpI64Load16S:
			f.pushI64(int64(int16(mem.Uint16(f.popU32(), instr.Offset()))))
		case code.OpI64Load16U:
			f.pushI64(int64(mem.Uint16(f.popU32(), instr.Offset())))
		case code.OpI64Load32S:
			f.pushI64(int64(int32(mem.Uint32(f.popU32(), instr.Offset()))))
		case code.OpI64Load32U:
			f.pushI64(int64(mem.Uint32(f.popU32(), instr.Offset())))

		case code.OpI32Store:
			v := f.popU32()
			mem.PutUint32(v, f.popU32(), instr.Offset())
		case code.OpI64Store:
			v := f.popU64()
			mem.PutUint64(v, f.popU32(), instr.Offset())
		case code.OpF32Store:
			v := f.popF32()
			mem.PutFloat32(v, f.popU32(), instr.Offset())
		case code.OpF64Store:
			v := f.popF64()
			mem.PutFloat64(v, f.popU32(), instr.Offset())

		case code.OpI32Store8:
			v := byte(f.popU32())
			mem.PutByte(v, f.popU32(), instr.Offset())
		case code.OpI32Store16:
			v := uint16(f.popU32())
			mem.PutUint16(v, f.popU32(), instr.Offset())
		case code.OpI64Store8:
			v := byte(f.popU64())
			mem.PutByte(v, f.popU32(), instr.Offset())
		case code.OpI64Store16:
			v := uint16(f.popU64())
			mem.PutUint16(v, f.popU32(), instr.Offset())
		case code.OpI64Store32:
			v := uint32(f.popU64())
			mem.PutUint32(v, f.popU32(), instr.Offset())

		case code.OpMemorySize:
			f.pushU32(mem.Size())
		case code.OpMemoryGrow:
			if prev, err := mem.Grow(f.popU32()); err != nil {
				f.pushI32(-1)
			} else {
				f.pushU32(prev)
			}

		case code.OpI32Const, code.OpI64Const, code.OpF32Const, code.OpF64Const:
			f.push(Value(instr.Immediate))

		case code.OpI32Eqz:
			f.pushBool(f.popI32() == 0)
		case code.OpI32Eq:
			v1, v2 := f.pop2I32()
			f.pushBool(v1 == v2)
		case code.OpI32Ne:
			v1, v2 := f.pop2I32()
			f.pushBool(v1 != v2)
		case code.OpI32LtS:
			v1, v2 := f.pop2I32()
			f.pushBool(v1 < v2)
		case code.OpI32LtU:
			v1, v2 := f.pop2U32()
			f.pushBool(v1 < v2)
		case code.OpI32GtS:
			v1, v2 := f.pop2I32()
			f.pushBool(v1 > v2)
		case code.OpI32GtU:
			v1, v2 := f.pop2U32()
			f.pushBool(v1 > v2)
		case code.OpI32LeS:
			v1, v2 := f.pop2I32()
			f.pushBool(v1 <= v2)
		case code.OpI32LeU:
			v1, v2 := f.pop2U32()
			f.pushBool(v1 <= v2)
		case code.OpI32GeS:
			v1, v2 := f.pop2I32()
			f.pushBool(v1 >= v2)
		case code.OpI32GeU:
			v1, v2 := f.pop2U32()
			f.pushBool(v1 >= v2)

		case code.OpI64Eqz:
			f.pushBool(f.popI64() == 0)
		case code.OpI64Eq:
			v1, v2 := f.pop2I64()
			f.pushBool(v1 == v2)
		case code.OpI64Ne:
			v1, v2 := f.pop2I64()
			f.pushBool(v1 != v2)
		case code.OpI64LtS:
			v1, v2 := f.pop2I64()
			f.pushBool(v1 < v2)
		case code.OpI64LtU:
			v1, v2 := f.pop2U64()
			f.pushBool(v1 < v2)
		case code.OpI64GtS:
			v1, v2 := f.pop2I64()
			f.pushBool(v1 > v2)
		case code.OpI64GtU:
			v1, v2 := f.pop2U64()
			f.pushBool(v1 > v2)
		case code.OpI64LeS:
			v1, v2 := f.pop2I64()
			f.pushBool(v1 <= v2)
		case code.OpI64LeU:
			v1, v2 := f.pop2U64()
			f.pushBool(v1 <= v2)
		case code.OpI64GeS:
			v1, v2 := f.pop2I64()
			f.pushBool(v1 >= v2)
		case code.OpI64GeU:
			v1, v2 := f.pop2U64()
			f.pushBool(v1 >= v2)

		case code.OpF32Eq:
			v1, v2 := f.pop2F32()
			f.pushBool(v1 == v2)
		case code.OpF32Ne:
			v1, v2 := f.pop2F32()
			f.pushBool(v1 != v2)
		case code.OpF32Lt:
			v1, v2 := f.pop2F32()
			f.pushBool(v1 < v2)
		case code.OpF32Gt:
			v1, v2 := f.pop2F32()
			f.pushBool(v1 > v2)
		case code.OpF32Le:
			v1, v2 := f.pop2F32()
			f.pushBool(v1 <= v2)
		case code.OpF32Ge:
			v1, v2 := f.pop2F32()
			f.pushBool(v1 >= v2)

		case code.OpF64Eq:
			v1, v2 := f.pop2F64()
			f.pushBool(v1 == v2)
		case code.OpF64Ne:
			v1, v2 := f.pop2F64()
			f.pushBool(v1 != v2)
		case code.OpF64Lt:
			v1, v2 := f.pop2F64()
			f.pushBool(v1 < v2)
		case code.OpF64Gt:
			v1, v2 := f.pop2F64()
			f.pushBool(v1 > v2)
		case code.OpF64Le:
			v1, v2 := f.pop2F64()
			f.pushBool(v1 <= v2)
		case code.OpF64Ge:
			v1, v2 := f.pop2F64()
			f.pushBool(v1 >= v2)

		case code.OpI32Clz:
			f.pushI32(int32(bits.LeadingZeros32(f.popU32())))
		case code.OpI32Ctz:
			f.pushI32(int32(bits.TrailingZeros32(f.popU32())))
		case code.OpI32Popcnt:
			f.pushI32(int32(bits.OnesCount32(f.popU32())))
		case code.OpI32Add:
			v1, v2 := f.pop2I32()
			f.pushI32(v1 + v2)
		case code.OpI32Sub:
			v1, v2 := f.pop2I32()
			f.pushI32(v1 - v2)
		case code.OpI32Mul:
			v1, v2 := f.pop2I32()
			f.pushI32(v1 * v2)
		case code.OpI32DivS:
			v1, v2 := f.pop2I32()
			f.pushI32(i32DivS(v1, v2))
		case code.OpI32DivU:
			v1, v2 := f.pop2U32()
			f.pushU32(i32DivU(v1, v2))
		case code.OpI32RemS:
			v1, v2 := f.pop2I32()
			f.pushI32(i32RemS(v1, v2))
		case code.OpI32RemU:
			v1, v2 := f.pop2U32()
			f.pushU32(i32RemU(v1, v2))
		case code.OpI32And:
			v1, v2 := f.pop2U32()
			f.pushU32(v1 & v2)
		case code.OpI32Or:
			v1, v2 := f.pop2U32()
			f.pushU32(v1 | v2)
		case code.OpI32Xor:
			v1, v2 := f.pop2U32()
			f.pushU32(v1 ^ v2)
		case code.OpI32Shl:
			v1, v2 := f.pop2U32()
			f.pushU32(v1 << (v2 & 31))
		case code.OpI32ShrS:
			v1, v2 := f.pop2I32()
			f.pushI32(v1 >> (uint32(v2) & 31))
		case code.OpI32ShrU:
			v1, v2 := f.pop2U32()
			f.pushU32(v1 >> (v2 & 31))
		case code.OpI32Rotl:
			v1, v2 := f.pop2U32()
			f.pushU32(bits.RotateLeft32(v1, int(v2&31)))
		case code.OpI32Rotr:
			v1, v2 := f.pop2U32()
			f.pushU32(bits.RotateLeft32(v1, -int(v2&31)))

		case code.OpI64Clz:
			f.pushI64(int64(bits.LeadingZeros64(f.popU64())))
		case code.OpI64Ctz:
			f.pushI64(int64(bits.TrailingZeros64(f.popU64())))
		case code.OpI64Popcnt:
			f.pushI64(int64(bits.OnesCount64(f.popU64())))
		case code.OpI64Add:
			v1, v2 := f.pop2I64()
			f.pushI64(v1 + v2)
		case code.OpI64Sub:
			v1, v2 := f.pop2I64()
			f.pushI64(v1 - v2)
		case code.OpI64Mul:
			v1, v2 := f.pop2I64()
			f.pushI64(v1 * v2)
		case code.OpI64DivS:
			v1, v2 := f.pop2I64()
			f.pushI64(i64DivS(v1, v2))
		case code.OpI64DivU:
			v1, v2 := f.pop2U64()
			f.pushU64(i64DivU(v1, v2))
		case code.OpI64RemS:
			v1, v2 := f.pop2I64()
			f.pushI64(i64RemS(v1, v2))
		case code.OpI64RemU:
			v1, v2 := f.pop2U64()
			f.pushU64(i64RemU(v1, v2))
		case code.OpI64And:
			v1, v2 := f.pop2U64()
			f.pushU64(v1 & v2)
		case code.OpI64Or:
			v1, v2 := f.pop2U64()
			f.pushU64(v1 | v2)
		case code.OpI64Xor:
			v1, v2 := f.pop2U64()
			f.pushU64(v1 ^ v2)
		case code.OpI64Shl:
			v1, v2 := f.pop2U64()
			f.pushU64(v1 << (v2 & 63))
		case code.OpI64ShrS:
			v1, v2 := f.pop2I64()
			f.pushI64(v1 >> (uint64(v2) & 63))
		case code.OpI64ShrU:
			v1, v2 := f.pop2U64()
			f.pushU64(v1 >> (v2 & 63))
		case code.OpI64Rotl:
			v1, v2 := f.pop2U64()
			f.pushU64(bits.RotateLeft64(v1, int(v2&63)))
		case code.OpI64Rotr:
			v1, v2 := f.pop2U64()
			f.pushU64(bits.RotateLeft64(v1, -int(v2&63)))

		case code.OpF32Abs:
			f.pushF32(float32(math.Abs(float64(f.popF32()))))
		case code.OpF32Neg:
			f.pushU32(f.popU32() ^ 0x80000000)
		case code.OpF32Ceil:
			f.pushF32(float32(math.Ceil(float64(f.popF32()))))
		case code.OpF32Floor:
			f.pushF32(float32(math.Floor(float64(f.popF32()))))
		case code.OpF32Trunc:
			f.pushF32(float32(math.Trunc(float64(f.popF32()))))
		case code.OpF32Nearest:
			f.pushF32(float32(math.RoundToEven(float64(f.popF32()))))
		case code.OpF32Sqrt:
			f.pushF32(float32(math.Sqrt(float64(f.popF32()))))
		case code.OpF32Add:
			v1, v2 := f.pop2F32()
			f.pushF32(v1 + v2)
		case code.OpF32Sub:
			v1, v2 := f.pop2F32()
			f.pushF32(v1 - v2)
		case code.OpF32Mul:
			v1, v2 := f.pop2F32()
			f.pushF32(v1 * v2)
		case code.OpF32Div:
			v1, v2 := f.pop2F32()
			f.pushF32(v1 / v2)
		case code.OpF32Min:
			v1, v2 := f.pop2F32()
			f.pushF32(fmin32(v1, v2))
		case code.OpF32Max:
			v1, v2 := f.pop2F32()
			f.pushF32(fmax32(v1, v2))
		case code.OpF32Copysign:
			v1, v2 := f.pop2F32()
			f.pushF32(float32(math.Copysign(float64(v1), float64(v2))))

		case code.OpF64Abs:
			f.pushF64(math.Abs(f.popF64()))
		case code.OpF64Neg:
			f.pushU64(f.popU64() ^ 0x8000000000000000)
		case code.OpF64Ceil:
			f.pushF64(math.Ceil(f.popF64()))
		case code.OpF64Floor:
			f.pushF64(math.Floor(f.popF64()))
		case code.OpF64Trunc:
			f.pushF64(math.Trunc(f.popF64()))
		case code.OpF64Nearest:
			f.pushF64(math.RoundToEven(f.popF64()))
		case code.OpF64Sqrt:
			f.pushF64(math.Sqrt(f.popF64()))
		case code.OpF64Add:
			v1, v2 := f.pop2F64()
			f.pushF64(v1 + v2)
		case code.OpF64Sub:
			v1, v2 := f.pop2F64()
			f.pushF64(v1 - v2)
		case code.OpF64Mul:
			v1, v2 := f.pop2F64()
			f.pushF64(v1 * v2)
		case code.OpF64Div:
			v1, v2 := f.pop2F64()
			f.pushF64(v1 / v2)
		case code.OpF64Min:
			v1, v2 := f.pop2F64()
			f.pushF64(fmin(v1, v2))
		case code.OpF64Max:
			v1, v2 := f.pop2F64()
			f.pushF64(fmax(v1, v2))
		case code.OpF64Copysign:
			v1, v2 := f.pop2F64()
			f.pushF64(math.Copysign(v1, v2))

		case code.OpI32WrapI64:
			f.pushU32(uint32(f.popU64()))
		case code.OpI32TruncF32S:
			f.pushI32(i32TruncS(float64(f.popF32())))
		case code.OpI32TruncF32U:
			f.pushU32(i32TruncU(float64(f.popF32())))
		case code.OpI32TruncF64S:
			f.pushI32(i32TruncS(f.popF64()))
		case code.OpI32TruncF64U:
			f.pushU32(i32TruncU(f.popF64()))
		case code.OpI64ExtendI32S:
			f.pushI64(int64(f.popI32()))
		case code.OpI64ExtendI32U:
			f.pushU64(uint64(f.popU32()))
		case code.OpI64TruncF32S:
			f.pushI64(i64TruncS(float64(f.popF32())))
		case code.OpI64TruncF32U:
			f.pushU64(i64TruncU(float64(f.popF32())))
		case code.OpI64TruncF64S:
			f.pushI64(i64TruncS(f.popF64()))
		case code.OpI64TruncF64U:
			f.pushU64(i64TruncU(f.popF64()))
		case code.OpF32ConvertI32S:
			f.pushF32(float32(f.popI32()))
		case code.OpF32ConvertI32U:
			f.pushF32(float32(f.popU32()))
		case code.OpF32ConvertI64S:
			f.pushF32(float32(f.popI64()))
		case code.OpF32ConvertI64U:
			f.pushF32(float32(f.popU64()))
		case code.OpF32DemoteF64:
			f.pushF32(float32(f.popF64()))
		case code.OpF64ConvertI32S:
			f.pushF64(float64(f.popI32()))
		case code.OpF64ConvertI32U:
			f.pushF64(float64(f.popU32()))
		case code.OpF64ConvertI64S:
			f.pushF64(float64(f.popI64()))
		case code.OpF64ConvertI64U:
			f.pushF64(float64(f.popU64()))
		case code.OpF64PromoteF32:
			f.pushF64(float64(f.popF32()))

		case code.OpI32ReinterpretF32, code.OpI64ReinterpretF64,
			code.OpF32ReinterpretI32, code.OpF64ReinterpretI64:
			// Bitwise casts; the packed representation is unchanged.

		case code.OpI32Extend8S:
			f.pushI32(int32(int8(f.popI32())))
		case code.OpI32Extend16S:
			f.pushI32(int32(int16(f.popI32())))
		case code.OpI64Extend8S:
			f.pushI64(int64(int8(f.popI64())))
		case code.OpI64Extend16S:
			f.pushI64(int64(int16(f.popI64())))
		case code.OpI64Extend32S:
			f.pushI64(int64(int32(f.popI64())))

		case code.OpPrefix:
			switch instr.SatOp() {
			case code.OpI32TruncSatF32S:
				f.pushI32(i32TruncSatS(float64(f.popF32())))
			case code.OpI32TruncSatF32U:
				f.pushU32(i32TruncSatU(float64(f.popF32())))
			case code.OpI32TruncSatF64S:
				f.pushI32(i32TruncSatS(f.popF64()))
			case code.OpI32TruncSatF64U:
				f.pushU32(i32TruncSatU(f.popF64()))
			case code.OpI64TruncSatF32S:
				f.pushI64(i64TruncSatS(float64(f.popF32())))
			case code.OpI64TruncSatF32U:
				f.pushU64(i64TruncSatU(float64(f.popF32())))
			case code.OpI64TruncSatF64S:
				f.pushI64(i64TruncSatS(f.popF64()))
			case code.OpI64TruncSatF64U:
				f.pushU64(i64TruncSatU(f.popF64()))
			}
		}
	}
}
