package code

import "github.com/wispvm/wisp/wasm"

// opType records the operand types an instruction pops and pushes. The
// decoder consults these tables for every instruction whose typing does not
// depend on module context.
type opType struct {
	pop  []wasm.ValueType
	push []wasm.ValueType
}

var (
	tI32 = []wasm.ValueType{wasm.ValueTypeI32}
	tI64 = []wasm.ValueType{wasm.ValueTypeI64}
	tF32 = []wasm.ValueType{wasm.ValueTypeF32}
	tF64 = []wasm.ValueType{wasm.ValueTypeF64}

	tI32I32 = []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}
	tI64I64 = []wasm.ValueType{wasm.ValueTypeI64, wasm.ValueTypeI64}
	tF32F32 = []wasm.ValueType{wasm.ValueTypeF32, wasm.ValueTypeF32}
	tF64F64 = []wasm.ValueType{wasm.ValueTypeF64, wasm.ValueTypeF64}

	tI32F32 = []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeF32}
	tI32F64 = []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeF64}
	tI32I64 = []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI64}
)

var simpleOpTypes = map[byte]opType{
	OpI32Const: {nil, tI32},
	OpI64Const: {nil, tI64},
	OpF32Const: {nil, tF32},
	OpF64Const: {nil, tF64},

	OpI32Eqz: {tI32, tI32},
	OpI64Eqz: {tI64, tI32},

	OpI32Clz: {tI32, tI32}, OpI32Ctz: {tI32, tI32}, OpI32Popcnt: {tI32, tI32},
	OpI64Clz: {tI64, tI64}, OpI64Ctz: {tI64, tI64}, OpI64Popcnt: {tI64, tI64},

	OpF32Abs: {tF32, tF32}, OpF32Neg: {tF32, tF32}, OpF32Ceil: {tF32, tF32},
	OpF32Floor: {tF32, tF32}, OpF32Trunc: {tF32, tF32}, OpF32Nearest: {tF32, tF32},
	OpF32Sqrt: {tF32, tF32},

	OpF64Abs: {tF64, tF64}, OpF64Neg: {tF64, tF64}, OpF64Ceil: {tF64, tF64},
	OpF64Floor: {tF64, tF64}, OpF64Trunc: {tF64, tF64}, OpF64Nearest: {tF64, tF64},
	OpF64Sqrt: {tF64, tF64},

	OpI32Eq: {tI32I32, tI32}, OpI32Ne: {tI32I32, tI32},
	OpI32LtS: {tI32I32, tI32}, OpI32LtU: {tI32I32, tI32},
	OpI32GtS: {tI32I32, tI32}, OpI32GtU: {tI32I32, tI32},
	OpI32LeS: {tI32I32, tI32}, OpI32LeU: {tI32I32, tI32},
	OpI32GeS: {tI32I32, tI32}, OpI32GeU: {tI32I32, tI32},

	OpI64Eq: {tI64I64, tI32}, OpI64Ne: {tI64I64, tI32},
	OpI64LtS: {tI64I64, tI32}, OpI64LtU: {tI64I64, tI32},
	OpI64GtS: {tI64I64, tI32}, OpI64GtU: {tI64I64, tI32},
	OpI64LeS: {tI64I64, tI32}, OpI64LeU: {tI64I64, tI32},
	OpI64GeS: {tI64I64, tI32}, OpI64GeU: {tI64I64, tI32},

	OpF32Eq: {tF32F32, tI32}, OpF32Ne: {tF32F32, tI32},
	OpF32Lt: {tF32F32, tI32}, OpF32Gt: {tF32F32, tI32},
	OpF32Le: {tF32F32, tI32}, OpF32Ge: {tF32F32, tI32},

	OpF64Eq: {tF64F64, tI32}, OpF64Ne: {tF64F64, tI32},
	OpF64Lt: {tF64F64, tI32}, OpF64Gt: {tF64F64, tI32},
	OpF64Le: {tF64F64, tI32}, OpF64Ge: {tF64F64, tI32},

	OpI32Add: {tI32I32, tI32}, OpI32Sub: {tI32I32, tI32}, OpI32Mul: {tI32I32, tI32},
	OpI32DivS: {tI32I32, tI32}, OpI32DivU: {tI32I32, tI32},
	OpI32RemS: {tI32I32, tI32}, OpI32RemU: {tI32I32, tI32},
	OpI32And: {tI32I32, tI32}, OpI32Or: {tI32I32, tI32}, OpI32Xor: {tI32I32, tI32},
	OpI32Shl: {tI32I32, tI32}, OpI32ShrS: {tI32I32, tI32}, OpI32ShrU: {tI32I32, tI32},
	OpI32Rotl: {tI32I32, tI32}, OpI32Rotr: {tI32I32, tI32},

	OpI64Add: {tI64I64, tI64}, OpI64Sub: {tI64I64, tI64}, OpI64Mul: {tI64I64, tI64},
	OpI64DivS: {tI64I64, tI64}, OpI64DivU: {tI64I64, tI64},
	OpI64RemS: {tI64I64, tI64}, OpI64RemU: {tI64I64, tI64},
	OpI64And: {tI64I64, tI64}, OpI64Or: {tI64I64, tI64}, OpI64Xor: {tI64I64, tI64},
	OpI64Shl: {tI64I64, tI64}, OpI64ShrS: {tI64I64, tI64}, OpI64ShrU: {tI64I64, tI64},
	OpI64Rotl: {tI64I64, tI64}, OpI64Rotr: {tI64I64, tI64},

	OpF32Add: {tF32F32, tF32}, OpF32Sub: {tF32F32, tF32}, OpF32Mul: {tF32F32, tF32},
	OpF32Div: {tF32F32, tF32}, OpF32Min: {tF32F32, tF32}, OpF32Max: {tF32F32, tF32},
	OpF32Copysign: {tF32F32, tF32},

	OpF64Add: {tF64F64, tF64}, OpF64Sub: {tF64F64, tF64}, OpF64Mul: {tF64F64, tF64},
	OpF64Div: {tF64F64, tF64}, OpF64Min: {tF64F64, tF64}, OpF64Max: {tF64F64, tF64},
	OpF64Copysign: {tF64F64, tF64},

	OpI32WrapI64:   {tI64, tI32},
	OpI32TruncF32S: {tF32, tI32}, OpI32TruncF32U: {tF32, tI32},
	OpI32TruncF64S: {tF64, tI32}, OpI32TruncF64U: {tF64, tI32},
	OpI64ExtendI32S: {tI32, tI64}, OpI64ExtendI32U: {tI32, tI64},
	OpI64TruncF32S: {tF32, tI64}, OpI64TruncF32U: {tF32, tI64},
	OpI64TruncF64S: {tF64, tI64}, OpI64TruncF64U: {tF64, tI64},
	OpF32ConvertI32S: {tI32, tF32}, OpF32ConvertI32U: {tI32, tF32},
	OpF32ConvertI64S: {tI64, tF32}, OpF32ConvertI64U: {tI64, tF32},
	OpF32DemoteF64: {tF64, tF32},
	OpF64ConvertI32S: {tI32, tF64}, OpF64ConvertI32U: {tI32, tF64},
	OpF64ConvertI64S: {tI64, tF64}, OpF64ConvertI64U: {tI64, tF64},
	OpF64PromoteF32: {tF32, tF64},

	OpI32ReinterpretF32: {tF32, tI32},
	OpI64ReinterpretF64: {tF64, tI64},
	OpF32ReinterpretI32: {tI32, tF32},
	OpF64ReinterpretI64: {tI64, tF64},

	OpI32Extend8S: {tI32, tI32}, OpI32Extend16S: {tI32, tI32},
	OpI64Extend8S: {tI64, tI64}, OpI64Extend16S: {tI64, tI64}, OpI64Extend32S: {tI64, tI64},
}

var memoryOpTypes = map[byte]opType{
	OpI32Load: {tI32, tI32}, OpI64Load: {tI32, tI64},
	OpF32Load: {tI32, tF32}, OpF64Load: {tI32, tF64},
	OpI32Load8S: {tI32, tI32}, OpI32Load8U: {tI32, tI32},
	OpI32Load16S: {tI32, tI32}, OpI32Load16U: {tI32, tI32},
	OpI64Load8S: {tI32, tI64}, OpI64Load8U: {tI32, tI64},
	OpI64Load16S: {tI32, tI64}, OpI64Load16U: {tI32, tI64},
	OpI64Load32S: {tI32, tI64}, OpI64Load32U: {tI32, tI64},

	OpI32Store: {tI32I32, nil}, OpI64Store: {tI32I64, nil},
	OpF32Store: {tI32F32, nil}, OpF64Store: {tI32F64, nil},
	OpI32Store8: {tI32I32, nil}, OpI32Store16: {tI32I32, nil},
	OpI64Store8: {tI32I64, nil}, OpI64Store16: {tI32I64, nil}, OpI64Store32: {tI32I64, nil},
}

var satOpTypes = [8]opType{
	OpI32TruncSatF32S: {tF32, tI32},
	OpI32TruncSatF32U: {tF32, tI32},
	OpI32TruncSatF64S: {tF64, tI32},
	OpI32TruncSatF64U: {tF64, tI32},
	OpI64TruncSatF32S: {tF32, tI64},
	OpI64TruncSatF32U: {tF32, tI64},
	OpI64TruncSatF64S: {tF64, tI64},
	OpI64TruncSatF64U: {tF64, tI64},
}
