package exec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wispvm/wisp/wasm"
	"github.com/wispvm/wisp/wasm/code"
	"github.com/wispvm/wisp/wasm/leb128"
)

type InvalidGlobalIndexError uint32

func (e InvalidGlobalIndexError) Error() string {
	return fmt.Sprintf("wasm: invalid index to global index space: %#x", uint32(e))
}

// evalConstantExpression executes an encoded constant expression in the
// context of the given imported globals. Validation has established that the
// expression is a single constant or global.get terminated by end.
func evalConstantExpression(imports []*Global, expr []byte) (uint64, error) {
	if len(expr) == 0 {
		return 0, wasm.ErrEmptyInitExpr
	}

	var value uint64
	opcode := expr[0]
	expr = expr[1:]
	switch opcode {
	case code.OpI32Const:
		v, n, err := leb128.GetVarint32(expr)
		if err != nil {
			return 0, err
		}
		value, expr = uint64(uint32(v)), expr[n:]
	case code.OpI64Const:
		v, n, err := leb128.GetVarint64(expr)
		if err != nil {
			return 0, err
		}
		value, expr = uint64(v), expr[n:]
	case code.OpF32Const:
		if len(expr) < 4 {
			return 0, io.ErrUnexpectedEOF
		}
		value, expr = uint64(binary.LittleEndian.Uint32(expr)), expr[4:]
	case code.OpF64Const:
		if len(expr) < 8 {
			return 0, io.ErrUnexpectedEOF
		}
		value, expr = binary.LittleEndian.Uint64(expr), expr[8:]
	case code.OpGlobalGet:
		index, n, err := leb128.GetVarUint32(expr)
		if err != nil {
			return 0, err
		}
		expr = expr[n:]
		if index >= uint32(len(imports)) {
			return 0, InvalidGlobalIndexError(index)
		}
		value = imports[int(index)].Get()
	default:
		return 0, wasm.InvalidInitExprOpError(opcode)
	}

	if len(expr) != 1 || expr[0] != code.OpEnd {
		return 0, wasm.ValidationError("constant expression required")
	}
	return value, nil
}
