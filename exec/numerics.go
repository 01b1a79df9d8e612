package exec

import "math"

func i32DivS(i1, i2 int32) int32 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	if i1 == math.MinInt32 && i2 == -1 {
		panic(TrapIntegerOverflow)
	}
	return i1 / i2
}

func i64DivS(i1, i2 int64) int64 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	if i1 == math.MinInt64 && i2 == -1 {
		panic(TrapIntegerOverflow)
	}
	return i1 / i2
}

func i32DivU(i1, i2 uint32) uint32 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	return i1 / i2
}

func i64DivU(i1, i2 uint64) uint64 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	return i1 / i2
}

func i32RemS(i1, i2 int32) int32 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	if i1 == math.MinInt32 && i2 == -1 {
		return 0
	}
	return i1 % i2
}

func i64RemS(i1, i2 int64) int64 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	if i1 == math.MinInt64 && i2 == -1 {
		return 0
	}
	return i1 % i2
}

func i32RemU(i1, i2 uint32) uint32 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	return i1 % i2
}

func i64RemU(i1, i2 uint64) uint64 {
	if i2 == 0 {
		panic(TrapIntegerDivideByZero)
	}
	return i1 % i2
}

// fmin and fmax implement the WASM min/max semantics: NaN propagates and
// -0 orders before +0.
func fmin(z1, z2 float64) float64 {
	switch {
	case math.IsNaN(z1) || math.IsNaN(z2):
		return math.NaN()
	case z1 == 0 && z2 == 0:
		if math.Signbit(z1) {
			return z1
		}
		return z2
	case z1 < z2:
		return z1
	default:
		return z2
	}
}

func fmax(z1, z2 float64) float64 {
	switch {
	case math.IsNaN(z1) || math.IsNaN(z2):
		return math.NaN()
	case z1 == 0 && z2 == 0:
		if math.Signbit(z1) {
			return z2
		}
		return z1
	case z1 > z2:
		return z1
	default:
		return z2
	}
}

func fmin32(z1, z2 float32) float32 {
	return float32(fmin(float64(z1), float64(z2)))
}

func fmax32(z1, z2 float32) float32 {
	return float32(fmax(float64(z1), float64(z2)))
}

func i32TruncS(z float64) int32 {
	if math.IsNaN(z) {
		panic(TrapInvalidConversionToInteger)
	}
	z = math.Trunc(z)
	if z < math.MinInt32 || z > math.MaxInt32 {
		panic(TrapIntegerOverflow)
	}
	return int32(z)
}

func i32TruncU(z float64) uint32 {
	if math.IsNaN(z) {
		panic(TrapInvalidConversionToInteger)
	}
	z = math.Trunc(z)
	if z <= -1 || z > math.MaxUint32 {
		panic(TrapIntegerOverflow)
	}
	return uint32(z)
}

func i64TruncS(z float64) int64 {
	if math.IsNaN(z) {
		panic(TrapInvalidConversionToInteger)
	}
	z = math.Trunc(z)
	if z < math.MinInt64 || z >= math.MaxInt64 {
		panic(TrapIntegerOverflow)
	}
	return int64(z)
}

func i64TruncU(z float64) uint64 {
	if math.IsNaN(z) {
		panic(TrapInvalidConversionToInteger)
	}
	z = math.Trunc(z)
	if z <= -1 || z >= math.MaxUint64 {
		panic(TrapIntegerOverflow)
	}
	return uint64(z)
}

func i32TruncSatS(z float64) int32 {
	switch {
	case math.IsNaN(z):
		return 0
	case math.IsInf(z, -1) || z <= math.MinInt32:
		return math.MinInt32
	case math.IsInf(z, 1) || z >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(z)
	}
}

func i32TruncSatU(z float64) uint32 {
	switch {
	case math.IsNaN(z) || math.IsInf(z, -1) || z < 0:
		return 0
	case math.IsInf(z, 1) || z >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(z)
	}
}

func i64TruncSatS(z float64) int64 {
	switch {
	case math.IsNaN(z):
		return 0
	case math.IsInf(z, -1) || z <= math.MinInt64:
		return math.MinInt64
	case math.IsInf(z, 1) || z >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(z)
	}
}

func i64TruncSatU(z float64) uint64 {
	switch {
	case math.IsNaN(z) || math.IsInf(z, -1) || z < 0:
		return 0
	case math.IsInf(z, 1) || z >= math.MaxUint64:
		return math.MaxUint64
	default:
		return uint64(z)
	}
}
