package exec

import (
	"math"

	"github.com/wispvm/wisp/wasm"
)

// Global is a single mutable or immutable global cell. Imported globals are
// shared by pointer, so writes through an importing instance are observed by
// the exporter.
type Global struct {
	typ     wasm.ValueType
	mutable bool
	value   uint64
}

func NewGlobalI32(mutable bool, value int32) *Global {
	return &Global{typ: wasm.ValueTypeI32, mutable: mutable, value: uint64(uint32(value))}
}

func NewGlobalI64(mutable bool, value int64) *Global {
	return &Global{typ: wasm.ValueTypeI64, mutable: mutable, value: uint64(value)}
}

func NewGlobalF32(mutable bool, value float32) *Global {
	return &Global{typ: wasm.ValueTypeF32, mutable: mutable, value: uint64(math.Float32bits(value))}
}

func NewGlobalF64(mutable bool, value float64) *Global {
	return &Global{typ: wasm.ValueTypeF64, mutable: mutable, value: math.Float64bits(value)}
}

func (g *Global) Type() wasm.GlobalVar {
	return wasm.GlobalVar{Type: g.typ, Mutable: g.mutable}
}

func (g *Global) Get() uint64 {
	return g.value
}

func (g *Global) Set(v uint64) {
	g.value = v
}

func (g *Global) GetValue() Value {
	return Value(g.value)
}

func (g *Global) SetValue(v Value) {
	g.value = uint64(v)
}
