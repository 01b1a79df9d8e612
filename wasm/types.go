// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"fmt"
	"io"

	"github.com/wispvm/wisp/wasm/leb128"
)

// A ValidationError is produced when a module violates a structural or type
// constraint of the WebAssembly specification.
type ValidationError string

func (e ValidationError) Error() string {
	return "wasm: " + string(e)
}

// ValueType represents the type of a numeric value.
type ValueType uint8

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c

	// ValueTypeT is the polymorphic bottom type used by the validator inside
	// unreachable code. It never appears in a decoded module.
	ValueTypeT ValueType = 0x01
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeT:
		return "unknown"
	default:
		return fmt.Sprintf("<invalid value type %#x>", uint8(t))
	}
}

func (t *ValueType) UnmarshalWASM(r io.Reader) error {
	b, err := readByte(r)
	if err != nil {
		return err
	}
	v := ValueType(b)
	switch v {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		*t = v
		return nil
	default:
		return ValidationError("invalid value type")
	}
}

func (t ValueType) MarshalWASM(w io.Writer) error {
	return writeByte(w, byte(t))
}

// TypeFunc is the form tag that introduces a function signature.
const TypeFunc byte = 0x60

// FunctionSig describes the signature of a declared function.
type FunctionSig struct {
	Form        byte
	ParamTypes  []ValueType
	ReturnTypes []ValueType
}

// Equals reports whether two signatures are structurally equal.
func (f FunctionSig) Equals(other FunctionSig) bool {
	if len(f.ParamTypes) != len(other.ParamTypes) || len(f.ReturnTypes) != len(other.ReturnTypes) {
		return false
	}
	for i, t := range f.ParamTypes {
		if other.ParamTypes[i] != t {
			return false
		}
	}
	for i, t := range f.ReturnTypes {
		if other.ReturnTypes[i] != t {
			return false
		}
	}
	return true
}

func (f FunctionSig) String() string {
	return fmt.Sprintf("func%v -> %v", f.ParamTypes, f.ReturnTypes)
}

func (f *FunctionSig) UnmarshalWASM(r io.Reader) error {
	form, err := readByte(r)
	if err != nil {
		return err
	}
	if form != TypeFunc {
		return ValidationError("invalid function type form")
	}
	f.Form = form

	paramCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	f.ParamTypes = make([]ValueType, paramCount)
	for i := range f.ParamTypes {
		if err := f.ParamTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}

	returnCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	if returnCount > 1 {
		return ValidationError("invalid result arity")
	}
	f.ReturnTypes = make([]ValueType, returnCount)
	for i := range f.ReturnTypes {
		if err := f.ReturnTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}
	return nil
}

func (f FunctionSig) MarshalWASM(w io.Writer) error {
	if err := writeByte(w, TypeFunc); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(f.ParamTypes))); err != nil {
		return err
	}
	for _, t := range f.ParamTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(f.ReturnTypes))); err != nil {
		return err
	}
	for _, t := range f.ReturnTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	return nil
}

// ElemType describes the element type of a table. funcref is the only type
// in WebAssembly 1.0.
type ElemType uint8

const ElemTypeAnyFunc ElemType = 0x70

func (t *ElemType) UnmarshalWASM(r io.Reader) error {
	b, err := readByte(r)
	if err != nil {
		return err
	}
	if ElemType(b) != ElemTypeAnyFunc {
		return ValidationError("invalid element type")
	}
	*t = ElemType(b)
	return nil
}

func (t ElemType) MarshalWASM(w io.Writer) error {
	return writeByte(w, byte(t))
}

// ResizableLimits describe the size bounds of a table or linear memory.
// Maximum is only meaningful when Flags has bit 0 set.
type ResizableLimits struct {
	Flags   uint32
	Initial uint32
	Maximum uint32
}

// HasMax reports whether the limits carry an upper bound.
func (l ResizableLimits) HasMax() bool {
	return l.Flags&0x1 != 0
}

func (l *ResizableLimits) UnmarshalWASM(r io.Reader) error {
	flags, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	if flags > 1 {
		return ValidationError("invalid limits flags")
	}
	l.Flags = flags

	if l.Initial, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if l.HasMax() {
		if l.Maximum, err = leb128.ReadVarUint32(r); err != nil {
			return err
		}
	}
	return nil
}

func (l ResizableLimits) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, l.Flags); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, l.Initial); err != nil {
		return err
	}
	if l.HasMax() {
		if _, err := leb128.WriteVarUint32(w, l.Maximum); err != nil {
			return err
		}
	}
	return nil
}

// Table describes a declared or imported table.
type Table struct {
	ElementType ElemType
	Limits      ResizableLimits
}

func (t *Table) UnmarshalWASM(r io.Reader) error {
	if err := t.ElementType.UnmarshalWASM(r); err != nil {
		return err
	}
	return t.Limits.UnmarshalWASM(r)
}

func (t Table) MarshalWASM(w io.Writer) error {
	if err := t.ElementType.MarshalWASM(w); err != nil {
		return err
	}
	return t.Limits.MarshalWASM(w)
}

// Memory describes a declared or imported linear memory.
type Memory struct {
	Limits ResizableLimits
}

func (m *Memory) UnmarshalWASM(r io.Reader) error {
	return m.Limits.UnmarshalWASM(r)
}

func (m Memory) MarshalWASM(w io.Writer) error {
	return m.Limits.MarshalWASM(w)
}

// GlobalVar describes the type and mutability of a global variable.
type GlobalVar struct {
	Type    ValueType
	Mutable bool
}

func (g *GlobalVar) UnmarshalWASM(r io.Reader) error {
	if err := g.Type.UnmarshalWASM(r); err != nil {
		return err
	}
	b, err := readByte(r)
	if err != nil {
		return err
	}
	if b > 1 {
		return ValidationError("invalid mutability flag")
	}
	g.Mutable = b == 1
	return nil
}

func (g GlobalVar) MarshalWASM(w io.Writer) error {
	if err := g.Type.MarshalWASM(w); err != nil {
		return err
	}
	var b byte
	if g.Mutable {
		b = 1
	}
	return writeByte(w, b)
}

// External classifies an import or export.
type External uint8

const (
	ExternalFunction External = 0
	ExternalTable    External = 1
	ExternalMemory   External = 2
	ExternalGlobal   External = 3
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return "<unknown extern kind>"
	}
}

func (e *External) UnmarshalWASM(r io.Reader) error {
	b, err := readByte(r)
	if err != nil {
		return err
	}
	if b > 3 {
		return InvalidExternalError(b)
	}
	*e = External(b)
	return nil
}

func (e External) MarshalWASM(w io.Writer) error {
	return writeByte(w, byte(e))
}

// Import is a type descriptor attached to an ImportEntry.
type Import interface {
	Kind() External
	MarshalWASM(w io.Writer) error
}

// FuncImport imports a function with the given type index.
type FuncImport struct {
	Type uint32
}

func (FuncImport) Kind() External { return ExternalFunction }
func (i FuncImport) MarshalWASM(w io.Writer) error {
	_, err := leb128.WriteVarUint32(w, i.Type)
	return err
}

// TableImport imports a table.
type TableImport struct {
	Type Table
}

func (TableImport) Kind() External                 { return ExternalTable }
func (i TableImport) MarshalWASM(w io.Writer) error { return i.Type.MarshalWASM(w) }

// MemoryImport imports a linear memory.
type MemoryImport struct {
	Type Memory
}

func (MemoryImport) Kind() External                 { return ExternalMemory }
func (i MemoryImport) MarshalWASM(w io.Writer) error { return i.Type.MarshalWASM(w) }

// GlobalVarImport imports a global variable.
type GlobalVarImport struct {
	Type GlobalVar
}

func (GlobalVarImport) Kind() External                 { return ExternalGlobal }
func (i GlobalVarImport) MarshalWASM(w io.Writer) error { return i.Type.MarshalWASM(w) }

// ImportEntry is a single entry in the import section.
type ImportEntry struct {
	ModuleName string
	FieldName  string
	Type       Import
}
