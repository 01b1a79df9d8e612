// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wispvm/wisp/wasm/internal/readpos"
)

var ErrInvalidMagic = errors.New("wasm: magic header not detected")
var ErrUnknownVersion = errors.New("wasm: unknown binary version")

const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x1
)

// PageSize is the size of a linear memory page in bytes.
const PageSize = 65536

// MaxMemoryPages is the hard ceiling on linear memory size: 65536 pages,
// or 4 GiB.
const MaxMemoryPages = 65536

// Module represents a parsed WebAssembly module:
// http://webassembly.org/docs/modules/
type Module struct {
	Version  uint32
	Sections []Section

	Types    *SectionTypes
	Import   *SectionImports
	Function *SectionFunctions
	Table    *SectionTables
	Memory   *SectionMemories
	Global   *SectionGlobals
	Export   *SectionExports
	Start    *SectionStartFunction
	Elements *SectionElements
	Code     *SectionCode
	Data     *SectionData
	Customs  []*SectionCustom
}

// Custom returns a custom section with a specific name, if it exists.
func (m *Module) Custom(name string) *SectionCustom {
	for _, s := range m.Customs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// NumImportedFunctions returns the number of functions the module imports.
func (m *Module) NumImportedFunctions() int {
	if m.Import == nil {
		return 0
	}
	n := 0
	for _, e := range m.Import.Entries {
		if _, ok := e.Type.(FuncImport); ok {
			n++
		}
	}
	return n
}

// NumFunctions returns the size of the module's function index space,
// imported functions included.
func (m *Module) NumFunctions() int {
	n := m.NumImportedFunctions()
	if m.Function != nil {
		n += len(m.Function.Types)
	}
	return n
}

// ExportedFunction returns the index of the exported function with the
// given name, if any.
func (m *Module) ExportedFunction(name string) (uint32, bool) {
	if m.Export == nil {
		return 0, false
	}
	for _, e := range m.Export.Entries {
		if e.Kind == ExternalFunction && e.FieldStr == name {
			return e.Index, true
		}
	}
	return 0, false
}

// DecodeModule decodes a binary module from r.
func DecodeModule(r io.Reader) (*Module, error) {
	reader := &readpos.ReadPos{R: r}
	m := &Module{}
	magic, err := readU32(reader)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrInvalidMagic
		}
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	if m.Version, err = readU32(reader); err != nil {
		return nil, err
	}
	if m.Version != Version {
		return nil, ErrUnknownVersion
	}

	if err := newSectionsReader(m).readSections(reader); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeBinary decodes a binary module from a byte slice.
func DecodeBinary(b []byte) (*Module, error) {
	return DecodeModule(bytes.NewReader(b))
}

// MustDecode decodes a binary module and panics on failure.
func MustDecode(r io.Reader) *Module {
	m, err := DecodeModule(r)
	if err != nil {
		panic(fmt.Errorf("decoding module: %w", err))
	}
	return m
}
