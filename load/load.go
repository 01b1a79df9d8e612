// Package load is the embedder's entry point: it turns raw bytes or files
// into module definitions ready for instantiation.
package load

import (
	"bufio"
	"io"
	"os"

	"github.com/wispvm/wisp/exec"
	"github.com/wispvm/wisp/wasm"
)

// ParseBinary decodes and validates a binary module, producing a definition
// with decoded code bodies and label metadata.
func ParseBinary(b []byte) (*exec.ModuleDefinition, error) {
	m, err := wasm.DecodeBinary(b)
	if err != nil {
		return nil, err
	}
	return exec.NewModuleDefinition(m)
}

// ParseModule decodes and validates a binary module from r.
func ParseModule(r io.Reader) (*exec.ModuleDefinition, error) {
	m, err := wasm.DecodeModule(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}
	return exec.NewModuleDefinition(m)
}

// ParseFile decodes and validates the binary module at the given path.
func ParseFile(path string) (*exec.ModuleDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseModule(f)
}

// Valid reports whether b is a well-formed, valid binary module. No module
// is retained.
func Valid(b []byte) bool {
	_, err := ParseBinary(b)
	return err == nil
}
