// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/wispvm/wisp/wasm/leb128"
)

// Reading payloads whose declared count is attacker-controlled: cap the
// initial allocation so a bogus count cannot exhaust memory before the
// reader runs dry.
const maxInitialCap = 10 * 1024

func getInitialCap(count uint32) uint32 {
	if count > maxInitialCap {
		return maxInitialCap
	}
	return count
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readBytes(r io.Reader, n uint32) ([]byte, error) {
	limited := io.LimitReader(r, int64(n))
	buf := make([]byte, 0, getInitialCap(n))
	chunk := make([]byte, 1024)
	for {
		m, err := limited.Read(chunk)
		buf = append(buf, chunk[:m]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if uint32(len(buf)) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}

// readBytesUint reads a length-prefixed byte vector.
func readBytesUint(r io.Reader) ([]byte, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	return readBytes(r, n)
}

// readUTF8StringUint reads a length-prefixed name and rejects invalid UTF-8.
func readUTF8StringUint(r io.Reader) (string, error) {
	b, err := readBytesUint(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ValidationError("malformed UTF-8 encoding")
	}
	return string(b), nil
}

func writeBytesUint(w io.Writer, b []byte) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeStringUint(w io.Writer, s string) error {
	return writeBytesUint(w, []byte(s))
}

// InvalidInitExprOpError is produced when a constant expression contains an
// opcode that is not permitted in constant position.
type InvalidInitExprOpError byte

func (e InvalidInitExprOpError) Error() string {
	return fmt.Sprintf("wasm: invalid opcode in initializer expression: %#x", byte(e))
}

// ErrEmptyInitExpr is produced when a constant expression has no payload.
var ErrEmptyInitExpr = ValidationError("empty initializer expression")

const (
	opI32Const  byte = 0x41
	opI64Const  byte = 0x42
	opF32Const  byte = 0x43
	opF64Const  byte = 0x44
	opGlobalGet byte = 0x23
	opEnd       byte = 0x0b
)

// readInitExpr reads a constant expression, including its terminal end
// opcode. Only constant instructions are consumed; anything else fails.
func readInitExpr(r io.Reader) ([]byte, error) {
	var buf []byte
	tee := teeByteReader{r: r, buf: &buf}

	for {
		op, err := readByte(&tee)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch op {
		case opI32Const:
			if _, err := leb128.ReadVarint32(&tee); err != nil {
				return nil, err
			}
		case opI64Const:
			if _, err := leb128.ReadVarint64(&tee); err != nil {
				return nil, err
			}
		case opF32Const:
			if _, err := readBytes(&tee, 4); err != nil {
				return nil, err
			}
		case opF64Const:
			if _, err := readBytes(&tee, 8); err != nil {
				return nil, err
			}
		case opGlobalGet:
			if _, err := leb128.ReadVarUint32(&tee); err != nil {
				return nil, err
			}
		case opEnd:
			if len(buf) == 1 {
				return nil, ErrEmptyInitExpr
			}
			return buf, nil
		default:
			return nil, InvalidInitExprOpError(op)
		}
	}
}

type teeByteReader struct {
	r   io.Reader
	buf *[]byte
}

func (t *teeByteReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	*t.buf = append(*t.buf, p[:n]...)
	return n, err
}
