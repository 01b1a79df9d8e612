// Package leb128 reads and writes the variable-length integer encoding used
// throughout the WebAssembly binary format. Readers reject over-long
// encodings and encodings whose unused high bits are not a proper sign or
// zero extension.
package leb128

import (
	"errors"
	"io"
)

var (
	ErrOverflow = errors.New("leb128: integer representation too long")
	ErrTooLarge = errors.New("leb128: integer too large")
)

// GetVarUint32 reads an unsigned 32-bit varint from the front of b and
// returns the value and the number of bytes consumed.
func GetVarUint32(b []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < len(b); i++ {
		if i >= 5 {
			return 0, 0, ErrOverflow
		}
		c := b[i]
		if i == 4 {
			if c&0x80 != 0 {
				return 0, 0, ErrOverflow
			}
			if c&0xf0 != 0 {
				return 0, 0, ErrTooLarge
			}
		}
		result |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// GetVarUint64 reads an unsigned 64-bit varint from the front of b.
func GetVarUint64(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		if i >= 10 {
			return 0, 0, ErrOverflow
		}
		c := b[i]
		if i == 9 {
			if c&0x80 != 0 {
				return 0, 0, ErrOverflow
			}
			if c&0xfe != 0 {
				return 0, 0, ErrTooLarge
			}
		}
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// GetVarint32 reads a signed 32-bit varint from the front of b.
func GetVarint32(b []byte) (int32, int, error) {
	var result int32
	var shift uint
	for i := 0; i < len(b); i++ {
		if i >= 5 {
			return 0, 0, ErrOverflow
		}
		c := b[i]
		if i == 4 {
			// The final byte carries bits 28..34. Bits 32 and up must be a
			// sign extension of bit 31.
			if c&0x80 != 0 {
				return 0, 0, ErrOverflow
			}
			if high := c & 0x78; high != 0 && high != 0x78 {
				return 0, 0, ErrTooLarge
			}
		}
		result |= int32(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 32 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// GetVarint64 reads a signed 64-bit varint from the front of b.
func GetVarint64(b []byte) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < len(b); i++ {
		if i >= 10 {
			return 0, 0, ErrOverflow
		}
		c := b[i]
		if i == 9 {
			// Bit 63 is the only payload bit left; the rest must sign-extend.
			if c&0x80 != 0 {
				return 0, 0, ErrOverflow
			}
			if c != 0 && c != 0x7f {
				return 0, 0, ErrTooLarge
			}
		}
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

func readBytewise(r io.Reader, max int) ([]byte, error) {
	var buf [10]byte
	var one [1]byte
	for i := 0; i < max; i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf[i] = one[0]
		if one[0]&0x80 == 0 {
			return buf[:i+1], nil
		}
	}
	return nil, ErrOverflow
}

// ReadVarUint32 reads an unsigned 32-bit varint from r.
func ReadVarUint32(r io.Reader) (uint32, error) {
	b, err := readBytewise(r, 5)
	if err != nil {
		return 0, err
	}
	v, _, err := GetVarUint32(b)
	return v, err
}

// ReadVarUint64 reads an unsigned 64-bit varint from r.
func ReadVarUint64(r io.Reader) (uint64, error) {
	b, err := readBytewise(r, 10)
	if err != nil {
		return 0, err
	}
	v, _, err := GetVarUint64(b)
	return v, err
}

// ReadVarint32 reads a signed 32-bit varint from r.
func ReadVarint32(r io.Reader) (int32, error) {
	b, err := readBytewise(r, 5)
	if err != nil {
		return 0, err
	}
	v, _, err := GetVarint32(b)
	return v, err
}

// ReadVarint64 reads a signed 64-bit varint from r.
func ReadVarint64(r io.Reader) (int64, error) {
	b, err := readBytewise(r, 10)
	if err != nil {
		return 0, err
	}
	v, _, err := GetVarint64(b)
	return v, err
}
