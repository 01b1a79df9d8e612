package leb128

import "io"

// WriteVarUint32 writes an unsigned 32-bit varint to w and returns the
// number of bytes written.
func WriteVarUint32(w io.Writer, v uint32) (int, error) {
	return WriteVarUint64(w, uint64(v))
}

// WriteVarUint64 writes an unsigned 64-bit varint to w.
func WriteVarUint64(w io.Writer, v uint64) (int, error) {
	var buf [10]byte
	n := 0
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		buf[n] = c
		n++
		if c&0x80 == 0 {
			break
		}
	}
	return w.Write(buf[:n])
}

// WriteVarint32 writes a signed 32-bit varint to w.
func WriteVarint32(w io.Writer, v int32) (int, error) {
	return WriteVarint64(w, int64(v))
}

// WriteVarint64 writes a signed 64-bit varint to w.
func WriteVarint64(w io.Writer, v int64) (int, error) {
	var buf [10]byte
	n := 0
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := v == 0 && c&0x40 == 0 || v == -1 && c&0x40 != 0
		if !done {
			c |= 0x80
		}
		buf[n] = c
		n++
		if done {
			break
		}
	}
	return w.Write(buf[:n])
}
