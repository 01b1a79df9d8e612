// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package readpos provides an io.Reader that tracks the current position.
package readpos

import "io"

// ReadPos wraps an io.Reader and records the number of bytes read.
type ReadPos struct {
	R      io.Reader
	CurPos int64
}

func (r *ReadPos) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	r.CurPos += int64(n)
	return n, err
}

func (r *ReadPos) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r.R, b[:])
	if err != nil {
		return 0, err
	}
	r.CurPos++
	return b[0], nil
}
