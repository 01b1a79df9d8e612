// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"io"
	"log"
	"os"
)

var logger *log.Logger

// SetDebugMode enables or disables debug logging during module decoding.
func SetDebugMode(dbg bool) {
	w := io.Discard
	if dbg {
		w = os.Stderr
	}
	logger = log.New(w, "", log.Lshortfile)
}

func init() {
	SetDebugMode(false)
}
