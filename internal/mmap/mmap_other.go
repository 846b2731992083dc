// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package mmap

import (
	"fmt"
	"io"
	"os"
)

func mapFile(f *os.File, size int) (*Handle, error) {
	data := make([]byte, size)
	_, err := io.ReadFull(f, data)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not read %q: %w", f.Name(), err)
	}
	return handleFrom(data, nil), nil
}
