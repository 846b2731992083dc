// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/go-lpc/spidec/internal/mmap"
)

// Load reads the first capture stored in the named file.
func Load(fname string) (*Capture, error) {
	h, err := mmap.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("capture: could not open capture file: %w", err)
	}
	defer h.Close()

	var c Capture
	err = NewDecoder(io.NewSectionReader(h, 0, int64(h.Len()))).Decode(&c)
	if err != nil {
		return nil, fmt.Errorf("capture: could not decode %q: %w", fname, err)
	}
	return &c, nil
}

// Save writes the capture to the named file.
func Save(fname string, c *Capture) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("capture: could not create capture file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	err = NewEncoder(w).Encode(c)
	if err != nil {
		return fmt.Errorf("capture: could not encode %q: %w", fname, err)
	}

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("capture: could not flush %q: %w", fname, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("capture: could not close %q: %w", fname, err)
	}
	return nil
}
