// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"encoding/binary"
	"io"

	"github.com/go-lpc/spidec/internal/crc16"
	"golang.org/x/xerrors"
)

const version = 1

var magic = [4]byte{'S', 'P', 'I', 'C'}

// Encoder writes captures to an output stream.
// Encoder computes the CRC-16 checksum on the fly and appends it
// at the end of each capture.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

// Encode writes the capture to the stream.
func (enc *Encoder) Encode(c *Capture) error {
	if c == nil {
		return nil
	}

	err := c.Validate()
	if err != nil {
		return xerrors.Errorf("capture: could not encode capture: %w", err)
	}

	enc.crc.Reset()

	enc.write(magic[:])
	enc.writeU8(version)
	if enc.err != nil {
		return xerrors.Errorf("capture: could not write header: %w", enc.err)
	}
	enc.writeU64(c.SampleRate)
	enc.writeU64(c.Samples)
	enc.writeU16(uint16(len(c.Traces)))

	for i := range c.Traces {
		tr := &c.Traces[i]
		enc.writeU16(uint16(tr.ID))
		enc.writeU8(uint8(tr.Initial))
		enc.writeU32(uint32(len(tr.Edges)))
		for _, edge := range tr.Edges {
			enc.writeU64(edge)
		}
		if enc.err != nil {
			return xerrors.Errorf("capture: could not write channel %d: %w", tr.ID, enc.err)
		}
	}

	enc.writeU16(enc.crc.Sum16())
	if enc.err != nil {
		return xerrors.Errorf("capture: could not write CRC-16: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
	_, _ = enc.crc.Write(p) // can not fail.
}

func (enc *Encoder) writeU8(v uint8) {
	enc.buf[0] = v
	enc.write(enc.buf[:1])
}

func (enc *Encoder) writeU16(v uint16) {
	const n = 2
	binary.BigEndian.PutUint16(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU32(v uint32) {
	const n = 4
	binary.BigEndian.PutUint32(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU64(v uint64) {
	const n = 8
	binary.BigEndian.PutUint64(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}
