// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"encoding/binary"
	"io"

	"github.com/go-lpc/spidec/internal/crc16"
	"github.com/go-lpc/spidec/spi"
	"golang.org/x/xerrors"
)

// maxEdges bounds the number of transitions of a decoded channel.
const maxEdges = 1 << 28

// Decoder reads (and validates) captures from an underlying data source.
type Decoder struct {
	r   io.Reader
	buf []byte
	err error
	crc crc16.Hash16
}

// NewDecoder creates a decoder that reads and validates data from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

// Decode reads the next capture from the stream.
// Decode returns io.EOF when the stream holds no more captures.
func (dec *Decoder) Decode(c *Capture) error {
	dec.crc.Reset()

	var hdr [4]byte
	dec.read(hdr[:])
	if dec.err != nil {
		if xerrors.Is(dec.err, io.EOF) {
			return io.EOF
		}
		return xerrors.Errorf("capture: could not read header: %w", dec.err)
	}
	if hdr != magic {
		return xerrors.Errorf("capture: invalid magic (got=%q)", hdr[:])
	}

	vers := dec.readU8()
	if dec.err != nil {
		return xerrors.Errorf("capture: could not read version: %w", dec.unexpected())
	}
	if vers != version {
		return xerrors.Errorf("capture: invalid version (got=%d, want=%d)", vers, version)
	}

	c.SampleRate = dec.readU64()
	c.Samples = dec.readU64()
	n := dec.readU16()
	if dec.err != nil {
		return xerrors.Errorf("capture: could not read header: %w", dec.unexpected())
	}

	c.Traces = make([]Trace, n)
	for i := range c.Traces {
		tr := &c.Traces[i]
		tr.ID = spi.ChannelID(dec.readU16())
		tr.Initial = spi.BitState(dec.readU8())
		nedges := dec.readU32()
		if dec.err != nil {
			return xerrors.Errorf("capture: could not read trace %d header: %w", i, dec.unexpected())
		}
		if nedges > maxEdges {
			return xerrors.Errorf("capture: channel %d has too many edges (n=%d)", tr.ID, nedges)
		}
		tr.Edges = make([]uint64, nedges)
		for j := range tr.Edges {
			tr.Edges[j] = dec.readU64()
		}
		if dec.err != nil {
			return xerrors.Errorf("capture: could not read channel %d edges: %w", tr.ID, dec.unexpected())
		}
	}

	var (
		comp = dec.crc.Sum16()
		recv = dec.readU16()
	)
	if dec.err != nil {
		return xerrors.Errorf("capture: could not read CRC-16: %w", dec.unexpected())
	}
	if comp != recv {
		return xerrors.Errorf("capture: inconsistent CRC: recv=0x%04x comp=0x%04x", recv, comp)
	}

	err := c.Validate()
	if err != nil {
		return xerrors.Errorf("capture: invalid capture: %w", err)
	}
	return nil
}

func (dec *Decoder) unexpected() error {
	if xerrors.Is(dec.err, io.EOF) {
		dec.err = io.ErrUnexpectedEOF
	}
	return dec.err
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
	if dec.err == nil {
		_, _ = dec.crc.Write(p) // can not fail.
	}
}

func (dec *Decoder) readU8() uint8 {
	dec.load(1)
	return dec.buf[0]
}

func (dec *Decoder) readU16() uint16 {
	const n = 2
	dec.load(n)
	return binary.BigEndian.Uint16(dec.buf[:n])
}

func (dec *Decoder) readU32() uint32 {
	const n = 4
	dec.load(n)
	return binary.BigEndian.Uint32(dec.buf[:n])
}

func (dec *Decoder) readU64() uint64 {
	const n = 8
	dec.load(n)
	return binary.BigEndian.Uint64(dec.buf[:n])
}

func (dec *Decoder) load(n int) {
	if dec.err != nil {
		return
	}
	dec.buf = dec.buf[:n]
	_, dec.err = io.ReadFull(dec.r, dec.buf)
	if dec.err == nil {
		_, _ = dec.crc.Write(dec.buf) // can not fail.
	}
}
