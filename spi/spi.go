// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spi decodes a synchronous serial bus (clock, enable, MOSI, MISO)
// from sampled digital channels into frames.
package spi // import "github.com/go-lpc/spidec/spi"

import (
	"fmt"
	"strconv"
	"strings"
)

// MinSampleRate is the lowest sample rate (in Hz) the decoder accepts.
// The actual requirement depends on the bus clock rate.
const MinSampleRate = 10000

// BitState is the logic level of a channel.
type BitState uint8

const (
	Low  BitState = 0
	High BitState = 1
)

// Invert returns the opposite logic level.
func (b BitState) Invert() BitState { return b ^ 1 }

func (b BitState) String() string {
	switch b {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return fmt.Sprintf("BitState(%d)", uint8(b))
	}
}

func (b BitState) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BitState) UnmarshalText(p []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(p))) {
	case "low", "0":
		*b = Low
	case "high", "1":
		*b = High
	default:
		return fmt.Errorf("spi: invalid bit state %q", p)
	}
	return nil
}

func (b *BitState) Set(v string) error { return b.UnmarshalText([]byte(v)) }
func (*BitState) Type() string         { return "bit-state" }

// Edge selects which clock transition carries valid data.
type Edge uint8

const (
	LeadingEdge  Edge = iota // first transition away from the idle state
	TrailingEdge             // transition back to the idle state
)

func (e Edge) String() string {
	switch e {
	case LeadingEdge:
		return "leading"
	case TrailingEdge:
		return "trailing"
	default:
		return fmt.Sprintf("Edge(%d)", uint8(e))
	}
}

func (e Edge) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Edge) UnmarshalText(p []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(p))) {
	case "leading":
		*e = LeadingEdge
	case "trailing":
		*e = TrailingEdge
	default:
		return fmt.Errorf("spi: invalid clock edge %q", p)
	}
	return nil
}

func (e *Edge) Set(v string) error { return e.UnmarshalText([]byte(v)) }
func (*Edge) Type() string         { return "edge" }

// BitOrder is the order in which the bits of a word are shifted on the bus.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

func (o BitOrder) String() string {
	switch o {
	case MSBFirst:
		return "msb"
	case LSBFirst:
		return "lsb"
	default:
		return fmt.Sprintf("BitOrder(%d)", uint8(o))
	}
}

func (o BitOrder) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *BitOrder) UnmarshalText(p []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(p))) {
	case "msb", "msb-first":
		*o = MSBFirst
	case "lsb", "lsb-first":
		*o = LSBFirst
	default:
		return fmt.Errorf("spi: invalid bit order %q", p)
	}
	return nil
}

func (o *BitOrder) Set(v string) error { return o.UnmarshalText([]byte(v)) }
func (*BitOrder) Type() string         { return "bit-order" }

// Line identifies one of the two data lines of the bus.
type Line uint8

const (
	MOSI Line = iota
	MISO
)

func (l Line) String() string {
	switch l {
	case MOSI:
		return "mosi"
	case MISO:
		return "miso"
	default:
		return fmt.Sprintf("Line(%d)", uint8(l))
	}
}

// ParseLine parses the lower-case name of a data line.
func ParseLine(s string) (Line, bool) {
	switch s {
	case "mosi":
		return MOSI, true
	case "miso":
		return MISO, true
	}
	return 0, false
}

// ChannelID identifies a sampled input channel.
type ChannelID int

// Undefined marks an unassigned channel.
const Undefined ChannelID = -1

func (id ChannelID) String() string {
	if id == Undefined {
		return "none"
	}
	return strconv.Itoa(int(id))
}

func (id ChannelID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ChannelID) UnmarshalText(p []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(p)))
	switch s {
	case "none", "", "-1":
		*id = Undefined
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fmt.Errorf("spi: invalid channel %q", p)
	}
	*id = ChannelID(v)
	return nil
}

func (id *ChannelID) Set(v string) error { return id.UnmarshalText([]byte(v)) }
func (*ChannelID) Type() string          { return "channel" }

// PacketID identifies a committed packet of frames.
type PacketID int64

// NoPacket is returned for frames outside of any committed packet.
const NoPacket PacketID = -1
