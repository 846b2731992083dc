// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import "fmt"

const (
	FlagSPIError       uint8 = 1 << 0 // idle clock polarity did not match the settings
	FlagDisplayAsError uint8 = 1 << 7
)

// Frame is one decoded transfer.
type Frame struct {
	Start uint64 // first sample, inclusive
	End   uint64 // last sample, inclusive
	Data1 uint64 // MOSI word
	Data2 uint64 // MISO word
	Type  uint8  // sequence number of the frame within its packet
	Flags uint8
}

// IsError reports whether the frame flags a polarity mismatch.
// Error frames carry no valid payload.
func (f Frame) IsError() bool { return f.Flags&FlagSPIError != 0 }

// Word returns the payload of the frame on the given data line.
func (f Frame) Word(l Line) uint64 {
	if l == MISO {
		return f.Data2
	}
	return f.Data1
}

// MarkerType is the shape of a display marker.
type MarkerType uint8

const (
	Dot MarkerType = iota
	ErrorDot
	Square
	ErrorSquare
	UpArrow
	DownArrow
	X
	ErrorX
	Start
	Stop
	One
	Zero
)

var markerNames = [...]string{
	Dot:         "Dot",
	ErrorDot:    "ErrorDot",
	Square:      "Square",
	ErrorSquare: "ErrorSquare",
	UpArrow:     "UpArrow",
	DownArrow:   "DownArrow",
	X:           "X",
	ErrorX:      "ErrorX",
	Start:       "Start",
	Stop:        "Stop",
	One:         "One",
	Zero:        "Zero",
}

func (m MarkerType) String() string {
	if int(m) < len(markerNames) {
		return markerNames[m]
	}
	return fmt.Sprintf("MarkerType(%d)", uint8(m))
}

// ParseMarkerType returns the marker type named s.
// Unknown names yield Dot and false.
func ParseMarkerType(s string) (MarkerType, bool) {
	for i, name := range markerNames {
		if name == s {
			return MarkerType(i), true
		}
	}
	return Dot, false
}

// Marker is a display annotation attached to a channel at a sample.
type Marker struct {
	Sample  uint64
	Channel ChannelID
	Type    MarkerType
}

// BitMarker is a marker placed on a data line at one of the sampled
// bits of a transfer. Bit indexes the clock samples of the transfer,
// in the order they were taken.
type BitMarker struct {
	Bit  uint64
	Line Line
	Type MarkerType
}
