// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

// Channel is a forward-only cursor over the transitions of one sampled
// digital channel.
//
// Methods that move the cursor, or look past it, return io.EOF once the
// channel has no more transitions.
type Channel interface {
	// SampleNumber returns the current position of the cursor.
	SampleNumber() uint64
	// BitState returns the level of the channel at the current position.
	BitState() BitState
	// AdvanceToNextEdge moves the cursor to the next transition.
	AdvanceToNextEdge() error
	// AdvanceToAbsPosition moves the cursor to sample s.
	// Positions before the cursor leave it unchanged.
	AdvanceToAbsPosition(s uint64) error
	// SampleOfNextEdge returns the position of the next transition.
	SampleOfNextEdge() (uint64, error)
	// WouldAdvancingToAbsPositionCauseTransition reports whether at least
	// one transition lies in (SampleNumber(), s].
	WouldAdvancingToAbsPositionCauseTransition(s uint64) bool
}

// Source provides channel cursors over a capture.
type Source interface {
	// Channel returns a fresh cursor, positioned at the first sample.
	Channel(id ChannelID) (Channel, error)
}
