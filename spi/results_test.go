// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore()

	s.CommitPacketAndStartNewPacket() // empty packets are dropped.
	assert.Equal(t, uint64(0), s.NumPackets())

	i0 := s.AddFrame(Frame{Start: 1, End: 2})
	i1 := s.AddFrame(Frame{Start: 3, End: 4, Type: 1})
	s.AddMarker(1, UpArrow, 2)
	assert.Equal(t, uint64(0), i0)
	assert.Equal(t, uint64(1), i1)

	// not published yet.
	assert.Equal(t, uint64(0), s.NumFrames())
	assert.Empty(t, s.Markers())
	_, err := s.Frame(0)
	assert.Error(t, err)
	assert.Equal(t, NoPacket, s.PacketContainingFrame(0))

	s.CommitResults()
	assert.Equal(t, uint64(2), s.NumFrames())
	assert.Equal(t, []Marker{{Sample: 1, Channel: 2, Type: UpArrow}}, s.Markers())

	f, err := s.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, Frame{Start: 3, End: 4, Type: 1}, f)

	s.CommitPacketAndStartNewPacket()
	s.AddFrame(Frame{Start: 5, End: 6, Flags: FlagSPIError | FlagDisplayAsError})
	s.CommitPacketAndStartNewPacket()
	s.AddFrame(Frame{Start: 7, End: 8})
	s.CommitResults()

	assert.Equal(t, uint64(2), s.NumPackets())
	assert.Equal(t, PacketID(0), s.PacketContainingFrame(0))
	assert.Equal(t, PacketID(0), s.PacketContainingFrame(1))
	assert.Equal(t, PacketID(1), s.PacketContainingFrame(2))
	assert.Equal(t, NoPacket, s.PacketContainingFrame(3))
	assert.Equal(t, NoPacket, s.PacketContainingFrame(42))

	beg, end, err := s.Packet(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), beg)
	assert.Equal(t, uint64(3), end)

	_, _, err = s.Packet(NoPacket)
	assert.Error(t, err)

	frames := s.Frames()
	assert.Len(t, frames, 4)
	assert.True(t, frames[2].IsError())
	assert.False(t, frames[3].IsError())
}
