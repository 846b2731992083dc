// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"fmt"
	"sort"
	"sync"
)

// Results collects the output of a decoding session.
type Results interface {
	// AddFrame appends a frame and returns its index.
	AddFrame(f Frame) uint64
	// AddMarker attaches a marker to a channel.
	AddMarker(sample uint64, typ MarkerType, ch ChannelID)
	// CommitPacketAndStartNewPacket closes the current packet.
	CommitPacketAndStartNewPacket()
	// CommitResults publishes frames and markers added so far.
	CommitResults()
	// PacketContainingFrame returns the committed packet holding frame idx.
	PacketContainingFrame(idx uint64) PacketID
}

// FrameReader gives access to published frames.
type FrameReader interface {
	Frame(idx uint64) (Frame, error)
	PacketContainingFrame(idx uint64) PacketID
}

type packet struct {
	beg, end uint64 // frame range [beg, end)
}

// Store is an in-memory Results.
// It is safe for concurrent use by one decoder and many readers.
type Store struct {
	mu sync.RWMutex

	frames  []Frame
	markers []Marker
	packets []packet
	beg     uint64 // first frame of the current packet

	nframes  int // number of published frames
	nmarkers int // number of published markers
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) AddFrame(f Frame) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return uint64(len(s.frames) - 1)
}

func (s *Store) AddMarker(sample uint64, typ MarkerType, ch ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, Marker{Sample: sample, Channel: ch, Type: typ})
}

func (s *Store) CommitPacketAndStartNewPacket() {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := uint64(len(s.frames))
	if end > s.beg {
		s.packets = append(s.packets, packet{beg: s.beg, end: end})
	}
	s.beg = end
}

func (s *Store) CommitResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nframes = len(s.frames)
	s.nmarkers = len(s.markers)
}

func (s *Store) PacketContainingFrame(idx uint64) PacketID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.packets), func(i int) bool {
		return s.packets[i].end > idx
	})
	if i < len(s.packets) && s.packets[i].beg <= idx {
		return PacketID(i)
	}
	return NoPacket
}

// NumFrames returns the number of published frames.
func (s *Store) NumFrames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.nframes)
}

// NumPackets returns the number of committed packets.
func (s *Store) NumPackets() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.packets))
}

// Frame returns the published frame idx.
func (s *Store) Frame(idx uint64) (Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx >= uint64(s.nframes) {
		return Frame{}, fmt.Errorf("spi: frame index out of range (idx=%d, n=%d)", idx, s.nframes)
	}
	return s.frames[idx], nil
}

// Frames returns a copy of the published frames.
func (s *Store) Frames() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Frame(nil), s.frames[:s.nframes]...)
}

// Markers returns a copy of the published markers.
func (s *Store) Markers() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Marker(nil), s.markers[:s.nmarkers]...)
}

// Packet returns the frame range [beg, end) of a committed packet.
func (s *Store) Packet(id PacketID) (beg, end uint64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int64(id) >= int64(len(s.packets)) {
		return 0, 0, fmt.Errorf("spi: packet %d out of range", id)
	}
	p := s.packets[id]
	return p.beg, p.end, nil
}

var (
	_ Results     = (*Store)(nil)
	_ FrameReader = (*Store)(nil)
)
