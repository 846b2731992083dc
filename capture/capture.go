// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package capture holds recordings of sampled digital channels.
package capture // import "github.com/go-lpc/spidec/capture"

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-lpc/spidec/spi"
)

// Capture is a recording of digital channels.
// Each channel is stored as its initial level and the list of its
// transitions.
type Capture struct {
	SampleRate uint64 // in Hz
	Samples    uint64 // number of samples of each channel
	Traces     []Trace
}

// Trace is the recording of one channel.
type Trace struct {
	ID      spi.ChannelID
	Initial spi.BitState
	Edges   []uint64 // sorted samples at which the level toggles
}

// Validate checks the consistency of the recording.
func (c *Capture) Validate() error {
	seen := make(map[spi.ChannelID]struct{}, len(c.Traces))
	for i := range c.Traces {
		tr := &c.Traces[i]
		if tr.ID < 0 {
			return fmt.Errorf("capture: trace %d has an invalid channel %d", i, tr.ID)
		}
		if _, dup := seen[tr.ID]; dup {
			return fmt.Errorf("capture: duplicate channel %d", tr.ID)
		}
		seen[tr.ID] = struct{}{}
		if tr.Initial > spi.High {
			return fmt.Errorf("capture: channel %d has an invalid initial level %d", tr.ID, tr.Initial)
		}
		for j, edge := range tr.Edges {
			if edge == 0 || edge >= c.Samples {
				return fmt.Errorf("capture: channel %d edge %d out of range (sample=%d, n=%d)",
					tr.ID, j, edge, c.Samples,
				)
			}
			if j > 0 && edge <= tr.Edges[j-1] {
				return fmt.Errorf("capture: channel %d edges not sorted (edge=%d)", tr.ID, j)
			}
		}
	}
	return nil
}

// Trace returns the recording of channel id.
func (c *Capture) Trace(id spi.ChannelID) (*Trace, bool) {
	for i := range c.Traces {
		if c.Traces[i].ID == id {
			return &c.Traces[i], true
		}
	}
	return nil, false
}

// Channel returns a cursor over channel id, positioned at sample 0.
func (c *Capture) Channel(id spi.ChannelID) (spi.Channel, error) {
	tr, ok := c.Trace(id)
	if !ok {
		return nil, fmt.Errorf("capture: no such channel %d", id)
	}
	return &cursor{tr: tr, n: c.Samples}, nil
}

// cursor walks a trace. i is the number of edges at or before pos.
type cursor struct {
	tr  *Trace
	n   uint64
	pos uint64
	i   int
}

func (cur *cursor) SampleNumber() uint64 { return cur.pos }

func (cur *cursor) BitState() spi.BitState {
	return cur.tr.Initial ^ spi.BitState(cur.i&1)
}

func (cur *cursor) AdvanceToNextEdge() error {
	if cur.i >= len(cur.tr.Edges) {
		return io.EOF
	}
	cur.pos = cur.tr.Edges[cur.i]
	cur.i++
	return nil
}

func (cur *cursor) AdvanceToAbsPosition(s uint64) error {
	if s <= cur.pos {
		return nil
	}
	if s >= cur.n {
		if cur.n > 0 {
			cur.pos = cur.n - 1
		}
		cur.i = len(cur.tr.Edges)
		return io.EOF
	}
	edges := cur.tr.Edges[cur.i:]
	cur.i += sort.Search(len(edges), func(i int) bool { return edges[i] > s })
	cur.pos = s
	return nil
}

func (cur *cursor) SampleOfNextEdge() (uint64, error) {
	if cur.i >= len(cur.tr.Edges) {
		return 0, io.EOF
	}
	return cur.tr.Edges[cur.i], nil
}

func (cur *cursor) WouldAdvancingToAbsPositionCauseTransition(s uint64) bool {
	return cur.i < len(cur.tr.Edges) && cur.tr.Edges[cur.i] <= s
}

var (
	_ spi.Source  = (*Capture)(nil)
	_ spi.Channel = (*cursor)(nil)
)
