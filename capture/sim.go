// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"fmt"
	"math"

	"github.com/go-lpc/spidec/spi"
)

// Simulator generates synthetic bus traffic.
//
// Each transaction asserts the enable line and shifts 4 words, with MOSI
// carrying an incrementing counter n and MISO carrying n+1.
// The enable line is released before the last word of each transaction.
type Simulator struct {
	cfg  spi.Settings
	rate uint64
	clk  clockGen
	pos  uint64
	val  uint64

	mosi   *track
	miso   *track
	clock  *track
	enable *track
	tracks []*track
}

// NewSimulator returns a simulator of a bus described by cfg,
// sampled at rate Hz. The bus clock runs at a tenth of the sample rate.
func NewSimulator(cfg spi.Settings, rate uint64) (*Simulator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if rate < spi.MinSampleRate {
		return nil, fmt.Errorf("capture: sample rate too low (rate=%d, min=%d)", rate, spi.MinSampleRate)
	}

	sim := &Simulator{
		cfg:  cfg,
		rate: rate,
		clk:  newClockGen(float64(rate)/10, float64(rate)),
	}
	add := func(id spi.ChannelID, v spi.BitState) *track {
		if id == spi.Undefined {
			return nil
		}
		tr := &track{id: id, init: v, cur: v}
		sim.tracks = append(sim.tracks, tr)
		return tr
	}
	sim.miso = add(cfg.MISO, spi.Low)
	sim.mosi = add(cfg.MOSI, spi.Low)
	sim.clock = add(cfg.Clock, cfg.ClockIdle)
	sim.enable = add(cfg.Enable, cfg.EnableActive.Invert())

	sim.advance(10)
	return sim, nil
}

// Generate produces transactions until at least n samples are simulated
// and returns the recording so far.
func (sim *Simulator) Generate(n uint64) *Capture {
	for sim.pos < n {
		sim.transaction()
		sim.advance(10)
	}

	c := &Capture{
		SampleRate: sim.rate,
		Samples:    sim.pos + 1,
		Traces:     make([]Trace, len(sim.tracks)),
	}
	for i, tr := range sim.tracks {
		c.Traces[i] = Trace{
			ID:      tr.id,
			Initial: tr.init,
			Edges:   make([]uint64, len(tr.edges)),
		}
		copy(c.Traces[i].Edges, tr.edges)
	}
	return c
}

func (sim *Simulator) transaction() {
	word := sim.wordCPHA0
	if sim.cfg.DataValidEdge == spi.TrailingEdge {
		word = sim.wordCPHA1
	}

	if sim.enable != nil {
		sim.enable.transition(sim.pos)
	}
	sim.advance(2)

	for i := 0; i < 4; i++ {
		if i == 3 && sim.enable != nil {
			sim.enable.transition(sim.pos)
		}
		word(sim.val, sim.val+1)
		sim.val++
	}
}

func (sim *Simulator) wordCPHA0(mosi, miso uint64) {
	var (
		n     = sim.cfg.BitsPerTransfer
		bmosi = spi.NewBitExtractor(mosi, sim.cfg.BitOrder, n)
		bmiso = spi.NewBitExtractor(miso, sim.cfg.BitOrder, n)
	)
	for i := 0; i < n; i++ {
		sim.data(bmosi.NextBit(), bmiso.NextBit())
		sim.advance(.5)
		sim.clock.transition(sim.pos) // data valid
		sim.advance(.5)
		sim.clock.transition(sim.pos)
	}
	sim.data(spi.Low, spi.Low)
	sim.advance(2)
}

func (sim *Simulator) wordCPHA1(mosi, miso uint64) {
	var (
		n     = sim.cfg.BitsPerTransfer
		bmosi = spi.NewBitExtractor(mosi, sim.cfg.BitOrder, n)
		bmiso = spi.NewBitExtractor(miso, sim.cfg.BitOrder, n)
	)
	for i := 0; i < n; i++ {
		sim.clock.transition(sim.pos)
		sim.data(bmosi.NextBit(), bmiso.NextBit())
		sim.advance(.5)
		sim.clock.transition(sim.pos) // data valid
		sim.advance(.5)
	}
	sim.data(spi.Low, spi.Low)
	sim.advance(2)
}

func (sim *Simulator) data(mosi, miso spi.BitState) {
	if sim.mosi != nil {
		sim.mosi.transitionIfNeeded(mosi, sim.pos)
	}
	if sim.miso != nil {
		sim.miso.transitionIfNeeded(miso, sim.pos)
	}
}

// advance moves all channels by a number of clock half-periods.
func (sim *Simulator) advance(halves float64) {
	sim.pos += sim.clk.advance(halves)
}

type track struct {
	id    spi.ChannelID
	init  spi.BitState
	cur   spi.BitState
	edges []uint64
}

func (tr *track) transition(at uint64) {
	tr.cur = tr.cur.Invert()
	tr.edges = append(tr.edges, at)
}

func (tr *track) transitionIfNeeded(v spi.BitState, at uint64) {
	if tr.cur != v {
		tr.transition(at)
	}
}

// clockGen converts clock half-periods into samples, without
// accumulating rounding errors.
type clockGen struct {
	half float64 // samples per half-period
	t    float64 // elapsed samples
}

func newClockGen(freq, rate float64) clockGen {
	return clockGen{half: rate / (2 * freq)}
}

func (g *clockGen) advance(halves float64) uint64 {
	beg := math.Round(g.t)
	g.t += halves * g.half
	return uint64(math.Round(g.t) - beg)
}
