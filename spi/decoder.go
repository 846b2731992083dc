// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

type state uint8

const (
	stateSeek state = iota
	stateVerify
	stateDecode
)

func (s state) String() string {
	switch s {
	case stateSeek:
		return "seek"
	case stateVerify:
		return "verify"
	case stateDecode:
		return "decode"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Decoder turns sampled bus channels into frames and markers.
type Decoder struct {
	cfg  Settings
	res  Results
	msg  *log.Logger
	ann  Annotator
	prog func(uint64)

	clk    Channel
	mosi   Channel
	miso   Channel
	enable Channel

	state   state
	cur     uint64 // current sample
	ordinal uint8  // sequence number of the next frame in the current packet
	arrow   MarkerType
	arrows  []uint64 // clock samples of the bits of the current word
}

// NewDecoder returns a decoder reading bus channels from src and
// writing frames and markers to res.
func NewDecoder(cfg Settings, src Source, res Results, opts ...Option) (*Decoder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	conf := newConfig(opts)
	dec := &Decoder{
		cfg:    cfg,
		res:    res,
		msg:    conf.msg,
		ann:    conf.ann,
		prog:   conf.prog,
		state:  stateSeek,
		arrow:  cfg.ArrowMarker(),
		arrows: make([]uint64, 0, cfg.BitsPerTransfer),
	}

	open := func(id ChannelID, name string) (Channel, error) {
		if id == Undefined {
			return nil, nil
		}
		ch, err := src.Channel(id)
		if err != nil {
			return nil, fmt.Errorf("spi: could not open %s channel %d: %w", name, id, err)
		}
		return ch, nil
	}

	dec.clk, err = open(cfg.Clock, "clock")
	if err != nil {
		return nil, err
	}
	dec.mosi, err = open(cfg.MOSI, "mosi")
	if err != nil {
		return nil, err
	}
	dec.miso, err = open(cfg.MISO, "miso")
	if err != nil {
		return nil, err
	}
	dec.enable, err = open(cfg.Enable, "enable")
	if err != nil {
		return nil, err
	}

	return dec, nil
}

// Decode runs the decoder until the channels are exhausted or ctx is done.
// Reaching the end of the capture is not an error.
func (dec *Decoder) Decode(ctx context.Context) error {
	for {
		var err error
		switch dec.state {
		case stateSeek:
			err = dec.seek()
		case stateVerify:
			err = dec.verify()
		case stateDecode:
			err = dec.decode(ctx)
		default:
			panic(fmt.Errorf("spi: invalid decoder state %v", dec.state))
		}

		switch {
		case err == nil:
			// ok.
		case errors.Is(err, io.EOF):
			dec.res.CommitPacketAndStartNewPacket()
			dec.res.CommitResults()
			dec.msg.Debug("end of capture", "sample", dec.cur)
			return nil
		default:
			dec.res.CommitResults()
			return err
		}
	}
}

func (dec *Decoder) seek() error {
	dec.res.CommitPacketAndStartNewPacket()
	dec.res.CommitResults()

	err := dec.advanceToActiveEnableEdge()
	if err != nil {
		return err
	}
	dec.state = stateVerify
	return nil
}

func (dec *Decoder) verify() error {
	if dec.clk.BitState() == dec.cfg.ClockIdle {
		dec.state = stateDecode
		return nil
	}

	dec.res.AddMarker(dec.cur, ErrorSquare, dec.cfg.Clock)

	if dec.enable == nil {
		err := dec.clk.AdvanceToNextEdge()
		if err != nil {
			return err
		}
		dec.cur = dec.clk.SampleNumber()
		dec.state = stateDecode
		return nil
	}

	beg := dec.cur
	err := dec.enable.AdvanceToNextEdge()
	if err != nil {
		return err
	}
	dec.cur = dec.enable.SampleNumber()

	dec.res.CommitPacketAndStartNewPacket()
	dec.res.AddFrame(Frame{
		Start: beg,
		End:   dec.cur,
		Flags: FlagSPIError | FlagDisplayAsError,
	})
	dec.res.CommitPacketAndStartNewPacket()
	dec.res.CommitResults()
	dec.prog(dec.cur)

	err = dec.enable.AdvanceToNextEdge()
	if err != nil {
		return err
	}
	dec.cur = dec.enable.SampleNumber()
	return dec.clk.AdvanceToAbsPosition(dec.cur)
}

func (dec *Decoder) decode(ctx context.Context) error {
	var (
		n     = dec.cfg.BitsPerTransfer
		edge  = dec.cfg.DataValidEdge
		reset = false
		first uint64

		mosi, miso uint64
		bmosi      WordBuilder
		bmiso      WordBuilder
	)
	bmosi.Reset(&mosi, dec.cfg.BitOrder, n)
	bmiso.Reset(&miso, dec.cfg.BitOrder, n)
	dec.arrows = dec.arrows[:0]

	dec.prog(dec.clk.SampleNumber())

	for i := 0; i < n; i++ {
		if i == 0 {
			err := ctx.Err()
			if err != nil {
				return err
			}
		}

		toggle, err := dec.wouldToggleEnable()
		if err != nil {
			return err
		}
		if toggle {
			dec.state = stateSeek
			return nil
		}

		err = dec.clk.AdvanceToNextEdge()
		if err != nil {
			return err
		}
		if i == 0 {
			first = dec.clk.SampleNumber()
		}

		if edge == LeadingEdge {
			err = dec.sample(&bmosi, &bmiso)
			if err != nil {
				return err
			}
		}

		if i == n-1 && edge != TrailingEdge {
			toggle, err := dec.wouldToggleEnable()
			if err != nil {
				return err
			}
			if toggle {
				reset = true
				break
			}
			err = dec.clk.AdvanceToNextEdge()
			if err != nil {
				return err
			}
			break
		}

		toggle, err = dec.wouldToggleEnable()
		if err != nil {
			return err
		}
		if toggle {
			dec.state = stateSeek
			return nil
		}

		err = dec.clk.AdvanceToNextEdge()
		if err != nil {
			return err
		}

		if edge == TrailingEdge {
			err = dec.sample(&bmosi, &bmiso)
			if err != nil {
				return err
			}
		}
	}

	f := Frame{
		Start: first,
		End:   dec.clk.SampleNumber(),
		Data1: mosi,
		Data2: miso,
		Type:  dec.ordinal,
	}
	dec.ordinal++

	idx := dec.res.AddFrame(f)
	for _, s := range dec.arrows {
		dec.res.AddMarker(s, dec.arrow, dec.cfg.Clock)
	}

	err := dec.annotate(ctx, idx, f)
	dec.res.CommitResults()
	if err != nil {
		return err
	}

	if reset {
		dec.state = stateSeek
	}
	return nil
}

// sample latches the data lines at the current clock position.
func (dec *Decoder) sample(bmosi, bmiso *WordBuilder) error {
	dec.cur = dec.clk.SampleNumber()
	if dec.mosi != nil {
		err := dec.mosi.AdvanceToAbsPosition(dec.cur)
		if err != nil {
			return err
		}
		bmosi.AddBit(dec.mosi.BitState())
	}
	if dec.miso != nil {
		err := dec.miso.AdvanceToAbsPosition(dec.cur)
		if err != nil {
			return err
		}
		bmiso.AddBit(dec.miso.BitState())
	}
	dec.arrows = append(dec.arrows, dec.cur)
	return nil
}

// annotate places the markers provided by the annotator.
// Annotator failures are logged and do not stop the decoding,
// unless ctx is done.
func (dec *Decoder) annotate(ctx context.Context, idx uint64, f Frame) error {
	if dec.ann == nil || !dec.ann.MarkerEnabled() {
		return nil
	}

	pkt := dec.res.PacketContainingFrame(idx)
	marks, err := dec.ann.Markers(ctx, pkt, idx, f, len(dec.arrows))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		dec.msg.Error("could not retrieve markers", "frame", idx, "err", err)
	}

	for _, m := range marks {
		if m.Bit >= uint64(len(dec.arrows)) {
			dec.msg.Warn("marker out of range", "frame", idx, "bit", m.Bit, "nbits", len(dec.arrows))
			continue
		}
		ch := dec.cfg.Line(m.Line)
		if ch == Undefined {
			continue
		}
		dec.res.AddMarker(dec.arrows[m.Bit], m.Type, ch)
	}
	return nil
}
