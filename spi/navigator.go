// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

// wouldToggleEnable reports whether advancing the clock to its next edge
// would cross a transition of the enable line.
func (dec *Decoder) wouldToggleEnable() (bool, error) {
	if dec.enable == nil {
		return false, nil
	}
	next, err := dec.clk.SampleOfNextEdge()
	if err != nil {
		return false, err
	}
	return dec.enable.WouldAdvancingToAbsPositionCauseTransition(next), nil
}

// advanceToActiveEnableEdge moves the enable line to the start of its next
// active interval and brings the clock along.
func (dec *Decoder) advanceToActiveEnableEdge() error {
	if dec.enable == nil {
		dec.cur = dec.clk.SampleNumber()
		return nil
	}

	if dec.enable.BitState() != dec.cfg.EnableActive {
		err := dec.enable.AdvanceToNextEdge()
		if err != nil {
			return err
		}
	} else {
		for i := 0; i < 2; i++ {
			err := dec.enable.AdvanceToNextEdge()
			if err != nil {
				return err
			}
		}
	}

	dec.cur = dec.enable.SampleNumber()
	dec.ordinal = 0
	return dec.clk.AdvanceToAbsPosition(dec.cur)
}
