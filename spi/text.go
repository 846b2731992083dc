// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// DisplayBase selects how words are rendered.
type DisplayBase uint8

const (
	Binary DisplayBase = iota
	Decimal
	Hexadecimal
	ASCII
	ASCIIHex
)

func (b DisplayBase) String() string {
	switch b {
	case Binary:
		return "bin"
	case Decimal:
		return "dec"
	case Hexadecimal:
		return "hex"
	case ASCII:
		return "ascii"
	case ASCIIHex:
		return "ascii-hex"
	}
	return fmt.Sprintf("DisplayBase(%d)", uint8(b))
}

func (b *DisplayBase) Set(v string) error {
	switch strings.ToLower(v) {
	case "bin", "binary":
		*b = Binary
	case "dec", "decimal":
		*b = Decimal
	case "hex", "hexadecimal":
		*b = Hexadecimal
	case "ascii":
		*b = ASCII
	case "ascii-hex", "ascii+hex":
		*b = ASCIIHex
	default:
		return fmt.Errorf("spi: invalid display base %q", v)
	}
	return nil
}

func (*DisplayBase) Type() string { return "display-base" }

// FormatNumber renders the n low bits of v in the given base.
func FormatNumber(v uint64, base DisplayBase, n int) string {
	v &= mask(n)
	switch base {
	case Binary:
		s := strconv.FormatUint(v, 2)
		return "0b" + strings.Repeat("0", n-len(s)) + s
	case Decimal:
		return strconv.FormatUint(v, 10)
	case ASCII:
		if isPrint(v) {
			return string(rune(v))
		}
		return "'" + hex(v, n) + "'"
	case ASCIIHex:
		if isPrint(v) {
			return fmt.Sprintf("'%c' (%s)", rune(v), hex(v, n))
		}
		return hex(v, n)
	default:
		return hex(v, n)
	}
}

func hex(v uint64, n int) string {
	s := strings.ToUpper(strconv.FormatUint(v, 16))
	w := (n + 3) / 4
	if len(s) < w {
		s = strings.Repeat("0", w-len(s)) + s
	}
	return "0x" + s
}

func isPrint(v uint64) bool {
	return v >= 0x20 && v < 0x7f
}

var errorBubble = []string{
	"Error",
	"Settings mismatch",
	"The initial (idle) state of the CLK line does not match the settings.",
}

// Formatter produces the display text of decoded frames.
// Text provided by an Enricher takes precedence over the built-in text.
type Formatter struct {
	cfg Settings
	res FrameReader
	enr Enricher
	msg *log.Logger
}

// NewFormatter returns a formatter over the frames of res.
func NewFormatter(cfg Settings, res FrameReader, opts ...Option) *Formatter {
	conf := newConfig(opts)
	return &Formatter{
		cfg: cfg,
		res: res,
		enr: conf.enr,
		msg: conf.msg,
	}
}

// BubbleText returns the bubble of frame idx on a data line, from the
// longest to the shortest candidate.
func (tf *Formatter) BubbleText(ctx context.Context, idx uint64, line Line, base DisplayBase) ([]string, error) {
	f, err := tf.res.Frame(idx)
	if err != nil {
		return nil, err
	}

	if f.IsError() {
		return append([]string(nil), errorBubble...), nil
	}

	if tf.enr != nil && tf.enr.BubbleEnabled() {
		pkt := tf.res.PacketContainingFrame(idx)
		txt, err := tf.enr.Bubble(ctx, pkt, idx, f, line)
		switch {
		case err != nil:
			tf.msg.Error("could not retrieve bubble text", "frame", idx, "line", line, "err", err)
		case len(txt) > 0:
			return txt, nil
		}
	}

	return []string{FormatNumber(f.Word(line), base, tf.cfg.BitsPerTransfer)}, nil
}

// FrameTabularText returns the table rows of frame idx.
func (tf *Formatter) FrameTabularText(ctx context.Context, idx uint64, base DisplayBase) ([]string, error) {
	f, err := tf.res.Frame(idx)
	if err != nil {
		return nil, err
	}

	if tf.enr != nil && tf.enr.TabularEnabled() {
		pkt := tf.res.PacketContainingFrame(idx)
		txt, err := tf.enr.Tabular(ctx, pkt, idx, f)
		switch {
		case err != nil:
			tf.msg.Error("could not retrieve tabular text", "frame", idx, "err", err)
		case len(txt) > 0:
			return txt, nil
		}
	}

	if f.IsError() {
		return []string{errorBubble[2]}, nil
	}

	var (
		mosi = tf.cfg.MOSI != Undefined
		miso = tf.cfg.MISO != Undefined
		n    = tf.cfg.BitsPerTransfer
	)
	switch {
	case mosi && miso:
		return []string{
			"MOSI: " + FormatNumber(f.Data1, base, n) + ";  MISO: " + FormatNumber(f.Data2, base, n),
		}, nil
	case mosi:
		return []string{"MOSI: " + FormatNumber(f.Data1, base, n)}, nil
	default:
		return []string{"MISO: " + FormatNumber(f.Data2, base, n)}, nil
	}
}

// PacketTabularText returns the table rows of a packet.
func (*Formatter) PacketTabularText(ctx context.Context, id PacketID, base DisplayBase) ([]string, error) {
	return []string{"not supported"}, nil
}

// TransactionTabularText returns the table rows of a transaction.
func (*Formatter) TransactionTabularText(ctx context.Context, id uint64, base DisplayBase) ([]string, error) {
	return []string{"not supported"}, nil
}
