// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	for _, tc := range []struct {
		v    uint64
		base DisplayBase
		n    int
		want string
	}{
		{0xab, Binary, 8, "0b10101011"},
		{0x3, Binary, 4, "0b0011"},
		{0xab, Decimal, 8, "171"},
		{0xab, Hexadecimal, 8, "0xAB"},
		{0x1, Hexadecimal, 12, "0x001"},
		{0x1ff, Hexadecimal, 8, "0xFF"},
		{0x41, ASCII, 8, "A"},
		{0x0a, ASCII, 8, "'0x0A'"},
		{0x41, ASCIIHex, 8, "'A' (0x41)"},
		{0x0a, ASCIIHex, 8, "0x0A"},
		{^uint64(0), Decimal, 64, "18446744073709551615"},
	} {
		got := FormatNumber(tc.v, tc.base, tc.n)
		if got != tc.want {
			t.Fatalf("invalid text (v=0x%x, base=%v, n=%d): got=%q, want=%q",
				tc.v, tc.base, tc.n, got, tc.want,
			)
		}
	}
}

type fakeEnricher struct {
	bubble  bool
	tabular bool
	txt     []string
	err     error

	calls int
	line  Line
	pkt   PacketID
}

func (enr *fakeEnricher) BubbleEnabled() bool  { return enr.bubble }
func (enr *fakeEnricher) TabularEnabled() bool { return enr.tabular }

func (enr *fakeEnricher) Bubble(ctx context.Context, pkt PacketID, idx uint64, f Frame, line Line) ([]string, error) {
	enr.calls++
	enr.line = line
	enr.pkt = pkt
	return enr.txt, enr.err
}

func (enr *fakeEnricher) Tabular(ctx context.Context, pkt PacketID, idx uint64, f Frame) ([]string, error) {
	enr.calls++
	enr.pkt = pkt
	return enr.txt, enr.err
}

func newTestStore() *Store {
	s := NewStore()
	s.AddFrame(Frame{Start: 0x10, End: 0x20, Data1: 0xab, Data2: 0xcd})
	s.CommitPacketAndStartNewPacket()
	s.AddFrame(Frame{Start: 0x30, End: 0x40, Flags: FlagSPIError | FlagDisplayAsError})
	s.CommitResults()
	return s
}

func TestFormatterBuiltin(t *testing.T) {
	var (
		ctx = context.Background()
		cfg = DefaultSettings()
		s   = newTestStore()
		tf  = NewFormatter(cfg, s)
	)

	got, err := tf.BubbleText(ctx, 0, MOSI, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAB"}, got)

	got, err = tf.BubbleText(ctx, 0, MISO, Decimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"205"}, got)

	got, err = tf.BubbleText(ctx, 1, MOSI, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Error",
		"Settings mismatch",
		"The initial (idle) state of the CLK line does not match the settings.",
	}, got)

	got, err = tf.FrameTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI: 0xAB;  MISO: 0xCD"}, got)

	got, err = tf.FrameTabularText(ctx, 1, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"The initial (idle) state of the CLK line does not match the settings."}, got)

	_, err = tf.BubbleText(ctx, 2, MOSI, Hexadecimal)
	assert.Error(t, err)

	got, err = tf.PacketTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"not supported"}, got)

	got, err = tf.TransactionTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"not supported"}, got)

	cfg.MISO = Undefined
	tf = NewFormatter(cfg, s)
	got, err = tf.FrameTabularText(ctx, 0, Binary)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI: 0b10101011"}, got)

	cfg.MISO = 1
	cfg.MOSI = Undefined
	tf = NewFormatter(cfg, s)
	got, err = tf.FrameTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"MISO: 0xCD"}, got)
}

func TestFormatterEnriched(t *testing.T) {
	var (
		ctx = context.Background()
		cfg = DefaultSettings()
		s   = newTestStore()
		msg = log.New(io.Discard)
	)

	enr := &fakeEnricher{bubble: true, tabular: true, txt: []string{"MOSI=AB"}}
	tf := NewFormatter(cfg, s, WithEnricher(enr), WithLogger(msg))

	got, err := tf.FrameTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI=AB"}, got)
	assert.Equal(t, PacketID(0), enr.pkt)

	got, err = tf.BubbleText(ctx, 0, MISO, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI=AB"}, got)
	assert.Equal(t, MISO, enr.line)

	// error frames are never enriched in bubbles.
	enr.calls = 0
	got, err = tf.BubbleText(ctx, 1, MOSI, Hexadecimal)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 0, enr.calls)

	// empty answers fall back to the built-in text.
	enr.txt = nil
	got, err = tf.BubbleText(ctx, 0, MOSI, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAB"}, got)

	// so do failures.
	enr.txt = []string{"ignored"}
	enr.err = errors.New("boom")
	got, err = tf.FrameTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI: 0xAB;  MISO: 0xCD"}, got)

	// disabled categories are not requested.
	enr.err = nil
	enr.bubble = false
	enr.tabular = false
	enr.calls = 0
	got, err = tf.BubbleText(ctx, 0, MOSI, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAB"}, got)
	got, err = tf.FrameTabularText(ctx, 0, Hexadecimal)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI: 0xAB;  MISO: 0xCD"}, got)
	assert.Equal(t, 0, enr.calls)
}
