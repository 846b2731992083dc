// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestWordBuilder(t *testing.T) {
	for _, tc := range []struct {
		bits  []BitState
		order BitOrder
		want  uint64
	}{
		{[]BitState{1, 0, 1, 0, 1, 0, 1, 1}, MSBFirst, 0xab},
		{[]BitState{1, 1, 0, 1, 0, 1, 0, 1}, LSBFirst, 0xab},
		{[]BitState{1}, MSBFirst, 1},
		{[]BitState{0, 0, 0, 1}, LSBFirst, 0x8},
	} {
		var (
			got uint64
			b   WordBuilder
		)
		got = 0xdead
		b.Reset(&got, tc.order, len(tc.bits))
		for _, v := range tc.bits {
			b.AddBit(v)
		}
		if got != tc.want {
			t.Fatalf("invalid word (order=%v): got=0x%x, want=0x%x", tc.order, got, tc.want)
		}
	}
}

func TestWordRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var (
			v     = rapid.Uint64().Draw(t, "v")
			n     = rapid.IntRange(1, 64).Draw(t, "n")
			order = rapid.SampledFrom([]BitOrder{MSBFirst, LSBFirst}).Draw(t, "order")

			got uint64
			b   WordBuilder
			ext = NewBitExtractor(v, order, n)
		)

		b.Reset(&got, order, n)
		for i := 0; i < n; i++ {
			b.AddBit(ext.NextBit())
		}
		assert.Equal(t, v&mask(n), got)
	})
}
