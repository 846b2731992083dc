// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

// WordBuilder assembles sampled bits into a word.
type WordBuilder struct {
	dst   *uint64
	order BitOrder
	n     int // number of bits in a word
	i     int // number of bits added so far
}

// Reset attaches the builder to dst, clears it and prepares the builder
// for n bits shifted in the given order.
func (b *WordBuilder) Reset(dst *uint64, order BitOrder, n int) {
	b.dst = dst
	b.order = order
	b.n = n
	b.i = 0
	*dst = 0
}

// AddBit shifts one more sampled bit into the word.
// AddBit must not be called more than n times after Reset.
func (b *WordBuilder) AddBit(v BitState) {
	if v == High {
		switch b.order {
		case MSBFirst:
			*b.dst |= 1 << uint(b.n-1-b.i)
		default:
			*b.dst |= 1 << uint(b.i)
		}
	}
	b.i++
}

// BitExtractor yields the bits of a word in bus order.
type BitExtractor struct {
	v     uint64
	order BitOrder
	n     int
	i     int
}

// NewBitExtractor returns an extractor for the n low bits of v.
func NewBitExtractor(v uint64, order BitOrder, n int) *BitExtractor {
	return &BitExtractor{v: v, order: order, n: n}
}

// NextBit returns the next bit of the word.
func (b *BitExtractor) NextBit() BitState {
	var shift int
	switch b.order {
	case MSBFirst:
		shift = b.n - 1 - b.i
	default:
		shift = b.i
	}
	b.i++
	return BitState((b.v >> uint(shift)) & 1)
}

func mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(n) - 1
}
