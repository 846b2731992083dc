// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crc16_test

import (
	"bytes"
	"testing"

	"github.com/go-lpc/spidec/internal/crc16"
)

func TestChecksum(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
		want uint16
	}{
		{"empty", nil, 0xffff},
		{"check", []byte("123456789"), 0x29b1},
		{"bytes", []byte{0x1, 0x2, 0x3, 0x4, 0x5}, 0x9304},
		{"zero", []byte{0x0}, 0xe1f0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := crc16.Checksum(tc.raw), tc.want; got != want {
				t.Fatalf("invalid checksum: got=0x%04x, want=0x%04x", got, want)
			}

			crc := crc16.New(nil)
			for i := range tc.raw {
				_, _ = crc.Write(tc.raw[i : i+1])
			}
			if got, want := crc.Sum16(), tc.want; got != want {
				t.Fatalf("invalid streamed checksum: got=0x%04x, want=0x%04x", got, want)
			}
		})
	}
}

func TestHash(t *testing.T) {
	crc := crc16.New(crc16.MakeTable(crc16.CCITT))
	if got, want := crc.Size(), crc16.Size; got != want {
		t.Fatalf("invalid size: got=%d, want=%d", got, want)
	}
	if got, want := crc.BlockSize(), 1; got != want {
		t.Fatalf("invalid block size: got=%d, want=%d", got, want)
	}

	_, _ = crc.Write([]byte("garbage"))
	crc.Reset()
	_, _ = crc.Write([]byte("123456789"))

	prefix := []byte("crc:")
	got := crc.Sum(prefix)
	want := []byte{'c', 'r', 'c', ':', 0x29, 0xb1}
	if !bytes.Equal(got, want) {
		t.Fatalf("invalid sum: got=%q, want=%q", got, want)
	}
	if got, want := crc.Sum16(), uint16(0x29b1); got != want {
		t.Fatalf("sum modified the hash state: got=0x%04x, want=0x%04x", got, want)
	}
}
