// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-lpc/spidec/spi"
	"golang.org/x/xerrors"
)

func TestCodec(t *testing.T) {
	sim, err := NewSimulator(spi.DefaultSettings(), 1000000)
	if err != nil {
		t.Fatalf("could not create simulator: %+v", err)
	}

	for _, tc := range []struct {
		name string
		capt *Capture
	}{
		{
			name: "simulation",
			capt: sim.Generate(2000),
		},
		{
			name: "no-edges",
			capt: &Capture{
				SampleRate: 10000,
				Samples:    42,
				Traces:     []Trace{{ID: 7, Initial: spi.High, Edges: []uint64{}}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			err := NewEncoder(buf).Encode(tc.capt)
			if err != nil {
				t.Fatalf("could not encode capture: %+v", err)
			}

			dec := NewDecoder(buf)
			var got Capture
			err = dec.Decode(&got)
			if err != nil {
				t.Fatalf("could not decode capture: %+v", err)
			}

			if !reflect.DeepEqual(&got, tc.capt) {
				t.Fatalf("round-trip failed:\ngot= %+v\nwant=%+v", got, *tc.capt)
			}

			err = dec.Decode(&got)
			if !xerrors.Is(err, io.EOF) {
				t.Fatalf("expected io.EOF, got=%+v", err)
			}
		})
	}
}

func TestDecoderErrors(t *testing.T) {
	c := &Capture{
		SampleRate: 10000,
		Samples:    100,
		Traces:     []Trace{{ID: 1, Edges: []uint64{10, 20}}},
	}
	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode(c)
	if err != nil {
		t.Fatalf("could not encode capture: %+v", err)
	}
	raw := buf.Bytes()

	for _, tc := range []struct {
		name string
		data func() []byte
		want string
	}{
		{
			name: "magic",
			data: func() []byte {
				p := append([]byte(nil), raw...)
				p[0] = 'X'
				return p
			},
			want: `capture: invalid magic (got="XPIC")`,
		},
		{
			name: "version",
			data: func() []byte {
				p := append([]byte(nil), raw...)
				p[4] = 2
				return p
			},
			want: "capture: invalid version (got=2, want=1)",
		},
		{
			name: "crc",
			data: func() []byte {
				p := append([]byte(nil), raw...)
				p[len(p)-3] ^= 0xff
				return p
			},
		},
		{
			name: "truncated",
			data: func() []byte {
				return raw[:len(raw)-5]
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got Capture
			err := NewDecoder(bytes.NewReader(tc.data())).Decode(&got)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.want != "" && err.Error() != tc.want {
				t.Fatalf("invalid error:\ngot= %s\nwant=%s", err, tc.want)
			}
		})
	}
}

func TestFile(t *testing.T) {
	sim, err := NewSimulator(spi.DefaultSettings(), 100000)
	if err != nil {
		t.Fatalf("could not create simulator: %+v", err)
	}
	want := sim.Generate(1000)

	fname := filepath.Join(t.TempDir(), "bus.spic")
	err = Save(fname, want)
	if err != nil {
		t.Fatalf("could not save capture: %+v", err)
	}

	got, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load capture: %+v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round-trip failed")
	}
}

func TestLoadErrors(t *testing.T) {
	tmp := t.TempDir()

	_, err := Load(filepath.Join(tmp, "missing.spic"))
	if !xerrors.Is(err, os.ErrNotExist) {
		t.Fatalf("invalid error: %+v", err)
	}

	fname := filepath.Join(tmp, "empty.spic")
	err = os.WriteFile(fname, nil, 0644)
	if err != nil {
		t.Fatalf("could not create empty file: %+v", err)
	}
	_, err = Load(fname)
	if !xerrors.Is(err, io.EOF) {
		t.Fatalf("invalid error: %+v", err)
	}
}
