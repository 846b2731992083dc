// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package enrich_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/enrich/script"
	"github.com/go-lpc/spidec/spi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "SPIDEC_ENRICH_HELPER"

func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "":
		os.Exit(m.Run())
	case "serve":
		err := script.Serve(context.Background(), os.Stdin, os.Stdout, helper{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "helper: %+v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

// helper is an enrichment script without bubble texts.
type helper struct{}

func (helper) HandleMarker(ctx context.Context, req enrich.Request) ([]spi.BitMarker, error) {
	return []spi.BitMarker{
		{Bit: 0, Line: spi.MOSI, Type: spi.Start},
		{Bit: uint64(req.Bits - 1), Line: spi.MOSI, Type: spi.Stop},
	}, nil
}

func (helper) HandleTabular(ctx context.Context, req enrich.Request) ([]string, error) {
	return []string{fmt.Sprintf("MOSI=%X", req.Frame.Data1)}, nil
}

func helperCommand(t *testing.T, mode string) string {
	t.Helper()
	t.Setenv(helperEnv, mode)
	return "'" + strings.ReplaceAll(os.Args[0], "'", `'\''`) + "'"
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	sess, err := enrich.Start(ctx, helperCommand(t, "serve"),
		quiet(), enrich.WithStderr(io.Discard), enrich.WithTimeout(10*time.Second),
	)
	require.NoError(t, err)

	assert.True(t, sess.MarkerEnabled())
	assert.False(t, sess.BubbleEnabled())
	assert.True(t, sess.TabularEnabled())

	f := spi.Frame{Start: 1, End: 20, Data1: 0xab, Data2: 0xcd}
	marks, err := sess.Markers(ctx, 0, 0, f, 8)
	require.NoError(t, err)
	assert.Equal(t, []spi.BitMarker{
		{Bit: 0, Line: spi.MOSI, Type: spi.Start},
		{Bit: 7, Line: spi.MOSI, Type: spi.Stop},
	}, marks)

	txt, err := sess.Tabular(ctx, 0, 0, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOSI=AB"}, txt)

	_, err = sess.Bubble(ctx, 0, 0, f, spi.MOSI)
	assert.ErrorIs(t, err, enrich.ErrDisabled)

	require.NoError(t, sess.Close())
	assert.False(t, sess.Enabled())
}

func TestStartExit(t *testing.T) {
	_, err := enrich.Start(context.Background(), helperCommand(t, "exit"),
		quiet(), enrich.WithStderr(io.Discard),
	)
	assert.ErrorIs(t, err, enrich.ErrClosed)
}

func TestStartErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  string
		err  string
	}{
		{"empty", "", "enrich: empty command"},
		{"blank", "   ", "enrich: empty command"},
		{"quoting", `"unterminated`, "enrich: could not parse command"},
		{"missing", "/no/such/enrichment-script --flag", `enrich: could not start "/no/such/enrichment-script"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := enrich.Start(context.Background(), tc.cmd, quiet())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestSpawn(t *testing.T) {
	ctx := context.Background()
	proc, err := enrich.Spawn(helperCommand(t, "serve"), quiet(), enrich.WithTimeout(10*time.Second))
	require.NoError(t, err)
	assert.NotZero(t, proc.Pid())

	conn := proc.Conn()
	for _, tc := range []struct {
		req  string
		want []string
	}{
		{"feature\tbubble", []string{"no"}},
		{"feature\ttabular\n", []string{"yes"}},
		{"tabular\t\t0\t1\t2\t0\t0\tab\tcd", []string{"MOSI=AB"}},
		{"marker\t\t0\t4\t1\t2\t0\t0\tab\tcd", []string{"0\tmosi\tStart", "3\tmosi\tStop"}},
		{"bubble\t\t0\t1\t2\t0\t0\tmosi\tab", nil},
		{"tabular\tbad", nil},
	} {
		got, err := conn.Do(ctx, tc.req)
		require.NoError(t, err, "req=%q", tc.req)
		assert.Equal(t, tc.want, got, "req=%q", tc.req)
	}

	_, err = conn.Do(ctx, "hello\tworld")
	assert.ErrorIs(t, err, enrich.ErrProtocol)

	require.NoError(t, proc.Close())
}
