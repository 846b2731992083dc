// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/spi"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	tmp := t.TempDir()
	fname := filepath.Join(tmp, "spi.yaml")
	err := os.WriteFile(fname, []byte(`
mosi: 4
miso: -1
clock: 5
enable: 6
bits-per-transfer: 16
clock-idle: high
command: "python3 -m sc16is7xx"
`), 0644)
	require.NoError(t, err)

	base := spi.DefaultSettings()
	for _, tc := range []struct {
		name string
		args []string
		want func() spi.Settings
		err  error
	}{
		{
			name: "defaults",
			want: func() spi.Settings { return base },
		},
		{
			name: "flags",
			args: []string{"--miso=none", "--enable", "-1", "--bit-order=lsb", "-n", "12", "--data-valid-edge=trailing", "--enable-active=high"},
			want: func() spi.Settings {
				cfg := base
				cfg.MISO = spi.Undefined
				cfg.Enable = spi.Undefined
				cfg.BitOrder = spi.LSBFirst
				cfg.BitsPerTransfer = 12
				cfg.DataValidEdge = spi.TrailingEdge
				cfg.EnableActive = spi.High
				return cfg
			},
		},
		{
			name: "file",
			args: []string{"-c", fname},
			want: func() spi.Settings {
				cfg := base
				cfg.MOSI = 4
				cfg.MISO = spi.Undefined
				cfg.Clock = 5
				cfg.Enable = 6
				cfg.BitsPerTransfer = 16
				cfg.ClockIdle = spi.High
				cfg.Command = "python3 -m sc16is7xx"
				return cfg
			},
		},
		{
			name: "file-and-flags",
			args: []string{"-c", fname, "--clock-idle=low", "--command=", "--mosi=0"},
			want: func() spi.Settings {
				cfg := base
				cfg.MOSI = 0
				cfg.MISO = spi.Undefined
				cfg.Clock = 5
				cfg.Enable = 6
				cfg.BitsPerTransfer = 16
				return cfg
			},
		},
		{
			name: "invalid",
			args: []string{"--mosi=2"},
			err:  spi.ErrInvalidSettings,
		},
		{
			name: "no-file",
			args: []string{"-c", filepath.Join(tmp, "missing.yaml")},
			err:  os.ErrNotExist,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("spi", pflag.ContinueOnError)
			set := AddSettings(fs)
			require.NoError(t, fs.Parse(tc.args))

			got, err := set.Settings()
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err), "err=%+v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want(), got)
		})
	}
}

func TestInvalidFlag(t *testing.T) {
	fs := pflag.NewFlagSet("spi", pflag.ContinueOnError)
	fs.SetOutput(new(nopWriter))
	_ = AddSettings(fs)
	assert.Error(t, fs.Parse([]string{"--clock-idle=medium"}))
}

func TestLogger(t *testing.T) {
	for _, tc := range []struct {
		verbose bool
		want    log.Level
	}{
		{false, log.InfoLevel},
		{true, log.DebugLevel},
	} {
		msg := Logger("spi-test", tc.verbose)
		assert.Equal(t, tc.want, msg.GetLevel())
		assert.Equal(t, "spi-test", msg.GetPrefix())
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
