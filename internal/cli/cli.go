// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli holds the command-line plumbing shared by the spidec
// commands.
package cli // import "github.com/go-lpc/spidec/internal/cli"

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec"
	"github.com/go-lpc/spidec/spi"
	"github.com/spf13/pflag"
)

// Settings binds the bus settings to a set of flags.
// Flags explicitly set on the command line override the settings file.
type Settings struct {
	fs   *pflag.FlagSet
	file string
	cfg  spi.Settings
}

// AddSettings registers the bus settings flags to fs.
func AddSettings(fs *pflag.FlagSet) *Settings {
	set := &Settings{fs: fs, cfg: spi.DefaultSettings()}
	cfg := &set.cfg

	fs.StringVarP(&set.file, "config", "c", "", "path to a YAML settings file")
	fs.Var(&cfg.MOSI, "mosi", "MOSI channel (none if unassigned)")
	fs.Var(&cfg.MISO, "miso", "MISO channel (none if unassigned)")
	fs.Var(&cfg.Clock, "clock", "clock channel")
	fs.Var(&cfg.Enable, "enable", "enable channel (none if unassigned)")
	fs.Var(&cfg.BitOrder, "bit-order", "bit order of words (msb, lsb)")
	fs.IntVarP(&cfg.BitsPerTransfer, "bits", "n", cfg.BitsPerTransfer, "number of bits per transfer")
	fs.Var(&cfg.ClockIdle, "clock-idle", "clock idle state (low, high)")
	fs.Var(&cfg.DataValidEdge, "data-valid-edge", "clock edge where data is valid (leading, trailing)")
	fs.Var(&cfg.EnableActive, "enable-active", "enable active state (low, high)")
	fs.StringVar(&cfg.Command, "command", cfg.Command, "command line of the enrichment process")

	return set
}

// Settings returns the validated bus settings.
func (set *Settings) Settings() (spi.Settings, error) {
	cfg := spi.DefaultSettings()
	if set.file != "" {
		f, err := os.Open(set.file)
		if err != nil {
			return cfg, fmt.Errorf("could not open settings file: %w", err)
		}
		defer f.Close()

		cfg, err = spi.ReadSettings(f)
		if err != nil {
			return cfg, fmt.Errorf("could not read settings file %q: %w", set.file, err)
		}
	}

	set.fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "mosi":
			cfg.MOSI = set.cfg.MOSI
		case "miso":
			cfg.MISO = set.cfg.MISO
		case "clock":
			cfg.Clock = set.cfg.Clock
		case "enable":
			cfg.Enable = set.cfg.Enable
		case "bit-order":
			cfg.BitOrder = set.cfg.BitOrder
		case "bits":
			cfg.BitsPerTransfer = set.cfg.BitsPerTransfer
		case "clock-idle":
			cfg.ClockIdle = set.cfg.ClockIdle
		case "data-valid-edge":
			cfg.DataValidEdge = set.cfg.DataValidEdge
		case "enable-active":
			cfg.EnableActive = set.cfg.EnableActive
		case "command":
			cfg.Command = set.cfg.Command
		}
	})

	err := cfg.Validate()
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Logger returns the logger of a command.
func Logger(name string, verbose bool) *log.Logger {
	msg := log.NewWithOptions(os.Stderr, log.Options{Prefix: name})
	if verbose {
		msg.SetLevel(log.DebugLevel)
	}
	if v, sum := spidec.Version(); v != "" {
		msg.Debug("build", "version", v, "sum", sum)
	}
	return msg
}
