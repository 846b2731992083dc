// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings is returned for inconsistent decoder settings.
var ErrInvalidSettings = errors.New("spi: invalid settings")

// Settings describes the bus wiring and the transfer parameters.
type Settings struct {
	MOSI   ChannelID `yaml:"mosi"`
	MISO   ChannelID `yaml:"miso"`
	Clock  ChannelID `yaml:"clock"`
	Enable ChannelID `yaml:"enable"`

	BitOrder        BitOrder `yaml:"bit-order"`
	BitsPerTransfer int      `yaml:"bits-per-transfer"`
	ClockIdle       BitState `yaml:"clock-idle"`
	DataValidEdge   Edge     `yaml:"data-valid-edge"`
	EnableActive    BitState `yaml:"enable-active"`

	// Command is the command line of the enrichment script.
	// An empty command disables enrichment.
	Command string `yaml:"command"`
}

// DefaultSettings returns the settings of a 4-wire, mode 0, 8-bit bus
// with an active-low chip select.
func DefaultSettings() Settings {
	return Settings{
		MOSI:            0,
		MISO:            1,
		Clock:           2,
		Enable:          3,
		BitOrder:        MSBFirst,
		BitsPerTransfer: 8,
		ClockIdle:       Low,
		DataValidEdge:   LeadingEdge,
		EnableActive:    Low,
	}
}

// ReadSettings decodes YAML settings from r.
// Missing keys keep their default value.
func ReadSettings(r io.Reader) (Settings, error) {
	cfg := DefaultSettings()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("spi: could not decode settings: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the consistency of the settings.
func (cfg Settings) Validate() error {
	if cfg.Clock == Undefined {
		return fmt.Errorf("%w: clock channel must be assigned", ErrInvalidSettings)
	}
	if cfg.MOSI == Undefined && cfg.MISO == Undefined {
		return fmt.Errorf("%w: at least one of MOSI or MISO must be assigned", ErrInvalidSettings)
	}
	if cfg.BitsPerTransfer < 1 || cfg.BitsPerTransfer > 64 {
		return fmt.Errorf("%w: bits per transfer out of range [1, 64] (got=%d)",
			ErrInvalidSettings, cfg.BitsPerTransfer,
		)
	}

	seen := make(map[ChannelID]string, 4)
	for _, ch := range []struct {
		name string
		id   ChannelID
	}{
		{"mosi", cfg.MOSI},
		{"miso", cfg.MISO},
		{"clock", cfg.Clock},
		{"enable", cfg.Enable},
	} {
		if ch.id == Undefined {
			continue
		}
		if ch.id < Undefined {
			return fmt.Errorf("%w: invalid %s channel %d", ErrInvalidSettings, ch.name, ch.id)
		}
		if dup, ok := seen[ch.id]; ok {
			return fmt.Errorf("%w: channel %d assigned to both %s and %s",
				ErrInvalidSettings, ch.id, dup, ch.name,
			)
		}
		seen[ch.id] = ch.name
	}

	switch {
	case cfg.BitOrder > LSBFirst:
		return fmt.Errorf("%w: invalid bit order %v", ErrInvalidSettings, cfg.BitOrder)
	case cfg.ClockIdle > High:
		return fmt.Errorf("%w: invalid clock idle state %v", ErrInvalidSettings, cfg.ClockIdle)
	case cfg.EnableActive > High:
		return fmt.Errorf("%w: invalid enable active state %v", ErrInvalidSettings, cfg.EnableActive)
	case cfg.DataValidEdge > TrailingEdge:
		return fmt.Errorf("%w: invalid data valid edge %v", ErrInvalidSettings, cfg.DataValidEdge)
	}
	return nil
}

// Mode returns the conventional SPI mode number (CPOL<<1 | CPHA).
func (cfg Settings) Mode() int {
	mode := 0
	if cfg.ClockIdle == High {
		mode |= 2
	}
	if cfg.DataValidEdge == TrailingEdge {
		mode |= 1
	}
	return mode
}

// ArrowMarker returns the marker drawn on the clock at each sampled bit.
func (cfg Settings) ArrowMarker() MarkerType {
	switch {
	case cfg.ClockIdle == Low && cfg.DataValidEdge == LeadingEdge,
		cfg.ClockIdle == High && cfg.DataValidEdge == TrailingEdge:
		return UpArrow
	default:
		return DownArrow
	}
}

// Line returns the channel assigned to a data line.
func (cfg Settings) Line(l Line) ChannelID {
	if l == MISO {
		return cfg.MISO
	}
	return cfg.MOSI
}
