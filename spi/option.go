// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spi

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
)

// Annotator provides per-bit markers for decoded frames.
type Annotator interface {
	// MarkerEnabled reports whether markers should be requested.
	MarkerEnabled() bool
	// Markers returns the markers of frame idx, sampled over nbits clock edges.
	Markers(ctx context.Context, pkt PacketID, idx uint64, f Frame, nbits int) ([]BitMarker, error)
}

// Enricher provides display text for decoded frames.
type Enricher interface {
	BubbleEnabled() bool
	TabularEnabled() bool
	// Bubble returns the candidate texts of the frame bubble on a data line.
	Bubble(ctx context.Context, pkt PacketID, idx uint64, f Frame, line Line) ([]string, error)
	// Tabular returns the table rows of a frame.
	Tabular(ctx context.Context, pkt PacketID, idx uint64, f Frame) ([]string, error)
}

type config struct {
	msg  *log.Logger
	ann  Annotator
	enr  Enricher
	prog func(sample uint64)
}

func newConfig(opts []Option) config {
	cfg := config{
		prog: func(uint64) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = log.NewWithOptions(os.Stderr, log.Options{Prefix: "spi"})
	}
	return cfg
}

// Option configures a Decoder or a Formatter.
type Option func(*config)

// WithLogger sets the logger used to report diagnostics.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithAnnotator requests per-bit markers from ann for every decoded frame.
func WithAnnotator(ann Annotator) Option {
	return func(cfg *config) {
		cfg.ann = ann
	}
}

// WithEnricher requests display text from enr.
func WithEnricher(enr Enricher) Option {
	return func(cfg *config) {
		cfg.enr = enr
	}
}

// WithProgress registers a function called with the current clock sample
// at the start of every word.
func WithProgress(f func(sample uint64)) Option {
	return func(cfg *config) {
		if f == nil {
			f = func(uint64) {}
		}
		cfg.prog = f
	}
}
