// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package enrich delegates the annotation of decoded SPI frames to an
// external process.
//
// Requests and responses are newline terminated lines of tab separated
// fields. Numbers are lower-case hexadecimal without leading zeros.
// Multi-line responses are terminated by an empty line.
//
//	feature  <kind>
//	marker   <pkt> <idx> <nbits> <start> <end> <type> <flags> <mosi> <miso>
//	bubble   <pkt> <idx> <start> <end> <type> <flags> <mosi|miso> <word>
//	tabular  <pkt> <idx> <start> <end> <type> <flags> <mosi> <miso>
//
// The packet field is empty for frames outside of any committed packet.
// Each marker response line holds 3 fields:
//
//	<bit> <mosi|miso> <marker-type>
package enrich // import "github.com/go-lpc/spidec/enrich"

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	sep = '\t'
	eol = '\n'
)

// Maximum number of bytes kept from a response line.
const (
	featureLen = 15
	markerLen  = 255
	bubbleLen  = 255
	tabularLen = 511
)

var (
	// ErrProtocol reports a malformed response.
	ErrProtocol = errors.New("enrich: protocol error")
	// ErrDisabled is returned by a disabled session.
	ErrDisabled = errors.New("enrich: session disabled")
	// ErrClosed reports the end of the responses stream.
	ErrClosed = errors.New("enrich: connection closed")
	// ErrTimeout reports a response that did not arrive in time.
	ErrTimeout = errors.New("enrich: response timeout")
)

type config struct {
	msg     *log.Logger
	timeout time.Duration
	stderr  io.Writer

	mon struct {
		w    io.Writer
		freq time.Duration
	}
}

func newConfig(opts []Option) config {
	cfg := config{stderr: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = log.NewWithOptions(os.Stderr, log.Options{Prefix: "enrich"})
	}
	return cfg
}

// Option configures an enrichment session.
type Option func(*config)

// WithLogger sets the logger of the session.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithTimeout bounds the time spent waiting for each response line.
// A zero duration waits forever.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithStderr redirects the standard error of the enrichment process.
func WithStderr(w io.Writer) Option {
	return func(cfg *config) {
		cfg.stderr = w
	}
}

// WithMonitor periodically writes the CPU and memory usage of the
// enrichment process to w.
func WithMonitor(w io.Writer, freq time.Duration) Option {
	return func(cfg *config) {
		cfg.mon.w = w
		cfg.mon.freq = freq
	}
}
