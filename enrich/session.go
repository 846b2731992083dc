// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package enrich

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/spi"
)

// Session is an enrichment session with an external process.
//
// The categories of messages the process accepts are negotiated once,
// when the session starts. A session is permanently disabled after a
// malformed response, a lost connection or a timeout: no further request
// is sent and the process is asked to terminate.
type Session struct {
	conn *Conn
	msg  *log.Logger
	proc *process

	enabled atomic.Bool
	marker  bool
	bubble  bool
	tabular bool

	once sync.Once
	err  error
}

// NewSession negotiates a session over an already established channel.
func NewSession(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (*Session, error) {
	sess := newSession(NewConn(r, w, opts...), newConfig(opts).msg)
	err := sess.negotiate(ctx)
	if err != nil {
		_ = sess.conn.Close()
		return nil, err
	}
	return sess, nil
}

func newSession(conn *Conn, msg *log.Logger) *Session {
	sess := &Session{
		conn:    conn,
		msg:     msg,
		marker:  true,
		bubble:  true,
		tabular: true,
	}
	sess.enabled.Store(true)
	return sess
}

func (sess *Session) negotiate(ctx context.Context) error {
	for _, kind := range []Kind{KindBubble, KindMarker, KindTabular} {
		req := Request{Kind: KindFeature, Feature: kind}
		resp, err := sess.conn.Exchange(ctx, req.Encode(), featureLen)
		if err != nil {
			sess.enabled.Store(false)
			return fmt.Errorf("enrich: could not negotiate %s messages: %w", kind, err)
		}
		if strings.TrimSpace(resp) != "no" {
			continue
		}
		sess.msg.Infof("message type %q disabled", kind.String())
		switch kind {
		case KindBubble:
			sess.bubble = false
		case KindMarker:
			sess.marker = false
		case KindTabular:
			sess.tabular = false
		}
	}
	return nil
}

// Enabled reports whether the session still accepts requests.
func (sess *Session) Enabled() bool { return sess.enabled.Load() }

func (sess *Session) MarkerEnabled() bool  { return sess.Enabled() && sess.marker }
func (sess *Session) BubbleEnabled() bool  { return sess.Enabled() && sess.bubble }
func (sess *Session) TabularEnabled() bool { return sess.Enabled() && sess.tabular }

// Markers requests the markers of a frame sampled over nbits clock edges.
// Markers decoded before a malformed line are returned along with the error.
func (sess *Session) Markers(ctx context.Context, pkt spi.PacketID, idx uint64, f spi.Frame, nbits int) ([]spi.BitMarker, error) {
	if !sess.MarkerEnabled() {
		return nil, ErrDisabled
	}

	var (
		req   = Request{Kind: KindMarker, Packet: pkt, Index: idx, Bits: nbits, Frame: f}
		marks = make([]spi.BitMarker, 0, nbits)
	)
	err := sess.conn.ExchangeFunc(ctx, req.Encode(), markerLen, func(line string) error {
		ml, err := parseMarker(line)
		if err != nil {
			return err
		}
		l, ok := spi.ParseLine(ml.line)
		if !ok {
			sess.msg.Warn("unknown marker channel", "frame", idx, "channel", ml.line)
			return nil
		}
		typ, ok := spi.ParseMarkerType(ml.typ)
		if !ok {
			sess.msg.Warn("unrecognized marker type", "frame", idx, "type", ml.typ)
		}
		marks = append(marks, spi.BitMarker{Bit: ml.bit, Line: l, Type: typ})
		return nil
	})
	if err != nil {
		return marks, sess.fail(err)
	}
	return marks, nil
}

// Bubble requests the bubble texts of a frame on a data line.
func (sess *Session) Bubble(ctx context.Context, pkt spi.PacketID, idx uint64, f spi.Frame, line spi.Line) ([]string, error) {
	if !sess.BubbleEnabled() {
		return nil, ErrDisabled
	}

	req := Request{Kind: KindBubble, Packet: pkt, Index: idx, Line: line, Frame: f}
	txt, err := sess.conn.ExchangeMulti(ctx, req.Encode(), bubbleLen)
	if err != nil {
		return nil, sess.fail(err)
	}
	return txt, nil
}

// Tabular requests the table rows of a frame.
func (sess *Session) Tabular(ctx context.Context, pkt spi.PacketID, idx uint64, f spi.Frame) ([]string, error) {
	if !sess.TabularEnabled() {
		return nil, ErrDisabled
	}

	req := Request{Kind: KindTabular, Packet: pkt, Index: idx, Frame: f}
	txt, err := sess.conn.ExchangeMulti(ctx, req.Encode(), tabularLen)
	if err != nil {
		return nil, sess.fail(err)
	}
	return txt, nil
}

// fail disables the session after a failed exchange.
// The request/response pairing can not be recovered.
func (sess *Session) fail(err error) error {
	sess.Disable(err)
	return err
}

// Disable permanently disables the session and asks the enrichment
// process to terminate.
func (sess *Session) Disable(reason error) {
	sess.once.Do(func() {
		sess.enabled.Store(false)
		if reason != nil {
			sess.msg.Error("disabling enrichment", "err", reason)
		}
		_ = sess.conn.Close()
		if sess.proc != nil {
			sess.err = sess.proc.stop()
		}
	})
}

// Close disables the session and releases the enrichment process.
func (sess *Session) Close() error {
	sess.Disable(nil)
	if sess.proc != nil {
		return sess.proc.wait()
	}
	return sess.err
}

var (
	_ spi.Annotator = (*Session)(nil)
	_ spi.Enricher  = (*Session)(nil)
)
