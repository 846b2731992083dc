// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package script implements the enrichment process side of the
// enrichment protocol.
//
// A handler declares the categories of messages it accepts by
// implementing any of MarkerHandler, BubbleHandler and TabularHandler.
package script // import "github.com/go-lpc/spidec/enrich/script"

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/spi"
)

// MarkerHandler provides the markers of a frame.
// Marker bits index the req.Bits sampled clock edges of the frame.
type MarkerHandler interface {
	HandleMarker(ctx context.Context, req enrich.Request) ([]spi.BitMarker, error)
}

// BubbleHandler provides the bubble texts of a frame on req.Line,
// from the longest to the shortest.
type BubbleHandler interface {
	HandleBubble(ctx context.Context, req enrich.Request) ([]string, error)
}

// TabularHandler provides the table rows of a frame.
type TabularHandler interface {
	HandleTabular(ctx context.Context, req enrich.Request) ([]string, error)
}

// Option configures Serve.
type Option func(*server)

// WithLogger sets the logger used to report handler failures.
// Nothing may be logged on the standard output, which carries the
// responses.
func WithLogger(msg *log.Logger) Option {
	return func(srv *server) {
		srv.msg = msg
	}
}

type server struct {
	h   interface{}
	msg *log.Logger
	w   *bufio.Writer
}

// Serve answers the requests read from r, writing responses to w,
// until r is exhausted or ctx is done.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h interface{}, opts ...Option) error {
	srv := &server{
		h: h,
		w: bufio.NewWriter(w),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.msg == nil {
		srv.msg = log.NewWithOptions(os.Stderr, log.Options{Prefix: "script"})
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		err := ctx.Err()
		if err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		srv.msg.Debug(">> " + line)

		resp := srv.handle(ctx, line)
		srv.msg.Debug("<< " + strings.Join(resp, "\\n"))

		for _, v := range resp {
			_, _ = srv.w.WriteString(v)
			_ = srv.w.WriteByte('\n')
		}
		err = srv.w.Flush()
		if err != nil {
			return fmt.Errorf("script: could not write response: %w", err)
		}
	}

	err := sc.Err()
	if err != nil {
		return fmt.Errorf("script: could not read requests: %w", err)
	}
	return nil
}

// handle returns the lines of the response to a request.
func (srv *server) handle(ctx context.Context, line string) []string {
	req, err := enrich.ParseRequest(line)
	if err != nil {
		srv.msg.Error("could not parse request", "req", line, "err", err)
		return []string{""}
	}

	if req.Kind == enrich.KindFeature {
		if srv.accepts(req.Feature) {
			return []string{"yes"}
		}
		return []string{"no"}
	}

	var resp []string
	switch req.Kind {
	case enrich.KindMarker:
		if h, ok := srv.h.(MarkerHandler); ok {
			marks, err := h.HandleMarker(ctx, req)
			if err != nil {
				srv.msg.Error("marker handler failed", "frame", req.Index, "err", err)
				break
			}
			for _, m := range marks {
				resp = append(resp, enrich.EncodeMarker(m))
			}
		}
	case enrich.KindBubble:
		if h, ok := srv.h.(BubbleHandler); ok {
			txt, err := h.HandleBubble(ctx, req)
			if err != nil {
				srv.msg.Error("bubble handler failed", "frame", req.Index, "err", err)
				break
			}
			resp = clean(txt)
		}
	case enrich.KindTabular:
		if h, ok := srv.h.(TabularHandler); ok {
			txt, err := h.HandleTabular(ctx, req)
			if err != nil {
				srv.msg.Error("tabular handler failed", "frame", req.Index, "err", err)
				break
			}
			resp = clean(txt)
		}
	}
	return append(resp, "")
}

func (srv *server) accepts(kind enrich.Kind) bool {
	var ok bool
	switch kind {
	case enrich.KindMarker:
		_, ok = srv.h.(MarkerHandler)
	case enrich.KindBubble:
		_, ok = srv.h.(BubbleHandler)
	case enrich.KindTabular:
		_, ok = srv.h.(TabularHandler)
	}
	return ok
}

// clean drops empty lines, which would terminate the response early,
// and line breaks embedded in a text.
func clean(txt []string) []string {
	var out []string
	for _, v := range txt {
		v = strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
