// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package enrich

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Conn is a line oriented request/response channel to an enrichment
// process. Exchanges are serialized: at most one request is in flight.
type Conn struct {
	mu sync.Mutex
	w  io.Writer

	lines   chan string
	done    chan struct{} // closed when the responses stream ends
	quit    chan struct{}
	once    sync.Once
	rerr    error         // set before done is closed
	timeout time.Duration
	msg     *log.Logger
}

// NewConn returns a connection writing requests to w and reading
// responses from r.
func NewConn(r io.Reader, w io.Writer, opts ...Option) *Conn {
	cfg := newConfig(opts)
	conn := &Conn{
		w:       w,
		lines:   make(chan string),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
		timeout: cfg.timeout,
		msg:     cfg.msg,
	}
	go conn.recv(r)
	return conn
}

func (conn *Conn) recv(r io.Reader) {
	defer close(conn.done)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString(eol)
		if line != "" {
			select {
			case conn.lines <- strings.TrimSuffix(line, string(eol)):
			case <-conn.quit:
				conn.rerr = ErrClosed
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			conn.rerr = err
			return
		}
	}
}

// Close stops reading responses. Close does not close the underlying
// reader and writer.
func (conn *Conn) Close() error {
	conn.once.Do(func() { close(conn.quit) })
	return nil
}

// Exchange sends a request and returns its single line response,
// truncated to max bytes.
func (conn *Conn) Exchange(ctx context.Context, req string, max int) (string, error) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	err := conn.send(req)
	if err != nil {
		return "", err
	}
	return conn.readLine(ctx, max)
}

// ExchangeMulti sends a request and returns the lines of its response,
// each truncated to max bytes. The terminating empty line is not returned.
func (conn *Conn) ExchangeMulti(ctx context.Context, req string, max int) ([]string, error) {
	var lines []string
	err := conn.ExchangeFunc(ctx, req, max, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	return lines, err
}

// ExchangeFunc sends a request and calls fn with each line of its
// response, until the terminating empty line.
// Reading stops at the first error returned by fn.
func (conn *Conn) ExchangeFunc(ctx context.Context, req string, max int, fn func(line string) error) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	err := conn.send(req)
	if err != nil {
		return err
	}

	for {
		line, err := conn.readLine(ctx, max)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		err = fn(line)
		if err != nil {
			return err
		}
	}
}

// Do sends a raw request line and returns the lines of its response.
// Feature requests have a single line response.
func (conn *Conn) Do(ctx context.Context, req string) ([]string, error) {
	name, _, _ := strings.Cut(strings.TrimSpace(req), string(sep))
	kind, ok := ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown request %q", ErrProtocol, name)
	}

	switch kind {
	case KindFeature:
		resp, err := conn.Exchange(ctx, req, featureLen)
		if err != nil {
			return nil, err
		}
		return []string{resp}, nil
	case KindMarker:
		return conn.ExchangeMulti(ctx, req, markerLen)
	case KindBubble:
		return conn.ExchangeMulti(ctx, req, bubbleLen)
	default:
		return conn.ExchangeMulti(ctx, req, tabularLen)
	}
}

func (conn *Conn) send(req string) error {
	if !strings.HasSuffix(req, string(eol)) {
		req += string(eol)
	}
	conn.msg.Debug(">> " + strings.TrimSuffix(req, string(eol)))
	_, err := io.WriteString(conn.w, req)
	if err != nil {
		return fmt.Errorf("enrich: could not send request: %w", err)
	}
	return nil
}

func (conn *Conn) readLine(ctx context.Context, max int) (string, error) {
	var timeout <-chan time.Time
	if conn.timeout > 0 {
		tmr := time.NewTimer(conn.timeout)
		defer tmr.Stop()
		timeout = tmr.C
	}

	select {
	case line := <-conn.lines:
		if len(line) > max {
			line = line[:max]
		}
		conn.msg.Debug("<< " + line)
		return line, nil
	case <-conn.done:
		return "", conn.rerr
	case <-timeout:
		return "", fmt.Errorf("%w (after %v)", ErrTimeout, conn.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
