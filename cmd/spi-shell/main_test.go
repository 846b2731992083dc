// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/enrich/script"
	"github.com/go-lpc/spidec/spi"
	"github.com/peterh/liner"
)

type fakeTerm struct {
	lines []string
	end   error
	hist  []string
}

func (term *fakeTerm) Prompt(string) (string, error) {
	if len(term.lines) == 0 {
		return "", term.end
	}
	line := term.lines[0]
	term.lines = term.lines[1:]
	return line, nil
}

func (term *fakeTerm) AppendHistory(item string) {
	term.hist = append(term.hist, item)
}

type handler struct{}

func (handler) HandleBubble(ctx context.Context, req enrich.Request) ([]string, error) {
	w := req.Frame.Word(req.Line)
	return []string{fmt.Sprintf("%s=0x%02x", req.Line, w), fmt.Sprintf("%02x", w)}, nil
}

func TestShell(t *testing.T) {
	for _, end := range []error{io.EOF, liner.ErrPromptAborted} {
		t.Run(end.Error(), func(t *testing.T) {
			var (
				reqR, reqW   = io.Pipe()
				respR, respW = io.Pipe()
				ctx          = context.Background()
				msg          = log.New(io.Discard)
			)
			go func() {
				defer respW.Close()
				_ = script.Serve(ctx, reqR, respW, handler{}, script.WithLogger(msg))
			}()
			defer reqW.Close()

			term := &fakeTerm{
				lines: []string{
					"feature bubble",
					"",
					"feature  tabular",
					"hello",
					"bubble - 0 1 2 0 0 miso cd",
				},
				end: end,
			}
			conn := enrich.NewConn(respR, reqW, enrich.WithLogger(msg))
			defer conn.Close()

			out := new(bytes.Buffer)
			err := shell(ctx, conn, term, out, msg)
			if err != nil {
				t.Fatalf("shell failed: %+v", err)
			}

			want := "yes\nno\nmiso=0xcd\ncd\n\n"
			if got := out.String(); got != want {
				t.Fatalf("invalid output:\ngot= %q\nwant=%q", got, want)
			}

			hist := []string{"feature bubble", "feature  tabular", "hello", "bubble - 0 1 2 0 0 miso cd"}
			if !reflect.DeepEqual(term.hist, hist) {
				t.Fatalf("invalid history:\ngot= %q\nwant=%q", term.hist, hist)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	for _, tc := range []struct {
		line string
		want string
	}{
		{"feature marker", "feature\tmarker"},
		{"  tabular   -  0 a b 0 0  1 2 ", "tabular\t\t0\ta\tb\t0\t0\t1\t2"},
		{"marker - - -", "marker\t\t\t"},
	} {
		if got := request(tc.line); got != tc.want {
			t.Fatalf("invalid request for %q:\ngot= %q\nwant=%q", tc.line, got, tc.want)
		}
	}

	req, err := enrich.ParseRequest(request("bubble 3 1 10 20 0 0 mosi ab"))
	if err != nil {
		t.Fatalf("could not parse request: %+v", err)
	}
	if got, want := req.Frame.Word(spi.MOSI), uint64(0xab); got != want {
		t.Fatalf("invalid request word: got=0x%x, want=0x%x", got, want)
	}
}

func TestComplete(t *testing.T) {
	if got, want := complete("f"), []string{"feature "}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid completion: got=%q, want=%q", got, want)
	}
	if got := complete(""); len(got) != 4 {
		t.Fatalf("invalid completion: got=%q", got)
	}
	if got := complete("x"); got != nil {
		t.Fatalf("invalid completion: got=%q", got)
	}
}
