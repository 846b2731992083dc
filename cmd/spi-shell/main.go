// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// spi-shell sends raw enrichment requests to an enrichment process.
//
// Usage: spi-shell [OPTIONS] --command=CMD
//
// Request fields are separated by blanks. A single dash denotes an
// empty field.
//
// Example:
//
//	$> spi-shell --command="spi-sc16is7xx"
//	spi> feature tabular
//	yes
//	spi> tabular - 0 10 20 0 0 2 0
//	[...]
package main // import "github.com/go-lpc/spidec/cmd/spi-shell"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/internal/cli"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"
)

func main() {
	var (
		fs      = pflag.NewFlagSet("spi-shell", pflag.ExitOnError)
		command = fs.String("command", "", "command line of the enrichment process")
		timeout = fs.Duration("timeout", 5*time.Second, "timeout of enrichment responses (0 waits forever)")
		verbose = fs.BoolP("verbose", "v", false, "enable verbose mode")
	)
	_ = fs.Parse(os.Args[1:])

	msg := cli.Logger("spi-shell", *verbose)
	if *command == "" {
		fs.PrintDefaults()
		msg.Fatalf("missing enrichment command")
	}

	proc, err := enrich.Spawn(*command,
		enrich.WithLogger(msg.WithPrefix("enrich")),
		enrich.WithTimeout(*timeout),
	)
	if err != nil {
		msg.Fatalf("could not start enrichment process: %+v", err)
	}
	defer proc.Close()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	err = shell(context.Background(), proc.Conn(), term, os.Stdout, msg)
	if err != nil {
		_ = term.Close()
		_ = proc.Close()
		msg.Fatalf("shell failed: %+v", err)
	}
}

type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func shell(ctx context.Context, conn *enrich.Conn, term prompter, w io.Writer, msg *log.Logger) error {
	for {
		line, err := term.Prompt("spi> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(w)
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		term.AppendHistory(line)

		resp, err := conn.Do(ctx, request(line))
		switch {
		case errors.Is(err, enrich.ErrProtocol):
			msg.Error("invalid request", "err", err)
			continue
		case err != nil:
			return fmt.Errorf("could not exchange %q: %w", line, err)
		}
		for _, v := range resp {
			fmt.Fprintln(w, strings.ReplaceAll(v, "\t", " "))
		}
	}
}

// request returns the wire form of a blank separated request.
func request(line string) string {
	fields := strings.Fields(line)
	for i, v := range fields {
		if v == "-" {
			fields[i] = ""
		}
	}
	return strings.Join(fields, "\t")
}

func complete(line string) []string {
	var out []string
	for _, kind := range []string{"feature", "marker", "bubble", "tabular"} {
		if strings.HasPrefix(kind, line) {
			out = append(out, kind+" ")
		}
	}
	return out
}
