// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// spi-sim generates synthetic SPI capture files.
//
// Usage: spi-sim [OPTIONS] -o FILE
//
// Example:
//
//	$> spi-sim -o sim.spic --rate=1000000 --samples=100000
//	$> spi-decode sim.spic
package main // import "github.com/go-lpc/spidec/cmd/spi-sim"

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/capture"
	"github.com/go-lpc/spidec/internal/cli"
	"github.com/go-lpc/spidec/spi"
	"github.com/spf13/pflag"
)

func main() {
	var (
		fs      = pflag.NewFlagSet("spi-sim", pflag.ExitOnError)
		set     = cli.AddSettings(fs)
		oname   = fs.StringP("output", "o", "", "path to the output capture file")
		rate    = fs.Uint64("rate", 1000000, "sample rate in Hz (the bus clock runs at rate/10)")
		samples = fs.Uint64("samples", 100000, "minimum number of samples to generate")
		verbose = fs.BoolP("verbose", "v", false, "enable verbose mode")
	)

	fs.Usage = func() {
		fmt.Printf(`spi-sim generates synthetic SPI capture files.

Usage: spi-sim [OPTIONS] -o FILE

Options:
`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[1:])

	msg := cli.Logger("spi-sim", *verbose)
	if *oname == "" {
		fs.Usage()
		msg.Fatalf("missing path to output capture file")
	}

	cfg, err := set.Settings()
	if err != nil {
		msg.Fatalf("invalid settings: %+v", err)
	}

	err = run(msg, cfg, *oname, *rate, *samples)
	if err != nil {
		msg.Fatalf("could not generate capture: %+v", err)
	}
}

func run(msg *log.Logger, cfg spi.Settings, oname string, rate, samples uint64) error {
	sim, err := capture.NewSimulator(cfg, rate)
	if err != nil {
		return fmt.Errorf("could not create simulator: %w", err)
	}

	c := sim.Generate(samples)
	err = capture.Save(oname, c)
	if err != nil {
		return fmt.Errorf("could not save capture: %w", err)
	}

	var edges int
	for _, tr := range c.Traces {
		edges += len(tr.Edges)
	}
	msg.Info("capture generated", "file", oname, "samples", c.Samples, "traces", len(c.Traces), "edges", edges)
	return nil
}
