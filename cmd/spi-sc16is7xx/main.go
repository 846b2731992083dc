// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// spi-sc16is7xx is an enrichment process annotating the SPI traffic of
// NXP SC16IS7xx UART bridges.
//
// Usage:
//
//	$> spi-decode --command=spi-sc16is7xx ./uart.spic
//
// The first word of each transaction is the register address word:
// bit 7 selects a read, bits 6-3 the register and bits 2-1 the UART
// channel. The following words carry the register data.
package main // import "github.com/go-lpc/spidec/cmd/spi-sc16is7xx"

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/enrich/script"
	"github.com/go-lpc/spidec/spi"
	"github.com/spf13/pflag"
)

func main() {
	var (
		fs      = pflag.NewFlagSet("spi-sc16is7xx", pflag.ExitOnError)
		verbose = fs.BoolP("verbose", "v", false, "enable verbose mode")
	)
	_ = fs.Parse(os.Args[1:])

	// the standard output carries the responses.
	msg := log.NewWithOptions(os.Stderr, log.Options{Prefix: "spi-sc16is7xx"})
	if *verbose {
		msg.SetLevel(log.DebugLevel)
	}

	err := script.Serve(context.Background(), os.Stdin, os.Stdout, newAnalyzer(msg), script.WithLogger(msg))
	if err != nil {
		msg.Fatalf("could not serve requests: %+v", err)
	}
}

var channelNames = map[uint64]string{
	0b00: "A",
	0b01: "B",
}

// registerNames holds the read and write names of each register.
//
//	(6):  accessible only when EFR[4]=1 and MCR[2]=1
//	(9):  accessible only when LCR[7]=1 and LCR is not 0xBF
//	(10): accessible only when LCR is 0xBF
var registerNames = [16][2]string{
	0x00: {"RHR / DLL(9)", "THR / DLL(9)"},
	0x01: {"IER", "IER"},
	0x02: {"IIR / EFR(10)", "FCR / EFR(10)"},
	0x03: {"LCR", "LCR"},
	0x04: {"MCR / XON1(10)", "MCR / XON1(10)"},
	0x05: {"LSR / XON2(10)", "LSR / XON2(10)"},
	0x06: {"MSR / TCR(6) / XOFF1(10)", "MSR / TCR(6) / XOFF1(10)"},
	0x07: {"SPR / TLR(6) / XOFF2(10)", "SPR / TLR(6) / XOFF2(10)"},
	0x08: {"TXLVL", "TXLVL"},
	0x09: {"RXLVL", "RXLVL"},
	0x0A: {"IODir", "IODir"},
	0x0B: {"IOState", "IOState"},
	0x0C: {"IOIntEna", "IOIntEna"},
	0x0D: {"<Reserved>", "<Reserved>"},
	0x0E: {"IOControl", "IOControl"},
	0x0F: {"EFCR", "EFCR"},
}

func registerName(id uint64, read bool) string {
	names := registerNames[id&0xf]
	if read {
		return names[0]
	}
	return names[1]
}

// address is a decoded register address word.
type address struct {
	read     bool
	register uint64
	channel  uint64
}

func parseAddress(v uint64) address {
	return address{
		read:     v&0x80 != 0,
		register: (v >> 3) & 0xf,
		channel:  (v >> 1) & 0x3,
	}
}

type analyzer struct {
	msg *log.Logger

	mu    sync.Mutex
	write bool // direction of the current transaction
}

func newAnalyzer(msg *log.Logger) *analyzer {
	return &analyzer{msg: msg}
}

func isRequest(f spi.Frame) bool { return f.Type == 0 }

// observe records the direction of the transaction started by f.
func (a *analyzer) observe(f spi.Frame) {
	if !isRequest(f) {
		return
	}
	a.write = !parseAddress(f.Data1).read
}

func (a *analyzer) HandleBubble(ctx context.Context, req enrich.Request) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		f = req.Frame
		v = f.Word(req.Line)
	)

	if req.Line == spi.MISO {
		if !isRequest(f) && !a.write {
			return []string{hex(v)}, nil
		}
		return nil, nil
	}

	if !isRequest(f) {
		if a.write {
			return []string{hex(v)}, nil
		}
		return nil, nil
	}

	a.observe(f)
	addr := parseAddress(v)
	ch, ok := channelNames[addr.channel]
	if !ok {
		a.msg.Error("unexpected data in first frame of request", "frame", req.Index, "value", hex(v))
		return nil, nil
	}

	var (
		reg = registerName(addr.register, addr.read)
		rw  = "Write"
	)
	if addr.read {
		rw = "Read"
	}
	return []string{
		fmt.Sprintf("%s %s of channel %s", rw, reg, ch),
		fmt.Sprintf("%s %s [%s]", rw[:1], reg, ch),
		fmt.Sprintf("%s %s %s", rw[:1], hex(addr.register), ch),
		hex(v),
	}, nil
}

func (a *analyzer) HandleTabular(ctx context.Context, req enrich.Request) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f := req.Frame
	if isRequest(f) {
		a.observe(f)
		addr := parseAddress(f.Data1)
		ch, ok := channelNames[addr.channel]
		if !ok {
			return nil, nil
		}
		rw := "Write"
		if addr.read {
			rw = "Read"
		}
		return []string{fmt.Sprintf("%s %s of channel %s", rw, registerName(addr.register, addr.read), ch)}, nil
	}

	if a.write {
		return []string{"Data written: " + hex(f.Data1)}, nil
	}
	return []string{"Data read: " + hex(f.Data2)}, nil
}

// HandleMarker marks the read/write bit of register address words.
func (a *analyzer) HandleMarker(ctx context.Context, req enrich.Request) ([]spi.BitMarker, error) {
	f := req.Frame
	if !isRequest(f) || req.Bits != 8 {
		return nil, nil
	}
	typ := spi.Zero
	if parseAddress(f.Data1).read {
		typ = spi.One
	}
	return []spi.BitMarker{{Bit: 0, Line: spi.MOSI, Type: typ}}, nil
}

func hex(v uint64) string { return fmt.Sprintf("0x%x", v) }

var (
	_ script.BubbleHandler  = (*analyzer)(nil)
	_ script.TabularHandler = (*analyzer)(nil)
	_ script.MarkerHandler  = (*analyzer)(nil)
)
