// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// spi-decode decodes and displays SPI capture files.
//
// Usage: spi-decode [OPTIONS] CAPTURE
//
// Example:
//
//	$> spi-decode --base=hex ./testdata/sim.spic
//	#0 pkt=0 [22, 102] mosi=0x00 miso=0x01 | MOSI: 0x00;  MISO: 0x01
//	#1 pkt=0 [112, 192] mosi=0x01 miso=0x02 | MOSI: 0x01;  MISO: 0x02
//	[...]
//
// Frames may be annotated by an enrichment process:
//
//	$> spi-decode --command="spi-sc16is7xx" ./testdata/uart.spic
package main // import "github.com/go-lpc/spidec/cmd/spi-decode"

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/spidec/capture"
	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/framedb"
	"github.com/go-lpc/spidec/internal/cli"
	"github.com/go-lpc/spidec/spi"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		fs   = pflag.NewFlagSet("spi-decode", pflag.ExitOnError)
		set  = cli.AddSettings(fs)
		opts = options{base: spi.Hexadecimal}
	)
	fs.Var(&opts.base, "base", "display base (bin, dec, hex, ascii, ascii-hex)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "timeout of enrichment responses (0 waits forever)")
	fs.DurationVar(&opts.monitor, "monitor", 0, "period of the enrichment process monitoring (0 disables it)")
	fs.StringVar(&opts.dsn, "db", "", "MySQL data source name of the frames archive")
	fs.StringVar(&opts.run, "run", "", "run name in the frames archive (default: capture file name)")
	verbose := fs.BoolP("verbose", "v", false, "enable verbose mode")

	fs.Usage = func() {
		fmt.Printf(`spi-decode decodes and displays SPI capture files.

Usage: spi-decode [OPTIONS] CAPTURE

Example:

 $> spi-decode --base=hex ./testdata/sim.spic
 #0 pkt=0 [22, 102] mosi=0x00 miso=0x01 | MOSI: 0x00;  MISO: 0x01
 [...]

Options:
`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[1:])

	msg := cli.Logger("spi-decode", *verbose)
	if fs.NArg() != 1 {
		fs.Usage()
		msg.Fatalf("missing path to input capture file")
	}

	cfg, err := set.Settings()
	if err != nil {
		msg.Fatalf("invalid settings: %+v", err)
	}

	ctx := context.Background()
	err = process(ctx, os.Stdout, msg, cfg, opts, fs.Arg(0))
	if err != nil {
		msg.Fatalf("could not decode %q: %+v", fs.Arg(0), err)
	}
}

type options struct {
	base    spi.DisplayBase
	timeout time.Duration
	monitor time.Duration
	dsn     string
	run     string
}

func process(ctx context.Context, w io.Writer, msg *log.Logger, cfg spi.Settings, opts options, fname string) (err error) {
	c, err := capture.Load(fname)
	if err != nil {
		return fmt.Errorf("could not load capture: %w", err)
	}
	msg.Info("capture loaded", "file", fname, "rate", c.SampleRate, "samples", c.Samples)

	var (
		res   = newPublisher(spi.NewStore())
		sopts = []spi.Option{spi.WithLogger(msg.WithPrefix("spi"))}
		sess  *enrich.Session
	)

	if cfg.Command != "" {
		eopts := []enrich.Option{
			enrich.WithLogger(msg.WithPrefix("enrich")),
			enrich.WithTimeout(opts.timeout),
		}
		if opts.monitor > 0 {
			eopts = append(eopts, enrich.WithMonitor(os.Stderr, opts.monitor))
		}
		sess, err = enrich.Start(ctx, cfg.Command, eopts...)
		if err != nil {
			return fmt.Errorf("could not start enrichment process: %w", err)
		}
		defer func() {
			e := sess.Close()
			if e != nil && err == nil {
				err = fmt.Errorf("could not close enrichment session: %w", e)
			}
		}()
		sopts = append(sopts, spi.WithAnnotator(sess), spi.WithEnricher(sess))
	}

	dec, err := spi.NewDecoder(cfg, c, res, sopts...)
	if err != nil {
		return fmt.Errorf("could not create decoder: %w", err)
	}

	disp := &display{
		w:    bufio.NewWriter(w),
		cfg:  cfg,
		res:  res,
		base: opts.base,
		tf:   spi.NewFormatter(cfg, res.Store, sopts...),
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer close(res.wake)
		return dec.Decode(ctx)
	})
	grp.Go(func() error {
		return disp.run(ctx)
	})

	err = grp.Wait()
	if err != nil {
		return err
	}
	msg.Info("capture decoded", "frames", res.NumFrames(), "packets", res.NumPackets())

	if opts.dsn != "" {
		run := opts.run
		if run == "" {
			run = filepath.Base(fname)
		}
		err = archive(context.Background(), opts.dsn, run, res.Store)
		if err != nil {
			return fmt.Errorf("could not archive frames: %w", err)
		}
		msg.Info("frames archived", "run", run)
	}

	return nil
}

// publisher wakes up the display each time results are committed.
type publisher struct {
	*spi.Store
	wake chan struct{}
}

func newPublisher(st *spi.Store) *publisher {
	return &publisher{Store: st, wake: make(chan struct{}, 1)}
}

func (pub *publisher) CommitResults() {
	pub.Store.CommitResults()
	select {
	case pub.wake <- struct{}{}:
	default:
	}
}

// committed returns the number of frames held by committed packets.
func (pub *publisher) committed() uint64 {
	n := pub.NumPackets()
	if n == 0 {
		return 0
	}
	_, end, err := pub.Packet(spi.PacketID(n - 1))
	if err != nil {
		return 0
	}
	// a packet may be committed before its last frame is published.
	return min(end, pub.NumFrames())
}

type display struct {
	w    *bufio.Writer
	cfg  spi.Settings
	res  *publisher
	base spi.DisplayBase
	tf   *spi.Formatter

	next uint64 // next frame to display
}

// run displays the frames of committed packets while the capture is
// decoded, and all the remaining frames once decoding is done.
func (disp *display) run(ctx context.Context) error {
	defer disp.w.Flush()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-disp.res.wake:
			end := disp.res.NumFrames()
			if ok {
				end = disp.res.committed()
			}
			for ; disp.next < end; disp.next++ {
				err := disp.frame(ctx, disp.next)
				if err != nil {
					return err
				}
			}
			if !ok {
				return disp.w.Flush()
			}
		}
	}
}

func (disp *display) frame(ctx context.Context, idx uint64) error {
	f, err := disp.res.Frame(idx)
	if err != nil {
		return err
	}

	var o strings.Builder
	fmt.Fprintf(&o, "#%d pkt=%d [%d, %d]", idx, disp.res.PacketContainingFrame(idx), f.Start, f.End)
	for _, line := range []spi.Line{spi.MOSI, spi.MISO} {
		if disp.cfg.Line(line) == spi.Undefined {
			continue
		}
		txt, err := disp.tf.BubbleText(ctx, idx, line, disp.base)
		if err != nil {
			return err
		}
		fmt.Fprintf(&o, " %s=%s", line, txt[0])
	}

	txt, err := disp.tf.FrameTabularText(ctx, idx, disp.base)
	if err != nil {
		return err
	}
	fmt.Fprintf(&o, " | %s\n", strings.Join(txt, "; "))

	_, err = disp.w.WriteString(o.String())
	if err != nil {
		return fmt.Errorf("could not display frame %d: %w", idx, err)
	}
	return nil
}

func archive(ctx context.Context, dsn, run string, res *spi.Store) error {
	db, err := framedb.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.CreateTable(ctx)
	if err != nil {
		return err
	}

	recs, err := framedb.Collect(res, 0, res.NumFrames())
	if err != nil {
		return err
	}

	return db.Insert(ctx, run, recs)
}
