// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command spi-srv starts a TDAQ server decoding SPI captures.
//
// Usage: spi-srv [TDAQ-OPTIONS] [SETTINGS.yaml] CAPTURE
//
// The decoded frames are sent on the /frames output.
package main // import "github.com/go-lpc/spidec/cmd/spi-srv"

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/spidec/capture"
	"github.com/go-lpc/spidec/enrich"
	"github.com/go-lpc/spidec/spi"
)

func main() {
	cmd := flags.New()

	dev := server{
		args: cmd.Args,
		msg:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "spi-srv"}),
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/frames", dev.frames)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

type server struct {
	args []string
	msg  *log.Logger

	cfg  spi.Settings
	capt *capture.Capture
	res  *spi.Store // results of the last decoding

	n    atomic.Int64 // number of frames sent
	data chan []byte
}

func (dev *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	err := dev.configure(dev.args)
	if err != nil {
		ctx.Msg.Errorf("could not configure: %+v", err)
		return fmt.Errorf("could not configure: %w", err)
	}
	ctx.Msg.Infof("capture: %d samples at %d Hz", dev.capt.Samples, dev.capt.SampleRate)
	return nil
}

func (dev *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	dev.reset()
	return nil
}

func (dev *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.reset()
	return nil
}

func (dev *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if dev.capt == nil {
		return fmt.Errorf("no capture configured")
	}
	return nil
}

func (dev *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := dev.n.Load()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	return nil
}

func (dev *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

func (dev *server) frames(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *server) run(ctx tdaq.Context) error {
	err := dev.decode(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not decode capture: %+v", err)
		return err
	}
	ctx.Msg.Infof("capture decoded: %d frames", dev.n.Load())
	<-ctx.Ctx.Done()
	return nil
}

// configure loads the capture and the optional settings file named by args.
func (dev *server) configure(args []string) error {
	var sname, cname string
	switch len(args) {
	case 1:
		cname = args[0]
	case 2:
		sname, cname = args[0], args[1]
	default:
		return fmt.Errorf("invalid arguments (want=[SETTINGS] CAPTURE, got=%q)", args)
	}

	cfg := spi.DefaultSettings()
	if sname != "" {
		f, err := os.Open(sname)
		if err != nil {
			return fmt.Errorf("could not open settings file: %w", err)
		}
		defer f.Close()

		cfg, err = spi.ReadSettings(f)
		if err != nil {
			return fmt.Errorf("could not read settings file %q: %w", sname, err)
		}
	}

	c, err := capture.Load(cname)
	if err != nil {
		return fmt.Errorf("could not load capture: %w", err)
	}

	dev.cfg = cfg
	dev.capt = c
	return nil
}

func (dev *server) reset() {
	dev.n.Store(0)
	dev.data = make(chan []byte, 1024)
}

// decode decodes the capture, sending each committed frame on the
// data channel. Frames are annotated by the enrichment process of the
// settings, if any.
func (dev *server) decode(ctx context.Context) (err error) {
	sink := &sink{
		Store: spi.NewStore(),
		ctx:   ctx,
		data:  dev.data,
	}
	dev.res = sink.Store

	opts := []spi.Option{spi.WithLogger(dev.msg)}
	if dev.cfg.Command != "" {
		sess, err := enrich.Start(ctx, dev.cfg.Command, enrich.WithLogger(dev.msg.WithPrefix("enrich")))
		if err != nil {
			return fmt.Errorf("could not start enrichment process: %w", err)
		}
		defer func() {
			e := sess.Close()
			if e != nil && err == nil {
				err = fmt.Errorf("could not close enrichment session: %w", e)
			}
		}()
		opts = append(opts, spi.WithAnnotator(sess))
	}

	dec, err := spi.NewDecoder(dev.cfg, dev.capt, sink, opts...)
	if err != nil {
		return fmt.Errorf("could not create decoder: %w", err)
	}

	err = dec.Decode(ctx)
	dev.n.Store(int64(sink.sent))
	if err != nil {
		return err
	}
	return sink.err
}

// sink forwards committed frames to a channel.
type sink struct {
	*spi.Store
	ctx  context.Context
	data chan<- []byte
	sent uint64
	err  error
}

func (s *sink) CommitResults() {
	s.Store.CommitResults()
	for n := s.NumFrames(); s.sent < n && s.err == nil; s.sent++ {
		f, err := s.Frame(s.sent)
		if err != nil {
			s.err = err
			return
		}
		raw, err := encodeFrame(f)
		if err != nil {
			s.err = err
			return
		}
		select {
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return
		case s.data <- raw:
		}
	}
}

func encodeFrame(f spi.Frame) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU64(f.Start)
	enc.WriteU64(f.End)
	enc.WriteU64(f.Data1)
	enc.WriteU64(f.Data2)
	enc.WriteU8(f.Type)
	enc.WriteU8(f.Flags)
	err := enc.Err()
	if err != nil {
		return nil, fmt.Errorf("could not encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeFrame(raw []byte) (spi.Frame, error) {
	var (
		f   spi.Frame
		dec = tdaq.NewDecoder(bytes.NewReader(raw))
	)
	f.Start = dec.ReadU64()
	f.End = dec.ReadU64()
	f.Data1 = dec.ReadU64()
	f.Data2 = dec.ReadU64()
	f.Type = dec.ReadU8()
	f.Flags = dec.ReadU8()
	err := dec.Err()
	if err != nil {
		return f, fmt.Errorf("could not decode frame: %w", err)
	}
	return f, nil
}
