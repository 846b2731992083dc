// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package enrich

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

func TestSetProcAttr(t *testing.T) {
	cmd := exec.Command("true")
	setProcAttr(cmd)
	if cmd.SysProcAttr == nil {
		t.Fatalf("missing process attributes")
	}
	if got, want := cmd.SysProcAttr.Pdeathsig, unix.SIGINT; got != want {
		t.Fatalf("invalid parent-death signal: got=%v, want=%v", got, want)
	}
}

func TestInterruptReaped(t *testing.T) {
	// the test binary exits right away in that mode.
	t.Setenv("SPIDEC_ENRICH_HELPER", "exit")

	cfg := newConfig([]Option{WithLogger(log.New(io.Discard)), WithStderr(io.Discard)})
	proc, err := spawn(cfg, []string{os.Args[0]})
	if err != nil {
		t.Fatalf("could not spawn process: %+v", err)
	}

	err = proc.grp.Wait()
	if err != nil {
		t.Fatalf("process failed: %+v", err)
	}

	err = interrupt(proc.cmd.Process)
	if !errors.Is(err, os.ErrProcessDone) {
		t.Fatalf("invalid error: got=%v, want=%v", err, os.ErrProcessDone)
	}

	err = proc.wait()
	if err != nil {
		t.Fatalf("could not release process: %+v", err)
	}
}
