// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package enrich

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr interrupts the enrichment process when its parent dies.
// The signal is tied to the OS thread that started the process, which
// must stay alive until the process is reaped.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: unix.SIGINT,
	}
}

func interrupt(p *os.Process) error {
	return p.Signal(unix.SIGINT)
}
