// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package enrich

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

func interrupt(p *os.Process) error {
	err := p.Signal(os.Interrupt)
	if err != nil && err != os.ErrProcessDone {
		// os.Interrupt is not available on all platforms.
		return p.Kill()
	}
	return err
}
