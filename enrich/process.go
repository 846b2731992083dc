// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/shlex"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

// Start spawns the enrichment process described by the command line,
// connects to its standard input and output and negotiates a session.
// The command line is split into words following shell quoting rules.
func Start(ctx context.Context, command string, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	proc, err := spawnCommand(cfg, command)
	if err != nil {
		return nil, err
	}

	sess := newSession(NewConn(proc.r, proc.w, opts...), cfg.msg)
	sess.proc = proc

	err = sess.negotiate(ctx)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	cfg.msg.Info("enrichment session started",
		"pid", proc.cmd.Process.Pid,
		"marker", sess.marker, "bubble", sess.bubble, "tabular", sess.tabular,
	)
	return sess, nil
}

// Process is an enrichment process reached through a raw connection.
type Process struct {
	conn *Conn
	proc *process
}

// Spawn starts the enrichment process described by the command line,
// without negotiating a session.
func Spawn(command string, opts ...Option) (*Process, error) {
	cfg := newConfig(opts)
	proc, err := spawnCommand(cfg, command)
	if err != nil {
		return nil, err
	}
	return &Process{
		conn: NewConn(proc.r, proc.w, opts...),
		proc: proc,
	}, nil
}

// Conn returns the connection to the process.
func (p *Process) Conn() *Conn { return p.conn }

// Pid returns the process identifier.
func (p *Process) Pid() int { return p.proc.cmd.Process.Pid }

// Close terminates the process and waits for it.
func (p *Process) Close() error {
	_ = p.conn.Close()
	return p.proc.wait()
}

func spawnCommand(cfg config, command string) (*process, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("enrich: could not parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("enrich: empty command")
	}
	return spawn(cfg, args)
}

type process struct {
	cmd *exec.Cmd
	msg *log.Logger
	r   *os.File // standard output of the process
	w   *os.File // standard input of the process

	grp     errgroup.Group
	mon     func() error // stops the monitoring
	once    sync.Once
	stopped bool
}

func spawn(cfg config, args []string) (*process, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = cfg.stderr
	setProcAttr(cmd)

	stdin, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("enrich: could not create input pipe: %w", err)
	}
	r, stdout, err := os.Pipe()
	if err != nil {
		stdin.Close()
		w.Close()
		return nil, fmt.Errorf("enrich: could not create output pipe: %w", err)
	}
	cmd.Stdin = stdin
	cmd.Stdout = stdout

	proc := &process{
		cmd: cmd,
		msg: cfg.msg,
		r:   r,
		w:   w,
		mon: func() error { return nil },
	}

	cfg.msg.Info("starting enrichment process", "cmd", args)
	started := make(chan error, 1)
	proc.grp.Go(func() error {
		// the parent-death signal fires when the starting thread exits.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		err := cmd.Start()
		started <- err
		if err != nil {
			return nil
		}
		return cmd.Wait()
	})
	err = <-started
	// the child owns its ends of the pipes.
	stdin.Close()
	stdout.Close()
	if err != nil {
		_ = proc.grp.Wait()
		r.Close()
		w.Close()
		return nil, fmt.Errorf("enrich: could not start %q: %w", args[0], err)
	}

	if cfg.mon.w != nil {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			proc.msg.Warn("could not monitor enrichment process", "pid", cmd.Process.Pid, "err", err)
			return proc, nil
		}
		p.W = cfg.mon.w
		if cfg.mon.freq > 0 {
			p.Freq = cfg.mon.freq
		}
		go func() {
			err := p.Run()
			if err != nil {
				proc.msg.Warn("could not run monitoring", "pid", cmd.Process.Pid, "err", err)
			}
		}()
		proc.mon = p.Kill
	}

	return proc, nil
}

// stop closes the input of the process and asks it to terminate.
func (proc *process) stop() error {
	var err error
	proc.once.Do(func() {
		proc.stopped = true
		_ = proc.w.Close()
		err = interrupt(proc.cmd.Process)
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("enrich: could not signal enrichment process: %w", err)
		}
	})
	return err
}

// wait waits for the termination of the process.
func (proc *process) wait() error {
	err := proc.stop()
	werr := proc.grp.Wait()
	_ = proc.r.Close()

	if merr := proc.mon(); merr != nil {
		proc.msg.Warn("could not stop monitoring", "err", merr)
	}

	var eerr *exec.ExitError
	if errors.As(werr, &eerr) && proc.stopped {
		// terminated on request.
		werr = nil
	}
	if err != nil {
		return err
	}
	if werr != nil {
		return fmt.Errorf("enrich: enrichment process failed: %w", werr)
	}
	return nil
}
