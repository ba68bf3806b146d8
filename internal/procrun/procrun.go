// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package procrun is the process execution engine. It owns the slot pool
// that keeps xEdit single-instance, spawns the tool, streams its output,
// enforces the per-plugin timeout with an escalating termination policy,
// and sweeps orphaned processes left behind by a crashed run.
package procrun

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/afero"

	"github.com/evildarkarchon/autoqac/internal/ctxlog"
)

const (
	// maxLineSize bounds a single xEdit output line.
	maxLineSize = 1024 * 1024
	// killPollInterval is how often an in-flight execution checks for a
	// force-stop request and how often termination re-checks liveness.
	killPollInterval = 100 * time.Millisecond
)

var (
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrTimeoutExceeded is returned when the process exceeds its wall-clock budget.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrCancelled is returned when execution was stopped by a cancellation request.
	ErrCancelled = errors.New("execution cancelled")
	// ErrForceStopped is returned when a force-stop request killed the process.
	ErrForceStopped = errors.New("execution force-stopped")
)

// Spec describes one xEdit invocation.
type Spec struct {
	Label       string             // Display name for logs, usually the plugin name.
	Path        string             // Full path to the xEdit executable.
	Args        []string           // Arguments, excluding the executable name.
	Cwd         string             // Working directory for the process.
	Timeout     time.Duration      // Wall-clock budget; zero means no timeout.
	GracePeriod time.Duration      // How long to wait after a graceful terminate.
	SettleDelay time.Duration      // Pause after termination so file handles release.
	KillNow     *atomic.Bool       // Force-stop flag polled while the process runs.
	OnStarted   func(pid int32)    // Called once the process has a PID.
	OnLine      func(line string, stderr bool)
}

// Result is the outcome of one execution.
type Result struct {
	Label     string
	ExitCode  int
	TimedOut  bool
	Cancelled bool
	Started   time.Time
	Ended     time.Time
	Err       error
}

// Engine executes xEdit processes one slot at a time.
type Engine struct {
	pool      *Pool
	fs        afero.Fs
	markerDir string
}

// NewEngine creates an Engine. Markers for orphan detection are written
// under markerDir on the given filesystem.
func NewEngine(pool *Pool, fs afero.Fs, markerDir string) *Engine {
	return &Engine{pool: pool, fs: fs, markerDir: markerDir}
}

// Execute runs one process to completion. It acquires an execution slot,
// spawns the tool, streams stdout and stderr line by line into spec.OnLine,
// and applies the termination policy on timeout, context cancellation, or a
// force-stop request. The slot is released on every exit path. A cancelled
// call never returns with the process still running.
func (e *Engine) Execute(ctx context.Context, spec Spec) Result {
	logger := ctxlog.Logger(ctx).With("label", spec.Label)
	res := Result{Label: spec.Label, ExitCode: -1}

	// A missing or unusable executable is reported without holding a slot.
	if _, err := e.fs.Stat(spec.Path); err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}

	release, err := e.pool.Acquire(ctx)
	if err != nil {
		res.Cancelled = true
		res.Err = errors.Join(ErrCancelled, err)

		return res
	}
	defer release()

	logger.Debug("starting process", "path", spec.Path, "cwd", spec.Cwd, "args", spec.Args)

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}

	if err := cmd.Start(); err != nil {
		res.Err = errors.Join(ErrCouldNotStartProcess, err)
		return res
	}

	res.Started = time.Now()
	pid := int32(cmd.Process.Pid)

	logger.Debug("process started", "pid", pid)
	e.recordMarker(ctx, pid, res.Started)

	if spec.OnStarted != nil {
		spec.OnStarted(pid)
	}

	var wg sync.WaitGroup

	wg.Add(2)

	go streamLines(&wg, stdout, false, spec.OnLine)
	go streamLines(&wg, stderr, true, spec.OnLine)

	// The pipes must hit EOF before Wait closes them.
	waitCh := make(chan error, 1)

	go func() {
		wg.Wait()
		waitCh <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time

	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()

		timeoutCh = timer.C
	}

	ticker := time.NewTicker(killPollInterval)
	defer ticker.Stop()

	for {
		select {
		case waitErr := <-waitCh:
			res.Ended = time.Now()
			e.clearMarker(ctx, pid)

			var exitErr *exec.ExitError

			switch {
			case waitErr == nil:
				res.ExitCode = 0
			case errors.As(waitErr, &exitErr):
				res.ExitCode = exitErr.ExitCode()
			default:
				res.Err = waitErr
			}

			logger.Debug("process finished", "pid", pid, "exitCode", res.ExitCode)

			return res

		case <-timeoutCh:
			logger.Warn("process exceeded timeout, terminating", "pid", pid, "timeout", spec.Timeout)

			res.TimedOut = true
			res.Err = ErrTimeoutExceeded

			return e.reap(ctx, pid, spec, res, waitCh, false)

		case <-ctx.Done():
			logger.Info("cancellation requested, terminating process", "pid", pid)

			res.Cancelled = true
			res.Err = errors.Join(ErrCancelled, ctx.Err())

			return e.reap(ctx, pid, spec, res, waitCh, false)

		case <-ticker.C:
			if spec.KillNow == nil || !spec.KillNow.Load() {
				continue
			}

			logger.Info("force stop requested, killing process", "pid", pid)

			res.Cancelled = true
			res.Err = ErrForceStopped

			return e.reap(ctx, pid, spec, res, waitCh, true)
		}
	}
}

// reap runs the termination policy, waits for the process to be fully gone,
// then pauses for the settle delay so xEdit's file handles are released
// before the next plugin starts.
func (e *Engine) reap(ctx context.Context, pid int32, spec Spec, res Result, waitCh <-chan error, force bool) Result {
	// Termination must proceed even when ctx is already cancelled.
	termCtx := context.WithoutCancel(ctx)

	e.terminate(termCtx, pid, spec, force)

	<-waitCh

	res.Ended = time.Now()
	e.clearMarker(termCtx, pid)

	if spec.SettleDelay > 0 {
		time.Sleep(spec.SettleDelay)
	}

	return res
}

// terminate asks the process to shut down, waits out the grace period, then
// kills the whole process tree. xEdit's wrapper-launch mode spawns a child
// that must die with it. With force set the graceful step is skipped.
func (e *Engine) terminate(ctx context.Context, pid int32, spec Spec, force bool) {
	logger := ctxlog.Logger(ctx)

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		// Already gone.
		return
	}

	if !force {
		if err := proc.TerminateWithContext(ctx); err != nil {
			logger.Debug("graceful terminate failed", "pid", pid, "error", err)
		}

		deadline := time.Now().Add(spec.GracePeriod)
		for time.Now().Before(deadline) {
			// A force-stop request during the grace wait escalates straight
			// to the kill.
			if spec.KillNow != nil && spec.KillNow.Load() {
				break
			}

			running, err := proc.IsRunningWithContext(ctx)
			if err != nil || !running {
				return
			}

			time.Sleep(killPollInterval)
		}

		logger.Warn("process survived grace period, killing process tree", "pid", pid)
	}

	children, err := proc.ChildrenWithContext(ctx)
	if err == nil {
		for _, child := range children {
			if err := child.KillWithContext(ctx); err != nil {
				logger.Debug("kill child failed", "pid", child.Pid, "error", err)
			}
		}
	}

	if err := proc.KillWithContext(ctx); err != nil {
		logger.Debug("kill failed", "pid", pid, "error", err)
	}
}

func (e *Engine) recordMarker(ctx context.Context, pid int32, started time.Time) {
	startMS := started.UnixMilli()

	// Prefer the OS process table's notion of start time so the sweep
	// compares like with like.
	if proc, err := process.NewProcessWithContext(ctx, pid); err == nil {
		if ct, err := proc.CreateTimeWithContext(ctx); err == nil {
			startMS = ct
		}
	}

	if err := writeMarker(e.fs, e.markerDir, Marker{PID: pid, StartTimeMS: startMS}); err != nil {
		ctxlog.Logger(ctx).Warn("could not write process marker", "pid", pid, "error", err)
	}
}

func (e *Engine) clearMarker(ctx context.Context, pid int32) {
	if err := removeMarker(e.fs, e.markerDir, pid); err != nil {
		ctxlog.Logger(ctx).Debug("could not remove process marker", "pid", pid, "error", err)
	}
}

func streamLines(wg *sync.WaitGroup, r io.Reader, stderr bool, onLine func(string, bool)) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text(), stderr)
		}
	}
}
