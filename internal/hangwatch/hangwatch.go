// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package hangwatch detects likely-hung xEdit processes by sampling their
// CPU time. A hang signal is advisory only: the watcher never terminates
// anything itself, because a CPU-idle process may legitimately be waiting
// on disk I/O. The caller decides what to do with the signal.
package hangwatch

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// DefaultInterval is how often the process's CPU time is sampled.
	DefaultInterval = 5 * time.Second
	// DefaultWindow is how long CPU usage must stay near zero before the
	// process is reported as likely hung.
	DefaultWindow = 60 * time.Second
	// DefaultThreshold is the CPU usage fraction below which a sample
	// counts as near-zero.
	DefaultThreshold = 0.005
)

// Sampler reads the cumulative CPU seconds consumed by pid. It reports
// running=false once the process has exited, which ends the watch.
type Sampler func(ctx context.Context, pid int32) (cpuSeconds float64, running bool, err error)

// Monitor watches processes for sustained near-zero CPU usage.
type Monitor struct {
	interval  time.Duration
	window    time.Duration
	threshold float64
	sample    Sampler
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the sampling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithWindow sets how long usage must stay below the threshold before a
// hang is signalled.
func WithWindow(d time.Duration) Option {
	return func(m *Monitor) {
		m.window = d
	}
}

// WithThreshold sets the near-zero CPU usage fraction.
func WithThreshold(f float64) Option {
	return func(m *Monitor) {
		m.threshold = f
	}
}

// WithSampler replaces the CPU-time sampler. Used by tests.
func WithSampler(s Sampler) Option {
	return func(m *Monitor) {
		m.sample = s
	}
}

// New creates a Monitor with the default sampling parameters.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		interval:  DefaultInterval,
		window:    DefaultWindow,
		threshold: DefaultThreshold,
		sample:    processSampler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Watch samples pid's CPU time until the process exits or ctx is cancelled.
// One boolean is emitted per sampling interval: true once usage has stayed
// below the threshold for the full window, false otherwise. The channel is
// closed when the watch ends. A process that exits before the first sample
// produces no emissions at all.
func (m *Monitor) Watch(ctx context.Context, pid int32) <-chan bool {
	ch := make(chan bool, 1)

	go m.watch(ctx, pid, ch)

	return ch
}

func (m *Monitor) watch(ctx context.Context, pid int32, ch chan<- bool) {
	defer close(ch)

	prev, running, err := m.sample(ctx, pid)
	if err != nil || !running {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var lowFor time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, running, err := m.sample(ctx, pid)
		if err != nil || !running {
			return
		}

		busy := (cur - prev) / m.interval.Seconds()
		prev = cur

		if busy < m.threshold {
			lowFor += m.interval
		} else {
			lowFor = 0
		}

		select {
		case ch <- lowFor >= m.window:
		case <-ctx.Done():
			return
		}
	}
}

// processSampler reads CPU times via the OS process table.
func processSampler(ctx context.Context, pid int32) (float64, bool, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		// PID no longer exists.
		return 0, false, nil
	}

	running, err := proc.IsRunningWithContext(ctx)
	if err != nil {
		return 0, false, err
	}

	if !running {
		return 0, false, nil
	}

	times, err := proc.TimesWithContext(ctx)
	if err != nil {
		return 0, false, err
	}

	return times.User + times.System, true, nil
}
