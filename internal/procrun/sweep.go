// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package procrun

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/evildarkarchon/autoqac/internal/ctxlog"
)

// startTimeToleranceMS allows for rounding differences between the clock
// recorded at spawn and the OS process table's start time.
const startTimeToleranceMS = 2000

// SweepResult summarizes one orphan sweep.
type SweepResult struct {
	Killed []int32 // PIDs of orphaned processes that were terminated.
	Stale  []int32 // Marker PIDs that no longer referred to a live xEdit.
}

// SweepOrphans scans the marker directory for processes recorded by a
// previous run that never shut down cleanly. A marker whose PID is alive
// and whose start time matches is an orphaned xEdit and is killed; a marker
// whose PID is gone or was reused by some other process is just removed.
// Sweep failures are reported but callers treat them as best-effort: a
// failed sweep never blocks a new session.
func (e *Engine) SweepOrphans(ctx context.Context) (SweepResult, error) {
	logger := ctxlog.Logger(ctx)

	var sr SweepResult

	markers, err := readMarkers(e.fs, e.markerDir)
	if err != nil {
		return sr, err
	}

	var errs *multierror.Error

	for _, m := range markers {
		proc, err := process.NewProcessWithContext(ctx, m.PID)
		if err != nil {
			// Process is gone; the marker is leftover bookkeeping.
			sr.Stale = append(sr.Stale, m.PID)
			e.clearMarker(ctx, m.PID)

			continue
		}

		ct, err := proc.CreateTimeWithContext(ctx)
		if err != nil || absDiff(ct, m.StartTimeMS) > startTimeToleranceMS {
			// The PID was reused by an unrelated process. Never kill it.
			sr.Stale = append(sr.Stale, m.PID)
			e.clearMarker(ctx, m.PID)

			continue
		}

		logger.Warn("terminating orphaned process from a previous run", "pid", m.PID)

		if children, err := proc.ChildrenWithContext(ctx); err == nil {
			for _, child := range children {
				if err := child.KillWithContext(ctx); err != nil {
					errs = multierror.Append(errs, err)
				}
			}
		}

		if err := proc.KillWithContext(ctx); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		sr.Killed = append(sr.Killed, m.PID)
		e.clearMarker(ctx, m.PID)
	}

	return sr, errs.ErrorOrNil()
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}

	return b - a
}
