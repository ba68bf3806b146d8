// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package state holds the externally observable state of a cleaning run.
// A single Store owns the snapshot; the orchestrator writes through Update
// and observers read consistent copies through Snapshot or Subscribe.
package state

import (
	"time"

	"github.com/evildarkarchon/autoqac/internal/cleanlog"
	"github.com/evildarkarchon/autoqac/internal/gamemode"
)

// Phase identifies where the orchestrator is in its session lifecycle.
type Phase int

const (
	// PhaseIdle means no session is in progress.
	PhaseIdle Phase = iota
	// PhaseValidating means session preconditions are being checked.
	PhaseValidating
	// PhaseDetectingGame means the target game is being identified.
	PhaseDetectingGame
	// PhaseRunning means plugins are being cleaned.
	PhaseRunning
	// PhaseCancelling means a stop was requested and the session is winding down.
	PhaseCancelling
	// PhaseFinishing means the session result is being assembled.
	PhaseFinishing
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseDetectingGame:
		return "detecting-game"
	case PhaseRunning:
		return "running"
	case PhaseCancelling:
		return "cancelling"
	case PhaseFinishing:
		return "finishing"
	}

	return "unknown"
}

// ItemStatus is the terminal status of one plugin within a session.
type ItemStatus int

const (
	// StatusCleaned means the plugin was processed and the tool exited normally.
	StatusCleaned ItemStatus = iota
	// StatusSkipped means the plugin was excluded before the tool ran.
	StatusSkipped
	// StatusFailed means the tool errored, timed out, or hung.
	StatusFailed
	// StatusCancelled means the session stopped before this plugin was processed.
	StatusCancelled
)

// String implements fmt.Stringer.
func (s ItemStatus) String() string {
	switch s {
	case StatusCleaned:
		return "cleaned"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}

	return "unknown"
}

// ItemResult records the outcome of one plugin in a session.
type ItemResult struct {
	Name       string
	Status     ItemStatus
	Stats      cleanlog.Stats
	Duration   time.Duration
	BackupPath string
	Message    string
}

// SessionResult is the frozen record of one completed session.
type SessionResult struct {
	ID        string
	Game      gamemode.Game
	Started   time.Time
	Ended     time.Time
	Cancelled bool
	Items     []ItemResult
	Warnings  []string
	Err       error
}

// Counts returns the number of cleaned, skipped and failed items.
func (r SessionResult) Counts() (cleaned, skipped, failed int) {
	for _, item := range r.Items {
		switch item.Status {
		case StatusCleaned:
			cleaned++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		case StatusCancelled:
		}
	}

	return cleaned, skipped, failed
}

// Snapshot is one fully-formed view of the run state. Values are copied out
// of the Store, so holders never observe later mutations.
type Snapshot struct {
	Phase              Phase
	Game               gamemode.Game
	SessionID          string
	TotalItems         int
	DoneItems          int
	CurrentItem        string
	StopRequested      bool
	ForceStopRequested bool
	BackupDir          string
	LastSession        *SessionResult
}
