// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"

	"github.com/evildarkarchon/autoqac/internal/cleanlog"
)

// Event represents a real-time update from a cleaning session.
type Event struct {
	Type      EventType // Event type indicating what happened
	Plugin    string    // Plugin the event relates to, empty for session events
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventSessionStarted indicates a cleaning session has begun.
	EventSessionStarted EventType = iota
	// EventItemStarted indicates a plugin is being cleaned.
	EventItemStarted
	// EventOutput indicates new xEdit output is available.
	EventOutput
	// EventItemCompleted indicates a plugin finished cleaning.
	EventItemCompleted
	// EventItemFailed indicates cleaning a plugin failed.
	EventItemFailed
	// EventItemSkipped indicates a plugin was excluded before cleaning.
	EventItemSkipped
	// EventHangSuspected indicates the running process looks hung.
	EventHangSuspected
	// EventSessionCompleted indicates the session is over.
	EventSessionCompleted
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventSessionStarted:
		return "session-started"
	case EventItemStarted:
		return "item-started"
	case EventOutput:
		return "output"
	case EventItemCompleted:
		return "item-completed"
	case EventItemFailed:
		return "item-failed"
	case EventItemSkipped:
		return "item-skipped"
	case EventHangSuspected:
		return "hang-suspected"
	case EventSessionCompleted:
		return "session-completed"
	default:
		return "unknown"
	}
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventOutput
	OutputLine string // The actual output line
	IsStderr   bool   // True if this is stderr output

	// For EventItemCompleted/EventItemFailed
	Stats    cleanlog.Stats // Counts parsed from xEdit's output
	Duration time.Duration  // How long the item took
	Error    error          // Error if the item failed

	// For EventSessionCompleted
	Cancelled bool // True when the session ended on a stop request
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations should be non-blocking
	// and handle the case where the receiver might not be listening.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events from a session.
type Listener interface {
	// OnEvent is called when a progress event is received.
	// Implementations should handle events quickly to avoid blocking
	// the reporting goroutine.
	OnEvent(event Event)
}

// NullReporter is a no-op implementation of Reporter. Used when progress
// reporting is not needed.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(_ Event) {
	// No-op
}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {
	// No-op
}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
