// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cleanlog turns the text output of an xEdit Quick Auto Clean run
// into structured statistics. The parser is a stateless transform over an
// ordered sequence of lines: recognized lines increment a counter, anything
// else is ignored. Partial output from a timed-out or killed run parses the
// same way as complete output.
package cleanlog

import "strings"

// Stats holds the per-category counts extracted from one cleaning run.
type Stats struct {
	ITMs         int // identical-to-master records removed
	UDRs         int // deleted references undeleted and disabled
	Navmeshes    int // deleted navmeshes found
	PartialForms int // records converted to partial forms
}

// Total returns the sum of all counters.
func (s Stats) Total() int {
	return s.ITMs + s.UDRs + s.Navmeshes + s.PartialForms
}

// Dirty reports whether the run changed anything at all.
func (s Stats) Dirty() bool {
	return s.Total() > 0
}

const (
	itmMarker         = "removing:"
	udrMarker         = "undeleting:"
	navmeshMarker     = "deleted navmesh"
	partialFormMarker = "making partial form"
	terminalMarker    = "quick clean mode finished"
)

// Parse scans lines in order and returns the accumulated statistics.
// Empty input yields zero counts. Unrecognized, malformed or very long
// lines are ignored, never an error.
func Parse(lines []string) Stats {
	var s Stats

	for _, line := range lines {
		l := strings.ToLower(strings.TrimSpace(line))
		if l == "" {
			continue
		}

		switch {
		case strings.Contains(l, udrMarker):
			s.UDRs++
		case strings.Contains(l, itmMarker):
			s.ITMs++
		case strings.Contains(l, navmeshMarker):
			s.Navmeshes++
		case strings.Contains(l, partialFormMarker):
			s.PartialForms++
		}
	}

	return s
}

// IsTerminalLine reports whether line is the marker xEdit prints when a
// quick-clean run has finished. Its absence means the captured output is
// partial (the process was killed or timed out before completion).
func IsTerminalLine(line string) bool {
	return strings.Contains(strings.ToLower(line), terminalMarker)
}
