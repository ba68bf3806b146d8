// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package procrun

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// Marker is the on-disk record of a spawned xEdit process. It is written
// before the engine waits on the process and removed after a clean exit, so
// a marker that survives a run identifies a potential orphan. The start time
// distinguishes the recorded process from an unrelated one that reused the
// same PID.
type Marker struct {
	PID         int32 `yaml:"pid"`
	StartTimeMS int64 `yaml:"start_time_ms"`
}

const markerPrefix = "xedit-"

func markerPath(dir string, pid int32) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d.yaml", markerPrefix, pid))
}

func writeMarker(fs afero.Fs, dir string, m Marker) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal marker: %w", err)
	}

	if err := afero.WriteFile(fs, markerPath(dir, m.PID), data, 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	return nil
}

func removeMarker(fs afero.Fs, dir string, pid int32) error {
	return fs.Remove(markerPath(dir, pid))
}

// readMarkers returns all parseable markers in dir. Malformed files are
// skipped rather than failing the sweep.
func readMarkers(fs afero.Fs, dir string) ([]Marker, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read marker dir: %w", err)
	}

	var markers []Marker

	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, markerPrefix) || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		data, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err != nil {
			continue
		}

		var m Marker
		if err := yaml.Unmarshal(data, &m); err != nil || m.PID == 0 {
			continue
		}

		markers = append(markers, m)
	}

	return markers, nil
}
