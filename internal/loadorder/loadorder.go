// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package loadorder reads an ordered plugin list (plugins.txt or
// loadorder.txt) into the items a cleaning session consumes. Items are
// read-only to the rest of the system once loaded.
package loadorder

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Plugin is one file a session may clean.
type Plugin struct {
	Name string // display name, e.g. "Example.esp"
	Path string // resolved absolute path; empty until resolved against a data dir
}

var (
	// ErrLoadOrderMissing is returned when the load order file cannot be read.
	ErrLoadOrderMissing = errors.New("cannot read load order file")
	// ErrEmptyLoadOrder is returned when the file contains no plugins.
	ErrEmptyLoadOrder = errors.New("load order contains no plugins")
)

// plugin extensions recognized in a load order.
var pluginExts = map[string]struct{}{
	".esm": {},
	".esp": {},
	".esl": {},
}

// Read parses the load order file at path. Lines are kept in file order.
// Comment lines (#) and blanks are dropped; a leading '*' (plugins.txt
// enabled marker) is stripped. When dataDir is non-empty each plugin's Path
// is resolved against it.
func Read(fs afero.Fs, path, dataDir string) ([]Plugin, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadOrderMissing, err)
	}
	defer f.Close() //nolint:errcheck

	var plugins []Plugin

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)

		if _, ok := pluginExts[strings.ToLower(filepath.Ext(line))]; !ok {
			continue
		}

		p := Plugin{Name: line}
		if dataDir != "" {
			p.Path = filepath.Join(dataDir, line)
		}

		plugins = append(plugins, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadOrderMissing, err)
	}

	if len(plugins) == 0 {
		return nil, ErrEmptyLoadOrder
	}

	return plugins, nil
}

// Names returns the display names of plugins, in order.
func Names(plugins []Plugin) []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}

	return names
}
