// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package gamemode

import (
	"fmt"
	"path/filepath"
)

// ErrPluginPathNotAbsolute is returned when the plugin path is not absolute.
var ErrPluginPathNotAbsolute = fmt.Errorf("plugin path must be absolute")

// Command is a fully-resolved xEdit invocation for one plugin.
type Command struct {
	Path string   // absolute path to the xEdit executable
	Args []string // arguments, excluding the executable name
}

// BuildCommand assembles the quick-auto-clean invocation for one plugin.
// An Unknown game yields ErrUnknownGame, never a command with missing flags.
func BuildCommand(xeditPath string, game Game, pluginPath string) (*Command, error) {
	flag, ok := modeFlag[game]
	if !ok {
		return nil, fmt.Errorf("%w: cannot build command", ErrUnknownGame)
	}

	if !filepath.IsAbs(pluginPath) {
		return nil, fmt.Errorf("%w: %s", ErrPluginPathNotAbsolute, pluginPath)
	}

	return &Command{
		Path: xeditPath,
		Args: []string{
			flag,
			"-QAC",
			"-autoexit",
			"-autoload",
			filepath.Base(pluginPath),
		},
	}, nil
}
