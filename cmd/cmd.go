// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/evildarkarchon/autoqac/cmd/check"
	"github.com/evildarkarchon/autoqac/cmd/restore"
	"github.com/evildarkarchon/autoqac/cmd/run"
	"github.com/evildarkarchon/autoqac/cmd/sessions"
	"github.com/evildarkarchon/autoqac/cmd/showcfg"
)

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		check.CheckCmd,
		restore.RestoreCmd,
		sessions.SessionsCmd,
		showcfg.ShowConfigCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "autoqac",
	Description: `AutoQAC batch-cleans Bethesda plugin files with xEdit's Quick Auto Clean mode.
It reads a load order, backs each plugin up, runs xEdit against them one at a
time (the tool holds exclusive file locks, so never more than one), parses the
cleaning statistics from the output, and recovers from hangs, timeouts and
interrupted runs without operator intervention.`,
	Usage:     "autoqac run --config autoqac.yaml",
	Copyright: "Copyright (c) evildarkarchon 2026. All rights reserved.",
	Authors: []any{
		"evildarkarchon",
	},
	EnableShellCompletion: true,
}
