// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package restore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/evildarkarchon/autoqac/internal/backup"
	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/fetch"
)

const (
	configFlag  = "config"
	sessionFlag = "session"
	pluginFlag  = "plugin"
	yesFlag     = "yes"
)

var (
	// ErrNoBackupSessions is returned when the backup root holds no sessions.
	ErrNoBackupSessions = errors.New("no backup sessions found")
	// ErrRestoreAborted is returned when the operator declines the prompt.
	ErrRestoreAborted = errors.New("restore aborted")
)

// RestoreCmd copies backed-up plugins back into the data directory.
var RestoreCmd = &cli.Command{
	Name: "restore",
	Description: `Restore plugin files from a backup session into the data directory,
overwriting the cleaned versions. Without --session the most recent backup
session is used.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     configFlag,
			Aliases:  []string{"c"},
			Usage:    "URL of the YAML configuration file",
			Value:    "autoqac.yaml",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     sessionFlag,
			Aliases:  []string{"s"},
			Usage:    "Name of the backup session directory to restore from",
			OnlyOnce: true,
		},
		&cli.StringSliceFlag{
			Name:    pluginFlag,
			Aliases: []string{"p"},
			Usage:   "Restore only the named plugin. Specify multiple times for several plugins.",
		},
		&cli.BoolFlag{
			Name:        yesFlag,
			Aliases:     []string{"y"},
			Usage:       "Do not ask for confirmation",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	data, err := fetch.URL(ctx, cmd.String(configFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := config.Parse(data)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	backupRoot := cfg.ResolvedBackupRoot()
	if backupRoot == "" {
		return cli.Exit("neither backup_root nor data_dir is configured", 1)
	}

	if cfg.DataDir == "" {
		return cli.Exit("data_dir is not configured", 1)
	}

	fs := afero.NewOsFs()

	sessionDir, err := resolveSessionDir(fs, backupRoot, cmd.String(sessionFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	names, err := pluginsInSession(fs, sessionDir, cmd.StringSlice(pluginFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if len(names) == 0 {
		return cli.Exit("nothing to restore", 1)
	}

	fmt.Printf("Restoring %d plugin(s) from %s into %s\n", len(names), sessionDir, cfg.DataDir)

	if !cmd.Bool(yesFlag) {
		if err := confirm(len(names)); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	svc := backup.New(fs)

	for _, name := range names {
		dest := filepath.Join(cfg.DataDir, name)
		if err := svc.Restore(name, sessionDir, dest); err != nil {
			return cli.Exit(fmt.Sprintf("restore %s: %s", name, err), 1)
		}

		fmt.Printf("  restored %s\n", name)
	}

	return nil
}

// resolveSessionDir picks the named session under root, or the most recent
// one when name is empty. Session directories are timestamp-named, so the
// lexically greatest is the newest.
func resolveSessionDir(fs afero.Fs, root, name string) (string, error) {
	if name != "" {
		dir := filepath.Join(root, name)

		ok, err := afero.DirExists(fs, dir)
		if err != nil || !ok {
			return "", fmt.Errorf("%w: %s", ErrNoBackupSessions, dir)
		}

		return dir, nil
	}

	infos, err := afero.ReadDir(fs, root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBackupSessions, err)
	}

	var dirs []string

	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, info.Name())
		}
	}

	if len(dirs) == 0 {
		return "", ErrNoBackupSessions
	}

	sort.Strings(dirs)

	return filepath.Join(root, dirs[len(dirs)-1]), nil
}

// pluginsInSession lists the backed-up files, optionally filtered to the
// requested plugin names (case-insensitive).
func pluginsInSession(fs afero.Fs, sessionDir string, only []string) ([]string, error) {
	infos, err := afero.ReadDir(fs, sessionDir)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(only))
	for _, n := range only {
		wanted[strings.ToLower(n)] = struct{}{}
	}

	var names []string

	for _, info := range infos {
		if info.IsDir() {
			continue
		}

		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToLower(info.Name())]; !ok {
				continue
			}
		}

		names = append(names, info.Name())
	}

	sort.Strings(names)

	return names, nil
}

func confirm(count int) error {
	line := liner.NewLiner()
	defer line.Close() //nolint:errcheck

	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(fmt.Sprintf("Overwrite %d file(s)? [y/N]: ", count))
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return ErrRestoreAborted
		}

		return err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return ErrRestoreAborted
	}
}
