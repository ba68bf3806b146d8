// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package doctor validates the AutoQAC environment before a cleaning session.
// A failed error-level check is a fatal precondition: the orchestrator aborts
// the whole session rather than attempt a partial run.
package doctor

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/evildarkarchon/autoqac/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration against the filesystem.
type Doctor struct {
	fs  afero.Fs
	cfg *config.Config
}

// New creates a Doctor for the given config.
func New(fs afero.Fs, cfg *config.Config) *Doctor {
	return &Doctor{fs: fs, cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.checkXEdit(r)
	d.checkLoadOrder(r)
	d.checkDataDir(r)
	d.checkBackupRoot(r)

	r.Valid = len(r.Errors) == 0

	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkXEdit confirms the xEdit executable exists and is a regular file.
func (d *Doctor) checkXEdit(r *Result) {
	if d.cfg.XEditPath == "" {
		d.addError(r, "xedit", "xedit_path", "xedit_path is required")
		return
	}

	info, err := d.fs.Stat(d.cfg.XEditPath)
	if err != nil {
		d.addError(r, "xedit", "xedit_path", fmt.Sprintf("cannot stat %q: %v", d.cfg.XEditPath, err))
		return
	}

	if info.IsDir() {
		d.addError(r, "xedit", "xedit_path", fmt.Sprintf("%q is a directory, not an executable", d.cfg.XEditPath))
	}
}

// checkLoadOrder confirms the load order file is readable.
func (d *Doctor) checkLoadOrder(r *Result) {
	if d.cfg.LoadOrderPath == "" {
		d.addError(r, "loadorder", "load_order_path", "load_order_path is required")
		return
	}

	if ok, err := afero.Exists(d.fs, d.cfg.LoadOrderPath); err != nil || !ok {
		d.addError(r, "loadorder", "load_order_path",
			fmt.Sprintf("load order file %q not found", d.cfg.LoadOrderPath))
	}
}

// checkDataDir warns when plugin paths cannot be resolved.
func (d *Doctor) checkDataDir(r *Result) {
	if d.cfg.DataDir == "" {
		d.addWarning(r, "datadir", "data_dir",
			"data_dir not set; plugin paths must already be absolute in the load order")
		return
	}

	if ok, err := afero.DirExists(d.fs, d.cfg.DataDir); err != nil || !ok {
		d.addError(r, "datadir", "data_dir", fmt.Sprintf("data directory %q not found", d.cfg.DataDir))
	}
}

// checkBackupRoot confirms the backup root's parent exists when backups are on.
func (d *Doctor) checkBackupRoot(r *Result) {
	if !d.cfg.BackupsEnabled {
		return
	}

	if d.cfg.BackupRoot == "" {
		if resolved := d.cfg.ResolvedBackupRoot(); resolved != "" {
			d.addWarning(r, "backup", "backup_root",
				fmt.Sprintf("backups enabled without backup_root; %q next to the data directory will be used", resolved))
		} else {
			d.addWarning(r, "backup", "backup_root",
				"backups enabled without backup_root or data_dir; sessions will run without backups")
		}

		return
	}

	parent := filepath.Dir(d.cfg.BackupRoot)
	if ok, err := afero.DirExists(d.fs, parent); err != nil || !ok {
		d.addError(r, "backup", "backup_root",
			fmt.Sprintf("parent directory %q of backup root not found", parent))
	}
}
