// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package backup copies plugin files into a per-session backup directory
// before xEdit touches them, and restores them on request. Backups are
// best-effort from the orchestrator's point of view: a failure here is
// reported, never allowed to block cleaning.
package backup

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrSourceNotAbsolute is returned when the file to back up has no absolute path.
	ErrSourceNotAbsolute = errors.New("backup source path is not absolute")
	// ErrSourceMissing is returned when the file to back up does not exist.
	ErrSourceMissing = errors.New("backup source file does not exist")
	// ErrBackupExists is returned when the same file was already backed up in this session.
	ErrBackupExists = errors.New("backup already exists in this session")
	// ErrBackupMissing is returned when a restore cannot find the backed-up file.
	ErrBackupMissing = errors.New("backup file does not exist")
)

// sessionDirFormat names session directories so that lexical order equals
// chronological order.
const sessionDirFormat = "2006-01-02_15-04-05"

// Service performs backup and restore operations on one filesystem.
type Service struct {
	fs  afero.Fs
	now func() time.Time
}

// New creates a backup Service over fs.
func New(fs afero.Fs) *Service {
	return &Service{fs: fs, now: time.Now}
}

// NewSessionDir creates a timestamp-named directory for one session's
// backups under root and returns its path.
func (s *Service) NewSessionDir(root string) (string, error) {
	dir := filepath.Join(root, s.now().Format(sessionDirFormat))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session backup dir: %w", err)
	}

	return dir, nil
}

// Backup copies the file at srcPath into sessionDir and returns the backup
// path. A second backup of the same name within one session fails with
// ErrBackupExists rather than clobbering the first copy.
func (s *Service) Backup(srcPath, sessionDir string) (string, error) {
	if !filepath.IsAbs(srcPath) {
		return "", fmt.Errorf("%w: %s", ErrSourceNotAbsolute, srcPath)
	}

	ok, err := afero.Exists(s.fs, srcPath)
	if err != nil {
		return "", fmt.Errorf("stat backup source: %w", err)
	}

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, srcPath)
	}

	dst := filepath.Join(sessionDir, filepath.Base(srcPath))

	if ok, err := afero.Exists(s.fs, dst); err == nil && ok {
		return "", fmt.Errorf("%w: %s", ErrBackupExists, dst)
	}

	if err := s.copyFile(srcPath, dst); err != nil {
		return "", err
	}

	return dst, nil
}

// Restore copies the named backup from sessionDir over destPath.
func (s *Service) Restore(name, sessionDir, destPath string) error {
	src := filepath.Join(sessionDir, name)

	ok, err := afero.Exists(s.fs, src)
	if err != nil {
		return fmt.Errorf("stat backup: %w", err)
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrBackupMissing, src)
	}

	return s.copyFile(src, destPath)
}

// CleanupOldSessions retains the max most-recent session directories by
// name-sort order and removes the rest. The protect directory is never
// removed: when it is among the newest max it counts toward the quota, and
// when it is older it is retained in addition to them.
func (s *Service) CleanupOldSessions(root string, max int, protect string) error {
	infos, err := afero.ReadDir(s.fs, root)
	if err != nil {
		return fmt.Errorf("read backup root: %w", err)
	}

	var dirs []string

	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, info.Name())
		}
	}

	// Newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	protectBase := filepath.Base(protect)

	var errs error

	kept := 0

	for _, name := range dirs {
		if kept < max {
			kept++
			continue
		}

		if name == protectBase {
			continue
		}

		if err := s.fs.RemoveAll(filepath.Join(root, name)); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

func (s *Service) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := s.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	return out.Close()
}
