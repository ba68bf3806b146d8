// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads the AutoQAC YAML configuration. Values not present in
// the file keep their defaults; validation rejects combinations the
// orchestrator cannot run with.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

var (
	// ErrReadConfig is returned when the configuration file cannot be read.
	ErrReadConfig = errors.New("failed to read config file")
	// ErrInvalidYaml is returned when the configuration file is not valid YAML.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrMissingXEditPath is returned when no xEdit executable is configured.
	ErrMissingXEditPath = errors.New("xedit_path is required")
	// ErrMissingLoadOrderPath is returned when no load order file is configured.
	ErrMissingLoadOrderPath = errors.New("load_order_path is required")
	// ErrInvalidTimeout is returned when the per-plugin timeout is not positive.
	ErrInvalidTimeout = errors.New("timeout_seconds must be positive")
)

// Defaults for the process-control knobs.
const (
	DefaultTimeoutSeconds    = 300
	DefaultGraceSeconds      = 10
	DefaultSettleSeconds     = 2
	DefaultMaxBackupSessions = 10
	DefaultHangIntervalSecs  = 5
	DefaultHangWindowSecs    = 60
)

// DefaultBackupDirName is the backup root used when backup_root is unset,
// created next to the game's data directory.
const DefaultBackupDirName = "AutoQAC Backups"

// Config is the full AutoQAC configuration.
type Config struct {
	XEditPath     string `yaml:"xedit_path"`      // path to the xEdit executable
	LoadOrderPath string `yaml:"load_order_path"` // path to plugins.txt / loadorder.txt
	DataDir       string `yaml:"data_dir"`        // game Data directory holding the plugin files
	Game          string `yaml:"game"`            // optional explicit game, skips detection
	Variant       string `yaml:"variant"`         // optional release variant ("vr", "gog")

	TimeoutSeconds int `yaml:"timeout_seconds"` // per-plugin wall clock budget
	GraceSeconds   int `yaml:"grace_seconds"`   // graceful-shutdown wait before a hard kill
	SettleSeconds  int `yaml:"settle_seconds"`  // post-kill wait for file handles to release

	BackupsEnabled    bool   `yaml:"backups_enabled"`
	BackupRoot        string `yaml:"backup_root"`
	MaxBackupSessions int    `yaml:"max_backup_sessions"`

	DisableSkipList bool     `yaml:"disable_skip_list"` // process everything, even base masters
	SkipList        []string `yaml:"skip_list"`         // user additions to the bundled skip list

	HangDetection bool `yaml:"hang_detection"`

	HistoryPath string `yaml:"history_path"` // sqlite file for session history; empty disables
	MarkerDir   string `yaml:"marker_dir"`   // directory for orphan marker files; empty uses os.TempDir
}

// Default returns a Config with every knob at its default value.
func Default() *Config {
	return &Config{
		TimeoutSeconds:    DefaultTimeoutSeconds,
		GraceSeconds:      DefaultGraceSeconds,
		SettleSeconds:     DefaultSettleSeconds,
		BackupsEnabled:    true,
		MaxBackupSessions: DefaultMaxBackupSessions,
		HangDetection:     true,
	}
}

// Load reads and validates the configuration file at path.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Join(ErrReadConfig, err)
	}

	return Parse(data)
}

// Parse unmarshals raw YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYaml, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is runnable.
func (c *Config) Validate() error {
	if c.XEditPath == "" {
		return ErrMissingXEditPath
	}

	if c.LoadOrderPath == "" {
		return ErrMissingLoadOrderPath
	}

	if c.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}

	return nil
}

// Timeout returns the per-plugin wall-clock budget.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GracePeriod returns the graceful-shutdown wait.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

// SettleDelay returns the post-termination settle wait.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// ResolvedBackupRoot returns the backup root to use: the configured value,
// or a default directory next to the data directory when backup_root is
// unset. Empty when neither is configured.
func (c *Config) ResolvedBackupRoot() string {
	if c.BackupRoot != "" {
		return c.BackupRoot
	}

	if c.DataDir == "" {
		return ""
	}

	return filepath.Join(filepath.Dir(c.DataDir), DefaultBackupDirName)
}
