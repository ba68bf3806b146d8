// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package doctor

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evildarkarchon/autoqac/internal/config"
)

func validConfigOnFs(t *testing.T) (afero.Fs, *config.Config) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/xedit/FO4Edit.exe", []byte("MZ"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/profile/plugins.txt", []byte("*Fallout4.esm\n"), 0o644))
	require.NoError(t, fs.MkdirAll("/games/fallout4/Data", 0o755))

	cfg := config.Default()
	cfg.XEditPath = "/xedit/FO4Edit.exe"
	cfg.LoadOrderPath = "/profile/plugins.txt"
	cfg.DataDir = "/games/fallout4/Data"
	cfg.BackupRoot = "/games/fallout4/AutoQAC Backups"

	return fs, cfg
}

func TestValidateHealthyEnvironment(t *testing.T) {
	fs, cfg := validConfigOnFs(t)

	r := New(fs, cfg).Validate()
	assert.True(t, r.Valid)
	assert.Empty(t, r.Errors)
}

func TestValidateMissingXEdit(t *testing.T) {
	fs, cfg := validConfigOnFs(t)
	cfg.XEditPath = "/xedit/DoesNotExist.exe"

	r := New(fs, cfg).Validate()
	assert.False(t, r.Valid)
	require.NotEmpty(t, r.Errors)
	assert.Equal(t, "xedit", r.Errors[0].Category)
}

func TestValidateMissingLoadOrder(t *testing.T) {
	fs, cfg := validConfigOnFs(t)
	cfg.LoadOrderPath = "/profile/missing.txt"

	r := New(fs, cfg).Validate()
	assert.False(t, r.Valid)
}

func TestValidateBackupRootParentMissing(t *testing.T) {
	fs, cfg := validConfigOnFs(t)
	cfg.BackupRoot = "/no/such/parent/backups"

	r := New(fs, cfg).Validate()
	assert.False(t, r.Valid)
}

func TestValidateEmptyBackupRootWarnsWithResolvedDefault(t *testing.T) {
	fs, cfg := validConfigOnFs(t)
	cfg.BackupRoot = ""

	r := New(fs, cfg).Validate()
	assert.True(t, r.Valid)
	require.NotEmpty(t, r.Warnings)
	assert.Contains(t, r.Warnings[0].Message, cfg.ResolvedBackupRoot())
}

func TestValidateEmptyBackupRootAndDataDirWarnsNoBackups(t *testing.T) {
	fs, cfg := validConfigOnFs(t)
	cfg.BackupRoot = ""
	cfg.DataDir = ""

	r := New(fs, cfg).Validate()
	assert.True(t, r.Valid)

	var found bool

	for _, w := range r.Warnings {
		if w.Field == "backup_root" {
			found = true

			assert.Contains(t, w.Message, "without backups")
		}
	}

	assert.True(t, found)
}

func TestValidateNoDataDirIsWarningOnly(t *testing.T) {
	fs, cfg := validConfigOnFs(t)
	cfg.DataDir = ""

	r := New(fs, cfg).Validate()
	assert.True(t, r.Valid)
	assert.NotEmpty(t, r.Warnings)
}
