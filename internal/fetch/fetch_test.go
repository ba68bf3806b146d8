// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package fetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLReadsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoqac.yaml")
	require.NoError(t, os.WriteFile(path, []byte("xedit_path: /opt/FO4Edit.exe\n"), 0o644))

	data, err := URL(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, "xedit_path: /opt/FO4Edit.exe\n", string(data))
}

func TestURLEmpty(t *testing.T) {
	_, err := URL(t.Context(), "")
	assert.ErrorIs(t, err, ErrGetConfigFile)
}

func TestURLMissingFile(t *testing.T) {
	_, err := URL(t.Context(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrGetConfigFile)
}
