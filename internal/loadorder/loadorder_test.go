// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package loadorder

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePluginsTxt = `# This file is used by the game to keep track of your mods.
*Fallout4.esm
*DLCRobot.esm
*Unofficial Fallout 4 Patch.esp
SomeDisabledMod.esp
*Weird Line Without Extension
*Another Mod.esl
`

func TestReadPluginsTxt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/profile/plugins.txt", []byte(samplePluginsTxt), 0o644))

	plugins, err := Read(fs, "/profile/plugins.txt", "/games/fallout4/Data")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Fallout4.esm",
		"DLCRobot.esm",
		"Unofficial Fallout 4 Patch.esp",
		"SomeDisabledMod.esp",
		"Another Mod.esl",
	}, Names(plugins))

	assert.Equal(t, filepath.Join("/games/fallout4/Data", "Fallout4.esm"), plugins[0].Path)
}

func TestReadPreservesOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/loadorder.txt", []byte("B.esp\nA.esp\nC.esm\n"), 0o644))

	plugins, err := Read(fs, "/loadorder.txt", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"B.esp", "A.esp", "C.esm"}, Names(plugins))
	assert.Empty(t, plugins[0].Path)
}

func TestReadMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Read(fs, "/nope.txt", "")
	assert.ErrorIs(t, err, ErrLoadOrderMissing)
}

func TestReadEmptyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins.txt", []byte("# only comments\n\n"), 0o644))

	_, err := Read(fs, "/plugins.txt", "")
	assert.ErrorIs(t, err, ErrEmptyLoadOrder)
}
