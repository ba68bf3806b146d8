// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package skiplist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evildarkarchon/autoqac/internal/gamemode"
)

func TestBaseListContainsVanillaMasters(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	assert.True(t, p.Contains(gamemode.Fallout4, gamemode.VariantNone, "Fallout4.esm"))
	assert.True(t, p.Contains(gamemode.SkyrimSE, gamemode.VariantNone, "DRAGONBORN.ESM"))
	assert.False(t, p.Contains(gamemode.Fallout4, gamemode.VariantNone, "SomeMod.esp"))
}

func TestUserEntriesAreMerged(t *testing.T) {
	p, err := New([]string{"MyFragileMod.esp", "  spaced.esp  "})
	require.NoError(t, err)

	assert.True(t, p.Contains(gamemode.Fallout4, gamemode.VariantNone, "myfragilemod.esp"))
	assert.True(t, p.Contains(gamemode.SkyrimSE, gamemode.VariantNone, "spaced.esp"))
}

func TestVariantOverlay(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	assert.True(t, p.Contains(gamemode.Fallout4, gamemode.VariantVR, "Fallout4_VR.esm"))
	assert.False(t, p.Contains(gamemode.Fallout4, gamemode.VariantNone, "Fallout4_VR.esm"))
}

func TestExclusionsPerGameAreIndependent(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	fo4 := p.Exclusions(gamemode.Fallout4, gamemode.VariantNone)
	sse := p.Exclusions(gamemode.SkyrimSE, gamemode.VariantNone)

	_, inFO4 := fo4["skyrim.esm"]
	_, inSSE := sse["skyrim.esm"]
	assert.False(t, inFO4)
	assert.True(t, inSSE)
}
