// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package gamemode identifies which game a cleaning session targets and
// builds the xEdit command line for it. The game is a closed enumeration;
// Unknown is rejected explicitly at the command-building boundary so a
// session can never run with an undefined set of flags or exclusions.
package gamemode

import (
	"errors"
	"path/filepath"
	"strings"
)

// Game is the closed set of supported games.
type Game int

const (
	// Unknown means the game could not be determined. Sessions must abort.
	Unknown Game = iota
	// Fallout3 is Fallout 3.
	Fallout3
	// FalloutNV is Fallout: New Vegas.
	FalloutNV
	// Fallout4 is Fallout 4.
	Fallout4
	// SkyrimSE is Skyrim Special Edition.
	SkyrimSE
	// Oblivion is The Elder Scrolls IV: Oblivion.
	Oblivion
)

// Variant is an optional release overlay of a game that carries extra
// exclusion entries but shares the base game's command flags.
type Variant string

const (
	// VariantNone is the standard release.
	VariantNone Variant = ""
	// VariantVR is the VR release (Fallout 4 VR, Skyrim VR).
	VariantVR Variant = "vr"
	// VariantGOG is the GOG release.
	VariantGOG Variant = "gog"
)

// ErrUnknownGame is returned when an operation requires a determined game.
var ErrUnknownGame = errors.New("unknown game mode")

const (
	fallout3Str  = "fallout3"
	falloutNVStr = "falloutnv"
	fallout4Str  = "fallout4"
	skyrimSEStr  = "skyrimse"
	oblivionStr  = "oblivion"
	unknownStr   = "unknown"
)

// String returns the canonical lower-case name of the game.
func (g Game) String() string {
	switch g {
	case Fallout3:
		return fallout3Str
	case FalloutNV:
		return falloutNVStr
	case Fallout4:
		return fallout4Str
	case SkyrimSE:
		return skyrimSEStr
	case Oblivion:
		return oblivionStr
	default:
		return unknownStr
	}
}

// New creates a Game from its canonical name. Unrecognized names yield
// Unknown together with ErrUnknownGame.
func New(s string) (Game, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case fallout3Str:
		return Fallout3, nil
	case falloutNVStr:
		return FalloutNV, nil
	case fallout4Str:
		return Fallout4, nil
	case skyrimSEStr:
		return SkyrimSE, nil
	case oblivionStr:
		return Oblivion, nil
	default:
		return Unknown, ErrUnknownGame
	}
}

// modeFlag is the xEdit game-mode switch per game.
var modeFlag = map[Game]string{
	Fallout3:  "-fo3",
	FalloutNV: "-fnv",
	Fallout4:  "-fo4",
	SkyrimSE:  "-sse",
	Oblivion:  "-tes4",
}

// baseMaster is the master file whose presence in a load order identifies the game.
var baseMaster = map[string]Game{
	"fallout3.esm":  Fallout3,
	"falloutnv.esm": FalloutNV,
	"fallout4.esm":  Fallout4,
	"skyrim.esm":    SkyrimSE,
	"oblivion.esm":  Oblivion,
}

// editorName maps an xEdit binary base name (without extension) to a game.
var editorName = map[string]Game{
	"fo3edit":    Fallout3,
	"fnvedit":    FalloutNV,
	"fo4edit":    Fallout4,
	"fo4vredit":  Fallout4,
	"sseedit":    SkyrimSE,
	"tes5vredit": SkyrimSE,
	"tes4edit":   Oblivion,
}

// editorVariant maps an xEdit binary base name to the release variant it implies.
var editorVariant = map[string]Variant{
	"fo4vredit":  VariantVR,
	"tes5vredit": VariantVR,
}

// DetectFromToolName inspects the xEdit executable name and returns the game
// it is built for. The generic "xedit" binary carries no game information and
// yields Unknown.
func DetectFromToolName(path string) (Game, Variant) {
	// Config files written on Windows use backslash separators regardless of
	// the host the tests run on.
	name := strings.ToLower(filepath.Base(strings.ReplaceAll(path, `\`, "/")))
	name = strings.TrimSuffix(name, filepath.Ext(name))

	g, ok := editorName[name]
	if !ok {
		return Unknown, VariantNone
	}

	return g, editorVariant[name]
}

// DetectFromItems inspects plugin file names (typically the head of a load
// order) and returns the game whose base master appears first.
func DetectFromItems(names []string) Game {
	for _, n := range names {
		if g, ok := baseMaster[strings.ToLower(strings.TrimSpace(n))]; ok {
			return g
		}
	}

	return Unknown
}

// IsBaseMaster reports whether name is the base master file of any supported
// game. Base masters must never be cleaned.
func IsBaseMaster(name string) bool {
	_, ok := baseMaster[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
