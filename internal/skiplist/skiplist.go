// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package skiplist provides the merged set of plugin names a cleaning
// session must pass over. The set is built from three layers: the bundled
// base list, an optional variant overlay, and the user's own list from
// configuration. Lookups are case-insensitive.
package skiplist

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/evildarkarchon/autoqac/internal/gamemode"
)

//go:embed base.yaml
var baseListYAML []byte

// ErrBadBaseList is returned when the bundled base list cannot be parsed.
var ErrBadBaseList = fmt.Errorf("cannot parse bundled skip list")

type definition struct {
	Games    map[string][]string `yaml:"games"`
	Overlays map[string][]string `yaml:"overlays"`
}

// Provider merges the skip-list layers for a game.
type Provider struct {
	def  definition
	user []string
}

// New creates a Provider over the bundled base list, with the user's
// additional entries layered on top.
func New(userEntries []string) (*Provider, error) {
	var def definition
	if err := yaml.Unmarshal(baseListYAML, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBaseList, err)
	}

	return &Provider{def: def, user: userEntries}, nil
}

// Exclusions returns the merged, lower-cased skip set for a game and variant.
func (p *Provider) Exclusions(game gamemode.Game, variant gamemode.Variant) map[string]struct{} {
	set := make(map[string]struct{})

	add := func(names []string) {
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" {
				set[n] = struct{}{}
			}
		}
	}

	add(p.def.Games[game.String()])

	if variant != gamemode.VariantNone {
		add(p.def.Overlays[game.String()+"-"+string(variant)])
	}

	add(p.user)

	return set
}

// Contains reports whether name is in the merged skip set for game/variant.
func (p *Provider) Contains(game gamemode.Game, variant gamemode.Variant, name string) bool {
	_, ok := p.Exclusions(game, variant)[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
