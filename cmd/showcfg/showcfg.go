// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package showcfg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/TylerBrock/colorjson"
	"github.com/goccy/go-yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/fetch"
)

const (
	configFlag = "config"
	jsonFlag   = "json"
)

// ShowConfigCmd prints the effective configuration after defaults are
// applied, which is handy for checking what a partial config file resolves
// to.
var ShowConfigCmd = &cli.Command{
	Name:        "showcfg",
	Description: `Fetch and parse the configuration, then print the effective values.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     configFlag,
			Aliases:  []string{"c"},
			Usage:    "URL of the YAML configuration file",
			Value:    "autoqac.yaml",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:        jsonFlag,
			Usage:       "Print as JSON instead of YAML",
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

	if cmd.Bool(jsonFlag) {
		return writeJSON(cfg)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Print(string(out))

	return nil
}

func writeJSON(cfg *config.Config) error {
	// The struct carries yaml tags only, so go through YAML to keep the
	// field names the config file uses.
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Round-trip through encoding/json so the colorizer sees only the value
	// kinds it understands.
	jsonRaw, err := json.Marshal(generic)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var obj any
	if err := json.Unmarshal(jsonRaw, &obj); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	formatter := colorjson.NewFormatter()
	formatter.Indent = 2
	formatter.DisabledColor = !term.IsTerminal(int(os.Stdout.Fd()))

	out, err := formatter.Marshal(obj)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Println(string(out))

	return nil
}
