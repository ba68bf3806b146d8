// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package check

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/doctor"
	"github.com/evildarkarchon/autoqac/internal/fetch"
)

const configFlag = "config"

// CheckCmd validates the environment without cleaning anything.
var CheckCmd = &cli.Command{
	Name: "check",
	Description: `Validate the configuration and environment: the xEdit executable, the load
order file, the data directory and the backup location. Nothing is cleaned.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     configFlag,
			Aliases:  []string{"c"},
			Usage:    "URL of the YAML configuration file",
			Value:    "autoqac.yaml",
			OnlyOnce: true,
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

	result := doctor.New(afero.NewOsFs(), cfg).Validate()

	for _, issue := range result.Errors {
		fmt.Printf("error   [%s] %s\n", issue.Category, issue.Message)
	}

	for _, issue := range result.Warnings {
		fmt.Printf("warning [%s] %s\n", issue.Category, issue.Message)
	}

	if !result.Valid {
		return cli.Exit("environment is not ready", 1)
	}

	fmt.Println("environment is ready")

	return nil
}
