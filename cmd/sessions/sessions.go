// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/fetch"
	"github.com/evildarkarchon/autoqac/internal/history"
)

const (
	configFlag = "config"
	limitFlag  = "limit"
	idFlag     = "id"
)

// SessionsCmd lists past cleaning sessions from the history database.
var SessionsCmd = &cli.Command{
	Name: "sessions",
	Description: `List recent cleaning sessions recorded in the history database, or show the
per-plugin results of one session with --id.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     configFlag,
			Aliases:  []string{"c"},
			Usage:    "URL of the YAML configuration file",
			Value:    "autoqac.yaml",
			OnlyOnce: true,
		},
		&cli.IntFlag{
			Name:     limitFlag,
			Aliases:  []string{"n"},
			Usage:    "Maximum number of sessions to list",
			Value:    10,
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     idFlag,
			Usage:    "Show the items of the session with this ID",
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

	if cfg.HistoryPath == "" {
		return cli.Exit("history_path is not configured", 1)
	}

	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer store.Close() //nolint:errcheck

	if id := cmd.String(idFlag); id != "" {
		return listItems(ctx, store, id)
	}

	return listSessions(ctx, store, int(cmd.Int(limitFlag)))
}

func listSessions(ctx context.Context, store *history.Store, limit int) error {
	sessions, err := store.RecentSessions(ctx, limit)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	for _, s := range sessions {
		dur := s.Ended.Sub(s.Started).Round(time.Second)

		fmt.Printf("%s  %s  %-10s  cleaned=%d skipped=%d failed=%d  (%s)",
			s.ID, s.Started.Local().Format("2006-01-02 15:04"), s.Game,
			s.Cleaned, s.Skipped, s.Failed, dur)

		if s.Cancelled {
			fmt.Print("  [cancelled]")
		}

		if s.Error != "" {
			fmt.Printf("  error: %s", s.Error)
		}

		fmt.Println()
	}

	return nil
}

func listItems(ctx context.Context, store *history.Store, id string) error {
	items, err := store.SessionItems(ctx, id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if len(items) == 0 {
		return cli.Exit(fmt.Sprintf("no items recorded for session %s", id), 1)
	}

	for _, item := range items {
		fmt.Printf("%-9s %s", item.Status, item.Plugin)

		if item.Status == "cleaned" {
			fmt.Printf("  itm=%d udr=%d navmeshes=%d partial=%d (%s)",
				item.ITMs, item.UDRs, item.Navmeshes, item.PartialForms,
				item.Duration.Round(time.Second))
		}

		if item.Message != "" {
			fmt.Printf("  %s", item.Message)
		}

		fmt.Println()
	}

	return nil
}
