// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/evildarkarchon/autoqac/internal/backup"
	"github.com/evildarkarchon/autoqac/internal/cleaner"
	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/ctxlog"
	"github.com/evildarkarchon/autoqac/internal/doctor"
	"github.com/evildarkarchon/autoqac/internal/fetch"
	"github.com/evildarkarchon/autoqac/internal/hangwatch"
	"github.com/evildarkarchon/autoqac/internal/history"
	"github.com/evildarkarchon/autoqac/internal/loadorder"
	"github.com/evildarkarchon/autoqac/internal/procrun"
	"github.com/evildarkarchon/autoqac/internal/progress"
	"github.com/evildarkarchon/autoqac/internal/signalbroker"
	"github.com/evildarkarchon/autoqac/internal/skiplist"
	"github.com/evildarkarchon/autoqac/internal/state"
)

const (
	configFlag  = "config"
	jsonFlag    = "json"
	verboseFlag = "verbose"
	dryRunFlag  = "dry-run"

	eventBuffer = 256
)

// RunCmd cleans every plugin in the load order.
var RunCmd = &cli.Command{
	Name: "run",
	Description: `Clean all plugins in the configured load order with xEdit Quick Auto Clean.

Config file URLs use Hashicorp's go-getter syntax, which allows for fetching
files from various sources. See https://github.com/hashicorp/go-getter.

Press Ctrl-C once to stop cooperatively after the current plugin; press it
again to kill the running xEdit immediately.`,
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
			Usage:       "Print the session result as JSON",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.BoolFlag{
			Name:        verboseFlag,
			Aliases:     []string{"v"},
			Usage:       "Print every xEdit output line",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.BoolFlag{
			Name:        dryRunFlag,
			Usage:       "List what would be cleaned or skipped, then exit",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	data, err := fetch.URL(ctx, cmd.String(configFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := config.Parse(data)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fs := afero.NewOsFs()

	plugins, err := loadorder.Read(fs, cfg.LoadOrderPath, cfg.DataDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger.Debug("load order read", "plugins", len(plugins))

	if cmd.Bool(dryRunFlag) {
		return dryRun(cfg, plugins)
	}

	markerDir := cfg.MarkerDir
	if markerDir == "" {
		markerDir = filepath.Join(os.TempDir(), "autoqac")
	}

	engine := procrun.NewEngine(procrun.NewPool(1), fs, markerDir)
	reporter := progress.NewChannelReporter(ctx, eventBuffer)

	opts := []cleaner.Option{cleaner.WithReporter(reporter)}
	if cfg.HangDetection {
		opts = append(opts, cleaner.WithHangMonitor(hangwatch.New()))
	}

	store := state.NewStore()
	orch := cleaner.New(cfg, store, engine, backup.New(fs), doctor.New(fs, cfg), opts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := signalbroker.New(runCtx)

	go signalbroker.Watch(runCtx, sigCh, orch.RequestStop, orch.RequestForceStop, cancel)

	renderDone := make(chan struct{})

	go func() {
		defer close(renderDone)
		render(reporter.Events(), cmd.Bool(verboseFlag))
	}()

	result := orch.RunSession(runCtx, plugins)

	reporter.Close()
	<-renderDone

	recordHistory(ctx, cfg, result)

	if cmd.Bool(jsonFlag) {
		if err := writeJSON(result); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	} else {
		writeSummary(result)
	}

	if result.Err != nil {
		return cli.Exit(result.Err.Error(), 1)
	}

	if _, _, failed := result.Counts(); failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}

// dryRun reports what a session would do without spawning anything.
func dryRun(cfg *config.Config, plugins []loadorder.Plugin) error {
	game, variant, err := cleaner.DetectGame(cfg, plugins)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	excluded := map[string]struct{}{}

	if !cfg.DisableSkipList {
		provider, err := skiplist.New(cfg.SkipList)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		excluded = provider.Exclusions(game, variant)
	}

	fmt.Printf("Game: %s", game)

	if variant != "" {
		fmt.Printf(" (%s)", variant)
	}

	fmt.Printf("\nPlugins: %d\n\n", len(plugins))

	for _, p := range plugins {
		if _, skip := excluded[strings.ToLower(p.Name)]; skip {
			fmt.Printf("  skip   %s\n", p.Name)
		} else {
			fmt.Printf("  clean  %s\n", p.Name)
		}
	}

	return nil
}

func render(events <-chan progress.Event, verbose bool) {
	for ev := range events {
		switch ev.Type {
		case progress.EventSessionStarted:
			fmt.Printf("Session started: %s\n", ev.Message)
		case progress.EventItemStarted:
			fmt.Printf("Cleaning %s...\n", ev.Plugin)
		case progress.EventItemSkipped:
			fmt.Printf("Skipping %s (%s)\n", ev.Plugin, ev.Message)
		case progress.EventOutput:
			if verbose {
				prefix := "  "
				if ev.Data.IsStderr {
					prefix = "! "
				}

				fmt.Printf("%s%s\n", prefix, ev.Data.OutputLine)
			}
		case progress.EventItemCompleted:
			stats := ev.Data.Stats
			dur := ev.Data.Duration.Round(time.Second)

			if stats.Dirty() {
				fmt.Printf("Cleaned %s: %d ITM, %d UDR, %d deleted navmeshes, %d partial forms (%s)\n",
					ev.Plugin, stats.ITMs, stats.UDRs, stats.Navmeshes, stats.PartialForms, dur)
			} else {
				fmt.Printf("%s was already clean (%s)\n", ev.Plugin, dur)
			}
		case progress.EventItemFailed:
			fmt.Printf("Failed %s: %s\n", ev.Plugin, ev.Message)
		case progress.EventHangSuspected:
			fmt.Printf("Warning: %s appears hung (sustained near-zero CPU usage)\n", ev.Plugin)
		case progress.EventSessionCompleted:
			// The summary is printed after the session result is assembled.
		}
	}
}

func writeSummary(result state.SessionResult) {
	cleaned, skipped, failed := result.Counts()

	fmt.Printf("\nSession finished in %s\n", result.Ended.Sub(result.Started).Round(time.Second))
	fmt.Printf("  cleaned: %d  skipped: %d  failed: %d\n", cleaned, skipped, failed)

	if result.Cancelled {
		fmt.Println("  session was stopped before completion")
	}

	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func writeJSON(result state.SessionResult) error {
	items := make([]map[string]any, 0, len(result.Items))

	for _, item := range result.Items {
		items = append(items, map[string]any{
			"name":              item.Name,
			"status":            item.Status.String(),
			"itms":              item.Stats.ITMs,
			"udrs":              item.Stats.UDRs,
			"deleted_navmeshes": item.Stats.Navmeshes,
			"partial_forms":     item.Stats.PartialForms,
			"duration_ms":       item.Duration.Milliseconds(),
			"backup":            item.BackupPath,
			"message":           item.Message,
		})
	}

	obj := map[string]any{
		"id":        result.ID,
		"game":      result.Game.String(),
		"started":   result.Started.Format(time.RFC3339),
		"ended":     result.Ended.Format(time.RFC3339),
		"cancelled": result.Cancelled,
		"items":     items,
		"warnings":  result.Warnings,
	}

	if result.Err != nil {
		obj["error"] = result.Err.Error()
	}

	// Round-trip through encoding/json so the colorizer sees only the value
	// kinds it understands.
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	formatter := colorjson.NewFormatter()
	formatter.Indent = 2
	formatter.DisabledColor = !term.IsTerminal(int(os.Stdout.Fd()))

	out, err := formatter.Marshal(generic)
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

func recordHistory(ctx context.Context, cfg *config.Config, result state.SessionResult) {
	if cfg.HistoryPath == "" {
		return
	}

	logger := ctxlog.Logger(ctx)

	h, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		logger.Warn("could not open history database", "error", err)
		return
	}

	defer h.Close() //nolint:errcheck

	if err := h.RecordSession(ctx, result); err != nil {
		logger.Warn("could not record session history", "error", err)
	}
}
