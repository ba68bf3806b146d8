// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cleaner is the batch orchestrator. It drives one cleaning session
// over an ordered list of plugins: validate the environment, determine the
// game, sweep orphans, then clean strictly one plugin at a time, recording a
// result per item and a terminal result per session no matter how the run
// ends.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/evildarkarchon/autoqac/internal/cleanlog"
	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/ctxlog"
	"github.com/evildarkarchon/autoqac/internal/doctor"
	"github.com/evildarkarchon/autoqac/internal/gamemode"
	"github.com/evildarkarchon/autoqac/internal/hangwatch"
	"github.com/evildarkarchon/autoqac/internal/loadorder"
	"github.com/evildarkarchon/autoqac/internal/procrun"
	"github.com/evildarkarchon/autoqac/internal/progress"
	"github.com/evildarkarchon/autoqac/internal/skiplist"
	"github.com/evildarkarchon/autoqac/internal/state"
)

// gameProbeDepth is how many plugins from the head of the load order are
// inspected when the xEdit binary name did not identify the game.
const gameProbeDepth = 5

var (
	// ErrSessionActive is returned when a session is started while another is running.
	ErrSessionActive = errors.New("a cleaning session is already active")
	// ErrValidationFailed is returned when environment validation fails.
	ErrValidationFailed = errors.New("environment validation failed")
	// ErrGameUndetermined is returned when the target game cannot be identified.
	// Cleaning without a known game is unsafe because exclusion rules cannot
	// be applied correctly.
	ErrGameUndetermined = errors.New("could not determine game mode")
)

// Executor runs xEdit processes. Satisfied by *procrun.Engine.
type Executor interface {
	Execute(ctx context.Context, spec procrun.Spec) procrun.Result
	SweepOrphans(ctx context.Context) (procrun.SweepResult, error)
}

// BackupService is the slice of backup.Service the orchestrator needs.
type BackupService interface {
	NewSessionDir(root string) (string, error)
	Backup(srcPath, sessionDir string) (string, error)
	CleanupOldSessions(root string, max int, protect string) error
}

// EnvironmentValidator reports whether a session may start at all.
type EnvironmentValidator interface {
	Validate() *doctor.Result
}

// Orchestrator drives cleaning sessions. One Orchestrator runs at most one
// session at a time; construct it once and reuse it.
type Orchestrator struct {
	cfg       *config.Config
	store     *state.Store
	executor  Executor
	backups   BackupService
	validator EnvironmentValidator
	monitor   *hangwatch.Monitor
	reporter  progress.Reporter

	mu            sync.Mutex
	running       bool
	stopRequested bool
	cancelRun     context.CancelFunc
	killNow       atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHangMonitor attaches a hang detector to running processes. A hang is
// reported as a progress event only; it never triggers a kill.
func WithHangMonitor(m *hangwatch.Monitor) Option {
	return func(o *Orchestrator) {
		o.monitor = m
	}
}

// WithReporter sets the progress event sink.
func WithReporter(r progress.Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// New creates an Orchestrator.
func New(
	cfg *config.Config,
	store *state.Store,
	executor Executor,
	backups BackupService,
	validator EnvironmentValidator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		executor:  executor,
		backups:   backups,
		validator: validator,
		reporter:  progress.NewNullReporter(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// RunSession cleans the given plugins in order and returns the session's
// result record. It always returns a terminal result, even when validation
// fails or zero items are processed, so observers are never left waiting.
func (o *Orchestrator) RunSession(ctx context.Context, plugins []loadorder.Plugin) state.SessionResult {
	logger := ctxlog.Logger(ctx)

	result := state.SessionResult{ID: uuid.NewString(), Started: time.Now()}

	o.mu.Lock()

	if o.running {
		o.mu.Unlock()

		result.Ended = time.Now()
		result.Err = ErrSessionActive

		return result
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.stopRequested = false
	o.cancelRun = cancel
	o.killNow.Store(false)

	o.mu.Unlock()

	defer cancel()
	defer o.finish(ctx, &result)

	logger.Info("session starting", "id", result.ID, "plugins", len(plugins))
	o.reporter.Report(progress.Event{
		Type:      progress.EventSessionStarted,
		Message:   fmt.Sprintf("cleaning %d plugins", len(plugins)),
		Timestamp: time.Now(),
	})

	o.store.Update(func(s *state.Snapshot) {
		s.Phase = state.PhaseValidating
		s.SessionID = result.ID
		s.TotalItems = len(plugins)
		s.DoneItems = 0
		s.CurrentItem = ""
		s.BackupDir = ""
		s.StopRequested = false
		s.ForceStopRequested = false
	})

	if v := o.validator.Validate(); !v.Valid {
		msgs := make([]string, 0, len(v.Errors))
		for _, issue := range v.Errors {
			msgs = append(msgs, issue.Message)
		}

		result.Err = fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(msgs, "; "))

		return result
	}

	o.store.Update(func(s *state.Snapshot) { s.Phase = state.PhaseDetectingGame })

	game, variant, err := DetectGame(o.cfg, plugins)
	if err != nil {
		result.Err = err
		return result
	}

	result.Game = game
	o.store.Update(func(s *state.Snapshot) { s.Game = game })
	logger.Info("game determined", "game", game.String(), "variant", string(variant))

	excluded := o.exclusions(ctx, game, variant, &result)

	// Orphans from a crashed run would hold xEdit's file locks. The sweep is
	// best-effort: failures are recorded, never fatal.
	if sr, err := o.executor.SweepOrphans(runCtx); err != nil {
		logger.Warn("orphan sweep failed", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("orphan sweep: %v", err))
	} else if len(sr.Killed) > 0 {
		logger.Warn("killed orphaned processes from a previous run", "pids", sr.Killed)
	}

	sessionDir := o.prepareBackups(ctx, &result)

	o.store.Update(func(s *state.Snapshot) { s.Phase = state.PhaseRunning })

	for i, plugin := range plugins {
		if o.stopping() || runCtx.Err() != nil {
			result.Cancelled = true

			for _, rest := range plugins[i:] {
				result.Items = append(result.Items, state.ItemResult{
					Name:    rest.Name,
					Status:  state.StatusCancelled,
					Message: "session stopped before this plugin was processed",
				})
			}

			break
		}

		o.store.Update(func(s *state.Snapshot) { s.CurrentItem = plugin.Name })

		item := o.cleanOne(runCtx, game, plugin, excluded, sessionDir, &result)
		result.Items = append(result.Items, item)

		o.store.Update(func(s *state.Snapshot) {
			s.DoneItems = i + 1
			s.CurrentItem = ""
		})
	}

	if o.stopping() {
		result.Cancelled = true
	}

	return result
}

// RequestStop asks the running session to stop cooperatively: the current
// process is asked to shut down and no further plugins are started. A second
// call while a stop is already pending escalates to a force kill.
func (o *Orchestrator) RequestStop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return
	}

	if o.stopRequested {
		o.forceStopLocked()
		return
	}

	o.stopRequested = true

	if o.cancelRun != nil {
		o.cancelRun()
	}

	o.store.Update(func(s *state.Snapshot) {
		s.Phase = state.PhaseCancelling
		s.StopRequested = true
	})
}

// RequestForceStop skips the cooperative step and kills the active process
// immediately.
func (o *Orchestrator) RequestForceStop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return
	}

	o.stopRequested = true

	if o.cancelRun != nil {
		o.cancelRun()
	}

	o.forceStopLocked()
}

func (o *Orchestrator) forceStopLocked() {
	o.killNow.Store(true)
	o.store.Update(func(s *state.Snapshot) {
		s.Phase = state.PhaseCancelling
		s.StopRequested = true
		s.ForceStopRequested = true
	})
}

func (o *Orchestrator) stopping() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.stopRequested
}

// finish freezes the session result, publishes it, and returns the store to
// idle. It runs on every exit path so no observer is left waiting.
func (o *Orchestrator) finish(ctx context.Context, result *state.SessionResult) {
	result.Ended = time.Now()

	o.store.Update(func(s *state.Snapshot) { s.Phase = state.PhaseFinishing })

	final := *result

	o.store.Update(func(s *state.Snapshot) {
		s.Phase = state.PhaseIdle
		s.CurrentItem = ""
		s.StopRequested = false
		s.ForceStopRequested = false
		s.LastSession = &final
	})

	o.reporter.Report(progress.Event{
		Type:      progress.EventSessionCompleted,
		Timestamp: time.Now(),
		Data:      progress.EventData{Cancelled: result.Cancelled, Error: result.Err},
	})

	o.mu.Lock()
	o.running = false
	o.stopRequested = false
	o.cancelRun = nil
	o.mu.Unlock()

	cleaned, skipped, failed := result.Counts()
	ctxlog.Logger(ctx).Info("session finished",
		"id", result.ID,
		"cleaned", cleaned,
		"skipped", skipped,
		"failed", failed,
		"cancelled", result.Cancelled,
	)
}

// DetectGame resolves the target game: explicit config first, then the xEdit
// binary name, then the head of the load order. An undetermined game aborts
// the session.
func DetectGame(cfg *config.Config, plugins []loadorder.Plugin) (gamemode.Game, gamemode.Variant, error) {
	variant := gamemode.Variant(cfg.Variant)

	if cfg.Game != "" {
		game, err := gamemode.New(cfg.Game)
		if err != nil {
			return gamemode.Unknown, variant, err
		}

		return game, variant, nil
	}

	game, v := gamemode.DetectFromToolName(cfg.XEditPath)
	if game != gamemode.Unknown {
		if variant == gamemode.VariantNone {
			variant = v
		}

		return game, variant, nil
	}

	names := loadorder.Names(plugins)
	if len(names) > gameProbeDepth {
		names = names[:gameProbeDepth]
	}

	game = gamemode.DetectFromItems(names)
	if game == gamemode.Unknown {
		return game, variant, ErrGameUndetermined
	}

	return game, variant, nil
}

// exclusions merges the skip-list layers. A provider failure degrades to an
// empty set with a recorded warning; it never aborts the session.
func (o *Orchestrator) exclusions(
	ctx context.Context,
	game gamemode.Game,
	variant gamemode.Variant,
	result *state.SessionResult,
) map[string]struct{} {
	if o.cfg.DisableSkipList {
		return nil
	}

	provider, err := skiplist.New(o.cfg.SkipList)
	if err != nil {
		ctxlog.Logger(ctx).Warn("skip list unavailable, nothing will be excluded", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("skip list unavailable: %v", err))

		return nil
	}

	return provider.Exclusions(game, variant)
}

// prepareBackups creates the session backup directory and prunes old ones.
// Both are best-effort: on failure the session continues without backups.
func (o *Orchestrator) prepareBackups(ctx context.Context, result *state.SessionResult) string {
	if !o.cfg.BackupsEnabled {
		return ""
	}

	logger := ctxlog.Logger(ctx)

	root := o.cfg.ResolvedBackupRoot()
	if root == "" {
		logger.Warn("backups enabled but neither backup_root nor data_dir is set, continuing without backups")
		result.Warnings = append(result.Warnings,
			"backups disabled for this session: neither backup_root nor data_dir is configured")

		return ""
	}

	dir, err := o.backups.NewSessionDir(root)
	if err != nil {
		logger.Warn("could not create backup directory, continuing without backups", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("backups disabled for this session: %v", err))

		return ""
	}

	o.store.Update(func(s *state.Snapshot) { s.BackupDir = dir })

	if err := o.backups.CleanupOldSessions(root, o.cfg.MaxBackupSessions, dir); err != nil {
		logger.Warn("backup cleanup failed", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("backup cleanup: %v", err))
	}

	return dir
}

// cleanOne processes a single plugin. Errors never escape: every outcome is
// converted into the item's result record so the batch can continue.
func (o *Orchestrator) cleanOne(
	ctx context.Context,
	game gamemode.Game,
	plugin loadorder.Plugin,
	excluded map[string]struct{},
	sessionDir string,
	result *state.SessionResult,
) state.ItemResult {
	logger := ctxlog.Logger(ctx).With("plugin", plugin.Name)
	item := state.ItemResult{Name: plugin.Name}
	start := time.Now()

	if _, skip := excluded[strings.ToLower(plugin.Name)]; skip {
		item.Status = state.StatusSkipped
		item.Message = "on the skip list"

		logger.Info("skipping plugin")
		o.reporter.Report(progress.Event{
			Type:      progress.EventItemSkipped,
			Plugin:    plugin.Name,
			Message:   item.Message,
			Timestamp: time.Now(),
		})

		return item
	}

	logger.Info("cleaning plugin")
	o.reporter.Report(progress.Event{
		Type:      progress.EventItemStarted,
		Plugin:    plugin.Name,
		Timestamp: time.Now(),
	})

	if sessionDir != "" {
		backupPath, err := o.backups.Backup(plugin.Path, sessionDir)
		if err != nil {
			// Best-effort: a failed backup is reported, never blocks cleaning.
			logger.Warn("backup failed", "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("backup %s: %v", plugin.Name, err))
		} else {
			item.BackupPath = backupPath
		}
	}

	cmd, err := gamemode.BuildCommand(o.cfg.XEditPath, game, plugin.Path)
	if err != nil {
		item.Status = state.StatusFailed
		item.Message = err.Error()
		item.Duration = time.Since(start)

		o.reportItemDone(plugin.Name, item, err)

		return item
	}

	var (
		linesMu sync.Mutex
		lines   []string
	)

	itemCtx, cancelItem := context.WithCancel(ctx)
	defer cancelItem()

	var hangWG sync.WaitGroup

	onStarted := func(pid int32) {
		if o.monitor == nil {
			return
		}

		ch := o.monitor.Watch(itemCtx, pid)

		hangWG.Add(1)

		go func() {
			defer hangWG.Done()

			reported := false

			for hung := range ch {
				if hung && !reported {
					reported = true

					logger.Warn("process appears hung", "pid", pid)
					o.reporter.Report(progress.Event{
						Type:      progress.EventHangSuspected,
						Plugin:    plugin.Name,
						Timestamp: time.Now(),
					})
				}
			}
		}()
	}

	res := o.executor.Execute(itemCtx, procrun.Spec{
		Label:       plugin.Name,
		Path:        cmd.Path,
		Args:        cmd.Args,
		Cwd:         filepath.Dir(cmd.Path),
		Timeout:     o.cfg.Timeout(),
		GracePeriod: o.cfg.GracePeriod(),
		SettleDelay: o.cfg.SettleDelay(),
		KillNow:     &o.killNow,
		OnStarted:   onStarted,
		OnLine: func(line string, stderr bool) {
			linesMu.Lock()
			lines = append(lines, line)
			linesMu.Unlock()

			o.reporter.Report(progress.Event{
				Type:      progress.EventOutput,
				Plugin:    plugin.Name,
				Timestamp: time.Now(),
				Data:      progress.EventData{OutputLine: line, IsStderr: stderr},
			})
		},
	})

	cancelItem()
	hangWG.Wait()

	item.Duration = time.Since(start)

	linesMu.Lock()
	item.Stats = cleanlog.Parse(lines)
	linesMu.Unlock()

	switch {
	case res.Cancelled:
		item.Status = state.StatusCancelled
		item.Message = "stopped before completion"
	case res.TimedOut:
		item.Status = state.StatusFailed
		item.Message = fmt.Sprintf("timed out after %s", o.cfg.Timeout())
	case res.Err != nil:
		item.Status = state.StatusFailed
		item.Message = res.Err.Error()
	case res.ExitCode != 0:
		item.Status = state.StatusFailed
		item.Message = fmt.Sprintf("xEdit exited with code %d", res.ExitCode)
	default:
		item.Status = state.StatusCleaned
	}

	o.reportItemDone(plugin.Name, item, res.Err)

	return item
}

func (o *Orchestrator) reportItemDone(plugin string, item state.ItemResult, err error) {
	eventType := progress.EventItemCompleted
	if item.Status == state.StatusFailed {
		eventType = progress.EventItemFailed
	}

	o.reporter.Report(progress.Event{
		Type:      eventType,
		Plugin:    plugin,
		Message:   item.Message,
		Timestamp: time.Now(),
		Data: progress.EventData{
			Stats:    item.Stats,
			Duration: item.Duration,
			Error:    err,
		},
	})
}
