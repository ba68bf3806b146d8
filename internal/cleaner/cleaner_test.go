// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package cleaner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evildarkarchon/autoqac/internal/config"
	"github.com/evildarkarchon/autoqac/internal/ctxlog"
	"github.com/evildarkarchon/autoqac/internal/doctor"
	"github.com/evildarkarchon/autoqac/internal/gamemode"
	"github.com/evildarkarchon/autoqac/internal/loadorder"
	"github.com/evildarkarchon/autoqac/internal/procrun"
	"github.com/evildarkarchon/autoqac/internal/state"
)

type fakeExecutor struct {
	mu          sync.Mutex
	executed    []string
	started     chan string
	inFlight    int
	maxInFlight int
	results     map[string]procrun.Result
	blockOnCtx  bool // block until the context is cancelled
	pollKillNow bool // block until the force-stop flag is set
	sweepErr    error
}

func (f *fakeExecutor) Execute(ctx context.Context, spec procrun.Spec) procrun.Result {
	f.mu.Lock()
	f.executed = append(f.executed, spec.Label)
	f.inFlight++

	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.started != nil {
		f.started <- spec.Label
	}

	if f.pollKillNow {
		for !spec.KillNow.Load() {
			time.Sleep(time.Millisecond)
		}

		return procrun.Result{Label: spec.Label, ExitCode: -1, Cancelled: true, Err: procrun.ErrForceStopped}
	}

	if f.blockOnCtx {
		<-ctx.Done()
		return procrun.Result{Label: spec.Label, ExitCode: -1, Cancelled: true, Err: procrun.ErrCancelled}
	}

	if res, ok := f.results[spec.Label]; ok {
		return res
	}

	if spec.OnLine != nil {
		spec.OnLine("[Removing \"junk\"] Removing: GRUP Cell", false)
		spec.OnLine("Undeleting: [REFR:00012345]", false)
		spec.OnLine("Quick Clean mode finished", false)
	}

	return procrun.Result{Label: spec.Label, ExitCode: 0}
}

func (f *fakeExecutor) SweepOrphans(_ context.Context) (procrun.SweepResult, error) {
	return procrun.SweepResult{}, f.sweepErr
}

func (f *fakeExecutor) labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.executed...)
}

type fakeBackup struct {
	mu         sync.Mutex
	sessionDir string
	root       string
	dirErr     error
	backupErr  error
	backedUp   []string
}

func (f *fakeBackup) NewSessionDir(root string) (string, error) {
	f.mu.Lock()
	f.root = root
	f.mu.Unlock()

	if f.dirErr != nil {
		return "", f.dirErr
	}

	return f.sessionDir, nil
}

func (f *fakeBackup) Backup(srcPath, _ string) (string, error) {
	if f.backupErr != nil {
		return "", f.backupErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.backedUp = append(f.backedUp, srcPath)

	return "/backups/session/" + srcPath, nil
}

func (f *fakeBackup) CleanupOldSessions(_ string, _ int, _ string) error {
	return nil
}

type fakeValidator struct {
	result *doctor.Result
}

func (f *fakeValidator) Validate() *doctor.Result {
	if f.result != nil {
		return f.result
	}

	return &doctor.Result{Valid: true}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.XEditPath = "/xedit/FO4Edit.exe"
	cfg.LoadOrderPath = "/profile/plugins.txt"
	cfg.BackupsEnabled = false

	return cfg
}

func testPlugins(names ...string) []loadorder.Plugin {
	plugins := make([]loadorder.Plugin, 0, len(names))
	for _, n := range names {
		plugins = append(plugins, loadorder.Plugin{Name: n, Path: "/data/" + n})
	}

	return plugins
}

func testCtx(t *testing.T) context.Context {
	t.Helper()

	return ctxlog.New(t.Context(), ctxlog.DefaultLogger)
}

func TestRunSessionCleansAllPlugins(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{}
	store := state.NewStore()
	o := New(testConfig(), store, exec, &fakeBackup{}, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp", "B.esp"))

	require.NoError(t, result.Err)
	assert.Equal(t, gamemode.Fallout4, result.Game)
	assert.False(t, result.Cancelled)
	require.Len(t, result.Items, 2)

	for _, item := range result.Items {
		assert.Equal(t, state.StatusCleaned, item.Status)
		assert.Equal(t, 1, item.Stats.ITMs)
		assert.Equal(t, 1, item.Stats.UDRs)
	}

	assert.Equal(t, []string{"A.esp", "B.esp"}, exec.labels())

	snap := store.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	require.NotNil(t, snap.LastSession)
	assert.Equal(t, result.ID, snap.LastSession.ID)
}

func TestRunSessionIsStrictlySequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{}
	o := New(testConfig(), state.NewStore(), exec, &fakeBackup{}, &fakeValidator{})

	o.RunSession(testCtx(t), testPlugins("A.esp", "B.esp", "C.esp", "D.esp"))

	assert.Equal(t, 1, exec.maxInFlight, "more than one process was in flight")
	assert.Equal(t, []string{"A.esp", "B.esp", "C.esp", "D.esp"}, exec.labels())
}

func TestRunSessionContinuesAfterItemFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{results: map[string]procrun.Result{
		"B.esp": {Label: "B.esp", ExitCode: 1},
	}}
	o := New(testConfig(), state.NewStore(), exec, &fakeBackup{}, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp", "B.esp", "C.esp"))

	require.NoError(t, result.Err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, state.StatusCleaned, result.Items[0].Status)
	assert.Equal(t, state.StatusFailed, result.Items[1].Status)
	assert.Equal(t, state.StatusCleaned, result.Items[2].Status)
}

func TestRunSessionSkipsExcludedPlugins(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{}
	o := New(testConfig(), state.NewStore(), exec, &fakeBackup{}, &fakeValidator{})

	// Fallout4.esm is on the bundled skip list for Fallout 4.
	result := o.RunSession(testCtx(t), testPlugins("Fallout4.esm", "Mod.esp"))

	require.NoError(t, result.Err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, state.StatusSkipped, result.Items[0].Status)
	assert.Equal(t, state.StatusCleaned, result.Items[1].Status)
	assert.Equal(t, []string{"Mod.esp"}, exec.labels(), "excluded plugin reached the executor")
}

func TestRunSessionValidationFailureAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{}
	store := state.NewStore()
	v := &fakeValidator{result: &doctor.Result{
		Valid:  false,
		Errors: []doctor.Issue{{Category: "xedit", Message: "xedit not found"}},
	}}
	o := New(testConfig(), store, exec, &fakeBackup{}, v)

	result := o.RunSession(testCtx(t), testPlugins("A.esp"))

	assert.ErrorIs(t, result.Err, ErrValidationFailed)
	assert.Empty(t, result.Items)
	assert.Empty(t, exec.labels())

	// Even an aborted session publishes a terminal result.
	snap := store.Snapshot()
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	require.NotNil(t, snap.LastSession)
	assert.ErrorIs(t, snap.LastSession.Err, ErrValidationFailed)
}

func TestRunSessionUndeterminedGameAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.XEditPath = "/xedit/xedit.exe" // generic name carries no game info

	exec := &fakeExecutor{}
	o := New(cfg, state.NewStore(), exec, &fakeBackup{}, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("SomeMod.esp"))

	assert.ErrorIs(t, result.Err, ErrGameUndetermined)
	assert.Empty(t, exec.labels())
}

func TestRunSessionStopMarksRemainingCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{started: make(chan string), blockOnCtx: true}
	store := state.NewStore()
	o := New(testConfig(), store, exec, &fakeBackup{}, &fakeValidator{})

	done := make(chan state.SessionResult, 1)

	go func() {
		done <- o.RunSession(testCtx(t), testPlugins("A.esp", "B.esp", "C.esp"))
	}()

	<-exec.started
	o.RequestStop()

	result := <-done

	assert.True(t, result.Cancelled)
	require.Len(t, result.Items, 3)
	assert.Equal(t, state.StatusCancelled, result.Items[0].Status)
	assert.Equal(t, state.StatusCancelled, result.Items[1].Status)
	assert.Equal(t, state.StatusCancelled, result.Items[2].Status)
	assert.Equal(t, []string{"A.esp"}, exec.labels(), "a plugin was spawned after the stop")
}

func TestRunSessionSecondStopEscalatesToForceKill(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{started: make(chan string), pollKillNow: true}
	store := state.NewStore()
	o := New(testConfig(), store, exec, &fakeBackup{}, &fakeValidator{})

	done := make(chan state.SessionResult, 1)

	go func() {
		done <- o.RunSession(testCtx(t), testPlugins("A.esp", "B.esp"))
	}()

	<-exec.started
	o.RequestStop()
	o.RequestStop() // escalation

	result := <-done

	assert.True(t, result.Cancelled)
	require.Len(t, result.Items, 2)
	assert.Equal(t, state.StatusCancelled, result.Items[0].Status)

	snap := store.Snapshot()
	require.NotNil(t, snap.LastSession)
	assert.True(t, snap.LastSession.Cancelled)
}

func TestRunSessionBackupFailureDoesNotBlockCleaning(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.BackupsEnabled = true
	cfg.BackupRoot = "/backups"

	backup := &fakeBackup{sessionDir: "/backups/session", backupErr: errors.New("disk full")}
	exec := &fakeExecutor{}
	o := New(cfg, state.NewStore(), exec, backup, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp"))

	require.NoError(t, result.Err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, state.StatusCleaned, result.Items[0].Status)
	assert.Empty(t, result.Items[0].BackupPath)
	assert.NotEmpty(t, result.Warnings)
}

func TestRunSessionBacksUpBeforeCleaning(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.BackupsEnabled = true
	cfg.BackupRoot = "/backups"

	backup := &fakeBackup{sessionDir: "/backups/session"}
	exec := &fakeExecutor{}
	o := New(cfg, state.NewStore(), exec, backup, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp"))

	require.NoError(t, result.Err)
	assert.Equal(t, []string{"/data/A.esp"}, backup.backedUp)
	assert.NotEmpty(t, result.Items[0].BackupPath)
}

func TestRunSessionDerivesBackupRootFromDataDir(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.BackupsEnabled = true
	cfg.BackupRoot = ""
	cfg.DataDir = "/games/fallout4/Data"

	backup := &fakeBackup{sessionDir: "/games/fallout4/AutoQAC Backups/session"}
	exec := &fakeExecutor{}
	o := New(cfg, state.NewStore(), exec, backup, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp"))

	require.NoError(t, result.Err)
	assert.Equal(t, filepath.Join("/games/fallout4", config.DefaultBackupDirName), backup.root)
	assert.NotEmpty(t, result.Items[0].BackupPath)
}

func TestRunSessionWithoutBackupRootOrDataDirWarnsAndContinues(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.BackupsEnabled = true
	cfg.BackupRoot = ""
	cfg.DataDir = ""

	backup := &fakeBackup{}
	exec := &fakeExecutor{}
	o := New(cfg, state.NewStore(), exec, backup, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp"))

	require.NoError(t, result.Err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, state.StatusCleaned, result.Items[0].Status)
	assert.Empty(t, result.Items[0].BackupPath)
	assert.Empty(t, backup.root)
	assert.NotEmpty(t, result.Warnings)
}

func TestRunSessionRejectsConcurrentSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{started: make(chan string), blockOnCtx: true}
	o := New(testConfig(), state.NewStore(), exec, &fakeBackup{}, &fakeValidator{})

	done := make(chan state.SessionResult, 1)

	go func() {
		done <- o.RunSession(testCtx(t), testPlugins("A.esp"))
	}()

	<-exec.started

	second := o.RunSession(testCtx(t), testPlugins("B.esp"))
	assert.ErrorIs(t, second.Err, ErrSessionActive)

	o.RequestForceStop()
	<-done
}

func TestRunSessionEmptyBatchStillPublishesResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := state.NewStore()
	o := New(testConfig(), store, &fakeExecutor{}, &fakeBackup{}, &fakeValidator{})

	result := o.RunSession(testCtx(t), nil)

	require.NoError(t, result.Err)
	assert.Empty(t, result.Items)
	require.NotNil(t, store.Snapshot().LastSession)
}

func TestRunSessionOrphanSweepFailureIsWarningOnly(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{sweepErr: errors.New("permission denied")}
	o := New(testConfig(), state.NewStore(), exec, &fakeBackup{}, &fakeValidator{})

	result := o.RunSession(testCtx(t), testPlugins("A.esp"))

	require.NoError(t, result.Err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, state.StatusCleaned, result.Items[0].Status)
	assert.NotEmpty(t, result.Warnings)
}
