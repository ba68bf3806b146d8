// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history persists completed session results to a local SQLite
// database so past runs can be inspected after the process exits. History is
// an observer of the orchestrator, never a dependency: recording failures
// are reported but do not affect cleaning.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/evildarkarchon/autoqac/internal/state"
)

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}

	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
  id         TEXT PRIMARY KEY,
  game       TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at   TEXT NOT NULL,
  cancelled  INTEGER NOT NULL DEFAULT 0,
  error      TEXT
);`,
		`CREATE TABLE IF NOT EXISTS session_items (
  session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  position      INTEGER NOT NULL,
  plugin        TEXT NOT NULL,
  status        TEXT NOT NULL,
  itms          INTEGER NOT NULL DEFAULT 0,
  udrs          INTEGER NOT NULL DEFAULT 0,
  navmeshes     INTEGER NOT NULL DEFAULT 0,
  partial_forms INTEGER NOT NULL DEFAULT 0,
  duration_ms   INTEGER NOT NULL DEFAULT 0,
  message       TEXT,
  PRIMARY KEY (session_id, position)
);`,
		`CREATE INDEX IF NOT EXISTS sessions_started_at_idx ON sessions(started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap history database: %w", err)
		}
	}

	return nil
}

// RecordSession writes one completed session and its items in a single
// transaction.
func (s *Store) RecordSession(ctx context.Context, r state.SessionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, game, started_at, ended_at, cancelled, error) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Game.String(), r.Started.UTC().Format(time.RFC3339), r.Ended.UTC().Format(time.RFC3339),
		boolToInt(r.Cancelled), errText,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, item := range r.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_items
  (session_id, position, plugin, status, itms, udrs, navmeshes, partial_forms, duration_ms, message)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, item.Name, item.Status.String(),
			item.Stats.ITMs, item.Stats.UDRs, item.Stats.Navmeshes, item.Stats.PartialForms,
			item.Duration.Milliseconds(), item.Message,
		); err != nil {
			return fmt.Errorf("insert session item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}

	return nil
}

// Session is one recorded session, newest first in listings.
type Session struct {
	ID        string
	Game      string
	Started   time.Time
	Ended     time.Time
	Cancelled bool
	Error     string
	Cleaned   int
	Skipped   int
	Failed    int
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.game, s.started_at, s.ended_at, s.cancelled, COALESCE(s.error, ''),
  COALESCE(SUM(CASE WHEN i.status = 'cleaned' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN i.status = 'skipped' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN i.status = 'failed' THEN 1 ELSE 0 END), 0)
FROM sessions s
LEFT JOIN session_items i ON i.session_id = s.id
GROUP BY s.id
ORDER BY s.started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sessions []Session

	for rows.Next() {
		var (
			sess               Session
			startedAt, endedAt string
			cancelled          int
		)

		if err := rows.Scan(&sess.ID, &sess.Game, &startedAt, &endedAt, &cancelled, &sess.Error,
			&sess.Cleaned, &sess.Skipped, &sess.Failed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		sess.Cancelled = cancelled != 0
		sess.Started, _ = time.Parse(time.RFC3339, startedAt)
		sess.Ended, _ = time.Parse(time.RFC3339, endedAt)

		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// Item is one recorded plugin outcome.
type Item struct {
	Plugin       string
	Status       string
	ITMs         int
	UDRs         int
	Navmeshes    int
	PartialForms int
	Duration     time.Duration
	Message      string
}

// SessionItems returns a session's items in processing order.
func (s *Store) SessionItems(ctx context.Context, sessionID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT plugin, status, itms, udrs, navmeshes, partial_forms, duration_ms, COALESCE(message, '')
FROM session_items
WHERE session_id = ?
ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session items: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var items []Item

	for rows.Next() {
		var (
			item       Item
			durationMS int64
		)

		if err := rows.Scan(&item.Plugin, &item.Status, &item.ITMs, &item.UDRs,
			&item.Navmeshes, &item.PartialForms, &durationMS, &item.Message); err != nil {
			return nil, fmt.Errorf("scan session item: %w", err)
		}

		item.Duration = time.Duration(durationMS) * time.Millisecond

		items = append(items, item)
	}

	return items, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
