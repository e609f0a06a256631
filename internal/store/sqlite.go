// Package store provides storage backends for ChatReport.
//
// This file implements an SQLite-backed store for sessions and reports.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/ChatReport/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, snap models.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", snap.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, respondent_name, state, snapshot_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET respondent_name = excluded.respondent_name, state = excluded.state,
		   snapshot_json = excluded.snapshot_json, updated_at = excluded.updated_at`,
		snap.ID, nilIfEmpty(snap.RespondentName), string(snap.State), string(payload), snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "session_id", snap.ID)
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "session_id", snap.ID, "state", snap.State)
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (models.SessionSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT snapshot_json FROM sessions WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SessionSnapshot{}, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "session_id", id)
		return models.SessionSnapshot{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return snap, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]models.SessionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_json FROM sessions ORDER BY created_at, id`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "count", len(out))
	return out, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete report for session %s: %w", id, err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "session_id", id)
	return nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, rec models.ReportRecord) error {
	alerts, err := json.Marshal(rec.Alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (session_id, respondent_name, generated_at, text, alerts_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET respondent_name = excluded.respondent_name,
		   generated_at = excluded.generated_at, text = excluded.text, alerts_json = excluded.alerts_json`,
		rec.SessionID, nilIfEmpty(rec.RespondentName), rec.GeneratedAt, rec.Text, string(alerts),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveReport failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to save report for session %s: %w", rec.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveReport succeeded", "session_id", rec.SessionID)
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, sessionID string) (models.ReportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, respondent_name, generated_at, text, alerts_json FROM reports WHERE session_id = ?`, sessionID)
	rec, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReportRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ReportRecord{}, fmt.Errorf("failed to get report for session %s: %w", sessionID, err)
	}
	return rec, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
