// Package store provides storage backends for ChatReport.
//
// This file implements a PostgreSQL-backed store for sessions and reports.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ChatReport/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, snap models.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", snap.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, respondent_name, state, snapshot_json, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET respondent_name = EXCLUDED.respondent_name, state = EXCLUDED.state,
		   snapshot_json = EXCLUDED.snapshot_json, updated_at = EXCLUDED.updated_at`,
		snap.ID, nilIfEmpty(snap.RespondentName), string(snap.State), string(payload), snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "session_id", snap.ID)
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "session_id", snap.ID, "state", snap.State)
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (models.SessionSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT snapshot_json FROM sessions WHERE id = $1`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SessionSnapshot{}, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "session_id", id)
		return models.SessionSnapshot{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return snap, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]models.SessionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_json FROM sessions ORDER BY created_at, id`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	var out []models.SessionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListSessions succeeded", "count", len(out))
	return out, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "session_id", id)
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, rec models.ReportRecord) error {
	alerts, err := json.Marshal(rec.Alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (session_id, respondent_name, generated_at, text, alerts_json)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO UPDATE SET respondent_name = EXCLUDED.respondent_name,
		   generated_at = EXCLUDED.generated_at, text = EXCLUDED.text, alerts_json = EXCLUDED.alerts_json`,
		rec.SessionID, nilIfEmpty(rec.RespondentName), rec.GeneratedAt, rec.Text, string(alerts),
	)
	if err != nil {
		slog.Error("PostgresStore SaveReport failed", "error", err, "session_id", rec.SessionID)
		return fmt.Errorf("failed to save report for session %s: %w", rec.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, sessionID string) (models.ReportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, respondent_name, generated_at, text, alerts_json FROM reports WHERE session_id = $1`, sessionID)
	rec, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReportRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ReportRecord{}, fmt.Errorf("failed to get report for session %s: %w", sessionID, err)
	}
	return rec, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
