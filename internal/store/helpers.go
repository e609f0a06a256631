package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/ChatReport/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot decodes the snapshot JSON column of a sessions row.
func scanSnapshot(row rowScanner) (models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	var payload string
	if err := row.Scan(&payload); err != nil {
		return snap, err
	}
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return snap, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return snap, nil
}

// scanReport scans a reports row.
func scanReport(row rowScanner) (models.ReportRecord, error) {
	var rec models.ReportRecord
	var name sql.NullString
	var alertsJSON string
	if err := row.Scan(&rec.SessionID, &name, &rec.GeneratedAt, &rec.Text, &alertsJSON); err != nil {
		return rec, err
	}
	rec.RespondentName = name.String
	if err := json.Unmarshal([]byte(alertsJSON), &rec.Alerts); err != nil {
		return rec, fmt.Errorf("failed to decode report alerts: %w", err)
	}
	return rec, nil
}

// scanOutboxMessage scans an OutboxMessage from sql.Rows.
func scanOutboxMessage(rows *sql.Rows) (OutboxMessage, error) {
	var m OutboxMessage
	var payloadJSON, dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := rows.Scan(
		&m.ID, &m.SessionID, &m.Kind, &payloadJSON, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.PayloadJSON = payloadJSON.String
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}
