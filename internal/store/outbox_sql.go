package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/ChatReport/internal/util"
)

// sqlOutbox implements OutboxRepo for both SQL backends. Queries are written
// with ? placeholders and rebound for Postgres.
type sqlOutbox struct {
	db       *sql.DB
	postgres bool
	name     string
}

// Compile-time checks that both SQL stores implement OutboxRepo.
var (
	_ OutboxRepo = (*SQLiteStore)(nil)
	_ OutboxRepo = (*PostgresStore)(nil)
)

func (s *SQLiteStore) outbox() *sqlOutbox {
	return &sqlOutbox{db: s.db, name: "SQLiteStore"}
}

func (s *PostgresStore) outbox() *sqlOutbox {
	return &sqlOutbox{db: s.db, postgres: true, name: "PostgresStore"}
}

func (s *SQLiteStore) EnqueueOutboxMessage(sessionID, kind, payloadJSON, dedupeKey string) (string, error) {
	return s.outbox().enqueue(sessionID, kind, payloadJSON, dedupeKey)
}

func (s *SQLiteStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	return s.outbox().claim(now, limit)
}

func (s *SQLiteStore) MarkOutboxMessageSent(id string) error {
	return s.outbox().markSent(id)
}

func (s *SQLiteStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.outbox().fail(id, errMsg, nextAttemptAt)
}

func (s *SQLiteStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	return s.outbox().requeueStale(staleBefore)
}

func (s *PostgresStore) EnqueueOutboxMessage(sessionID, kind, payloadJSON, dedupeKey string) (string, error) {
	return s.outbox().enqueue(sessionID, kind, payloadJSON, dedupeKey)
}

func (s *PostgresStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	return s.outbox().claim(now, limit)
}

func (s *PostgresStore) MarkOutboxMessageSent(id string) error {
	return s.outbox().markSent(id)
}

func (s *PostgresStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.outbox().fail(id, errMsg, nextAttemptAt)
}

func (s *PostgresStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	return s.outbox().requeueStale(staleBefore)
}

// bind rewrites ? placeholders to $n for Postgres.
func (o *sqlOutbox) bind(query string) string {
	if !o.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (o *sqlOutbox) enqueue(sessionID, kind, payloadJSON, dedupeKey string) (string, error) {
	if dedupeKey != "" {
		var existingID string
		err := o.db.QueryRow(
			o.bind(`SELECT id FROM outbox_messages WHERE dedupe_key = ? AND status NOT IN ('sent', 'canceled')`),
			dedupeKey,
		).Scan(&existingID)
		if err == nil {
			slog.Debug(o.name+".EnqueueOutboxMessage: dedupe hit", "dedupeKey", dedupeKey, "existingID", existingID)
			return existingID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("outbox dedupe check failed: %w", err)
		}
	}

	id := util.GenerateOutboxID()
	now := time.Now()
	_, err := o.db.Exec(
		o.bind(`INSERT INTO outbox_messages (id, session_id, kind, payload_json, status, attempts, dedupe_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'queued', 0, ?, ?, ?)`),
		id, sessionID, kind, payloadJSON, nilIfEmpty(dedupeKey), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue outbox message failed: %w", err)
	}
	slog.Debug(o.name+".EnqueueOutboxMessage", "id", id, "session_id", sessionID, "kind", kind)
	return id, nil
}

// claim selects due messages and flips them to sending inside one
// transaction. Postgres additionally skips rows locked by another sender.
func (o *sqlOutbox) claim(now time.Time, limit int) ([]OutboxMessage, error) {
	tx, err := o.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("claim outbox begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT id, session_id, kind, payload_json, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at
		 FROM outbox_messages WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY created_at ASC LIMIT ?`
	if o.postgres {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	rows, err := tx.Query(o.bind(query), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due outbox messages failed: %w", err)
	}

	var msgs []OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		msgs = append(msgs, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox iteration failed: %w", err)
	}

	for i := range msgs {
		if _, err := tx.Exec(
			o.bind(`UPDATE outbox_messages SET status = 'sending', locked_at = ?, updated_at = ? WHERE id = ?`),
			now, now, msgs[i].ID,
		); err != nil {
			return nil, fmt.Errorf("mark outbox sending failed: %w", err)
		}
		locked := now
		msgs[i].Status = OutboxStatusSending
		msgs[i].LockedAt = &locked
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim outbox commit failed: %w", err)
	}
	return msgs, nil
}

func (o *sqlOutbox) markSent(id string) error {
	_, err := o.db.Exec(
		o.bind(`UPDATE outbox_messages SET status = 'sent', updated_at = ? WHERE id = ?`),
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox sent failed: %w", err)
	}
	return nil
}

func (o *sqlOutbox) fail(id, errMsg string, nextAttemptAt time.Time) error {
	_, err := o.db.Exec(
		o.bind(`UPDATE outbox_messages SET status = 'queued', attempts = attempts + 1, last_error = ?, next_attempt_at = ?, locked_at = NULL, updated_at = ? WHERE id = ?`),
		errMsg, nextAttemptAt, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("fail outbox message failed: %w", err)
	}
	return nil
}

func (o *sqlOutbox) requeueStale(staleBefore time.Time) (int, error) {
	result, err := o.db.Exec(
		o.bind(`UPDATE outbox_messages SET status = 'queued', locked_at = NULL, updated_at = ? WHERE status = 'sending' AND locked_at < ?`),
		time.Now(), staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale outbox messages failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info(o.name+".RequeueStaleSendingMessages", "requeued", n)
	}
	return int(n), nil
}
