// Package store provides storage backends for ChatReport.
//
// It persists session snapshots, finalized reports and the care-team alert
// outbox. An in-memory store serves tests and the console mode; SQLite and
// PostgreSQL back the HTTP service.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/util"
)

// ErrNotFound is returned when a session or report does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for sessions and reports.
type Store interface {
	SaveSession(ctx context.Context, snap models.SessionSnapshot) error
	GetSession(ctx context.Context, id string) (models.SessionSnapshot, error)
	ListSessions(ctx context.Context) ([]models.SessionSnapshot, error)
	DeleteSession(ctx context.Context, id string) error
	SaveReport(ctx context.Context, rec models.ReportRecord) error
	GetReport(ctx context.Context, sessionID string) (models.ReportRecord, error)
	OutboxRepo
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // data source name or file path
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open returns a SQLite or Postgres store depending on the DSN.
func Open(dsn string) (Store, error) {
	switch DetectDSNType(dsn) {
	case "postgres":
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// InMemoryStore keeps everything in maps guarded by a mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionSnapshot
	reports  map[string]models.ReportRecord
	outbox   map[string]*OutboxMessage
	order    []string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.SessionSnapshot),
		reports:  make(map[string]models.ReportRecord),
		outbox:   make(map[string]*OutboxMessage),
	}
}

func (s *InMemoryStore) SaveSession(ctx context.Context, snap models.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.ID] = snap
	slog.Debug("InMemoryStore.SaveSession", "session_id", snap.ID, "state", snap.State)
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id string) (models.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[id]
	if !ok {
		return models.SessionSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *InMemoryStore) ListSessions(ctx context.Context) ([]models.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SessionSnapshot, 0, len(s.sessions))
	for _, snap := range s.sessions {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.reports, id)
	return nil
}

func (s *InMemoryStore) SaveReport(ctx context.Context, rec models.ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[rec.SessionID] = rec
	return nil
}

func (s *InMemoryStore) GetReport(ctx context.Context, sessionID string) (models.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.reports[sessionID]
	if !ok {
		return models.ReportRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(sessionID, kind, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusSent && m.Status != OutboxStatusCanceled {
				return m.ID, nil
			}
		}
	}
	now := time.Now()
	id := util.GenerateOutboxID()
	s.outbox[id] = &OutboxMessage{
		ID:          id,
		SessionID:   sessionID,
		Kind:        kind,
		PayloadJSON: payloadJSON,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboxMessage
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		m := s.outbox[id]
		if m.Status != OutboxStatusQueued {
			continue
		}
		if m.NextAttemptAt != nil && m.NextAttemptAt.After(now) {
			continue
		}
		locked := now
		m.Status = OutboxStatusSending
		m.LockedAt = &locked
		m.UpdatedAt = now
		out = append(out, *m)
	}
	return out, nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = OutboxStatusSent
	m.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return ErrNotFound
	}
	next := nextAttemptAt
	m.Status = OutboxStatusQueued
	m.Attempts++
	m.LastError = errMsg
	m.NextAttemptAt = &next
	m.LockedAt = nil
	m.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.outbox {
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			m.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// OutboxMessages returns a copy of all outbox messages in enqueue order.
func (s *InMemoryStore) OutboxMessages() []OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OutboxMessage, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.outbox[id])
	}
	return out
}

func (s *InMemoryStore) Close() error { return nil }
