package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/report"
	"github.com/BTreeMap/ChatReport/internal/store"
)

// SessionManager loads, drives and persists sessions by id. Operations on
// the same id are serialized; different ids proceed in parallel.
type SessionManager struct {
	def          *Definition
	state        StateManager
	store        store.Store
	thresholds   report.Thresholds
	maxReprompts int
	now          func() time.Time
	hooks        []FinalizeHook

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// ManagerOption configures a SessionManager.
type ManagerOption func(*SessionManager)

// WithThresholds sets the alert thresholds used when finalizing.
func WithThresholds(t report.Thresholds) ManagerOption {
	return func(m *SessionManager) { m.thresholds = t }
}

// WithSessionMaxReprompts sets the reprompt budget for new and restored sessions.
func WithSessionMaxReprompts(n int) ManagerOption {
	return func(m *SessionManager) { m.maxReprompts = n }
}

// WithManagerClock overrides the time source handed to sessions.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *SessionManager) { m.now = now }
}

// WithFinalizeHook registers a hook run after each successful finalize.
func WithFinalizeHook(h FinalizeHook) ManagerOption {
	return func(m *SessionManager) { m.hooks = append(m.hooks, h) }
}

// NewSessionManager creates a manager over the given state manager and store.
func NewSessionManager(def *Definition, state StateManager, st store.Store, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		def:          def,
		state:        state,
		store:        st,
		thresholds:   report.DefaultThresholds(),
		maxReprompts: DefaultMaxReprompts,
		now:          time.Now,
		locks:        make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Definition returns the flow the manager drives.
func (m *SessionManager) Definition() *Definition { return m.def }

func (m *SessionManager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &keyLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

func (m *SessionManager) sessionOptions(extra ...SessionOption) []SessionOption {
	opts := []SessionOption{WithClock(m.now), WithMaxReprompts(m.maxReprompts)}
	return append(opts, extra...)
}

// Create starts a new session, persists it and returns the opening turn.
func (m *SessionManager) Create(ctx context.Context, respondentName string) (*Session, models.Turn, error) {
	s := NewSession(m.def, m.sessionOptions(WithRespondentName(respondentName))...)
	unlock := m.lock(s.ID())
	defer unlock()

	turn, err := s.Start()
	if err != nil {
		return nil, models.Turn{}, err
	}
	if err := m.state.SaveSnapshot(ctx, s.Snapshot()); err != nil {
		return nil, models.Turn{}, fmt.Errorf("failed to save new session: %w", err)
	}
	slog.Info("SessionManager.Create: session created", "session_id", s.ID())
	return s, turn, nil
}

// Load restores a session from storage.
func (m *SessionManager) Load(ctx context.Context, id string) (*Session, error) {
	unlock := m.lock(id)
	defer unlock()
	return m.load(ctx, id)
}

func (m *SessionManager) load(ctx context.Context, id string) (*Session, error) {
	snap, err := m.state.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return RestoreSession(m.def, snap, m.sessionOptions()...)
}

// Save persists the session's current snapshot.
func (m *SessionManager) Save(ctx context.Context, s *Session) error {
	unlock := m.lock(s.ID())
	defer unlock()
	return m.state.SaveSnapshot(ctx, s.Snapshot())
}

// List returns all stored sessions.
func (m *SessionManager) List(ctx context.Context) ([]models.SessionSnapshot, error) {
	return m.store.ListSessions(ctx)
}

// Submit applies one raw answer to the stored session and persists the result.
func (m *SessionManager) Submit(ctx context.Context, id, raw string) (*Session, models.Turn, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, models.Turn{}, err
	}
	turn, err := s.SubmitAnswer(raw)
	if err != nil {
		return s, models.Turn{}, err
	}
	if err := m.state.SaveSnapshot(ctx, s.Snapshot()); err != nil {
		return nil, models.Turn{}, fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return s, turn, nil
}

// Reset discards the session's answers and transcript and starts it again
// under the same id.
func (m *SessionManager) Reset(ctx context.Context, id string) (*Session, models.Turn, error) {
	unlock := m.lock(id)
	defer unlock()

	if _, err := m.state.LoadSnapshot(ctx, id); err != nil {
		return nil, models.Turn{}, err
	}
	if err := m.state.ResetSnapshot(ctx, id); err != nil {
		return nil, models.Turn{}, err
	}
	s := NewSession(m.def, m.sessionOptions(WithSessionID(id))...)
	turn, err := s.Start()
	if err != nil {
		return nil, models.Turn{}, err
	}
	if err := m.state.SaveSnapshot(ctx, s.Snapshot()); err != nil {
		return nil, models.Turn{}, fmt.Errorf("failed to save reset session %s: %w", id, err)
	}
	slog.Info("SessionManager.Reset: session restarted", "session_id", id)
	return s, turn, nil
}

// Finalize generates and stores the report of a completed session, queues a
// care-team alert when high-priority alerts are present, and runs hooks.
func (m *SessionManager) Finalize(ctx context.Context, id string, appt models.Appointment) (models.Report, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return models.Report{}, err
	}
	r, err := s.Finalize(report.Options{Appointment: appt, Thresholds: m.thresholds})
	if err != nil {
		return models.Report{}, err
	}
	if err := m.store.SaveReport(ctx, models.NewReportRecord(id, r)); err != nil {
		return models.Report{}, fmt.Errorf("failed to save report for session %s: %w", id, err)
	}

	if len(r.Alerts.HighPriority) > 0 {
		if err := m.enqueueCareTeamAlert(id, r); err != nil {
			slog.Error("SessionManager.Finalize: failed to queue care team alert", "error", err, "session_id", id)
		}
	}

	snap := s.Snapshot()
	for _, h := range m.hooks {
		if err := h(ctx, snap, r); err != nil {
			slog.Warn("SessionManager.Finalize: hook failed", "error", err, "session_id", id)
		}
	}
	slog.Info("SessionManager.Finalize: report generated", "session_id", id,
		"high_priority", len(r.Alerts.HighPriority), "monitor", len(r.Alerts.Monitor))
	return r, nil
}

func (m *SessionManager) enqueueCareTeamAlert(id string, r models.Report) error {
	payload, err := json.Marshal(models.CareTeamAlert{
		SessionID:      id,
		RespondentName: r.RespondentName,
		GeneratedAt:    r.GeneratedAt,
		HighPriority:   r.Alerts.HighPriority,
	})
	if err != nil {
		return err
	}
	msgID, err := m.store.EnqueueOutboxMessage(id, store.OutboxKindCareTeamAlert, string(payload), "alert:"+id)
	if err != nil {
		return err
	}
	slog.Debug("SessionManager.enqueueCareTeamAlert: queued", "session_id", id, "outbox_id", msgID)
	return nil
}

// Report returns the stored report of a finalized session.
func (m *SessionManager) Report(ctx context.Context, id string) (models.ReportRecord, error) {
	return m.store.GetReport(ctx, id)
}
