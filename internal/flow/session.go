package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/ChatReport/internal/classify"
	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/report"
	"github.com/google/uuid"
)

// DefaultMaxReprompts is how many times an unclassifiable answer is asked
// again before it is stored as unclear.
const DefaultMaxReprompts = 3

// Session drives one respondent through a flow. It owns its answers and
// transcript; nothing is shared between sessions. A Session is not safe for
// concurrent use; SessionManager serializes access per session id.
type Session struct {
	id           string
	def          *Definition
	answers      *models.AnswerSet
	transcript   []models.TranscriptEntry
	state        models.SessionState
	current      string
	attempts     int
	visited      []string
	maxReprompts int
	now          func() time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// SessionOption configures a new Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	id           string
	name         string
	now          func() time.Time
	maxReprompts int
}

// WithSessionID sets the session id instead of generating a UUID.
func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) { c.id = id }
}

// WithRespondentName records the respondent's name up front; flows that ask
// for the name only when it is missing will then skip that step.
func WithRespondentName(name string) SessionOption {
	return func(c *sessionConfig) { c.name = strings.TrimSpace(name) }
}

// WithClock overrides the time source used for transcript timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(c *sessionConfig) { c.now = now }
}

// WithMaxReprompts overrides the reprompt budget for unclassifiable answers.
func WithMaxReprompts(n int) SessionOption {
	return func(c *sessionConfig) {
		if n >= 0 {
			c.maxReprompts = n
		}
	}
}

// NewSession creates a session in the NotStarted state.
func NewSession(def *Definition, opts ...SessionOption) *Session {
	cfg := sessionConfig{now: time.Now, maxReprompts: DefaultMaxReprompts}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}

	created := cfg.now()
	s := &Session{
		id:           cfg.id,
		def:          def,
		answers:      models.NewAnswerSet(def.Schema()),
		state:        models.SessionNotStarted,
		maxReprompts: cfg.maxReprompts,
		now:          cfg.now,
		createdAt:    created,
		updatedAt:    created,
	}
	if cfg.name != "" {
		a := models.Answer{Kind: models.InputFreeText, Raw: cfg.name, Text: cfg.name}
		if err := s.answers.Set(models.KeyPatientName, a); err != nil {
			slog.Debug("Session.NewSession: flow has no name key, respondent name not stored", "session_id", s.id)
		}
	}
	slog.Debug("Session.NewSession: created", "session_id", s.id, "start", def.Start())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() models.SessionState { return s.state }

// CurrentStepID returns the step awaiting an answer, empty unless in progress.
func (s *Session) CurrentStepID() string { return s.current }

// Answers returns the session's answer set. Callers must not modify it.
func (s *Session) Answers() *models.AnswerSet { return s.answers }

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Visited returns the ids of presented steps in order.
func (s *Session) Visited() []string {
	out := make([]string, len(s.visited))
	copy(out, s.visited)
	return out
}

// RespondentName returns the stored name or an empty string.
func (s *Session) RespondentName() string {
	a, ok := s.answers.Get(models.KeyPatientName)
	if !ok || a.Declined {
		return ""
	}
	return a.Text
}

// Progress counts answered input steps against the flow's input steps.
func (s *Session) Progress() models.Progress {
	answered := 0
	for _, st := range s.def.Steps() {
		if st.AnswerKey != "" && s.answers.Has(st.AnswerKey) {
			answered++
		}
	}
	return models.Progress{Answered: answered, Total: s.def.InputStepCount()}
}

// Start moves a new session to its first input step and returns the
// informational messages shown on the way. Calling Start on a session that
// has already started returns the current prompt without side effects.
func (s *Session) Start() (models.Turn, error) {
	switch s.state {
	case models.SessionComplete:
		return models.Turn{Complete: true}, nil
	case models.SessionInProgress:
		view, err := s.promptView(s.current)
		if err != nil {
			return models.Turn{}, err
		}
		return models.Turn{Prompt: &view}, nil
	}

	first, ok, err := FirstVisibleStep(s.def, s.answers)
	if err != nil {
		return models.Turn{}, err
	}
	s.state = models.SessionInProgress
	slog.Info("Session started", "session_id", s.id)
	if !ok {
		s.complete()
		return models.Turn{Complete: true}, nil
	}
	return s.enter(first, nil)
}

// CurrentPrompt renders the step awaiting an answer, starting the session
// if needed.
func (s *Session) CurrentPrompt() (models.PromptView, error) {
	if s.state == models.SessionNotStarted {
		if _, err := s.Start(); err != nil {
			return models.PromptView{}, err
		}
	}
	if s.state == models.SessionComplete {
		return models.PromptView{}, models.ErrSessionAlreadyComplete
	}
	return s.promptView(s.current)
}

// SubmitAnswer normalizes raw for the current step, stores it, and advances
// to the next visible step. Unclassifiable input is asked again up to the
// reprompt budget and then stored as unclear; it never blocks completion.
func (s *Session) SubmitAnswer(raw string) (models.Turn, error) {
	if s.state == models.SessionComplete {
		return models.Turn{}, models.ErrSessionAlreadyComplete
	}
	if s.state == models.SessionNotStarted {
		if _, err := s.Start(); err != nil {
			return models.Turn{}, err
		}
		if s.state == models.SessionComplete {
			return models.Turn{}, models.ErrSessionAlreadyComplete
		}
	}

	step, ok := s.def.Step(s.current)
	if !ok {
		return models.Turn{}, &models.FlowConfigurationError{StepID: s.current, Reason: "current step missing from flow"}
	}

	answer, err := Normalize(step, raw)
	if errors.Is(err, models.ErrUnclassifiableAnswer) {
		if s.attempts < s.maxReprompts {
			s.attempts++
			s.record(models.SpeakerRespondent, step.ID, raw)
			hint := repromptHint(step.Kind)
			s.record(models.SpeakerSystem, step.ID, hint)
			view, verr := s.promptView(step.ID)
			if verr != nil {
				return models.Turn{}, verr
			}
			slog.Debug("Session.SubmitAnswer: reprompting", "session_id", s.id, "step", step.ID, "attempt", s.attempts)
			return models.Turn{Messages: []string{hint}, Prompt: &view, Reprompt: true, Attempt: s.attempts + 1}, nil
		}
		slog.Warn("Session.SubmitAnswer: storing unclear answer after reprompts", "session_id", s.id, "step", step.ID, "attempts", s.attempts+1)
		answer = unclearAnswer(step, raw)
	} else if err != nil {
		return models.Turn{}, err
	}

	if err := s.answers.Set(step.AnswerKey, answer); err != nil {
		return models.Turn{}, fmt.Errorf("failed to store answer for step %s: %w", step.ID, err)
	}
	s.record(models.SpeakerRespondent, step.ID, raw)
	s.attempts = 0

	next, ok, err := NextVisibleStep(s.def, step.ID, s.answers)
	if err != nil {
		return models.Turn{}, err
	}
	if !ok {
		s.complete()
		return models.Turn{Complete: true}, nil
	}
	return s.enter(next, nil)
}

// Finalize generates the report for a completed session.
func (s *Session) Finalize(opts report.Options) (models.Report, error) {
	if s.state != models.SessionComplete {
		return models.Report{}, models.ErrSessionNotComplete
	}
	if opts.Now.IsZero() {
		opts.Now = s.updatedAt
	}
	return report.Generate(s.answers, opts), nil
}

// enter walks from id through informational steps, recording their text,
// and stops at the first input step or completes the session.
func (s *Session) enter(id string, messages []string) (models.Turn, error) {
	for {
		step, ok := s.def.Step(id)
		if !ok {
			return models.Turn{}, &models.FlowConfigurationError{StepID: id, Reason: "unknown step"}
		}
		s.visited = append(s.visited, step.ID)
		text := s.render(step.Prompt)
		s.record(models.SpeakerSystem, step.ID, text)

		if step.Kind != models.InputInformational {
			s.current = step.ID
			view := s.viewFor(step)
			return models.Turn{Messages: messages, Prompt: &view}, nil
		}

		messages = append(messages, text)
		next, ok, err := NextVisibleStep(s.def, step.ID, s.answers)
		if err != nil {
			return models.Turn{}, err
		}
		if !ok {
			s.complete()
			return models.Turn{Messages: messages, Complete: true}, nil
		}
		id = next
	}
}

func (s *Session) complete() {
	s.state = models.SessionComplete
	s.current = ""
	s.attempts = 0
	s.updatedAt = s.now()
	slog.Info("Session complete", "session_id", s.id, "answers", s.answers.Len())
}

func (s *Session) record(speaker models.Speaker, stepID, text string) {
	ts := s.now()
	s.transcript = append(s.transcript, models.TranscriptEntry{
		Speaker:   speaker,
		StepID:    stepID,
		Text:      text,
		Timestamp: ts,
	})
	s.updatedAt = ts
}

func (s *Session) render(template string) string {
	return strings.ReplaceAll(template, "{name}", s.RespondentName())
}

func (s *Session) promptView(id string) (models.PromptView, error) {
	step, ok := s.def.Step(id)
	if !ok {
		return models.PromptView{}, &models.FlowConfigurationError{StepID: id, Reason: "unknown step"}
	}
	return s.viewFor(step), nil
}

func (s *Session) viewFor(step models.Step) models.PromptView {
	var choices []string
	if len(step.Choices) > 0 {
		choices = append(choices, step.Choices...)
	}
	return models.PromptView{
		StepID:    step.ID,
		Text:      s.render(step.Prompt),
		InputKind: step.Kind,
		Choices:   choices,
		Domain:    step.Domain,
	}
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() models.SessionSnapshot {
	return models.SessionSnapshot{
		ID:             s.id,
		RespondentName: s.RespondentName(),
		State:          s.state,
		CurrentStepID:  s.current,
		Attempts:       s.attempts,
		Visited:        s.Visited(),
		Answers:        s.answers.Map(),
		Transcript:     s.Transcript(),
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
}

// RestoreSession rebuilds a session from a snapshot taken with the same flow.
func RestoreSession(def *Definition, snap models.SessionSnapshot, opts ...SessionOption) (*Session, error) {
	s := NewSession(def, append(opts, WithSessionID(snap.ID))...)
	if err := s.answers.Load(snap.Answers); err != nil {
		return nil, fmt.Errorf("failed to restore answers for session %s: %w", snap.ID, err)
	}
	switch snap.State {
	case models.SessionNotStarted, models.SessionComplete:
	case models.SessionInProgress:
		if _, ok := def.Step(snap.CurrentStepID); !ok {
			return nil, &models.FlowConfigurationError{StepID: snap.CurrentStepID, Reason: "snapshot points at unknown step"}
		}
	default:
		return nil, fmt.Errorf("unknown session state %q", snap.State)
	}
	s.state = snap.State
	s.current = snap.CurrentStepID
	s.attempts = snap.Attempts
	s.visited = append([]string(nil), snap.Visited...)
	s.transcript = append([]models.TranscriptEntry(nil), snap.Transcript...)
	s.createdAt = snap.CreatedAt
	s.updatedAt = snap.UpdatedAt
	return s, nil
}

// Normalize converts raw input into the typed answer for step. It returns
// models.ErrUnclassifiableAnswer when a yes/no or severity step gets input
// without a usable signal.
func Normalize(step models.Step, raw string) (models.Answer, error) {
	trimmed := strings.TrimSpace(raw)
	a := models.Answer{Kind: step.Kind, Raw: trimmed}

	switch step.Kind {
	case models.InputFreeText:
		a.Text = trimmed
		a.Declined = trimmed == ""
	case models.InputYesNo:
		// A numbered choice is classified by its text.
		text := trimmed
		if c, ok := classify.MatchChoice(trimmed, step.Choices); ok {
			text = c
			a.Text = c
		}
		switch classify.YesNo(text) {
		case classify.Positive:
			a.YesNo = models.YesNoYes
		case classify.Negative:
			a.YesNo = models.YesNoNo
		default:
			return a, models.ErrUnclassifiableAnswer
		}
	case models.InputSeverityScale:
		v, ok := classify.Severity(trimmed)
		if !ok {
			return a, models.ErrUnclassifiableAnswer
		}
		a.Severity = &v
	case models.InputSingleChoice:
		if c, ok := classify.MatchChoice(trimmed, step.Choices); ok {
			a.Text = c
		} else {
			a.Text = trimmed
		}
		a.Declined = trimmed == ""
	case models.InputMultiChoice:
		a.Values = classify.MatchChoices(trimmed, step.Choices)
		a.Declined = len(a.Values) == 0
	case models.InputBodyRegionMultiChoice:
		a.Values = classify.BodyRegionsFrom(trimmed)
		a.Declined = len(a.Values) == 0
	case models.InputInformational:
		return a, fmt.Errorf("%w: step %s takes no answer", models.ErrInvalidAnswer, step.ID)
	default:
		return a, fmt.Errorf("%w: unknown input kind %q", models.ErrInvalidAnswer, step.Kind)
	}
	return a, nil
}

func unclearAnswer(step models.Step, raw string) models.Answer {
	a := models.Answer{Kind: step.Kind, Raw: strings.TrimSpace(raw), Unclear: true}
	if step.Kind == models.InputYesNo {
		a.YesNo = models.YesNoUnclear
	}
	return a
}

func repromptHint(kind models.InputKind) string {
	switch kind {
	case models.InputSeverityScale:
		return "Sorry, I didn't catch that. Please answer with a number from 0 to 10, or a word like mild, moderate or severe."
	case models.InputYesNo:
		return "Sorry, I didn't catch that. Please answer yes or no, or say how much (for example, a little)."
	default:
		return "Sorry, I didn't catch that. Could you answer again?"
	}
}
