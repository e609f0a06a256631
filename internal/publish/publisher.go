// Package publish emits completed reports to downstream consumers over NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/nats-io/nats.go"
)

// SubjectReportCompleted is the NATS subject for finalized reports.
const SubjectReportCompleted = "chatreport.report.completed"

// ReportCompleted is the event published when a session is finalized.
type ReportCompleted struct {
	SessionID      string              `json:"session_id"`
	RespondentName string              `json:"respondent_name,omitempty"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Alerts         models.ReportAlerts `json:"alerts"`
	Answers        map[string]string   `json:"answers"`
	Report         string              `json:"report"`
}

// NewReportCompleted builds the event for a finalized session.
func NewReportCompleted(snap models.SessionSnapshot, r models.Report) ReportCompleted {
	answers := make(map[string]string, len(snap.Answers))
	for k, a := range snap.Answers {
		answers[k] = a.Display()
	}
	return ReportCompleted{
		SessionID:      snap.ID,
		RespondentName: r.RespondentName,
		GeneratedAt:    r.GeneratedAt,
		Alerts:         r.Alerts,
		Answers:        answers,
		Report:         r.Text,
	}
}

// ReportPublisher sends completed-report events somewhere.
type ReportPublisher interface {
	PublishReport(ctx context.Context, event ReportCompleted) error
	Close()
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Opts holds configuration for the NATS publisher.
type Opts struct {
	URL     string
	Token   string
	Subject string
}

// Option configures the NATS publisher.
type Option func(*Opts)

// WithURL sets the NATS server URL.
func WithURL(url string) Option {
	return func(o *Opts) { o.URL = url }
}

// WithToken sets the NATS auth token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithSubject overrides the subject reports are published on.
func WithSubject(subject string) Option {
	return func(o *Opts) { o.Subject = subject }
}

// NATSPublisher publishes report events as JSON on a NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to NATS and returns a publisher. The connection
// retries in the background if the server is not yet reachable.
func NewNATSPublisher(opts ...Option) (*NATSPublisher, error) {
	cfg := Opts{Subject: SubjectReportCompleted}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url must be provided")
	}

	natsOpts := []nats.Option{
		nats.Name("chatreport"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATSPublisher: disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATSPublisher: reconnected")
		}),
	}
	if cfg.Token != "" {
		natsOpts = append(natsOpts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	slog.Info("NATSPublisher: connected", "url", cfg.URL, "subject", cfg.Subject)
	return &NATSPublisher{conn: nc, subject: cfg.Subject}, nil
}

// PublishReport marshals the event and publishes it.
func (p *NATSPublisher) PublishReport(ctx context.Context, event ReportCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	slog.Debug("NATSPublisher.PublishReport: published", "subject", p.subject, "session_id", event.SessionID)
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// NoopPublisher drops every event. It is used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishReport(context.Context, ReportCompleted) error { return nil }
func (NoopPublisher) Close() {}

// FinalizeHook adapts a publisher to the session manager's finalize hook.
func FinalizeHook(p ReportPublisher) func(ctx context.Context, snap models.SessionSnapshot, r models.Report) error {
	return func(ctx context.Context, snap models.SessionSnapshot, r models.Report) error {
		if err := p.PublishReport(ctx, NewReportCompleted(snap, r)); err != nil {
			return err
		}
		slog.Info("Report published", "session_id", snap.ID)
		return nil
	}
}
