// Package notify texts the care team when a finalized report carries
// high-priority alerts. Delivery goes through Twilio SMS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/store"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxSMSBody keeps alert texts within a few SMS segments.
const maxSMSBody = 1200

// Sender delivers one text message.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number in E.164 form.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// TwilioClient sends SMS through the Twilio REST API.
type TwilioClient struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioClient builds a client from options, falling back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER variables.
func NewTwilioClient(opts ...Option) (*TwilioClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioClient{client: client, from: cfg.From}, nil
}

// SendMessage sends an SMS.
func (c *TwilioClient) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	if resp != nil && resp.Sid != nil {
		slog.Debug("Twilio message sent", "to", to, "sid", *resp.Sid)
	}
	return nil
}

// CareTeamNotifier formats care-team alerts and sends them to one number.
type CareTeamNotifier struct {
	sender Sender
	to     string
}

// NewCareTeamNotifier returns a notifier that texts alerts to the given number.
func NewCareTeamNotifier(sender Sender, to string) (*CareTeamNotifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender must not be nil")
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("care team number must be provided")
	}
	return &CareTeamNotifier{sender: sender, to: to}, nil
}

// Notify sends one alert.
func (n *CareTeamNotifier) Notify(ctx context.Context, alert models.CareTeamAlert) error {
	if len(alert.HighPriority) == 0 {
		slog.Debug("CareTeamNotifier.Notify: nothing to send", "session_id", alert.SessionID)
		return nil
	}
	if err := n.sender.SendMessage(ctx, n.to, FormatAlert(alert)); err != nil {
		return err
	}
	slog.Info("Care team notified", "session_id", alert.SessionID, "alerts", len(alert.HighPriority))
	return nil
}

// FormatAlert renders the SMS body for an alert.
func FormatAlert(alert models.CareTeamAlert) string {
	name := alert.RespondentName
	if name == "" {
		name = "A patient"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ChatReport: %s reported %d high-priority concern(s)", name, len(alert.HighPriority))
	if !alert.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, " on %s", alert.GeneratedAt.Format("Jan 2 03:04 PM"))
	}
	b.WriteString(":")
	for _, msg := range alert.HighPriority {
		b.WriteString("\n- ")
		b.WriteString(msg)
	}
	fmt.Fprintf(&b, "\nSession %s", alert.SessionID)

	body := b.String()
	if len(body) > maxSMSBody {
		cut := maxSMSBody - 3
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return body
}

// OutboxSendFunc delivers care-team alert outbox messages through the notifier.
func OutboxSendFunc(n *CareTeamNotifier) store.OutboxSendFunc {
	return func(ctx context.Context, msg store.OutboxMessage) error {
		if msg.Kind != store.OutboxKindCareTeamAlert {
			return fmt.Errorf("unsupported outbox message kind %q", msg.Kind)
		}
		var alert models.CareTeamAlert
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &alert); err != nil {
			return fmt.Errorf("failed to decode care team alert %s: %w", msg.ID, err)
		}
		return n.Notify(ctx, alert)
	}
}

// MockClient records messages instead of sending them.
type MockClient struct {
	SentMessages []SentMessage
	Err          error
}

type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}
