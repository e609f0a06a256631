package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOutboxSenderPoll(t *testing.T) {
	s := NewInMemoryStore()
	okID, _ := s.EnqueueOutboxMessage("s1", OutboxKindCareTeamAlert, "{}", "")
	badID, _ := s.EnqueueOutboxMessage("s2", OutboxKindCareTeamAlert, "{}", "")

	var delivered []string
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		if msg.SessionID == "s2" {
			return errors.New("carrier unavailable")
		}
		delivered = append(delivered, msg.ID)
		return nil
	}, time.Second)
	sender.Poll(context.Background())

	if len(delivered) != 1 || delivered[0] != okID {
		t.Fatalf("delivered = %v, want [%s]", delivered, okID)
	}
	for _, m := range s.OutboxMessages() {
		switch m.ID {
		case okID:
			if m.Status != OutboxStatusSent {
				t.Errorf("ok message status = %s, want sent", m.Status)
			}
		case badID:
			if m.Status != OutboxStatusQueued || m.Attempts != 1 || m.NextAttemptAt == nil {
				t.Errorf("failed message = %+v, want requeued with backoff", m)
			}
		}
	}
}

func TestOutboxSenderRecoverStale(t *testing.T) {
	s := NewInMemoryStore()
	s.EnqueueOutboxMessage("s1", OutboxKindCareTeamAlert, "{}", "")
	if _, err := s.ClaimDueOutboxMessages(time.Now().Add(-time.Hour), 10); err != nil {
		t.Fatalf("claim: %v", err)
	}
	sender := NewOutboxSender(s, func(context.Context, OutboxMessage) error { return nil }, 0)
	if err := sender.RecoverStaleMessages(); err != nil {
		t.Fatalf("RecoverStaleMessages: %v", err)
	}
	if got := s.OutboxMessages()[0].Status; got != OutboxStatusQueued {
		t.Errorf("status after recovery = %s, want queued", got)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{-1, 10 * time.Second},
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{3, 80 * time.Second},
		{7, 1280 * time.Second},
		{8, maxRetryDelay},
		{64, maxRetryDelay},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempts); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
