package flow

import (
	"context"

	"github.com/BTreeMap/ChatReport/internal/models"
)

// StateManager persists session snapshots between turns.
type StateManager interface {
	// LoadSnapshot returns the stored snapshot or store.ErrNotFound.
	LoadSnapshot(ctx context.Context, sessionID string) (models.SessionSnapshot, error)

	// SaveSnapshot writes the snapshot, replacing any previous version.
	SaveSnapshot(ctx context.Context, snap models.SessionSnapshot) error

	// ResetSnapshot removes everything stored for the session.
	ResetSnapshot(ctx context.Context, sessionID string) error
}

// FinalizeHook runs after a report has been generated and stored. Hook
// errors are logged and do not fail the finalize call.
type FinalizeHook func(ctx context.Context, snap models.SessionSnapshot, r models.Report) error
