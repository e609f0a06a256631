package flow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BTreeMap/ChatReport/internal/cache"
	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend with
// an optional read-through cache in front of it.
type StoreBasedStateManager struct {
	store store.Store
	cache cache.SessionCache
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
// c may be nil.
func NewStoreBasedStateManager(st store.Store, c cache.SessionCache) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager", "cache", c != nil)
	return &StoreBasedStateManager{store: st, cache: c}
}

// LoadSnapshot reads from the cache first and falls back to the store,
// refilling the cache on a miss.
func (sm *StoreBasedStateManager) LoadSnapshot(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	if sm.cache != nil {
		snap, err := sm.cache.Get(ctx, sessionID)
		if err == nil {
			slog.Debug("StateManager LoadSnapshot cache hit", "session_id", sessionID)
			return snap, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("StateManager LoadSnapshot cache error, falling back to store", "error", err, "session_id", sessionID)
		}
	}

	snap, err := sm.store.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("StateManager LoadSnapshot error", "error", err, "session_id", sessionID)
		}
		return models.SessionSnapshot{}, err
	}
	sm.fillCache(ctx, snap)
	return snap, nil
}

// SaveSnapshot writes through to the store, then refreshes the cache.
func (sm *StoreBasedStateManager) SaveSnapshot(ctx context.Context, snap models.SessionSnapshot) error {
	if err := sm.store.SaveSession(ctx, snap); err != nil {
		slog.Error("StateManager SaveSnapshot error", "error", err, "session_id", snap.ID)
		if sm.cache != nil {
			_ = sm.cache.Delete(ctx, snap.ID)
		}
		return err
	}
	sm.fillCache(ctx, snap)
	slog.Debug("StateManager SaveSnapshot succeeded", "session_id", snap.ID, "state", snap.State)
	return nil
}

// ResetSnapshot deletes the session from the store and the cache.
func (sm *StoreBasedStateManager) ResetSnapshot(ctx context.Context, sessionID string) error {
	if sm.cache != nil {
		if err := sm.cache.Delete(ctx, sessionID); err != nil {
			slog.Warn("StateManager ResetSnapshot cache delete failed", "error", err, "session_id", sessionID)
		}
	}
	if err := sm.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("StateManager ResetSnapshot error", "error", err, "session_id", sessionID)
		return err
	}
	return nil
}

func (sm *StoreBasedStateManager) fillCache(ctx context.Context, snap models.SessionSnapshot) {
	if sm.cache == nil {
		return
	}
	if err := sm.cache.Set(ctx, snap); err != nil {
		slog.Warn("StateManager cache set failed", "error", err, "session_id", snap.ID)
	}
}
