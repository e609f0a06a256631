// Package cache keeps live session snapshots in Redis so that requests for
// in-progress interviews do not hit the database on every turn.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an idle session stays cached.
const DefaultTTL = 30 * time.Minute

// ErrMiss is returned by Get when the session is not cached.
var ErrMiss = errors.New("cache miss")

// SessionCache stores session snapshots by id.
type SessionCache interface {
	Set(ctx context.Context, snap models.SessionSnapshot) error
	Get(ctx context.Context, id string) (models.SessionSnapshot, error)
	Delete(ctx context.Context, id string) error
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache wraps a Redis client. A non-positive ttl uses DefaultTTL.
func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisSessionCache{client: client, ttl: ttl}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	slog.Debug("NewRedisClient: connected", "addr", addr)
	return rdb, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func (c *redisSessionCache) Set(ctx context.Context, snap models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(snap.ID), data, c.ttl).Err()
}

func (c *redisSessionCache) Get(ctx context.Context, id string) (models.SessionSnapshot, error) {
	data, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SessionSnapshot{}, ErrMiss
	}
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.SessionSnapshot{}, fmt.Errorf("failed to decode cached session %s: %w", id, err)
	}
	return snap, nil
}

func (c *redisSessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, sessionKey(id)).Err()
}
