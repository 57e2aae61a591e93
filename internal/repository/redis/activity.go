package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mentor/pkg/errors"
)

// ActivityTracker records session liveness as TTL keys in Redis. The session
// janitor releases in-memory resources for sessions whose key has expired;
// the durable state record is untouched so the session stays resumable.
type ActivityTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActivityTracker creates a new activity tracker
func NewActivityTracker(client *redis.Client, ttl time.Duration) *ActivityTracker {
	return &ActivityTracker{
		client: client,
		ttl:    ttl,
	}
}

// Touch refreshes the liveness key for a session
func (t *ActivityTracker) Touch(ctx context.Context, sessionID string) error {
	key := t.getKey(sessionID)

	if err := t.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), t.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to touch session activity: session_id=%s", sessionID)
	}

	return nil
}

// Alive reports whether the session's liveness key still exists
func (t *ActivityTracker) Alive(ctx context.Context, sessionID string) (bool, error) {
	key := t.getKey(sessionID)

	exists, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to check session activity: session_id=%s", sessionID)
	}

	return exists > 0, nil
}

// Forget removes the liveness key for a session
func (t *ActivityTracker) Forget(ctx context.Context, sessionID string) error {
	key := t.getKey(sessionID)

	if err := t.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to forget session activity: session_id=%s", sessionID)
	}

	return nil
}

func (t *ActivityTracker) getKey(sessionID string) string {
	return fmt.Sprintf("session_activity:%s", sessionID)
}
