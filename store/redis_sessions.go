package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync-engine/engine"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps boost checkout sessions as keys with a TTL, so
// abandoned checkouts expire on their own.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "boost-session"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (r *RedisSessionStore) key(sessionID string) string {
	return r.prefix + ":" + sessionID
}

func (r *RedisSessionStore) SaveSession(ctx context.Context, sessionID, issueID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(sessionID), issueID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session: %v", engine.ErrUnavailable, err)
	}
	return nil
}

func (r *RedisSessionStore) LookupSession(ctx context.Context, sessionID string) (string, error) {
	issueID, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: session %q", engine.ErrNotFound, sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: lookup session: %v", engine.ErrUnavailable, err)
	}
	return issueID, nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", engine.ErrUnavailable, err)
	}
	return nil
}
