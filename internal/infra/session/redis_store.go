package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/commerce/pkg/auth"
)

var ErrNotFound = errors.New("session not found")

const keyPrefix = "session:"

// RedisStore keeps live sessions as Redis hashes that expire after ttl.
// The session id is the jti of the token handed to the client.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Create stores a new session for the user and returns its id
func (s *RedisStore) Create(ctx context.Context, userID uuid.UUID, username string) (string, error) {
	id, err := auth.NewSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	key := keyPrefix + id
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    userID.String(),
		"username":   username,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

// Get returns the user of a live session, or ErrNotFound
func (s *RedisStore) Get(ctx context.Context, sessionID string) (uuid.UUID, error) {
	raw, err := s.rdb.HGet(ctx, keyPrefix+sessionID, "user_id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get session: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return userID, nil
}

// Delete ends a session. Deleting an unknown session is not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
