package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a JSON value under session:<user id> with an expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a store over client whose keys expire ttl after the last write.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10)
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	data, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt value is treated as absent and overwritten by the next write.
		return Session{}, nil
	}
	return s, nil
}

// Merge implements Store.
func (r *RedisStore) Merge(ctx context.Context, userID int64, u Update) (Session, error) {
	current, err := r.Get(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	next := u.Apply(current)
	if err := r.put(ctx, userID, next); err != nil {
		return Session{}, err
	}
	return next, nil
}

// ClearState implements Store.
func (r *RedisStore) ClearState(ctx context.Context, userID int64) error {
	current, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if current == (Session{}) {
		return nil
	}
	current.State = StateIdle
	return r.put(ctx, userID, current)
}

// Ping checks the connection; the bot exposes it as its health check.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) put(ctx context.Context, userID int64, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
