// Package store provides storage backends for Yard.
//
// This file implements the Redis-backed session and dedup repositories.
// Redis expires keys natively, so no Purger is needed here.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/findhomeng/yard/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionKeyPrefix = "yard:session:"
	redisDedupKeyPrefix   = "yard:msg:"
)

// RedisStore keeps sessions and idempotency records in Redis with native
// key TTLs. It does not cover listings, searches, or appointments; compose
// it next to a SQL store for those.
type RedisStore struct {
	client *redis.Client
}

var (
	_ SessionRepo = (*RedisStore)(nil)
	_ DedupRepo   = (*RedisStore)(nil)
)

// NewRedisStore creates a Redis-backed session and dedup store from a
// redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("Redis store connected", "addr", opt.Addr)
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	raw, err := s.client.Get(ctx, redisSessionKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", userID, err)
	}
	if sess.Answers == nil {
		sess.Answers = make(map[string]string)
	}
	return &sess, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session *models.Session) error {
	if session == nil || session.UserID == "" {
		return models.ErrEmptyUserID
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session for %s: %w", session.UserID, err)
	}
	key := redisSessionKeyPrefix + session.UserID
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, 0)
	pipe.Expire(ctx, key, models.SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("RedisStore SaveSession failed", "error", err, "user_id", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	if err := s.client.Del(ctx, redisSessionKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, models.ErrEmptyMessageID
	}
	n, err := s.client.Exists(ctx, redisDedupKeyPrefix+messageID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, messageID string) error {
	if messageID == "" {
		return models.ErrEmptyMessageID
	}
	if err := s.client.Set(ctx, redisDedupKeyPrefix+messageID, "1", DedupTTL).Err(); err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
