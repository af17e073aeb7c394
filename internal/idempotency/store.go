// Package idempotency replays responses of retried POST requests that
// carry an Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is the stored outcome of the first request seen for a key. A
// pending record marks a request that is still being processed.
type Record struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Store persists idempotency records.
type Store interface {
	// Begin claims key for a new request. When the key is already taken
	// it returns the existing record and false.
	Begin(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error)
	Complete(ctx context.Context, key string, record Record, ttl time.Duration) error
	Abort(ctx context.Context, key string) error
}

// RedisStore keeps records in Redis under a common prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store over client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "idempotency:"}
}

func (s *RedisStore) Begin(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error) {
	pending, err := json.Marshal(Record{Fingerprint: fingerprint, Pending: true})
	if err != nil {
		return nil, false, err
	}
	claimed, err := s.client.SetNX(ctx, s.prefix+key, pending, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if claimed {
		return nil, true, nil
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry the claim
		return s.Begin(ctx, key, fingerprint, ttl)
	}
	if err != nil {
		return nil, false, err
	}
	var existing Record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, record Record, ttl time.Duration) error {
	record.Pending = false
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, ttl).Err()
}

func (s *RedisStore) Abort(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
