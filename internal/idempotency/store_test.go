package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	return client
}

func TestRedisStore_BeginCompleteReplay(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()

	existing, claimed, err := store.Begin(ctx, "k1", "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)

	existing, claimed, err = store.Begin(ctx, "k1", "fp", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.True(t, existing.Pending)

	require.NoError(t, store.Complete(ctx, "k1", Record{
		Fingerprint: "fp",
		Status:      201,
		ContentType: "application/json",
		Body:        []byte(`{"data":{}}`),
	}, time.Minute))

	existing, claimed, err = store.Begin(ctx, "k1", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.False(t, existing.Pending)
	assert.Equal(t, 201, existing.Status)
	assert.Equal(t, "fp", existing.Fingerprint)
	assert.JSONEq(t, `{"data":{}}`, string(existing.Body))
}

func TestRedisStore_Abort(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t))
	ctx := context.Background()

	_, claimed, err := store.Begin(ctx, "k2", "fp", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Abort(ctx, "k2"))

	_, claimed, err = store.Begin(ctx, "k2", "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}
