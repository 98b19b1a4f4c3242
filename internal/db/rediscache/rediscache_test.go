package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/ecgstore/internal/db/memorystorage"
	"github.com/patric-chuzhbe/ecgstore/internal/models"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestFallsBackToStorageWhenRedisIsDown(t *testing.T) {
	store, err := memorystorage.New()
	require.NoError(t, err)

	cache := New(store, unreachableClient(t), time.Minute)
	ctx := context.Background()

	record := &models.ECGRecord{ID: "cached", Owner: "alice", Date: 1, Leads: []models.Lead{{Name: "I"}}}
	require.NoError(t, cache.InsertECG(ctx, record))

	found, ok, err := cache.FindECG(ctx, "cached")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", found.Owner)

	_, ok, err = cache.FindECG(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, cache.InsertECG(ctx, record), models.ErrECGAlreadyExists)
}

func TestKeyPrefix(t *testing.T) {
	cache := New(nil, nil, 0)
	assert.Equal(t, "ecgstore:ecg:test1", cache.key("test1"))
}
