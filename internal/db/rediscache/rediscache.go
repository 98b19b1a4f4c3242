// Package rediscache wraps an ECG record storage with a read-through Redis cache.
// ECG records are immutable once uploaded, so a cached copy never goes stale
// unless the whole dataset is wiped, in which case Purge must be called.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/ecgstore/internal/logger"
	"github.com/patric-chuzhbe/ecgstore/internal/models"
)

const defaultKeyPrefix = "ecgstore:ecg:"

type recordKeeper interface {
	FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error)
	InsertECG(ctx context.Context, record *models.ECGRecord) error
}

// RecordCache serves FindECG from Redis when possible and falls back to the wrapped storage.
// Redis failures are logged and never surface to the caller.
type RecordCache struct {
	next      recordKeeper
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// New wraps next with a cache kept in client. A zero ttl keeps entries without expiration.
func New(next recordKeeper, client redis.UniversalClient, ttl time.Duration) *RecordCache {
	return &RecordCache{
		next:      next,
		client:    client,
		ttl:       ttl,
		keyPrefix: defaultKeyPrefix,
	}
}

// NewClient builds a Redis client for addr and checks it with a PING.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (c *RecordCache) key(id string) string {
	return c.keyPrefix + id
}

// FindECG implements the record lookup with a cache in front of it.
func (c *RecordCache) FindECG(ctx context.Context, id string) (*models.ECGRecord, bool, error) {
	cached, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		record := &models.ECGRecord{}
		if err := json.Unmarshal(cached, record); err == nil {
			return record, true, nil
		}
		logger.Log.Debugw("dropping undecodable cache entry", "id", id)
		_ = c.client.Del(ctx, c.key(id)).Err()
	case !errors.Is(err, redis.Nil):
		logger.Log.Debugw("redis get failed", "id", id, zap.Error(err))
	}

	record, found, err := c.next.FindECG(ctx, id)
	if err != nil || !found {
		return record, found, err
	}

	c.store(ctx, record)

	return record, true, nil
}

// InsertECG passes the insert through and warms the cache on success.
func (c *RecordCache) InsertECG(ctx context.Context, record *models.ECGRecord) error {
	if err := c.next.InsertECG(ctx, record); err != nil {
		return err
	}

	c.store(ctx, record)

	return nil
}

// Purge removes every cached record.
func (c *RecordCache) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}

	return iter.Err()
}

func (c *RecordCache) store(ctx context.Context, record *models.ECGRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		logger.Log.Debugw("cannot encode ECG for cache", "id", record.ID, zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, c.key(record.ID), data, c.ttl).Err(); err != nil {
		logger.Log.Debugw("redis set failed", "id", record.ID, zap.Error(err))
	}
}
