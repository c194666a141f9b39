package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store using Redis SETNX for atomic first-write-wins.
//
// Keys:
//
//	nlueval:baseline:<id>        record JSON
//	nlueval:baseline:latest:<label>  id of the newest record for label
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed baseline store.
//
// Args:
//   - addr: Redis address (e.g., "localhost:6379")
//   - password: Redis password (empty string if none)
//   - db: Redis database number (0-15, typically 0)
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, prefix: "nlueval:baseline:"}, nil
}

func (r *RedisStore) recordKey(id string) string { return r.prefix + id }

func (r *RedisStore) latestKey(label string) string { return r.prefix + "latest:" + label }

func (r *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal baseline: %w", err)
	}
	return &rec, nil
}

func (r *RedisStore) Latest(ctx context.Context, label string) (*Record, error) {
	id, err := r.client.Get(ctx, r.latestKey(label)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *RedisStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("baseline record requires an id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	// SETNX: a concurrent writer for the same build id loses silently
	wasSet, err := r.client.SetNX(ctx, r.recordKey(rec.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX failed: %w", err)
	}
	if !wasSet {
		return nil
	}

	if err := r.client.Set(ctx, r.latestKey(rec.Label), rec.ID, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET latest failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
