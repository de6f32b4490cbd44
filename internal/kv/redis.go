package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisVersionField = "v"
	redisDataField    = "data"
)

// RedisStore keeps each entry in a hash {v, data}. Writes run inside
// WATCH/MULTI so a concurrent commit aborts the transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "kv:",
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	values, err := s.client.HMGet(ctx, s.key(key), redisVersionField, redisDataField).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("read entry: %w", err)
	}
	version, err := parseRedisVersion(values[0])
	if err != nil {
		return Entry{}, err
	}
	var data []byte
	if raw, ok := values[1].(string); ok {
		data = []byte(raw)
	}
	return Entry{Value: data, Version: version}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, baseVersion int64) (int64, error) {
	redisKey := s.key(key)
	next := baseVersion + 1
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, redisKey, redisVersionField).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read version: %w", err)
		}
		var current int64
		if err == nil {
			current, err = parseRedisVersion(raw)
			if err != nil {
				return err
			}
		}
		if current != baseVersion {
			return &ConflictError{Key: key, Expected: baseVersion, Current: current}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, redisVersionField, next, redisDataField, value)
			return nil
		})
		return err
	}, redisKey)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, &ConflictError{Key: key, Expected: baseVersion, Current: -1}
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

func parseRedisVersion(raw any) (int64, error) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return 0, nil
	}
	version, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", s, err)
	}
	return version, nil
}

// Client exposes the connection so the notifier can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
