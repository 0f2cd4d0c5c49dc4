// services/store.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrKeyNotFound is returned by Get when a key is absent or has expired.
var ErrKeyNotFound = errors.New("key not found")

type mutationOp int

const (
	opSet mutationOp = iota
	opIncr
	opExpire
	opDelete
)

// Mutation is a single key mutation to be applied as part of an atomic batch.
type Mutation struct {
	op    mutationOp
	key   string
	value string
	ttl   time.Duration
}

// SetKey stores value under key with the given expiry.
func SetKey(key, value string, ttl time.Duration) Mutation {
	return Mutation{op: opSet, key: key, value: value, ttl: ttl}
}

// IncrKey increments the integer counter at key.
func IncrKey(key string) Mutation {
	return Mutation{op: opIncr, key: key}
}

// ExpireKey sets the expiry of an existing key.
func ExpireKey(key string, ttl time.Duration) Mutation {
	return Mutation{op: opExpire, key: key, ttl: ttl}
}

// DeleteKey removes key.
func DeleteKey(key string) Mutation {
	return Mutation{op: opDelete, key: key}
}

// KVStore is the state store used by the OTP and password-reset engines.
// Apply executes its mutations as a single atomic batch: either all of them
// become visible or none do, so a concurrent reader can never observe a
// half-written issuance.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Apply(ctx context.Context, mutations ...Mutation) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore implements KVStore on a Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a KVStore backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the value at key, or ErrKeyNotFound when absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Apply executes the mutations inside a MULTI/EXEC transaction.
func (s *RedisStore) Apply(ctx context.Context, mutations ...Mutation) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range mutations {
			switch m.op {
			case opSet:
				pipe.Set(ctx, m.key, m.value, m.ttl)
			case opIncr:
				pipe.Incr(ctx, m.key)
			case opExpire:
				pipe.Expire(ctx, m.key, m.ttl)
			case opDelete:
				pipe.Del(ctx, m.key)
			}
		}
		return nil
	})
	return err
}

// Incr atomically increments the counter at key, setting the expiry when
// the increment created the key.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		s.client.Expire(ctx, key, ttl)
	}
	return n, nil
}

// Delete removes the given keys. Deleting absent keys is not an error.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
