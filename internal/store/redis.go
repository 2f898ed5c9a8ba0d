package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis backs the Store contract with a Redis instance. Update runs under
// WATCH so concurrent writers to the same job key retry instead of
// clobbering each other.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Redis) SAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := s.rdb.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Redis) SRem(ctx context.Context, key, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

func (s *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

const updateRetries = 16

func (s *Redis) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	txn := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(old)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.rdb.Watch(ctx, txn, key)
		if err == nil || errors.Is(err, ErrSkipWrite) {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		// key changed under us, re-read and retry
	}
	return err
}
