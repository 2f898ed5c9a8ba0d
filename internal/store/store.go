// Package store abstracts the key/value backend the service persists into.
// All access is single-key: get/set, set membership, delete, plus an atomic
// read-modify-write used for the versioned job record.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("key not found")

	// ErrSkipWrite can be returned by an Update callback to leave the
	// stored value untouched.
	ErrSkipWrite = errors.New("skip write")
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error

	// SAdd reports whether the member was newly added.
	SAdd(ctx context.Context, key, member string) (bool, error)
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Update applies fn to the current value (nil when the key is absent)
	// and writes the result back atomically with respect to concurrent
	// Updates of the same key.
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}
