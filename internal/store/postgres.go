package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres backs the Store contract with two tables:
//
//	CREATE TABLE kv      (key TEXT PRIMARY KEY, value BYTEA NOT NULL);
//	CREATE TABLE kv_sets (key TEXT NOT NULL, member TEXT NOT NULL,
//	                      PRIMARY KEY (key, member));
//
// Update takes a row lock, so concurrent read-modify-writes serialize.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM kv WHERE key = $1;`
	var v []byte
	if err := s.pool.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;
`
	_, err := s.pool.Exec(ctx, q, key, value)
	return err
}

func (s *Postgres) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = ANY($1);`, keys); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_sets WHERE key = ANY($1);`, keys)
	return err
}

func (s *Postgres) SAdd(ctx context.Context, key, member string) (bool, error) {
	const q = `
INSERT INTO kv_sets (key, member) VALUES ($1, $2)
ON CONFLICT DO NOTHING;
`
	tag, err := s.pool.Exec(ctx, q, key, member)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) SRem(ctx context.Context, key, member string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_sets WHERE key = $1 AND member = $2;`, key, member)
	return err
}

func (s *Postgres) SMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT member FROM kv_sets WHERE key = $1;`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var old []byte
	err = tx.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1 FOR UPDATE;`, key).Scan(&old)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	next, err := fn(old)
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}

	const upsert = `
INSERT INTO kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;
`
	if _, err := tx.Exec(ctx, upsert, key, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
