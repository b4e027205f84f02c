package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps tokens in a shared Postgres table, one row per key.
// Useful when several machines act on behalf of the same user.
type PgStore struct {
	pool        *pgxpool.Pool
	tableTokens string
	key         string
}

func OpenPostgres(ctx context.Context, url, prefix, key string) (*PgStore, error) {
	if key == "" {
		key = DefaultKey
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	s := &PgStore{
		pool:        pool,
		tableTokens: prefix + "session_tokens",
		key:         key,
	}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`create table if not exists %s (
            key text primary key,
            token text not null,
            updated_at timestamptz not null default now()
        )`, s.tableTokens))
	return err
}

func (s *PgStore) Close() error { s.pool.Close(); return nil }

func (s *PgStore) LoadToken(ctx context.Context) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`select token from %s where key=$1`, s.tableTokens), s.key,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *PgStore) SaveToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`insert into %s (key, token, updated_at) values ($1, $2, now())
         on conflict (key) do update set token=excluded.token, updated_at=excluded.updated_at`, s.tableTokens),
		s.key, token,
	)
	return err
}

func (s *PgStore) ClearToken(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`delete from %s where key=$1`, s.tableTokens), s.key)
	return err
}
