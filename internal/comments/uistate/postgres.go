package uistate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/oblivion-comments/internal/platform/db"
)

const createTable = `CREATE TABLE IF NOT EXISTS comment_ui_state (
	state_key  text PRIMARY KEY,
	payload    jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

type postgresStore struct {
	dsn string
	ttl time.Duration

	mu sync.Mutex
	// pool is lazily initialised on first use.
	pool *pgxpool.Pool
}

func newPostgresStore(dsn string, ttl time.Duration) *postgresStore {
	return &postgresStore{dsn: dsn, ttl: ttl}
}

func (s *postgresStore) ensurePool(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return s.pool, nil
	}
	pool, err := db.Open(ctx, s.dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return pool, nil
}

// Load ignores rows older than the TTL; they are overwritten on next Save.
func (s *postgresStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	pool, err := s.ensurePool(ctx)
	if err != nil {
		return nil, false, err
	}

	const q = `SELECT payload FROM comment_ui_state
	           WHERE state_key = $1 AND updated_at > $2`

	var payload []byte
	err = pool.QueryRow(ctx, q, key, time.Now().Add(-s.ttl)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *postgresStore) Save(ctx context.Context, key string, payload []byte) error {
	pool, err := s.ensurePool(ctx)
	if err != nil {
		return err
	}

	const q = `INSERT INTO comment_ui_state (state_key, payload, updated_at)
	           VALUES ($1, $2, now())
	           ON CONFLICT (state_key) DO UPDATE
	           SET payload = EXCLUDED.payload, updated_at = now()`

	_, err = pool.Exec(ctx, q, key, payload)
	return err
}
