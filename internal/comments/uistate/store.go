// Package uistate remembers per-discussion view preferences across sessions:
// sort mode, search query and which threads were expanded.
//
// Primary backend: Redis SET with TTL (env REDIS_DSN).
// Fallback: Postgres upsert into comment_ui_state (env DATABASE_URL).
// If neither is available, an in-memory store is used (development only).
package uistate

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a saved view survives without being touched.
const DefaultTTL = 24 * time.Hour

// Store persists opaque payloads by key.
type Store interface {
	// Load returns the payload saved under key. found is false when nothing
	// was saved or the entry expired.
	Load(ctx context.Context, key string) (payload []byte, found bool, err error)
	Save(ctx context.Context, key string, payload []byte) error
}

// NewStore creates the best available store: Redis > Postgres > in-memory.
// When isProd is true, the in-memory fallback is refused.
func NewStore(redisDSN, databaseURL string, ttl time.Duration, isProd bool) (Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if redisDSN != "" {
		return newRedisStore(redisDSN, ttl), nil
	}
	if databaseURL != "" {
		return newPostgresStore(databaseURL, ttl), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_DSN or DATABASE_URL for comment ui state; in-memory store is not allowed")
	}
	return NewMemoryStore(ttl), nil
}
