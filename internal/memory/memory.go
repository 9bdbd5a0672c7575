// Package memory keeps a bounded recent-message history per session.
package memory

import (
	"context"
	"fmt"
	"time"

	"ragchat/internal/config"
	"ragchat/internal/models"
	"ragchat/internal/redis"
)

// DefaultCapacity is the number of turns kept per session.
const DefaultCapacity = 10

// Store is the session memory contract shared by every backend.
//
// History returns the session's turns oldest first; an unknown session is an
// empty history. Append adds turns in order as one unit, either all of them
// or none, evicting the oldest turns beyond Capacity. Clear forgets a session.
type Store interface {
	History(ctx context.Context, sessionID string) ([]models.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...models.Turn) error
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// New builds the backend selected in cfg. rdb is only used by the redis backend.
func New(cfg config.MemoryConfig, rdb *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewLRUStore(DefaultCapacity, cfg.MaxSessions), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis memory backend requires a redis client")
		}
		ttl := time.Duration(cfg.SessionTTL) * time.Minute
		return NewRedisStore(rdb, cfg.KeyPrefix, DefaultCapacity, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Backend)
	}
}

func validate(turns []models.Turn) error {
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("append turn: %w: %q", models.ErrInvalidRole, turn.Role)
		}
	}
	return nil
}
