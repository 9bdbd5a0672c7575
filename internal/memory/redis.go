package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ragchat/internal/models"
	"ragchat/internal/redis"
)

// RedisStore keeps each session's history in a capped redis list.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	capacity int
	ttl      time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, capacity int, ttl time.Duration) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if prefix == "" {
		prefix = "ragchat:history:"
	}
	return &RedisStore{client: client, prefix: prefix, capacity: capacity, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	raw, err := s.client.List(ctx, s.key(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		if _, err := models.ParseRole(string(turn.Role)); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append pushes every turn in one MULTI block, so a failure stores none of them.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...models.Turn) error {
	if err := validate(turns); err != nil {
		return err
	}
	values := make([]interface{}, len(turns))
	for i, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values[i] = data
	}
	if err := s.client.AppendCapped(ctx, s.key(sessionID), s.capacity, s.ttl, values...); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close is a no-op; the redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
