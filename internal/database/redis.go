package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Alias1177/Calibrator/models"
)

// DefaultRedisKey is the hash holding the effectiveness table
const DefaultRedisKey = "calibrator:effectiveness"

// RedisSource reads the effectiveness table from a Redis hash of JSON values
type RedisSource struct {
	client *redis.Client
	key    string
}

// NewRedisSource creates a source over client; an empty key uses DefaultRedisKey
func NewRedisSource(client *redis.Client, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Load implements models.EffectivenessSource
func (s *RedisSource) Load(ctx context.Context) (map[string]models.Effectiveness, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", s.key, ErrNoEffectiveness)
	}

	table := make(map[string]models.Effectiveness, len(fields))
	for field, value := range fields {
		if !ValidKey(field) {
			continue
		}
		var e models.Effectiveness
		if err := json.Unmarshal([]byte(value), &e); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", s.key, field, err)
		}
		table[field] = e
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%s: %w", s.key, ErrNoEffectiveness)
	}
	return table, nil
}

// Save writes one entry into the hash
func (s *RedisSource) Save(ctx context.Context, symbol string, side models.Direction, e models.Effectiveness) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding effectiveness: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, models.EffectivenessKey(symbol, side), data).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}
	return nil
}
