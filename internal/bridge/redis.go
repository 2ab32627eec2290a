package bridge

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry shares processed event ids between replicas. SETNX gives the
// atomic check-and-insert; keys carry no expiry.
type RedisRegistry struct {
	client redis.Cmdable
	prefix string
}

// NewRedisRegistry wraps client. prefix namespaces the keys.
func NewRedisRegistry(client redis.Cmdable, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "incident-pipeline:events:"
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

// Register implements Registry.
func (r *RedisRegistry) Register(ctx context.Context, eventID string) (Registration, error) {
	id, err := NormalizeEventID(eventID)
	if err != nil {
		return Registration{}, err
	}
	inserted, err := r.client.SetNX(ctx, r.prefix+id, 1, 0).Result()
	if err != nil {
		return Registration{}, fmt.Errorf("redis setnx %s: %w", id, err)
	}
	return Registration{IsDuplicate: !inserted, NormalizedEventID: id}, nil
}

// Contains implements Registry.
func (r *RedisRegistry) Contains(ctx context.Context, eventID string) (bool, error) {
	id, err := NormalizeEventID(eventID)
	if err != nil {
		return false, err
	}
	n, err := r.client.Exists(ctx, r.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", id, err)
	}
	return n > 0, nil
}
