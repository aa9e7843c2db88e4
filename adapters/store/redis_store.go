package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
	"github.com/redis/go-redis/v9"
)

// RedisRevocations is a Redis implementation of the RevocationStore interface.
// Entries expire with the token so the keyspace stays bounded.
type RedisRevocations struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocations creates a new Redis revocation store
func NewRedisRevocations(client redis.UniversalClient) *RedisRevocations {
	return &RedisRevocations{
		client: client,
		prefix: "bazaar:revoked:",
	}
}

var _ ports.RevocationStore = (*RedisRevocations)(nil)

// Revoke marks a token as revoked in Redis
func (s *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := s.prefix + tokenID

	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w: %w", core.ErrStorage, err)
	}

	return nil
}

// IsRevoked checks if a token is revoked in Redis
func (s *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w: %w", core.ErrStorage, err)
	}

	return val > 0, nil
}
