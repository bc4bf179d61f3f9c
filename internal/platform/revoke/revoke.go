// Package revoke tracks revoked session tokens so logout takes effect before
// token expiry. A Redis-backed list is used when REDIS_URL is configured;
// single-instance deployments fall back to an in-process list.
package revoke

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const redisKeyPrefix = "hrms:revoked:"

type RedisRevoker struct {
	Client *redis.Client
}

func NewRedis(redisURL string) (*RedisRevoker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisRevoker{Client: redis.NewClient(opts)}, nil
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.Client.Set(ctx, redisKeyPrefix+tokenID, "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := r.Client.Exists(ctx, redisKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RedisRevoker) Close() error {
	return r.Client.Close()
}

type MemoryRevoker struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func NewMemory() *MemoryRevoker {
	return &MemoryRevoker{expires: map[string]time.Time{}}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[tokenID] = time.Now().Add(ttl)
	m.sweepLocked()
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deadline, ok := m.expires[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(m.expires, tokenID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryRevoker) sweepLocked() {
	now := time.Now()
	for id, deadline := range m.expires {
		if now.After(deadline) {
			delete(m.expires, id)
		}
	}
}
