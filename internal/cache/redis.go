// Package cache keeps short-lived per-user state in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EntitlementTTL is how long a resolved subscription is served from cache.
const EntitlementTTL = 5 * time.Minute

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache: miss")

// Redis wraps a go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to redisURL and pings it.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{client: c}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func entitlementKey(userID string) string {
	return "agentdesk:entitlement:" + userID
}

// GetEntitlement returns the cached plan and subscription of a user.
func (r *Redis) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	raw, err := r.client.Get(ctx, entitlementKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get entitlement: %w", err)
	}

	var ent domain.Entitlement
	if err := json.Unmarshal(raw, &ent); err != nil {
		return nil, fmt.Errorf("decode entitlement: %w", err)
	}
	return &ent, nil
}

// SetEntitlement caches ent for EntitlementTTL.
func (r *Redis) SetEntitlement(ctx context.Context, userID string, ent *domain.Entitlement) error {
	raw, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("encode entitlement: %w", err)
	}
	if err := r.client.Set(ctx, entitlementKey(userID), raw, EntitlementTTL).Err(); err != nil {
		return fmt.Errorf("redis set entitlement: %w", err)
	}
	return nil
}

// InvalidateEntitlement drops cached entitlements for the given users.
func (r *Redis) InvalidateEntitlement(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = entitlementKey(id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del entitlement: %w", err)
	}
	return nil
}

// Allow counts one event for userID in the current minute and reports whether the
// count stays within limit. A limit below 1 disables the check.
func (r *Redis) Allow(ctx context.Context, userID string, limit int, now time.Time) (bool, error) {
	if limit < 1 {
		return true, nil
	}

	window := now.UTC().Truncate(time.Minute)
	key := "agentdesk:ratelimit:chat:" + userID + ":" + strconv.FormatInt(window.Unix(), 10)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}
