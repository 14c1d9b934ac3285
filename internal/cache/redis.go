package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront.dev/internal/auth"
)

const denylistPrefix = "storefront:revoked:"

// NewRedisClient parses url, sizes the pool and checks connectivity.
func NewRedisClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

var _ auth.Denylist = (*Denylist)(nil)

// Denylist stores revoked token ids with a TTL equal to the token's
// remaining lifetime, so entries vanish when the token would expire anyway.
type Denylist struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewDenylist wraps a redis client.
func NewDenylist(client redis.Cmdable) *Denylist {
	return &Denylist{client: client, now: time.Now}
}

func (d *Denylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, denylistPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := d.client.Get(ctx, denylistPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}

// PingContext lets the denylist double as a readiness check.
func (d *Denylist) PingContext(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
