package gatewaysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is the DoS/DDoS guard's backing store: a fixed-window
// counter per client key, shared across gateway replicas via Redis so the
// limiter state survives individual process restarts.
//
// Grounded in public-api-service/cmd/api/main.go's redis.NewClient wiring
// and apisix-go-runner/plugins/authz.go's cache-key-then-pipe shape.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter allowing up to limit requests per
// window, per key.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: client, limit: limit, window: window}
}

// Allow increments key's counter in the current window and reports whether
// the request is within the limit. The window's expiry is set only on the
// first hit so the counter actually resets every window instead of sliding
// forward on every request.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	cacheKey := fmt.Sprintf("gateway:ratelimit:%s", key)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, cacheKey)
	pipe.ExpireNX(ctx, cacheKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("gatewaysvc: ratelimit incr: %w", err)
	}

	return incr.Val() <= l.limit, nil
}
