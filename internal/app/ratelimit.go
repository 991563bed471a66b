/**
 * @description
 * This file implements a Redis-backed rate limiter for the KYC status poll
 * endpoint. Status polling is the one operation callers are expected to
 * retry, so it gets a per-user fixed window to keep an eager client from
 * hammering the upstream provider. The Lua script makes the
 * increment-and-expire atomic across service instances.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/redis/go-redis/v9: The Redis client library.
 */

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var kycPollRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// KYCPollLimiter bounds how often a single user may poll KYC status.
type KYCPollLimiter interface {
	Allow(ctx context.Context, userID string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisKYCPollLimiter is the Redis implementation of KYCPollLimiter using a
// fixed one-minute window per user.
type RedisKYCPollLimiter struct {
	client    redis.UniversalClient
	prefix    string
	perMinute int
}

// NewRedisKYCPollLimiter creates a limiter allowing perMinute polls per user.
func NewRedisKYCPollLimiter(client redis.UniversalClient, prefix string, perMinute int) *RedisKYCPollLimiter {
	return &RedisKYCPollLimiter{client: client, prefix: prefix, perMinute: perMinute}
}

// Allow consumes one poll attempt for the user. When the window is exhausted
// it reports the remaining window as retryAfter.
func (l *RedisKYCPollLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	key := fmt.Sprintf("%s:kyc_poll:%s", l.prefix, userID)
	window := time.Minute

	rawResult, err := kycPollRateLimitScript.Run(ctx, l.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("kyc poll limiter script failed: %w", err)
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMillis, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}

	if int(count) > l.perMinute {
		retryAfter := time.Duration(ttlMillis) * time.Millisecond
		if retryAfter < 0 {
			retryAfter = window
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

// UnlimitedKYCPollLimiter disables poll limiting; used when Redis is not
// configured.
type UnlimitedKYCPollLimiter struct{}

func (UnlimitedKYCPollLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	return true, 0, nil
}
