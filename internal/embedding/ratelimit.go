package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// rateLimiter throttles calls to the embedding provider to stay under its
// requests-per-minute quota. Adapted from the teacher's
// internal/llm/rate_limiter.go: same per-minute Redis key plus atomic Lua
// increment-and-check, narrowed to the single RPM counter the embedding
// provider's quota is actually billed on (no TPM/RPD tracking — the teacher
// tracked those for a token-metered chat model, this is a per-request-metered
// embeddings endpoint).
//
// When no Redis address is configured (single-instance deployments), local
// falls back to an in-process token bucket instead of going unthrottled —
// the quota still applies, it just isn't shared across instances.
type rateLimiter struct {
	redis    *redis.Client
	rpmLimit int64
	local    *rate.Limiter
}

var throttleScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local count = redis.call('INCR', key)
	if count == 1 then redis.call('EXPIRE', key, 70) end
	if count > limit then
		return {-1, count}
	end
	return {0, count}
`)

func newRateLimiter(redisAddr string, rpmLimit int) (*rateLimiter, error) {
	if rpmLimit <= 0 {
		rpmLimit = 1000
	}
	if redisAddr == "" {
		perSecond := rate.Limit(float64(rpmLimit) / 60.0)
		return &rateLimiter{rpmLimit: int64(rpmLimit), local: rate.NewLimiter(perSecond, rpmLimit)}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("rate limiter: connect to redis at %s: %w", redisAddr, err)
	}

	return &rateLimiter{redis: client, rpmLimit: int64(rpmLimit)}, nil
}

// Allow increments this minute's counter and reports whether the caller is
// still under the limit. A Redis failure fails open — a down rate limiter
// must not block embedding calls the provider itself would still accept.
func (r *rateLimiter) Allow(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if r.redis == nil {
		return r.local == nil || r.local.Allow()
	}
	key := fmt.Sprintf("embedding:rpm:%s", time.Now().Format("2006-01-02T15:04"))
	result, err := throttleScript.Run(ctx, r.redis, []string{key}, r.rpmLimit).Result()
	if err != nil {
		return true
	}
	values, ok := result.([]interface{})
	if !ok || len(values) == 0 {
		return true
	}
	code, ok := values[0].(int64)
	return !ok || code >= 0
}

func (r *rateLimiter) Close() error {
	if r != nil && r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
