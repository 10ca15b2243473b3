package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Guard remembers request keys in Redis so a retried submission is not
// processed twice. When Redis is unavailable every request is let through.
type Guard struct {
	rdb redis.Cmdable
	ttl time.Duration
	log zerolog.Logger
}

func NewGuard(rdb redis.Cmdable, ttl time.Duration, log zerolog.Logger) *Guard {
	return &Guard{rdb: rdb, ttl: ttl, log: log.With().Str("component", "idempotency").Logger()}
}

func redisKey(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// Acquire returns true the first time scope+key is seen within the TTL.
func (g *Guard) Acquire(ctx context.Context, scope, key string) bool {
	if g == nil || g.rdb == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, redisKey(scope, key), 1, g.ttl).Result()
	if err != nil {
		g.log.Warn().Err(err).Str("scope", scope).Msg("idempotency check failed, allowing request")
		return true
	}
	if !ok {
		g.log.Info().Str("scope", scope).Str("key", key).Msg("duplicate request skipped")
	}
	return ok
}

// Release forgets a key so a failed request can be retried with it.
func (g *Guard) Release(ctx context.Context, scope, key string) {
	if g == nil || g.rdb == nil {
		return
	}
	if err := g.rdb.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		g.log.Warn().Err(err).Str("scope", scope).Msg("idempotency release failed")
	}
}
