package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/response"
)

// ReserveRateLimiter is a Redis fixed-window limiter keyed by the acting
// account, so every API instance shares the same counters. When Redis is
// unreachable requests pass; admission control does not depend on it.
type ReserveRateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewReserveRateLimiter creates a limiter allowing limit requests per window.
func NewReserveRateLimiter(rdb *redis.Client, limit int, window time.Duration, log zerolog.Logger) *ReserveRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &ReserveRateLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		now:    time.Now,
		log:    log.With().Str("component", "reserve_rate_limiter").Logger(),
	}
}

// Middleware returns a Gin middleware that rate-limits requests by actor,
// falling back to client IP for anonymous callers.
func (rl *ReserveRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rdb == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			subject = claims.ActorID.String()
		}

		windowSecs := int64(rl.window / time.Second)
		bucket := rl.now().Unix() / windowSecs
		key := config.CacheKey.ReserveRateKey(subject, bucket)

		ctx := c.Request.Context()
		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.log.Warn().Err(err).Str("subject", subject).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		count := int(incr.Val())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(rl.limit-count, 0)))
		if count > rl.limit {
			retry := (bucket+1)*windowSecs - rl.now().Unix()
			c.Header("Retry-After", strconv.FormatInt(max(retry, 1), 10))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
