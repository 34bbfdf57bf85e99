package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
	"github.com/noah-isme/eventhub-api/pkg/response"
)

// RateLimit throttles a route group per authenticated user, falling back to
// the client IP for anonymous callers.
func RateLimit(period time.Duration, limit int64) gin.HandlerFunc {
	if period <= 0 || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})
	return ginlimiter.NewMiddleware(instance,
		ginlimiter.WithKeyGetter(rateLimitKey),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
		}),
		ginlimiter.WithErrorHandler(func(c *gin.Context, err error) {
			response.Error(c, appErrors.Internal(err, "rate limiter unavailable"))
			c.Abort()
		}),
	)
}

func rateLimitKey(c *gin.Context) string {
	if actor, ok := ActorFromContext(c); ok {
		return "user:" + actor.UserID
	}
	return "ip:" + c.ClientIP()
}
