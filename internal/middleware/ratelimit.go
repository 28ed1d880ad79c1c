package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LimiterRegistry 按账户维护令牌桶限流器。
// Snapshot producers poll at sub-second intervals; runaway producers get 429
// instead of stalling other accounts.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func NewLimiterRegistry(qps float64, burst int) *LimiterRegistry {
	if qps <= 0 {
		qps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &LimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		qps:      rate.Limit(qps),
		burst:    burst,
	}
}

func (r *LimiterRegistry) Get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(r.qps, r.burst)
		r.limiters[key] = limiter
	}
	return limiter
}

// RateLimitMiddleware limits per account (path param "id"); requests without
// one share a single bucket keyed by client IP.
func RateLimitMiddleware(registry *LimiterRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("id")
		if key == "" {
			key = c.ClientIP()
		}

		if !registry.Get(key).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
