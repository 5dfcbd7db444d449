package sessions

import (
	"time"

	"blogapi/bizerror"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const limiterIdleExpiration = 10 * time.Minute

// RateLimiter throttles requests per client IP. Limiters of idle clients expire from the cache.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(limiterIdleExpiration, time.Minute),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	limiter := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		if existing, found := l.limiters.Get(key); found {
			limiter = existing.(*rate.Limiter)
		}
		l.limiters.Set(key, limiter, cache.DefaultExpiration)
	}
	return limiter.Allow()
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			panic(bizerror.ErrTooManyRequests)
		}
		c.Next()
	}
}
