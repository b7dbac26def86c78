package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// PerIPLimiter hands out one token bucket per client IP. Floor terminals
// at a site often share an egress IP, so burst sizes should account for
// several viewers refreshing at once.
type PerIPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewPerIPLimiter creates a limiter set with the given refill rate and
// burst per IP.
func NewPerIPLimiter(limit rate.Limit, burst int) *PerIPLimiter {
	return &PerIPLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// Allow reports whether a request from ip may proceed, creating the
// bucket on first sight.
func (l *PerIPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := NewPerIPLimiter(limit, burst)
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
