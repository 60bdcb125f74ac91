package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
)

const limiterIdleTTL = 30 * time.Minute

type ipBucket struct {
	limiter *rate.Limiter
	last    time.Time
}

// IPLimiter keeps one token bucket per client IP. Buckets idle for
// limiterIdleTTL are dropped on the next sweep.
type IPLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*ipBucket
	lastSweep time.Time
	nowFunc   func() time.Time
}

// NewIPLimiter allows perMinute requests per IP, refilled evenly, with bursts
// of up to burst.
func NewIPLimiter(perMinute, burst int) *IPLimiter {
	return &IPLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: map[string]*ipBucket{},
		nowFunc: time.Now,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.last) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.last = now
	return b.limiter.AllowN(now, 1)
}

// RateLimit answers 429 once the caller's IP has used up its bucket. A nil
// limiter lets every request through.
func RateLimit(l *IPLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		logger.Warn("rate limit exceeded", "ip", c.ClientIP(), "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, rpc.Envelope{Success: false, Message: "Too many requests, please try again later"})
	}
}
