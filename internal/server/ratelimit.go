package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const visitorIdle = 3 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// rateLimiter hands each client address its own token bucket.
type rateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	pruned   time.Time
	now      func() time.Time
}

// newRateLimiter returns a limiter allowing perSecond requests per client
// with the given burst. A non-positive rate disables limiting.
func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *rateLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.pruned) > visitorIdle {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > visitorIdle {
				delete(l.visitors, k)
			}
		}
		l.pruned = now
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.seen = now
	return v.limiter.AllowN(now, 1)
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.enforceRateLimit(c) {
			return
		}
		c.Next()
	}
}

func (s *Server) enforceRateLimit(c *gin.Context) bool {
	if s.limiter.Allow(c.ClientIP()) {
		return true
	}
	log.Debug().Str("remote", c.ClientIP()).Str("path", c.FullPath()).Msg("rate limited")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	return false
}
