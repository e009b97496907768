package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/gamenight/scheduler/internal/errors"
)

// bucket is a token bucket per rate-limit key, the same refill
// arithmetic as internal/middleware/ratelimit.go's RateLimiter.
type bucket struct {
	tokens     int
	maxTokens  int
	lastRefill time.Time
	refillRate time.Duration
	mu         sync.Mutex
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.lastRefill); elapsed >= b.refillRate {
		add := int(elapsed / b.refillRate)
		if b.tokens+add > b.maxTokens {
			b.tokens = b.maxTokens
		} else {
			b.tokens += add
		}
		b.lastRefill = now
	}
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// RateLimit rate-limits per session/user, generalizing
// internal/middleware/ratelimit.go's per-Telegram-user-id map of token
// buckets to a per-session-cookie-value map.
func RateLimit(maxTokens int, refillRate time.Duration) gin.HandlerFunc {
	var mu sync.RWMutex
	buckets := make(map[string]*bucket)

	return func(c *gin.Context) {
		key := sessionKey(c)
		mu.RLock()
		b, ok := buckets[key]
		mu.RUnlock()
		if !ok {
			mu.Lock()
			if b, ok = buckets[key]; !ok {
				b = &bucket{tokens: maxTokens, maxTokens: maxTokens, lastRefill: time.Now(), refillRate: refillRate}
				buckets[key] = b
			}
			mu.Unlock()
		}

		if !b.allow() {
			RespondError(c, apperrors.NewRateLimitError(maxTokens, refillRate.String()).WithHTTPStatus(http.StatusTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}

func sessionKey(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.ClientIP()
}
