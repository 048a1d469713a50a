package admin

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// loginAttempt records failed bearer-token checks for one remote address
// within a sliding window, guarding the admin API against credential
// stuffing even though there is no login flow to rate-limit directly.
type loginAttempt struct {
	timestamps []time.Time
}

type rateLimiter struct {
	mu         sync.Mutex
	attempts   map[string]*loginAttempt
	maxFails   int
	windowSize time.Duration
}

func newRateLimiter(maxFails int, windowSize time.Duration) *rateLimiter {
	if maxFails <= 0 {
		maxFails = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	return &rateLimiter{
		attempts:   make(map[string]*loginAttempt),
		maxFails:   maxFails,
		windowSize: windowSize,
	}
}

func (rl *rateLimiter) isAllowed(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.attempts[key]
	if !exists {
		return true
	}
	rl.pruneOld(entry)
	return len(entry.timestamps) < rl.maxFails
}

func (rl *rateLimiter) recordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.attempts[key]
	if !exists {
		entry = &loginAttempt{}
		rl.attempts[key] = entry
	}
	rl.pruneOld(entry)
	entry.timestamps = append(entry.timestamps, time.Now())
}

func (rl *rateLimiter) pruneOld(entry *loginAttempt) {
	cutoff := time.Now().Add(-rl.windowSize)
	n := 0
	for _, t := range entry.timestamps {
		if t.After(cutoff) {
			entry.timestamps[n] = t
			n++
		}
	}
	entry.timestamps = entry.timestamps[:n]
}

// tokenAuth enforces a single pre-shared bearer token over every request.
// Comparison is constant-time to avoid a timing side channel on the token
// value.
type tokenAuth struct {
	token   string
	limiter *rateLimiter
}

func newTokenAuth(token string) *tokenAuth {
	return &tokenAuth{token: token, limiter: newRateLimiter(10, 5*time.Minute)}
}

func hmacEqualStrings(a, b string) bool {
	h1 := sha256.Sum256([]byte(a))
	h2 := sha256.Sum256([]byte(b))
	return hmac.Equal(h1[:], h2[:])
}

// Middleware returns a gin handler requiring "Authorization: Bearer <token>"
// to match the configured token. Remote addresses with too many recent
// failures are rejected without comparing the token at all.
func (t *tokenAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !t.limiter.isAllowed(ip) {
			c.AbortWithStatusJSON(429, gin.H{"status": "error", "error": "too many failed attempts"})
			return
		}

		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || !hmacEqualStrings(strings.TrimSpace(parts[1]), t.token) {
			t.limiter.recordFailure(ip)
			c.AbortWithStatusJSON(401, gin.H{"status": "error", "error": "authentication required"})
			return
		}

		c.Next()
	}
}
