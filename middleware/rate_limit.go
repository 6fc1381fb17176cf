package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. A client may burst up to
// requests and is refilled at requests per window.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients:   make(map[string]*clientLimiter),
		limit:     rate.Limit(float64(requests) / window.Seconds()),
		burst:     requests,
		window:    window,
		lastSweep: time.Now(),
	}
}

// Allow reports whether the client may make a request now
func (l *RateLimiter) Allow(clientIP string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// a bucket idle for a whole window is full again, so it can be dropped
	if now.Sub(l.lastSweep) > l.window {
		for ip, cl := range l.clients {
			if now.Sub(cl.lastSeen) > l.window {
				delete(l.clients, ip)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientIP] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// RateLimit middleware limits requests per IP
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(requests, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "client_ip", clientIP, "path", c.FullPath())

			c.Header("Retry-After", strconv.Itoa(int(window.Seconds()/float64(max(requests, 1)))+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
