package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// Limiter is a fixed-window rate limiter keyed by client IP (500
// requests/15min API-wide, 20 generations/hr). A single anonymous tier:
// the service has no auth layer to key finer-grained tiers off.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*window
	limit    int
	interval time.Duration
	logger   *zap.Logger
}

type window struct {
	count   int
	resetAt time.Time
}

func NewLimiter(limit int, interval time.Duration, logger *zap.Logger) *Limiter {
	l := &Limiter{
		counters: make(map[string]*window),
		limit:    limit,
		interval: interval,
		logger:   logger,
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for now := range ticker.C {
		l.mu.Lock()
		for key, w := range l.counters {
			if now.After(w.resetAt) {
				delete(l.counters, key)
			}
		}
		l.mu.Unlock()
	}
}

// Allow reports whether a request from key may proceed, plus the remaining
// count and time until the window resets.
func (l *Limiter) Allow(key string) (allowed bool, remaining int, resetIn time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.counters[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(l.interval)}
		l.counters[key] = w
	}

	if w.count >= l.limit {
		return false, 0, time.Until(w.resetAt)
	}
	w.count++
	return true, l.limit - w.count, time.Until(w.resetAt)
}

// bypassesRateLimit reports whether a request should skip rate limiting:
// localhost, RFC1918 private ranges, or an explicit X-Internal-Request
// header.
func bypassesRateLimit(c *gin.Context) bool {
	if c.GetHeader("X-Internal-Request") == "true" {
		return true
	}
	ip := net.ParseIP(c.ClientIP())
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil && block.Contains(ip) {
			return true
		}
	}
	return false
}

// RateLimit builds a gin middleware enforcing limiter against the request's
// client IP, with the documented bypass rules.
func RateLimit(limiter *Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bypassesRateLimit(c) {
			c.Next()
			return
		}

		key := c.ClientIP()
		allowed, remaining, resetIn := limiter.Allow(key)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(resetIn).Unix()))

		if !allowed {
			logger.Warn("rate limit exceeded", zap.String("client_ip", key), zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusTooManyRequests, sgserrors.ErrorResponse{
				Error: sgserrors.NewAPIError(sgserrors.ErrRateLimitExceeded,
					fmt.Sprintf("rate limit of %d requests per %s exceeded", limiter.limit, limiter.interval),
					nil),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
