package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// Token-bucket profile for the read-only REST surface. The websocket
	// path is not rate limited here; its backpressure lives in the
	// per-session send buffer.
	requestsPerSecond = 30
	burstSize         = 50
	cleanupInterval   = 5 * time.Minute
)

// Limiter applies a per-client-IP token bucket to a route group.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLimiter() *Limiter {
	l := &Limiter{buckets: make(map[string]*rate.Limiter)}
	go l.cleanup()
	return l
}

func (l *Limiter) bucket(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		b = rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)
		l.buckets[ip] = b
	}
	return b
}

// cleanup periodically drops buckets that refilled completely, so the map
// does not grow with every IP ever seen.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, b := range l.buckets {
			if b.Tokens() == float64(burstSize) {
				delete(l.buckets, ip)
			}
		}
		l.mu.Unlock()
	}
}

// clientIP trusts proxy headers when present and falls back to the peer
// address.
func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if realIP := c.GetHeader("X-Real-IP"); net.ParseIP(realIP) != nil {
		return realIP
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.bucket(clientIP(c)).Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
