package server

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter tracks failed admin logins and blocks IPs
type RateLimiter struct {
	mu          sync.RWMutex
	blockedIPs  map[string]time.Time
	blockPeriod time.Duration
	now         func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. Call Stop to end its cleanup
// goroutine.
func NewRateLimiter(blockPeriod time.Duration) *RateLimiter {
	rl := &RateLimiter{
		blockedIPs:  make(map[string]time.Time),
		blockPeriod: blockPeriod,
		now:         time.Now,
		stop:        make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// IsBlocked checks if an IP is currently blocked
func (rl *RateLimiter) IsBlocked(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	blockedUntil, exists := rl.blockedIPs[ip]
	if !exists {
		return false
	}

	return rl.now().Before(blockedUntil)
}

// BlockIP blocks an IP for the configured period
func (rl *RateLimiter) BlockIP(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.blockedIPs[ip] = rl.now().Add(rl.blockPeriod)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup periodically removes expired blocks
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, blockedUntil := range rl.blockedIPs {
		if now.After(blockedUntil) {
			delete(rl.blockedIPs, ip)
		}
	}
}

// GetRealIP extracts the real client IP from a request, handling proxies and Cloudflare
func GetRealIP(c *gin.Context) string {
	// Priority order for IP detection:
	// 1. CF-Connecting-IP (Cloudflare)
	// 2. True-Client-IP (Cloudflare Enterprise)
	// 3. X-Real-IP (nginx)
	// 4. X-Forwarded-For (standard proxy header, first IP)
	// 5. RemoteAddr (direct connection)
	for _, header := range []string{"CF-Connecting-IP", "True-Client-IP", "X-Real-IP"} {
		if ip := parseIP(c.GetHeader(header)); ip != "" {
			return ip
		}
	}

	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2, ...
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}

	// Fallback to direct connection
	return parseIP(c.ClientIP())
}

// parseIP validates and extracts an IP address, stripping port if present
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(ipStr); err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	return ip.String()
}

// logFailedAuth logs a failed admin authentication attempt.
func logFailedAuth(logger zerolog.Logger, ip, reason string, blocked bool) {
	status := "FAILED"
	if blocked {
		status = "BLOCKED"
	}
	logger.Warn().
		Str("auth", status).
		Str("ip", ip).
		Str("reason", reason).
		Msg("admin authentication rejected")
}
