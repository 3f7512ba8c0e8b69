package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// AuthConfig guards the admin routes with a static token
// (X-Admin-Token header), basic auth, or both.
type AuthConfig struct {
	Username string
	Password string
	Token    string
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return (c.Username != "" && c.Password != "") || c.Token != ""
}

// adminAuth rejects requests without valid admin credentials. With no
// credentials configured every request passes.
func adminAuth(next http.Handler, cfg AuthConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if cfg.Token != "" {
			token := r.Header.Get("X-Admin-Token")
			if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}
		if cfg.Username != "" && cfg.Password != "" {
			if user, pass, ok := r.BasicAuth(); ok {
				userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
				passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
				if userOK && passOK {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="queuebot admin"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		slog.Warn("admin auth failed",
			slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr), slog.String("component", "http"))
	})
}

// RateLimitConfig bounds admin requests per client IP. A zero
// RequestsPerIP disables limiting.
type RateLimitConfig struct {
	RequestsPerIP int
	Window        time.Duration
}

// DefaultRateLimit allows 30 admin requests per IP per minute.
var DefaultRateLimit = RateLimitConfig{RequestsPerIP: 30, Window: time.Minute}

// ipRateLimiter is a sliding window limiter keyed by client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string][]time.Time
	cfg      RateLimitConfig
	now      func() time.Time
}

func newIPRateLimiter(ctx context.Context, cfg RateLimitConfig) *ipRateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	rl := &ipRateLimiter{visitors: make(map[string][]time.Time), cfg: cfg, now: time.Now}
	if cfg.RequestsPerIP > 0 {
		go rl.cleanupLoop(ctx)
	}
	return rl
}

func (rl *ipRateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// cleanup drops visitors whose newest request left the window.
func (rl *ipRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.cfg.Window)
	for ip, reqs := range rl.visitors {
		if len(reqs) == 0 || !reqs[len(reqs)-1].After(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *ipRateLimiter) allow(ip string) bool {
	if rl.cfg.RequestsPerIP <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.cfg.Window)
	reqs := rl.visitors[ip]
	i := 0
	for i < len(reqs) && !reqs[i].After(cutoff) {
		i++
	}
	reqs = reqs[i:]
	if len(reqs) >= rl.cfg.RequestsPerIP {
		rl.visitors[ip] = reqs
		return false
	}
	rl.visitors[ip] = append(reqs, now)
	return true
}

func rateLimitMiddleware(next http.Handler, limiter *ipRateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !limiter.allow(ip) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too Many Requests - rate limit exceeded", http.StatusTooManyRequests)
			slog.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path), slog.String("component", "http"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop and strips any port.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ = strings.Cut(fwd, ",")
		ip = strings.TrimSpace(ip)
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
