package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"chatkit/internal/config"
	"chatkit/internal/gateway/handlers"
)

const bucketIdleTimeout = 10 * time.Minute

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// RateLimiter is a per-client token bucket limiter. Buckets idle for longer
// than bucketIdleTimeout are dropped by a background sweep.
type RateLimiter struct {
	cfg      config.RateLimitConfig
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter. A disabled limiter starts no goroutine.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = config.DefaultRequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = config.DefaultRateBurst
	}
	rl := &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*tokenBucket),
		stopCh:  make(chan struct{}),
	}
	if cfg.Enabled {
		go rl.sweep(bucketIdleTimeout / 2)
	}
	return rl
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				b.mu.Lock()
				if now.Sub(b.lastRefill) > bucketIdleTimeout {
					delete(rl.buckets, key)
				}
				b.mu.Unlock()
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) bucket(key string, now time.Time) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(rl.cfg.Burst), lastRefill: now}
		rl.buckets[key] = b
	}
	return b
}

// Allow takes one token for key. It returns whether the request may proceed,
// the tokens left and when the bucket will be full again.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	now := time.Now()
	if !rl.cfg.Enabled {
		return true, rl.cfg.RequestsPerMinute, now
	}

	b := rl.bucket(key, now)
	b.mu.Lock()
	defer b.mu.Unlock()

	// 并发请求可能持有更早的 now
	if now.Before(b.lastRefill) {
		now = b.lastRefill
	}
	perSecond := float64(rl.cfg.RequestsPerMinute) / 60
	b.tokens += now.Sub(b.lastRefill).Seconds() * perSecond
	b.lastRefill = now
	if burst := float64(rl.cfg.Burst); b.tokens > burst {
		b.tokens = burst
	}

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}
	missing := float64(rl.cfg.Burst) - b.tokens
	reset := now.Add(time.Duration(missing / perSecond * float64(time.Second)))
	return allowed, int(b.tokens), reset
}

// RateLimit returns the middleware. Clients are keyed by IP without port.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, reset := rl.Allow(clientKey(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
			handlers.SendError(w, http.StatusTooManyRequests, handlers.ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	ip := getClientIP(r)
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
