package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// serverLimits bundles the request throttles: login attempts per client IP
// and per viewer name, and key rotations per (owner, asset) pair.
type serverLimits struct {
	loginIP     *keyedLimiter
	loginViewer *keyedLimiter
	rotate      *keyedLimiter
}

func newServerLimits() serverLimits {
	return serverLimits{
		loginIP:     newKeyedLimiter(perMinute(10), 10, time.Hour),
		loginViewer: newKeyedLimiter(perMinute(5), 5, time.Hour),
		rotate:      newKeyedLimiter(perMinute(6), 6, 10*time.Minute),
	}
}

func perMinute(n int) rate.Limit { return rate.Limit(float64(n) / 60) }

func (l serverLimits) allowLoginFrom(ip string) bool { return l.loginIP.allow(ip) }

func (l serverLimits) allowLoginAs(viewer string) bool { return l.loginViewer.allow(viewer) }

// allowRotate keys the rotation budget on the owner-asset pair, so an asset
// name colliding across owners never shares a bucket.
func (l serverLimits) allowRotate(owner, asset string) bool {
	return l.rotate.allow(owner + "\x00" + asset)
}

// keyedLimiter tracks one token bucket per key. Idle buckets are swept
// lazily, at most one full scan per ttl rather than on every request.
type keyedLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int, ttl time.Duration) *keyedLimiter {
	return &keyedLimiter{
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (k *keyedLimiter) allow(key string) bool {
	now := time.Now()
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) > k.ttl {
		for id, b := range k.buckets {
			if now.Sub(b.lastSeen) > k.ttl {
				delete(k.buckets, id)
			}
		}
		k.lastSweep = now
	}

	b := k.buckets[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.Allow()
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
