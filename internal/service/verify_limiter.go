package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerifyLimiter limita los intentos de verificación por solicitud.
type VerifyLimiter interface {
	Allow(key string) bool
}

type memoryVerifyLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	// nextSweep marca cuándo purgar claves sin intentos dentro de la ventana.
	nextSweep time.Time
}

// NewMemoryVerifyLimiter crea un limitador de ventana deslizante en memoria.
func NewMemoryVerifyLimiter(window time.Duration, max int) VerifyLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryVerifyLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memoryVerifyLimiter) Allow(key string) bool {
	key = normalizeLimiterKey(key)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	if !now.Before(l.nextSweep) {
		l.sweep(cutoff)
		l.nextSweep = now.Add(l.window)
	}
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep borra las claves cuyo último intento quedó fuera de la ventana. Las
// claves vienen de la URL, así que sin esto el mapa crece sin límite.
func (l *memoryVerifyLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

const redisVerifyAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisVerifyLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

// NewRedisVerifyLimiter comparte el contador entre réplicas usando INCR + EXPIRE.
func NewRedisVerifyLimiter(client *redis.Client, window time.Duration, max int) VerifyLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisVerifyLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "verify:rl:",
	}
}

func (l *redisVerifyLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := normalizeLimiterKey(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisVerifyAllowScript, []string{l.prefix + normalizedKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

func normalizeLimiterKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
