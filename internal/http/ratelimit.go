package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter limita las rutas públicas por IP de cliente.
type IPRateLimiter struct {
	logger          *zap.Logger
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*ipLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter admite perMinute requests por minuto y por IP. Inicia la
// limpieza de entradas inactivas en segundo plano; detenerla con Stop.
func NewIPRateLimiter(logger *zap.Logger, perMinute int) *IPRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	rl := &IPRateLimiter{
		logger:          logger,
		rate:            rate.Limit(float64(perMinute) / 60.0),
		burst:           perMinute,
		cleanupInterval: 5 * time.Minute,
		limiters:        make(map[string]*ipLimiter),
		stopCh:          make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.get(ip).Allow() {
			retryAfter := int(math.Ceil(1.0 / float64(rl.rate)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			rl.logger.Warn("rate limit exceeded", zap.String("client_ip", ip), zap.String("path", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *IPRateLimiter) count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *IPRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[ip]; ok {
		l.lastAccess = time.Now()
		return l.limiter
	}
	l := &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastAccess: time.Now()}
	rl.limiters[ip] = l
	return l.limiter
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup elimina IPs sin actividad durante dos intervalos.
func (rl *IPRateLimiter) cleanup(now time.Time) {
	ttl := rl.cleanupInterval * 2
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if now.Sub(l.lastAccess) > ttl {
			delete(rl.limiters, ip)
		}
	}
}
