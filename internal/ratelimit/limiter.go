package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
)

// maxFallbackKeys bounds the in-memory limiter map
const maxFallbackKeys = 10000

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int           // IP-based rate limit per minute
	EnableFallback  bool          // Use in-memory limiting when redis is unavailable
	CleanupInterval time.Duration // How often idle in-memory limiters are pruned
	IdleTTL         time.Duration // In-memory limiters unused for this long are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   60,
		EnableFallback:  true,
		CleanupInterval: 10 * time.Minute,
		IdleTTL:         30 * time.Minute,
	}
}

// Rate is a request budget per period
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Backend    string
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRateLimiter creates a new rate limiter. Call Close to stop the cleanup
// goroutine.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	defaults := DefaultConfig()
	if config.IPLimitPerMin <= 0 {
		config.IPLimitPerMin = defaults.IPLimitPerMin
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if redisClient == nil {
		redisClient = &RedisClient{}
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*fallbackEntry),
		done:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// AllowIP checks if an IP address is allowed to make a request (per-minute limit)
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:ip:%s", ip)
	return rl.Allow(ctx, key, Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute})
}

// Allow checks key against r using Redis, or the in-memory limiter when
// Redis is disabled or failing
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}

		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		rl.metrics.RecordRateLimitRedisError()
		if !rl.config.EnableFallback {
			return nil, err
		}
	}

	return rl.allowFallback(key, r), nil
}

// allowRedis performs rate limiting using the redis GCRA limiter
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	limit := redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	}

	res, err := rl.redisLimiter.Allow(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
		Backend:    "redis",
	}, nil
}

// allowFallback performs rate limiting using an in-memory token bucket whose
// capacity equals the limit
func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := time.Now()

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists {
		every := rate.Limit(float64(r.Limit) / r.Period.Seconds())
		entry = &fallbackEntry{limiter: rate.NewLimiter(every, r.Limit)}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{
		Limit:   r.Limit,
		ResetAt: now.Add(r.Period),
		Backend: "memory",
	}

	if entry.limiter.AllowN(now, 1) {
		result.Allowed = true
	} else {
		res := entry.limiter.ReserveN(now, 1)
		if res.OK() {
			result.RetryAfter = res.DelayFrom(now)
			res.CancelAt(now)
		} else {
			result.RetryAfter = r.Period
		}
		result.ResetAt = now.Add(result.RetryAfter)
	}

	remaining := int(entry.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	result.Remaining = remaining

	return result
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops idle in-memory limiters and resets the map when it grows
// past maxFallbackKeys
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.config.IdleTTL)

	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	for key, entry := range rl.fallbackLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.fallbackLimiters, key)
		}
	}

	if len(rl.fallbackLimiters) > maxFallbackKeys {
		slog.Info("Resetting fallback rate limiters", "count", len(rl.fallbackLimiters))
		rl.fallbackLimiters = make(map[string]*fallbackEntry)
	}
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
	})
	rl.wg.Wait()
}

// Config returns the effective configuration
func (rl *RateLimiter) Config() Config {
	return rl.config
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_enabled":  rl.config.EnableFallback,
		"fallback_limiters": fallbackCount,
		"config": map[string]interface{}{
			"ip_limit_per_min": rl.config.IPLimitPerMin,
		},
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
