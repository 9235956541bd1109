package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/redis"
)

// Области ограничения: общий API и отправка одноразовых кодов
const (
	ScopeAPI = "api"
	ScopeOTP = "otp"
)

// RateDecision - результат проверки лимита
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateUsage - текущее состояние окна для клиента
type RateUsage struct {
	Scope     string     `json:"scope"`
	Limit     int64      `json:"limit"`
	Used      int64      `json:"used"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}

// RateLimiter считает запросы в фиксированном окне на пару (область, клиент).
type RateLimiter struct {
	redis   rateRedis
	log     *logger.Logger
	enabled bool
	window  time.Duration
	prefix  string
	limits  map[string]int64
}

type rateRedis interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создаёт rate limiter. Без Redis или конфигурации он выключен.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	limits := map[string]int64{ScopeAPI: int64(cfg.Requests)}
	if cfg.OTPRequests > 0 {
		limits[ScopeOTP] = int64(cfg.OTPRequests)
	}

	return &RateLimiter{
		redis:   redisClient,
		log:     log,
		enabled: true,
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
		limits:  limits,
	}
}

// Allow учитывает запрос клиента в области scope
func (r *RateLimiter) Allow(ctx context.Context, scope, key string) (RateDecision, error) {
	limit := r.Limit(scope)
	if !r.enabled || limit <= 0 {
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: time.Now().Add(r.window)}, nil
	}

	now := time.Now()
	redisKey := r.makeKey(scope, key)

	count, err := r.redis.Incr(ctx, redisKey)
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, r.window); err != nil {
			r.log.WithError(err).WithField("key", redisKey).Warn("failed to set rate limit ttl")
		}
	}

	ttl, ttlErr := r.redis.TTL(ctx, redisKey)
	if ttlErr != nil || ttl <= 0 {
		ttl = r.window
	}

	return RateDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: clampRemaining(limit - count),
		ResetAt:   now.Add(ttl),
	}, nil
}

// Usage возвращает состояние окна без учёта нового запроса
func (r *RateLimiter) Usage(ctx context.Context, scope, key string) (*RateUsage, error) {
	limit := r.Limit(scope)
	usage := &RateUsage{Scope: scope, Limit: limit, Remaining: limit}
	if !r.enabled || limit <= 0 {
		return usage, nil
	}

	redisKey := r.makeKey(scope, key)
	count, err := r.redis.GetInt(ctx, redisKey)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return usage, nil
		}
		return nil, err
	}

	ttl, ttlErr := r.redis.TTL(ctx, redisKey)
	if ttlErr != nil {
		r.log.WithError(ttlErr).WithField("key", redisKey).Warn("failed to get rate limit ttl")
	} else if ttl > 0 {
		resetAt := time.Now().Add(ttl)
		usage.ResetAt = &resetAt
	}

	usage.Used = count
	usage.Remaining = clampRemaining(limit - count)
	return usage, nil
}

func (r *RateLimiter) makeKey(scope, key string) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, safeKey)
}

// Limit возвращает лимит области. 0 - область не ограничена.
func (r *RateLimiter) Limit(scope string) int64 {
	return r.limits[scope]
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

func clampRemaining(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// ExtractClientIP возвращает IP клиента. Заголовки прокси разбирает middleware.RealIP.
func ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
