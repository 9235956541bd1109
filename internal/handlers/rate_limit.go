package handlers

import (
	"net/http"
	"strconv"

	"course-marketplace/internal/logger"
	"course-marketplace/internal/services"
)

// RateLimitHandler отдаёт клиенту состояние его лимитов.
type RateLimitHandler struct {
	limiter RateLimiter
	log     *logger.Logger
}

// NewRateLimitHandler создает новый RateLimitHandler.
func NewRateLimitHandler(limiter RateLimiter, log *logger.Logger) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, log: log}
}

// Status возвращает текущие значения лимитов для клиента.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil || !h.limiter.Enabled() {
		writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}

	key := services.ExtractClientIP(r)
	scopes := make([]*services.RateUsage, 0, 2)
	for _, scope := range []string{services.ScopeAPI, services.ScopeOTP} {
		usage, err := h.limiter.Usage(r.Context(), scope, key)
		if err != nil {
			h.log.WithError(err).WithField("scope", scope).Error("Failed to fetch rate limit usage")
			writeErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch rate limit usage", "internal_error")
			return
		}
		scopes = append(scopes, usage)
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"key":     key,
		"scopes":  scopes,
	})
}

// RateLimit ограничивает запросы клиента в области scope.
// Ошибка Redis не блокирует запрос, а только логируется.
func RateLimit(limiter RateLimiter, scope string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !limiter.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := services.ExtractClientIP(r)
			decision, err := limiter.Allow(r.Context(), scope, key)
			if err != nil {
				log.WithError(err).WithField("scope", scope).Error("Rate limiter failed")
				next.ServeHTTP(w, r)
				return
			}

			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
				if !decision.ResetAt.IsZero() {
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
				}
			}

			if !decision.Allowed {
				log.WithField("scope", scope).WithField("client", key).Warn("Rate limit exceeded")
				writeErrorResponse(w, r, http.StatusTooManyRequests, "Rate limit exceeded", "rate_limited")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
