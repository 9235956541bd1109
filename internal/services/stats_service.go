package services

import (
	"context"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/database"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/redis"
)

const defaultStatsCacheTTL = 10 * time.Minute

var statsCacheKey = redis.GenerateKey(redis.KeyPrefixStats, "site")

// StatsService считает публичные счётчики каталога и кеширует их в Redis.
type StatsService struct {
	db       *database.DB
	redis    *redis.Client
	log      *logger.Logger
	cacheTTL time.Duration
}

// NewStatsService создает сервис статистики. redisClient может быть nil.
func NewStatsService(db *database.DB, redisClient *redis.Client, log *logger.Logger, cfg *config.StatsConfig) *StatsService {
	cacheTTL := defaultStatsCacheTTL
	if cfg != nil && cfg.CacheTTLMinutes > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
	}
	return &StatsService{
		db:       db,
		redis:    redisClient,
		log:      log,
		cacheTTL: cacheTTL,
	}
}

// GetStats возвращает счётчики. При ошибке базы возвращаются нули.
func (s *StatsService) GetStats(ctx context.Context) *models.SiteStats {
	var cached models.SiteStats
	if s.tryGetFromCache(ctx, &cached) {
		return &cached
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM courses WHERE is_published = TRUE),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(DISTINCT instructor) FROM courses WHERE is_published = TRUE),
			(SELECT COUNT(*) FROM orders WHERE status = 'COMPLETED')
	`

	var stats models.SiteStats
	err := s.db.QueryRowContext(ctx, query).Scan(&stats.Courses, &stats.Students, &stats.Instructors, &stats.Certificates)
	if err != nil {
		s.log.WithError(err).Error("Failed to load site stats")
		return &models.SiteStats{}
	}

	s.saveToCache(ctx, &stats)
	return &stats
}

// InvalidateCache удаляет закешированные счётчики
func (s *StatsService) InvalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Delete(ctx, statsCacheKey); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate stats cache")
	}
}

// HandleOrderEvent сбрасывает кеш при изменениях заказов
func (s *StatsService) HandleOrderEvent(ctx context.Context, event *models.Event) error {
	s.InvalidateCache(ctx)
	return nil
}

func (s *StatsService) tryGetFromCache(ctx context.Context, dest *models.SiteStats) bool {
	if s.redis == nil {
		return false
	}

	if err := s.redis.Get(ctx, statsCacheKey, dest); err != nil {
		return false
	}
	return true
}

func (s *StatsService) saveToCache(ctx context.Context, value *models.SiteStats) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Set(ctx, statsCacheKey, value, s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("Failed to cache site stats")
	}
}
