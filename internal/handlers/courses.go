package handlers

import (
	"net/http"
	"strings"

	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/redis"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CourseHandler обслуживает каталог курсов
type CourseHandler struct {
	service     CourseService
	redisClient RedisClient
	log         *logger.Logger
}

// NewCourseHandler создает обработчик курсов. redisClient может быть nil.
func NewCourseHandler(service CourseService, redisClient RedisClient, log *logger.Logger) *CourseHandler {
	return &CourseHandler{service: service, redisClient: redisClient, log: log}
}

// ListCourses возвращает опубликованные курсы
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list courses")
		return
	}

	courses, err := h.service.ListCourses(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list courses")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"courses": courses})
}

// GetCourse отдаёт курс по ID или slug, сначала пробуя кеш
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	if ref == "" {
		writeErrorResponse(w, r, http.StatusBadRequest, "course id or slug is required", "invalid_id")
		return
	}

	var (
		cacheKey string
		load     func() (*models.Course, error)
	)
	if id, err := uuid.Parse(ref); err == nil {
		cacheKey = redis.GenerateKey(redis.KeyPrefixCourse, id.String())
		load = func() (*models.Course, error) { return h.service.GetCourse(r.Context(), id) }
	} else {
		slug := strings.ToLower(ref)
		cacheKey = redis.GenerateKey(redis.KeyPrefixCourse, "slug:"+slug)
		load = func() (*models.Course, error) { return h.service.GetCourseBySlug(r.Context(), slug) }
	}

	if h.redisClient != nil {
		var cached models.Course
		if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
			writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"course": &cached})
			return
		}
	}

	course, err := load()
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to get course")
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Set(r.Context(), cacheKey, course, defaultCacheTTL); err != nil {
			h.log.WithError(err).WithField("course", ref).Warn("Failed to cache course")
		}
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"course": course})
}

// CreateCourse добавляет курс в каталог
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create course")
		return
	}

	course, err := h.service.CreateCourse(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create course")
		return
	}

	h.log.WithField("course_id", course.ID).WithField("slug", course.Slug).Info("Course created")
	writeJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"course": course})
}

// StatsHandler отдаёт публичную статистику площадки
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler создает обработчик статистики
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats возвращает счётчики. При сбое сервис отдаёт нули.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, r, http.StatusOK, h.stats.GetStats(r.Context()))
}
