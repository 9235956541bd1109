package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/database"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"

	"github.com/google/uuid"
)

const (
	CodeCourseSlugExists = "course_slug_exists"

	courseColumns = `id, title, slug, instructor, price, start_date, is_published, created_at`
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// StatsInvalidator сбрасывает кеш публичной статистики
type StatsInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// CourseService отвечает за каталог курсов
type CourseService struct {
	db    *database.DB
	log   *logger.Logger
	stats StatsInvalidator
}

// NewCourseService создаёт сервис каталога. stats может быть nil.
func NewCourseService(db *database.DB, log *logger.Logger, stats StatsInvalidator) *CourseService {
	return &CourseService{db: db, log: log, stats: stats}
}

// GetCourse возвращает курс по ID
func (s *CourseService) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`

	course, err := scanCourse(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithCode(apperror.KindNotFound, CodeCourseNotFound, "course not found", err)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// GetCourseBySlug возвращает курс по slug
func (s *CourseService) GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return nil, apperror.WithCode(apperror.KindNotFound, CodeCourseNotFound, "course not found", nil)
	}
	query := `SELECT ` + courseColumns + ` FROM courses WHERE slug = $1`

	course, err := scanCourse(s.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithCode(apperror.KindNotFound, CodeCourseNotFound, "course not found", err)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// ListCourses возвращает опубликованные курсы, ближайшие по старту первыми
func (s *CourseService) ListCourses(ctx context.Context, limit, offset int) ([]*models.Course, error) {
	limit, offset = normalizePage(limit, offset, 50)

	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE is_published = TRUE
		ORDER BY start_date ASC NULLS LAST, created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]*models.Course, 0)
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// CreateCourse добавляет курс в каталог
func (s *CourseService) CreateCourse(ctx context.Context, req *models.CreateCourseRequest) (*models.Course, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required", nil)
	}
	course := &models.Course{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Slug:        strings.ToLower(strings.TrimSpace(req.Slug)),
		Instructor:  strings.TrimSpace(req.Instructor),
		Price:       req.Price,
		StartDate:   req.StartDate,
		IsPublished: req.IsPublished,
	}
	switch {
	case course.Title == "":
		return nil, apperror.Validation("title is required", nil)
	case !slugPattern.MatchString(course.Slug):
		return nil, apperror.Validation("slug must contain lowercase letters, digits and dashes", nil)
	case course.Instructor == "":
		return nil, apperror.Validation("instructor is required", nil)
	case course.Price.IsNegative():
		return nil, apperror.Validation("price must not be negative", nil)
	}

	query := `
		INSERT INTO courses (id, title, slug, instructor, price, start_date, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, course.ID, course.Title, course.Slug, course.Instructor,
		course.Price, course.StartDate, course.IsPublished).Scan(&course.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, apperror.WithCode(apperror.KindConflict, CodeCourseSlugExists, "course with this slug already exists", err)
		}
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	if s.stats != nil {
		s.stats.InvalidateCache(ctx)
	}

	s.log.WithFields(map[string]interface{}{
		"course_id": course.ID,
		"slug":      course.Slug,
	}).Info("Course created")
	return course, nil
}

func scanCourse(row rowScanner) (*models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Instructor, &c.Price, &c.StartDate, &c.IsPublished, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
