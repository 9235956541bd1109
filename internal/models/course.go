package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Course представляет курс каталога
type Course struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Slug        string          `json:"slug" db:"slug"`
	Instructor  string          `json:"instructor" db:"instructor"`
	Price       decimal.Decimal `json:"price" db:"price"`
	StartDate   *time.Time      `json:"startDate,omitempty" db:"start_date"`
	IsPublished bool            `json:"isPublished" db:"is_published"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// CreateCourseRequest описывает создание курса администратором
type CreateCourseRequest struct {
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Instructor  string          `json:"instructor"`
	Price       decimal.Decimal `json:"price"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	IsPublished bool            `json:"isPublished"`
}

// SiteStats - публичные счётчики каталога
type SiteStats struct {
	Courses      int64 `json:"courses"`
	Students     int64 `json:"students"`
	Instructors  int64 `json:"instructors"`
	Certificates int64 `json:"certificates"`
}
