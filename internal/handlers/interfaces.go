package handlers

import (
	"context"
	"time"

	"course-marketplace/internal/models"
	"course-marketplace/internal/services"

	"github.com/google/uuid"
)

// ----- Orders -----

type OrderService interface {
	CreateOrder(ctx context.Context, buyer models.Buyer, req *models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	ListBuyers(ctx context.Context, limit, offset int) ([]*models.CourseBuyer, error)
	UpdateOrderStatus(ctx context.Context, req *models.UpdateOrderStatusRequest) (*models.Order, models.OrderStatus, error)
}

type EventProducer interface {
	PublishOrderCreated(order *models.Order) error
	PublishOrderStatusChanged(orderID uuid.UUID, oldStatus, newStatus models.OrderStatus) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// ----- Promo -----

type PromoService interface {
	CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error)
	SetPromoCodeActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoCode, error)
	DeletePromoCode(ctx context.Context, id uuid.UUID) error
	ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error)
	ValidatePromoCode(ctx context.Context, req *models.ValidatePromoCodeRequest) (*models.PromoPreview, error)
}

// ----- Auth -----

type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type OTPService interface {
	Send(ctx context.Context, req *models.SendOTPRequest) error
	Verify(ctx context.Context, req *models.VerifyOTPRequest) (*models.User, string, error)
}

// ----- Courses -----

type CourseService interface {
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error)
	ListCourses(ctx context.Context, limit, offset int) ([]*models.Course, error)
	CreateCourse(ctx context.Context, req *models.CreateCourseRequest) (*models.Course, error)
}

type StatsProvider interface {
	GetStats(ctx context.Context) *models.SiteStats
}

// ----- Rate limit -----

type RateLimiter interface {
	Allow(ctx context.Context, scope, key string) (services.RateDecision, error)
	Usage(ctx context.Context, scope, key string) (*services.RateUsage, error)
	Enabled() bool
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
