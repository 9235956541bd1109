package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/config"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/services"

	"github.com/google/uuid"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

var (
	testUser  = &models.User{ID: uuid.New(), Name: "Anna", Email: strPtr("anna@example.com"), Role: models.RoleUser}
	testAdmin = &models.User{ID: uuid.New(), Name: "Boris", Role: models.RoleAdmin}
)

func strPtr(s string) *string { return &s }

func newTestLogger() *logger.Logger {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	log.SetOutput(io.Discard)
	return log
}

// ----- stubs -----

type stubOrderService struct {
	order      *models.Order
	orders     []*models.Order
	previous   models.OrderStatus
	err        error
	lastBuyer  models.Buyer
	lastFilter models.OrderFilter
	lastUser   uuid.UUID
	buyers     []*models.CourseBuyer
}

func (s *stubOrderService) CreateOrder(ctx context.Context, buyer models.Buyer, req *models.CreateOrderRequest) (*models.Order, error) {
	s.lastBuyer = buyer
	return s.order, s.err
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	s.lastUser = userID
	return s.orders, s.err
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	s.lastFilter = filter
	return s.orders, s.err
}

func (s *stubOrderService) ListBuyers(ctx context.Context, limit, offset int) ([]*models.CourseBuyer, error) {
	return s.buyers, s.err
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, req *models.UpdateOrderStatusRequest) (*models.Order, models.OrderStatus, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	s.order.Status = req.Status
	return s.order, s.previous, nil
}

type stubProducer struct {
	created int
	changed int
	err     error
}

func (p *stubProducer) PublishOrderCreated(order *models.Order) error {
	p.created++
	return p.err
}

func (p *stubProducer) PublishOrderStatusChanged(orderID uuid.UUID, oldStatus, newStatus models.OrderStatus) error {
	p.changed++
	return p.err
}

type stubPromoService struct {
	promo      *models.PromoCode
	preview    *models.PromoPreview
	list       []*models.PromoCode
	err        error
	lastActive *bool
	deleted    uuid.UUID
}

func (s *stubPromoService) CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error) {
	return s.promo, s.err
}

func (s *stubPromoService) SetPromoCodeActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoCode, error) {
	s.lastActive = &active
	return s.promo, s.err
}

func (s *stubPromoService) DeletePromoCode(ctx context.Context, id uuid.UUID) error {
	s.deleted = id
	return s.err
}

func (s *stubPromoService) ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error) {
	return s.list, s.err
}

func (s *stubPromoService) ValidatePromoCode(ctx context.Context, req *models.ValidatePromoCodeRequest) (*models.PromoPreview, error) {
	return s.preview, s.err
}

// stubAuthService узнаёт пользователей по фиксированным токенам
type stubAuthService struct {
	user  *models.User
	token string
	err   error
}

func (s *stubAuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	return s.user, s.token, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	return s.user, s.token, s.err
}

func (s *stubAuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	switch token {
	case userToken:
		return testUser, nil
	case adminToken:
		return testAdmin, nil
	}
	return nil, apperror.Unauthorized("invalid session", nil)
}

type stubOTPService struct {
	user  *models.User
	token string
	err   error
	sent  int
}

func (s *stubOTPService) Send(ctx context.Context, req *models.SendOTPRequest) error {
	s.sent++
	return s.err
}

func (s *stubOTPService) Verify(ctx context.Context, req *models.VerifyOTPRequest) (*models.User, string, error) {
	return s.user, s.token, s.err
}

type stubCourseService struct {
	course   *models.Course
	list     []*models.Course
	err      error
	getCalls int
	lastSlug string
}

func (s *stubCourseService) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	s.getCalls++
	return s.course, s.err
}

func (s *stubCourseService) GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	s.getCalls++
	s.lastSlug = slug
	return s.course, s.err
}

func (s *stubCourseService) ListCourses(ctx context.Context, limit, offset int) ([]*models.Course, error) {
	return s.list, s.err
}

func (s *stubCourseService) CreateCourse(ctx context.Context, req *models.CreateCourseRequest) (*models.Course, error) {
	return s.course, s.err
}

type stubStats struct{ stats models.SiteStats }

func (s *stubStats) GetStats(ctx context.Context) *models.SiteStats {
	st := s.stats
	return &st
}

type stubLimiter struct {
	allowSeq []bool
	idx      int
	limit    int64
	err      error
	scopes   []string
}

func (s *stubLimiter) Allow(_ context.Context, scope, _ string) (services.RateDecision, error) {
	s.scopes = append(s.scopes, scope)
	if s.err != nil {
		return services.RateDecision{}, s.err
	}
	allowed := true
	if s.idx < len(s.allowSeq) {
		allowed = s.allowSeq[s.idx]
	}
	s.idx++
	remaining := s.limit - int64(s.idx)
	if remaining < 0 {
		remaining = 0
	}
	return services.RateDecision{
		Allowed:   allowed,
		Limit:     s.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Minute),
	}, nil
}

func (s *stubLimiter) Usage(_ context.Context, scope, _ string) (*services.RateUsage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.RateUsage{Scope: scope, Limit: s.limit, Remaining: s.limit}, nil
}

func (s *stubLimiter) Enabled() bool { return true }

// ----- router fixture -----

type testDeps struct {
	orders   *stubOrderService
	producer *stubProducer
	promos   *stubPromoService
	auth     *stubAuthService
	otp      *stubOTPService
	courses  *stubCourseService
	stats    *stubStats
	limiter  RateLimiter
}

func newTestDeps() *testDeps {
	return &testDeps{
		orders:   &stubOrderService{},
		producer: &stubProducer{},
		promos:   &stubPromoService{},
		auth:     &stubAuthService{},
		otp:      &stubOTPService{},
		courses:  &stubCourseService{},
		stats:    &stubStats{},
	}
}

func (d *testDeps) handler() http.Handler {
	log := newTestLogger()
	rt := &Router{
		Orders:     NewOrderHandler(d.orders, d.producer, log),
		Promos:     NewPromoHandler(d.promos, log),
		Auth:       NewAuthHandler(d.auth, d.otp, &config.AuthConfig{TokenTTLHours: 1}, log),
		Courses:    NewCourseHandler(d.courses, nil, log),
		Stats:      NewStatsHandler(d.stats),
		Health:     NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, kafkaOK),
		RateLimit:  NewRateLimitHandler(d.limiter, log),
		Sessions:   d.auth,
		Limiter:    d.limiter,
		CookieName: defaultCookieName,
		Log:        log,
	}
	return rt.Handler()
}

// do выполняет запрос с сессией token (пустая строка - без сессии)
func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}
