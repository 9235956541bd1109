package services

import (
	"sync"
	"testing"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/database"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	return &database.DB{DB: db}, mock
}

// queueStub запоминает уведомления вместо доставки
type queueStub struct {
	mu     sync.Mutex
	items  []*models.Notification
	reject bool
}

func (q *queueStub) Enqueue(n *models.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return false
	}
	q.items = append(q.items, n)
	return true
}

func (q *queueStub) last() *models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[len(q.items)-1]
}

var (
	promoRowColumns = []string{"id", "code", "type", "value", "max_uses", "used_count", "min_purchase",
		"expires_at", "is_active", "created_at", "updated_at"}
	orderRowColumns = []string{"id", "order_number", "user_id", "course_id", "promo_code_id", "promo_code",
		"amount", "discount", "final_amount", "status", "payment_reference", "created_at", "updated_at"}
	userRowColumns = []string{"id", "name", "email", "phone", "password_hash", "role", "email_verified",
		"phone_verified", "created_at"}
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func orderRow(id, userID, courseID uuid.UUID, status models.OrderStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderRowColumns).
		AddRow(id.String(), "SA-TEST-0001", userID.String(), courseID.String(), nil, nil, "100.00", "0.00", "100.00", string(status), nil, now, now)
}
