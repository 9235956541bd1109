//go:build integration

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/config"
	"course-marketplace/internal/database"
	"course-marketplace/internal/models"

	"github.com/google/uuid"
)

// Тесты идут против настоящего Postgres (переменные DB_* как у сервера):
// гарантии одной активной покупки и лимита промокода держат индекс и условный UPDATE.

func newIntegrationDB(t *testing.T) *database.DB {
	t.Helper()
	cfg := config.Load()
	db, err := database.Connect(&cfg.Database, newTestLogger())
	if err != nil {
		t.Skipf("skip: postgres is not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type seed struct {
	db      *database.DB
	users   []uuid.UUID
	courses []uuid.UUID
	promos  []uuid.UUID
}

func newSeed(t *testing.T, db *database.DB) *seed {
	s := &seed{db: db}
	t.Cleanup(func() {
		ctx := context.Background()
		for _, id := range s.users {
			_, _ = db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		}
		for _, id := range s.courses {
			_, _ = db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
		}
		for _, id := range s.promos {
			_, _ = db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
		}
	})
	return s
}

func (s *seed) user(t *testing.T) models.Buyer {
	t.Helper()
	id := uuid.New()
	email := fmt.Sprintf("buyer-%s@example.com", id)
	if _, err := s.db.Exec(`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, 'x')`, id, "Buyer", email); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	s.users = append(s.users, id)
	return models.Buyer{ID: id, Name: "Buyer"}
}

func (s *seed) course(t *testing.T, price string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := s.db.Exec(`INSERT INTO courses (id, title, slug, instructor, price, is_published) VALUES ($1, $2, $3, $4, $5, TRUE)`,
		id, "Concurrency in Go", "concurrency-"+id.String(), "Katherine Cox-Buday", price); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	s.courses = append(s.courses, id)
	return id
}

func (s *seed) promo(t *testing.T, code, promoType, value string, maxUses *int) uuid.UUID {
	t.Helper()
	if _, err := s.db.Exec(`DELETE FROM promo_codes WHERE code = $1`, code); err != nil {
		t.Fatalf("cleanup promo: %v", err)
	}
	id := uuid.New()
	if _, err := s.db.Exec(`INSERT INTO promo_codes (id, code, type, value, max_uses) VALUES ($1, $2, $3, $4, $5)`,
		id, code, promoType, value, maxUses); err != nil {
		t.Fatalf("seed promo: %v", err)
	}
	s.promos = append(s.promos, id)
	return id
}

func (s *seed) usedCount(t *testing.T, promoID uuid.UUID) int {
	t.Helper()
	var used int
	if err := s.db.QueryRow(`SELECT used_count FROM promo_codes WHERE id = $1`, promoID).Scan(&used); err != nil {
		t.Fatalf("read used_count: %v", err)
	}
	return used
}

func newIntegrationOrderService(db *database.DB) *OrderService {
	log := newTestLogger()
	return NewOrderService(db, log, NewPromoService(db, log), SimulatedProvider{}, nil,
		&config.OrdersConfig{NumberPrefix: "IT"}, "Academy")
}

func TestOrderServiceIntegration_ConcurrentPurchaseYieldsOneOrder(t *testing.T) {
	db := newIntegrationDB(t)
	s := newSeed(t, db)
	svc := newIntegrationOrderService(db)

	buyer := s.user(t)
	courseID := s.course(t, "100.00")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateOrder(context.Background(), buyer, &models.CreateOrderRequest{CourseID: courseID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperror.HasCode(err, CodeAlreadyPurchased):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if created != 1 || duplicate != workers-1 {
		t.Fatalf("expected 1 order and %d already_purchased, got %d and %d", workers-1, created, duplicate)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND course_id = $2`, buyer.ID, courseID).Scan(&rows); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one stored order, got %d", rows)
	}
}

func TestOrderServiceIntegration_ConcurrentRedemptionsRespectMaxUses(t *testing.T) {
	db := newIntegrationDB(t)
	s := newSeed(t, db)
	svc := newIntegrationOrderService(db)

	courseID := s.course(t, "100.00")
	maxUses := 3
	code := "LIMIT" + uuid.NewString()[:8]
	promoID := s.promo(t, code, "FIXED", "15", &maxUses)

	const workers = 10
	buyers := make([]models.Buyer, workers)
	for i := range buyers {
		buyers[i] = s.user(t)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		redeemed  int
		exhausted int
	)
	start := make(chan struct{})
	for _, buyer := range buyers {
		wg.Add(1)
		go func(buyer models.Buyer) {
			defer wg.Done()
			<-start
			_, err := svc.CreateOrder(context.Background(), buyer, &models.CreateOrderRequest{CourseID: courseID, Promocode: &code})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				redeemed++
			case apperror.HasCode(err, CodePromoExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(buyer)
	}
	close(start)
	wg.Wait()

	if redeemed != maxUses || exhausted != workers-maxUses {
		t.Fatalf("expected %d redemptions and %d promo_exhausted, got %d and %d", maxUses, workers-maxUses, redeemed, exhausted)
	}
	if used := s.usedCount(t, promoID); used != maxUses {
		t.Fatalf("expected used_count %d, got %d", maxUses, used)
	}
}

func TestOrderServiceIntegration_Welcome10(t *testing.T) {
	db := newIntegrationDB(t)
	s := newSeed(t, db)
	svc := newIntegrationOrderService(db)

	buyer := s.user(t)
	courseID := s.course(t, "200.00")
	promoID := s.promo(t, "WELCOME10", "PERCENTAGE", "10", nil)
	code := "welcome10"

	order, err := svc.CreateOrder(context.Background(), buyer, &models.CreateOrderRequest{CourseID: courseID, Promocode: &code})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !order.FinalAmount.Equal(dec("180")) || !order.Discount.Equal(dec("20")) {
		t.Fatalf("expected final 180 with discount 20, got %s / %s", order.FinalAmount, order.Discount)
	}
	if order.Status != models.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", order.Status)
	}
	if used := s.usedCount(t, promoID); used != 1 {
		t.Fatalf("expected used_count 1, got %d", used)
	}
}
