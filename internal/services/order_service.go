package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/config"
	"course-marketplace/internal/database"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CodeCourseNotFound          = "course_not_found"
	CodeOrderNotFound           = "order_not_found"
	CodeAlreadyPurchased        = "already_purchased"
	CodeInvalidStatus           = "invalid_status"
	CodeInvalidStatusTransition = "invalid_status_transition"

	constraintOrderNumber    = "orders_order_number_key"
	constraintActivePurchase = "orders_active_purchase_idx"

	defaultOrderNumberAttempts = 5

	orderColumns = `o.id, o.order_number, o.user_id, o.course_id, o.promo_code_id, o.promo_code, o.amount, o.discount,
		o.final_amount, o.status, o.payment_reference, o.created_at, o.updated_at`
)

// NotificationQueue принимает уведомления без блокировки вызывающего
type NotificationQueue interface {
	Enqueue(n *models.Notification) bool
}

// OrderService оформляет покупки курсов и ведёт их статусы
type OrderService struct {
	db       *database.DB
	log      *logger.Logger
	promo    *PromoService
	payments PaymentProvider
	notifier NotificationQueue
	numbers  *OrderNumberGenerator
	attempts int
	strict   bool
	siteName string
	now      func() time.Time
}

// NewOrderService создает новый экземпляр сервиса заказов
func NewOrderService(db *database.DB, log *logger.Logger, promo *PromoService, payments PaymentProvider, notifier NotificationQueue, cfg *config.OrdersConfig, siteName string) *OrderService {
	s := &OrderService{
		db:       db,
		log:      log,
		promo:    promo,
		payments: payments,
		notifier: notifier,
		numbers:  NewOrderNumberGenerator(""),
		attempts: defaultOrderNumberAttempts,
		siteName: siteName,
		now:      time.Now,
	}
	if s.payments == nil {
		s.payments = SimulatedProvider{}
	}
	if cfg != nil {
		s.numbers = NewOrderNumberGenerator(cfg.NumberPrefix)
		if cfg.NumberAttempts > 0 {
			s.attempts = cfg.NumberAttempts
		}
		s.strict = cfg.StrictStatusTransitions
	}
	return s
}

type orderCourse struct {
	id      uuid.UUID
	price   decimal.Decimal
	summary models.OrderCourse
}

// CreateOrder оформляет покупку курса одной транзакцией: проверка курса и повторной
// покупки, списание промокода, вставка заказа и оплата. Любая ошибка откатывает всё,
// включая счётчик промокода.
func (s *OrderService) CreateOrder(ctx context.Context, buyer models.Buyer, req *models.CreateOrderRequest) (*models.Order, error) {
	if req == nil || req.CourseID == uuid.Nil {
		return nil, apperror.Validation("courseId is required", nil)
	}
	if buyer.ID == uuid.Nil {
		return nil, apperror.Unauthorized("authentication required", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var course orderCourse
	err = tx.QueryRowContext(ctx, `SELECT id, title, slug, instructor, start_date, price FROM courses WHERE id = $1`, req.CourseID).
		Scan(&course.id, &course.summary.Title, &course.summary.Slug, &course.summary.Instructor, &course.summary.StartDate, &course.price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithCode(apperror.KindNotFound, CodeCourseNotFound, "course not found", err)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	// Параллельные покупки одного курса одним пользователем выстраиваются в очередь.
	lockKey := buyer.ID.String() + ":" + course.id.String()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return nil, fmt.Errorf("failed to lock purchase: %w", err)
	}

	var purchased bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE user_id = $1 AND course_id = $2 AND status IN ('PENDING', 'COMPLETED')
		)`, buyer.ID, course.id).Scan(&purchased)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing purchase: %w", err)
	}
	if purchased {
		return nil, errAlreadyPurchased(nil)
	}

	discount := decimal.Zero
	var promoID *uuid.UUID
	var promoCode *string
	if req.Promocode != nil && NormalizePromoCode(*req.Promocode) != "" {
		if s.promo == nil {
			return nil, apperror.Validation("promo codes are not supported", nil)
		}
		redemption, err := s.promo.RedeemWithTx(ctx, tx, *req.Promocode, course.price)
		if err != nil {
			return nil, err
		}
		discount = redemption.Discount
		promoID = &redemption.PromoID
		promoCode = &redemption.Code
	}

	now := s.now()
	order := &models.Order{
		ID:          uuid.New(),
		UserID:      buyer.ID,
		CourseID:    course.id,
		PromoCodeID: promoID,
		PromoCode:   promoCode,
		Amount:      course.price,
		Discount:    discount,
		FinalAmount: FinalAmount(course.price, discount),
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	payment, err := s.payments.Charge(ctx, PaymentRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		CourseID:    order.CourseID,
		Amount:      order.FinalAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("payment failed: %w", err)
	}

	order.Status = payment.Status
	if payment.Reference != "" {
		ref := payment.Reference
		order.PaymentReference = &ref
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, payment_reference = $2, updated_at = $3 WHERE id = $4`,
		order.Status, order.PaymentReference, order.UpdatedAt, order.ID); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"course_id":    order.CourseID,
		"final_amount": order.FinalAmount.StringFixed(2),
		"promo_code":   order.PromoCode,
	}).Info("Order created successfully")

	s.notifyPurchase(buyer, course.summary.Title, order)
	order.Course = &course.summary
	return order, nil
}

// insertOrder вставляет заказ, перевыпуская номер при коллизии.
// Каждая попытка идёт под точкой сохранения, чтобы не терять транзакцию.
func (s *OrderService) insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (id, order_number, user_id, course_id, promo_code_id, promo_code, amount, discount,
		                    final_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for attempt := 1; attempt <= s.attempts; attempt++ {
		order.OrderNumber = s.numbers.Next()

		if _, err := tx.ExecContext(ctx, "SAVEPOINT order_insert"); err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}

		_, err := tx.ExecContext(ctx, query, order.ID, order.OrderNumber, order.UserID, order.CourseID,
			order.PromoCodeID, order.PromoCode, order.Amount, order.Discount, order.FinalAmount,
			order.Status, order.CreatedAt, order.UpdatedAt)
		if err == nil {
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT order_insert"); err != nil {
				return fmt.Errorf("failed to release savepoint: %w", err)
			}
			return nil
		}

		switch {
		case isUniqueViolation(err, constraintOrderNumber):
			s.log.WithFields(map[string]interface{}{
				"order_number": order.OrderNumber,
				"attempt":      attempt,
			}).Warn("Order number collision, retrying")
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT order_insert"); rbErr != nil {
				return fmt.Errorf("failed to rollback to savepoint: %w", rbErr)
			}
		case isUniqueViolation(err, constraintActivePurchase):
			return errAlreadyPurchased(err)
		default:
			return fmt.Errorf("failed to create order: %w", err)
		}
	}
	return fmt.Errorf("failed to allocate unique order number after %d attempts", s.attempts)
}

func (s *OrderService) notifyPurchase(buyer models.Buyer, courseTitle string, order *models.Order) {
	if s.notifier == nil || buyer.Email == nil || *buyer.Email == "" {
		return
	}
	n := notify.PurchaseConfirmation(s.siteName, notify.Purchase{
		To:          *buyer.Email,
		Name:        buyer.Name,
		CourseTitle: courseTitle,
		OrderNumber: order.OrderNumber,
		Amount:      order.FinalAmount,
	})
	if !s.notifier.Enqueue(n) {
		s.log.WithField("order_id", order.ID).Warn("Purchase confirmation dropped")
	}
}

// GetOrder получает заказ по ID
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `, c.title, c.slug, c.instructor, c.start_date
		FROM orders o
		JOIN courses c ON c.id = o.course_id
		WHERE o.id = $1
	`

	order := &models.Order{Course: &models.OrderCourse{}}
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(append(orderScanDest(order),
		&order.Course.Title, &order.Course.Slug, &order.Course.Instructor, &order.Course.StartDate)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithCode(apperror.KindNotFound, CodeOrderNotFound, "order not found", err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListUserOrders возвращает покупки пользователя, новые первыми
func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `, c.title, c.slug, c.instructor, c.start_date
		FROM orders o
		JOIN courses c ON c.id = o.course_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order := &models.Order{Course: &models.OrderCourse{}}
		if err := rows.Scan(append(orderScanDest(order),
			&order.Course.Title, &order.Course.Slug, &order.Course.Instructor, &order.Course.StartDate)...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// ListOrders получает список заказов с фильтрацией для администратора
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `, u.name, u.email, u.phone, c.title, c.slug
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN courses c ON c.id = o.course_id
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		if !filter.Status.Valid() {
			return nil, apperror.WithCode(apperror.KindValidation, CodeInvalidStatus, "invalid order status", nil)
		}
		query += fmt.Sprintf(" AND o.status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	query += " ORDER BY o.created_at DESC"

	limit, offset := normalizePage(filter.Limit, filter.Offset, 100)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order := &models.Order{User: &models.OrderUser{}, Course: &models.OrderCourse{}}
		if err := rows.Scan(append(orderScanDest(order),
			&order.User.Name, &order.User.Email, &order.User.Phone, &order.Course.Title, &order.Course.Slug)...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// ListBuyers возвращает покупателей с оплаченными курсами, новые первыми.
// Частичный уникальный индекс оставляет не больше одного COMPLETED заказа на пару (пользователь, курс).
func (s *OrderService) ListBuyers(ctx context.Context, limit, offset int) ([]*models.CourseBuyer, error) {
	limit, offset = normalizePage(limit, offset, 100)

	query := `
		SELECT u.id, u.name, u.email, u.phone, c.id, c.title, o.order_number, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN courses c ON c.id = o.course_id
		WHERE o.status = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, models.OrderStatusCompleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyers: %w", err)
	}
	defer rows.Close()

	buyers := make([]*models.CourseBuyer, 0)
	for rows.Next() {
		b := &models.CourseBuyer{}
		if err := rows.Scan(&b.UserID, &b.Name, &b.Email, &b.Phone, &b.CourseID, &b.CourseTitle,
			&b.OrderNumber, &b.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan buyer: %w", err)
		}
		buyers = append(buyers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buyers: %w", err)
	}

	return buyers, nil
}

// UpdateOrderStatus меняет статус заказа и возвращает заказ с предыдущим статусом.
// В строгом режиме действует таблица переходов, иначе допустим любой известный статус.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *models.UpdateOrderStatusRequest) (*models.Order, models.OrderStatus, error) {
	if req == nil || req.ID == uuid.Nil {
		return nil, "", apperror.Validation("id is required", nil)
	}
	if !req.Status.Valid() {
		return nil, "", apperror.WithCode(apperror.KindValidation, CodeInvalidStatus, "invalid order status", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current models.OrderStatus
	if err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, req.ID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", apperror.WithCode(apperror.KindNotFound, CodeOrderNotFound, "order not found", err)
		}
		return nil, "", fmt.Errorf("failed to fetch order status: %w", err)
	}

	if s.strict && !isValidOrderStatusTransition(current, req.Status) {
		msg := fmt.Sprintf("cannot change order status from %s to %s", current, req.Status)
		return nil, "", apperror.WithCode(apperror.KindConflict, CodeInvalidStatusTransition, msg, nil)
	}

	query := `
		UPDATE orders o
		SET status = $1, updated_at = $2
		WHERE o.id = $3
		RETURNING ` + orderColumns

	order := &models.Order{}
	if err := tx.QueryRowContext(ctx, query, req.Status, s.now(), req.ID).Scan(orderScanDest(order)...); err != nil {
		if isUniqueViolation(err, constraintActivePurchase) {
			return nil, "", errAlreadyPurchased(err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", apperror.WithCode(apperror.KindNotFound, CodeOrderNotFound, "order not found", err)
		}
		return nil, "", fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit order status update: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":   req.ID,
		"old_status": current,
		"new_status": req.Status,
	}).Info("Order status updated")

	return order, current, nil
}

func orderScanDest(o *models.Order) []interface{} {
	return []interface{}{
		&o.ID, &o.OrderNumber, &o.UserID, &o.CourseID, &o.PromoCodeID, &o.PromoCode, &o.Amount, &o.Discount,
		&o.FinalAmount, &o.Status, &o.PaymentReference, &o.CreatedAt, &o.UpdatedAt,
	}
}

func errAlreadyPurchased(err error) error {
	return apperror.WithCode(apperror.KindConflict, CodeAlreadyPurchased, "course already purchased", err)
}
