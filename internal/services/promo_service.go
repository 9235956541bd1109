package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/database"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CodePromoCodeExists = "promo_code_exists"

	promoColumns = `id, code, type, value, max_uses, used_count, min_purchase, expires_at, is_active, created_at, updated_at`
)

// PromoService управляет промокодами и расчётом скидок.
type PromoService struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewPromoService создаёт сервис промокодов.
func NewPromoService(db *database.DB, log *logger.Logger) *PromoService {
	return &PromoService{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Redemption - результат списания промокода внутри транзакции заказа.
type Redemption struct {
	PromoID  uuid.UUID
	Code     string
	Discount decimal.Decimal
}

// CreatePromoCode создаёт новый промокод.
func (s *PromoService) CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required", nil)
	}
	code := NormalizePromoCode(req.Code)
	if err := validatePromoCodePayload(code, req); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	now := s.now()
	promo := &models.PromoCode{
		ID:        uuid.New(),
		Code:      code,
		Type:      req.Type,
		Value:     req.Value,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.MinPurchase != nil {
		promo.MinPurchase = decimal.NewNullDecimal(*req.MinPurchase)
	}

	query := `
		INSERT INTO promo_codes (id, code, type, value, max_uses, used_count, min_purchase, expires_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query, promo.ID, promo.Code, promo.Type, promo.Value, promo.MaxUses,
		promo.MinPurchase, promo.ExpiresAt, promo.IsActive, promo.CreatedAt, promo.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, apperror.WithCode(apperror.KindConflict, CodePromoCodeExists, "promo code already exists", err)
		}
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}

	s.log.WithField("promo_code", promo.Code).Info("Promo code created")
	return promo, nil
}

// SetPromoCodeActive включает или выключает промокод.
func (s *PromoService) SetPromoCodeActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoCode, error) {
	if id == uuid.Nil {
		return nil, apperror.Validation("id is required", nil)
	}

	query := `
		UPDATE promo_codes
		SET is_active = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + promoColumns

	promo, err := scanPromo(s.db.QueryRowContext(ctx, query, active, s.now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errPromoNotFound(err)
		}
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"promo_code": promo.Code,
		"is_active":  active,
	}).Info("Promo code updated")
	return promo, nil
}

// DeletePromoCode удаляет промокод. Заказы сохраняют снимок кода.
func (s *PromoService) DeletePromoCode(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM promo_codes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete promo code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errPromoNotFound(nil)
	}
	s.log.WithField("promo_id", id).Info("Promo code deleted")
	return nil
}

// GetPromoCode возвращает промокод по коду.
func (s *PromoService) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`

	promo, err := scanPromo(s.db.QueryRowContext(ctx, query, NormalizePromoCode(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errPromoNotFound(err)
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return promo, nil
}

// ListPromoCodes возвращает список промокодов с числом заказов по каждому.
func (s *PromoService) ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error) {
	limit, offset = normalizePage(limit, offset, 50)
	query := `
		SELECT p.id, p.code, p.type, p.value, p.max_uses, p.used_count, p.min_purchase, p.expires_at,
		       p.is_active, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM orders o WHERE o.promo_code_id = p.id) AS order_count
		FROM promo_codes p
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	promos := make([]*models.PromoCode, 0)
	for rows.Next() {
		p := &models.PromoCode{}
		var orderCount int
		if err := rows.Scan(&p.ID, &p.Code, &p.Type, &p.Value, &p.MaxUses, &p.UsedCount, &p.MinPurchase,
			&p.ExpiresAt, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &orderCount); err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		p.OrderCount = &orderCount
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promo codes: %w", err)
	}

	return promos, nil
}

// ValidatePromoCode показывает скидку для цены курса без списания использования.
// Между проверкой и покупкой промокод может исчерпаться: окончательное решение
// принимает RedeemWithTx.
func (s *PromoService) ValidatePromoCode(ctx context.Context, req *models.ValidatePromoCodeRequest) (*models.PromoPreview, error) {
	if req == nil || NormalizePromoCode(req.Code) == "" {
		return nil, apperror.Validation("code is required", nil)
	}
	if req.CoursePrice.IsNegative() {
		return nil, apperror.Validation("coursePrice must not be negative", nil)
	}

	promo, err := s.GetPromoCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	discount, err := EvaluatePromo(promo, req.CoursePrice, s.now())
	if err != nil {
		return nil, err
	}

	return &models.PromoPreview{
		Code:     promo.Code,
		Type:     promo.Type,
		Value:    promo.Value,
		Discount: discount,
	}, nil
}

// RedeemWithTx блокирует промокод, проверяет его и увеличивает счётчик использования
// в рамках транзакции заказа. Счётчик растёт только если used_count < max_uses.
func (s *PromoService) RedeemWithTx(ctx context.Context, tx *sql.Tx, code string, amount decimal.Decimal) (*Redemption, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1 FOR UPDATE`

	promo, err := scanPromo(tx.QueryRowContext(ctx, query, NormalizePromoCode(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errPromoNotFound(err)
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	discount, err := EvaluatePromo(promo, amount, s.now())
	if err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE promo_codes
		SET used_count = used_count + 1, updated_at = $1
		WHERE id = $2 AND (max_uses IS NULL OR used_count < max_uses)
	`
	result, err := tx.ExecContext(ctx, updateQuery, s.now(), promo.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update promo usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, errPromoExhausted()
	}

	return &Redemption{PromoID: promo.ID, Code: promo.Code, Discount: discount}, nil
}

func scanPromo(row rowScanner) (*models.PromoCode, error) {
	p := &models.PromoCode{}
	if err := row.Scan(&p.ID, &p.Code, &p.Type, &p.Value, &p.MaxUses, &p.UsedCount, &p.MinPurchase,
		&p.ExpiresAt, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func validatePromoCodePayload(code string, req *models.CreatePromoCodeRequest) error {
	if len(code) < 3 {
		return fmt.Errorf("code must be at least 3 characters")
	}
	if !req.Value.IsPositive() {
		return fmt.Errorf("value must be positive")
	}
	switch req.Type {
	case models.DiscountTypeFixed:
	case models.DiscountTypePercentage:
		if req.Value.GreaterThan(hundred) {
			return fmt.Errorf("percentage value must not exceed 100")
		}
	default:
		return fmt.Errorf("type must be PERCENTAGE or FIXED")
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		return fmt.Errorf("maxUses must be positive")
	}
	if req.MinPurchase != nil && !req.MinPurchase.IsPositive() {
		return fmt.Errorf("minPurchase must be positive")
	}
	return nil
}
