package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType описывает тип промокода.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// PromoCode представляет промокод в системе.
type PromoCode struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	Code        string              `json:"code" db:"code"`
	Type        DiscountType        `json:"type" db:"type"`
	Value       decimal.Decimal     `json:"value" db:"value"`
	MaxUses     *int                `json:"maxUses" db:"max_uses"`
	UsedCount   int                 `json:"usedCount" db:"used_count"`
	MinPurchase decimal.NullDecimal `json:"minPurchase" db:"min_purchase"`
	ExpiresAt   *time.Time          `json:"expiresAt" db:"expires_at"`
	IsActive    bool                `json:"isActive" db:"is_active"`
	CreatedAt   time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time           `json:"updatedAt" db:"updated_at"`
	OrderCount  *int                `json:"orderCount,omitempty"`
}

// CreatePromoCodeRequest описывает запрос на создание промокода.
type CreatePromoCodeRequest struct {
	Code        string           `json:"code"`
	Type        DiscountType     `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	MaxUses     *int             `json:"maxUses,omitempty"`
	MinPurchase *decimal.Decimal `json:"minPurchase,omitempty"`
	ExpiresAt   *time.Time       `json:"expiresAt,omitempty"`
}

// UpdatePromoCodeRequest включает или выключает промокод.
type UpdatePromoCodeRequest struct {
	ID       uuid.UUID `json:"id"`
	IsActive *bool     `json:"isActive"`
}

// ValidatePromoCodeRequest описывает предварительную проверку промокода.
type ValidatePromoCodeRequest struct {
	Code        string          `json:"code"`
	CoursePrice decimal.Decimal `json:"coursePrice"`
}

// PromoPreview - результат проверки промокода без его списания.
type PromoPreview struct {
	Code     string          `json:"code"`
	Type     DiscountType    `json:"type"`
	Value    decimal.Decimal `json:"value"`
	Discount decimal.Decimal `json:"discount"`
}
