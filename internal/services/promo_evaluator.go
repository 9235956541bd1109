package services

import (
	"fmt"
	"strings"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// Коды отказов промокода, возвращаемые клиенту
const (
	CodePromoNotFound     = "promo_not_found"
	CodePromoInactive     = "promo_inactive"
	CodePromoExpired      = "promo_expired"
	CodePromoExhausted    = "promo_exhausted"
	CodePromoBelowMinimum = "promo_below_minimum"
)

var hundred = decimal.NewFromInt(100)

// NormalizePromoCode приводит код к виду, в котором он хранится.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// EvaluatePromo проверяет применимость промокода к сумме покупки и возвращает скидку.
// Проверки идут в фиксированном порядке, возвращается первая неудачная.
// Функция не меняет промокод.
func EvaluatePromo(promo *models.PromoCode, amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if promo == nil {
		return decimal.Zero, errPromoNotFound(nil)
	}
	if !promo.IsActive {
		return decimal.Zero, apperror.WithCode(apperror.KindConflict, CodePromoInactive, "promo code is not active", nil)
	}
	if promo.ExpiresAt != nil && !now.Before(*promo.ExpiresAt) {
		return decimal.Zero, apperror.WithCode(apperror.KindConflict, CodePromoExpired, "promo code has expired", nil)
	}
	if promo.MaxUses != nil && promo.UsedCount >= *promo.MaxUses {
		return decimal.Zero, errPromoExhausted()
	}
	if promo.MinPurchase.Valid && amount.LessThan(promo.MinPurchase.Decimal) {
		msg := fmt.Sprintf("minimum purchase amount for this promo code is %s", promo.MinPurchase.Decimal.StringFixed(2))
		return decimal.Zero, apperror.WithCode(apperror.KindConflict, CodePromoBelowMinimum, msg, nil)
	}
	return CalculateDiscount(promo.Type, promo.Value, amount), nil
}

// CalculateDiscount считает скидку. Процент округляется до копеек, фиксированная
// скидка не ограничивается суммой: итог зажимается в ноль при оформлении заказа.
func CalculateDiscount(discountType models.DiscountType, value, amount decimal.Decimal) decimal.Decimal {
	switch discountType {
	case models.DiscountTypePercentage:
		return amount.Mul(value).Div(hundred).Round(2)
	case models.DiscountTypeFixed:
		return value
	default:
		return decimal.Zero
	}
}

// FinalAmount возвращает max(0, amount - discount).
func FinalAmount(amount, discount decimal.Decimal) decimal.Decimal {
	final := amount.Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

func errPromoNotFound(err error) error {
	return apperror.WithCode(apperror.KindNotFound, CodePromoNotFound, "promo code not found", err)
}

func errPromoExhausted() error {
	return apperror.WithCode(apperror.KindConflict, CodePromoExhausted, "promo code usage limit reached", nil)
}
