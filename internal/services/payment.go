package services

import (
	"context"
	"fmt"
	"strings"

	"course-marketplace/internal/config"
	"course-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest - данные для списания оплаты за заказ
type PaymentRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	UserID      uuid.UUID
	CourseID    uuid.UUID
	Amount      decimal.Decimal
}

// PaymentResult - итог списания: статус заказа и ссылка на платёж
type PaymentResult struct {
	Status    models.OrderStatus
	Reference string
}

// PaymentProvider проводит оплату заказа
type PaymentProvider interface {
	Charge(ctx context.Context, req PaymentRequest) (PaymentResult, error)
}

// SimulatedProvider подтверждает любой платёж сразу
type SimulatedProvider struct{}

// Charge всегда возвращает COMPLETED
func (SimulatedProvider) Charge(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{
		Status:    models.OrderStatusCompleted,
		Reference: "sim_" + req.OrderNumber,
	}, nil
}

// NewPaymentProvider выбирает провайдера по конфигурации
func NewPaymentProvider(cfg *config.PaymentConfig) (PaymentProvider, error) {
	name := ""
	if cfg != nil {
		name = strings.ToLower(strings.TrimSpace(cfg.Provider))
	}
	switch name {
	case "", "simulated":
		return SimulatedProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
