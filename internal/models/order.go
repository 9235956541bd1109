package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Суммы в API отдаются числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Valid сообщает, является ли значение известным статусом
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Order представляет покупку курса
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OrderNumber      string          `json:"orderNumber" db:"order_number"`
	UserID           uuid.UUID       `json:"userId" db:"user_id"`
	CourseID         uuid.UUID       `json:"courseId" db:"course_id"`
	PromoCodeID      *uuid.UUID      `json:"promoCodeId,omitempty" db:"promo_code_id"`
	PromoCode        *string         `json:"promoCode,omitempty" db:"promo_code"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Discount         decimal.Decimal `json:"discount" db:"discount"`
	FinalAmount      decimal.Decimal `json:"finalAmount" db:"final_amount"`
	Status           OrderStatus     `json:"status" db:"status"`
	PaymentReference *string         `json:"paymentReference,omitempty" db:"payment_reference"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`

	User   *OrderUser   `json:"user,omitempty"`
	Course *OrderCourse `json:"course,omitempty"`
}

// OrderUser содержит данные покупателя для админского списка
type OrderUser struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// OrderCourse содержит данные курса для списков заказов
type OrderCourse struct {
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Instructor string     `json:"instructor,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
}

// CreateOrderRequest представляет запрос на покупку курса
type CreateOrderRequest struct {
	CourseID  uuid.UUID `json:"courseId"`
	Promocode *string   `json:"promocode,omitempty"`
}

// UpdateOrderStatusRequest представляет запрос администратора на смену статуса
type UpdateOrderStatusRequest struct {
	ID     uuid.UUID   `json:"id"`
	Status OrderStatus `json:"status"`
}

// CourseBuyer - строка админского списка покупателей
type CourseBuyer struct {
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	CourseID    uuid.UUID `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	OrderNumber string    `json:"orderNumber"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

// OrderFilter задаёт фильтрацию админского списка заказов
type OrderFilter struct {
	Status *OrderStatus
	Limit  int
	Offset int
}
