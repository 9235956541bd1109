package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType представляет тип события Kafka
type EventType string

const (
	EventTypeOrderCreated          EventType = "order.created"
	EventTypeOrderStatusChanged    EventType = "order.status_changed"
	EventTypeNotificationRequested EventType = "notification.requested"
)

// Event - конверт всех событий, публикуемых сервисом
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent упаковывает payload в конверт события
func NewEvent(eventType EventType, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Decode распаковывает payload события
func (e *Event) Decode(dest interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.ID)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// OrderCreatedData - payload события order.created
type OrderCreatedData struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      uuid.UUID       `json:"userId"`
	CourseID    uuid.UUID       `json:"courseId"`
	PromoCode   *string         `json:"promoCode,omitempty"`
	FinalAmount decimal.Decimal `json:"finalAmount"`
	Status      OrderStatus     `json:"status"`
}

// OrderStatusChangedData - payload события order.status_changed
type OrderStatusChangedData struct {
	OrderID   uuid.UUID   `json:"orderId"`
	OldStatus OrderStatus `json:"oldStatus"`
	NewStatus OrderStatus `json:"newStatus"`
}
