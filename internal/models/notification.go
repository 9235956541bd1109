package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationChannel - канал доставки уведомления
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// Notification - сообщение покупателю, доставляемое асинхронно
type Notification struct {
	ID        uuid.UUID           `json:"id"`
	Kind      string              `json:"kind"`
	Channel   NotificationChannel `json:"channel"`
	To        string              `json:"to"`
	Subject   string              `json:"subject,omitempty"`
	Body      string              `json:"body"`
	HTML      string              `json:"html,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}
