package notify

import (
	"context"
	"errors"
	"fmt"

	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
)

// ErrChannelNotConfigured возвращается, если для канала нет транспорта
var ErrChannelNotConfigured = errors.New("notification channel is not configured")

// Mailer отправляет письма
type Mailer interface {
	SendMail(ctx context.Context, to, subject, text, html string) error
}

// SMSSender отправляет SMS
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Deliverer выбирает транспорт по каналу уведомления
type Deliverer struct {
	mailer Mailer
	sms    SMSSender
	log    *logger.Logger
}

// NewDeliverer создаёт доставщик. Любой транспорт может быть nil.
func NewDeliverer(mailer Mailer, sms SMSSender, log *logger.Logger) *Deliverer {
	return &Deliverer{mailer: mailer, sms: sms, log: log}
}

// Deliver отправляет уведомление через соответствующий транспорт
func (d *Deliverer) Deliver(ctx context.Context, n *models.Notification) error {
	if n == nil || n.To == "" {
		return fmt.Errorf("notification has no recipient")
	}
	switch n.Channel {
	case models.ChannelEmail:
		if d.mailer == nil {
			return fmt.Errorf("email: %w", ErrChannelNotConfigured)
		}
		return d.mailer.SendMail(ctx, n.To, n.Subject, n.Body, n.HTML)
	case models.ChannelSMS:
		if d.sms == nil {
			return fmt.Errorf("sms: %w", ErrChannelNotConfigured)
		}
		return d.sms.SendSMS(ctx, n.To, n.Body)
	default:
		return fmt.Errorf("unknown notification channel %q", n.Channel)
	}
}

// Send позволяет использовать Deliverer как Sink при прямой доставке
func (d *Deliverer) Send(ctx context.Context, n *models.Notification) error {
	return d.Deliver(ctx, n)
}

// HandleEvent доставляет уведомление из события notification.requested
func (d *Deliverer) HandleEvent(ctx context.Context, event *models.Event) error {
	var n models.Notification
	if err := event.Decode(&n); err != nil {
		return err
	}
	if err := d.Deliver(ctx, &n); err != nil {
		return fmt.Errorf("deliver %s notification %s: %w", n.Kind, n.ID, err)
	}
	d.log.WithFields(map[string]interface{}{
		"notification_id": n.ID,
		"kind":            n.Kind,
		"channel":         n.Channel,
	}).Info("Notification delivered")
	return nil
}
