package notify

import (
	"fmt"
	"html"
	"time"

	"course-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KindPurchaseConfirmation = "purchase_confirmation"
	KindOTP                  = "otp"
)

// Purchase - данные письма о покупке
type Purchase struct {
	To          string
	Name        string
	CourseTitle string
	OrderNumber string
	Amount      decimal.Decimal
}

// PurchaseConfirmation собирает письмо о успешной покупке курса
func PurchaseConfirmation(siteName string, p Purchase) *models.Notification {
	amount := p.Amount.StringFixed(2)
	subject := fmt.Sprintf("%s: order %s confirmed", siteName, p.OrderNumber)
	text := fmt.Sprintf("Hello, %s!\n\nThank you for purchasing \"%s\".\nOrder number: %s\nAmount paid: %s\n\n%s",
		p.Name, p.CourseTitle, p.OrderNumber, amount, siteName)
	htmlBody := fmt.Sprintf("<p>Hello, %s!</p><p>Thank you for purchasing <strong>%s</strong>.</p>"+
		"<p>Order number: <code>%s</code><br>Amount paid: %s</p><p>%s</p>",
		html.EscapeString(p.Name), html.EscapeString(p.CourseTitle), html.EscapeString(p.OrderNumber),
		amount, html.EscapeString(siteName))

	return &models.Notification{
		ID:        uuid.New(),
		Kind:      KindPurchaseConfirmation,
		Channel:   models.ChannelEmail,
		To:        p.To,
		Subject:   subject,
		Body:      text,
		HTML:      htmlBody,
		CreatedAt: time.Now().UTC(),
	}
}

// OTPCode собирает сообщение с одноразовым кодом для SMS или email
func OTPCode(siteName string, channel models.NotificationChannel, to, code string, ttl time.Duration) *models.Notification {
	minutes := int(ttl.Minutes())
	text := fmt.Sprintf("%s verification code: %s. Valid for %d minutes.", siteName, code, minutes)

	n := &models.Notification{
		ID:        uuid.New(),
		Kind:      KindOTP,
		Channel:   channel,
		To:        to,
		Body:      text,
		CreatedAt: time.Now().UTC(),
	}
	if channel == models.ChannelEmail {
		n.Subject = fmt.Sprintf("%s verification code", siteName)
		n.HTML = fmt.Sprintf("<p>Your verification code:</p><h2>%s</h2><p>Valid for %d minutes.</p>",
			html.EscapeString(code), minutes)
	}
	return n
}
