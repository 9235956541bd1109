package models

import (
	"time"

	"github.com/google/uuid"
)

// Role определяет права пользователя
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User представляет учётную запись покупателя или администратора
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         *string   `json:"email,omitempty" db:"email"`
	Phone         *string   `json:"phone,omitempty" db:"phone"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	Role          Role      `json:"role" db:"role"`
	EmailVerified bool      `json:"emailVerified" db:"email_verified"`
	PhoneVerified bool      `json:"phoneVerified" db:"phone_verified"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// IsAdmin сообщает, есть ли у пользователя права администратора
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Buyer - данные покупателя, нужные для оформления заказа и уведомления
type Buyer struct {
	ID    uuid.UUID
	Name  string
	Email *string
}

// RegisterRequest описывает регистрацию
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
}

// LoginRequest описывает вход по email или телефону
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// OTPPurpose - назначение одноразового кода
type OTPPurpose string

const (
	OTPPurposeLogin       OTPPurpose = "LOGIN"
	OTPPurposePhoneVerify OTPPurpose = "PHONE_VERIFY"
	OTPPurposeEmailVerify OTPPurpose = "EMAIL_VERIFY"
)

// SendOTPRequest описывает запрос одноразового кода
type SendOTPRequest struct {
	Phone *string    `json:"phone,omitempty"`
	Email *string    `json:"email,omitempty"`
	Type  OTPPurpose `json:"type"`
}

// VerifyOTPRequest описывает подтверждение одноразового кода
type VerifyOTPRequest struct {
	Phone *string    `json:"phone,omitempty"`
	Email *string    `json:"email,omitempty"`
	OTP   string     `json:"otp"`
	Type  OTPPurpose `json:"type"`
}
