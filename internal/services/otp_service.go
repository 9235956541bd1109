package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/config"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/notify"
	"course-marketplace/internal/redis"

	"golang.org/x/crypto/bcrypt"
)

const (
	CodeInvalidOTP = "invalid_otp"

	otpLength          = 6
	defaultOTPTTL      = 10 * time.Minute
	defaultOTPAttempts = 5
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// otpRecord хранится в Redis до подтверждения или истечения TTL
type otpRecord struct {
	Hash    string            `json:"hash"`
	Purpose models.OTPPurpose `json:"purpose"`
	UserID  string            `json:"userId"`
}

// OTPService выдаёт и проверяет одноразовые коды
type OTPService struct {
	redis       *redis.Client
	auth        *AuthService
	notifier    NotificationQueue
	log         *logger.Logger
	ttl         time.Duration
	maxAttempts int64
	keyPrefix   string
	siteName    string
}

// NewOTPService создает сервис одноразовых кодов
func NewOTPService(redisClient *redis.Client, auth *AuthService, notifier NotificationQueue, log *logger.Logger, cfg *config.OTPConfig, siteName string) *OTPService {
	s := &OTPService{
		redis:       redisClient,
		auth:        auth,
		notifier:    notifier,
		log:         log,
		ttl:         defaultOTPTTL,
		maxAttempts: defaultOTPAttempts,
		keyPrefix:   "otp",
		siteName:    siteName,
	}
	if cfg != nil {
		if cfg.TTLMinutes > 0 {
			s.ttl = time.Duration(cfg.TTLMinutes) * time.Minute
		}
		if cfg.MaxAttempts > 0 {
			s.maxAttempts = int64(cfg.MaxAttempts)
		}
		if cfg.KeyPrefix != "" {
			s.keyPrefix = cfg.KeyPrefix
		}
	}
	return s
}

// Send генерирует код и ставит его в очередь доставки. Пользователь должен существовать.
func (s *OTPService) Send(ctx context.Context, req *models.SendOTPRequest) error {
	if req == nil {
		return apperror.Validation("request body is required", nil)
	}
	purpose, err := otpPurpose(req.Type)
	if err != nil {
		return err
	}
	contact, channel, err := otpContact(req.Phone, req.Email)
	if err != nil {
		return err
	}

	user, err := s.findUser(ctx, contact, channel)
	if err != nil {
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}

	record := otpRecord{Hash: string(hash), Purpose: purpose, UserID: user.ID.String()}
	if err := s.redis.Set(ctx, s.codeKey(contact), record, s.ttl); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	if err := s.redis.Delete(ctx, s.attemptsKey(contact)); err != nil {
		return fmt.Errorf("failed to reset otp attempts: %w", err)
	}

	n := notify.OTPCode(s.siteName, channel, contact, code, s.ttl)
	if s.notifier == nil || !s.notifier.Enqueue(n) {
		s.log.WithFields(map[string]interface{}{
			"user_id": user.ID,
			"channel": channel,
		}).Warn("OTP notification was not queued")
	}

	s.log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"purpose": purpose,
		"channel": channel,
	}).Info("OTP issued")
	return nil
}

// Verify проверяет код. Успешная проверка удаляет код и выпускает сессию.
func (s *OTPService) Verify(ctx context.Context, req *models.VerifyOTPRequest) (*models.User, string, error) {
	if req == nil {
		return nil, "", apperror.Validation("request body is required", nil)
	}
	if !otpPattern.MatchString(req.OTP) {
		return nil, "", apperror.WithCode(apperror.KindValidation, CodeInvalidOTP, "otp must be 6 digits", nil)
	}
	contact, channel, err := otpContact(req.Phone, req.Email)
	if err != nil {
		return nil, "", err
	}

	// Запись забирается из Redis атомарно: из параллельных запросов с верным кодом
	// сессию получает только один.
	key := s.codeKey(contact)
	ttl, err := s.redis.TTL(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load otp ttl: %w", err)
	}
	var record otpRecord
	if err := s.redis.GetDel(ctx, key, &record); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, "", invalidOTP("otp expired or was not requested", err)
		}
		return nil, "", fmt.Errorf("failed to load otp: %w", err)
	}
	if req.Type != "" && req.Type != record.Purpose {
		s.restore(ctx, contact, record, ttl)
		return nil, "", invalidOTP("otp was issued for another purpose", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(req.OTP)); err != nil {
		return nil, "", s.registerFailure(ctx, contact, record, ttl)
	}

	if err := s.redis.Delete(ctx, s.attemptsKey(contact)); err != nil {
		s.log.WithError(err).Warn("Failed to reset otp attempts")
	}

	user, err := s.findUser(ctx, contact, channel)
	if err != nil {
		return nil, "", err
	}
	if err := s.auth.MarkVerified(ctx, user.ID, record.Purpose); err != nil {
		return nil, "", err
	}
	switch record.Purpose {
	case models.OTPPurposePhoneVerify:
		user.PhoneVerified = true
	case models.OTPPurposeEmailVerify:
		user.EmailVerified = true
	}

	token, err := s.auth.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"purpose": record.Purpose,
	}).Info("OTP verified")
	return user, token, nil
}

// registerFailure считает неудачную попытку и возвращает код на место, пока попытки не исчерпаны
func (s *OTPService) registerFailure(ctx context.Context, contact string, record otpRecord, ttl time.Duration) error {
	key := s.attemptsKey(contact)
	attempts, err := s.redis.Incr(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to count otp attempts: %w", err)
	}
	if attempts == 1 {
		if err := s.redis.Expire(ctx, key, s.ttl); err != nil {
			s.log.WithError(err).Warn("Failed to set ttl for otp attempts")
		}
	}
	if attempts >= s.maxAttempts {
		s.burn(ctx, contact)
		return invalidOTP("too many attempts, request a new code", nil)
	}
	s.restore(ctx, contact, record, ttl)
	return invalidOTP("invalid otp", nil)
}

// restore возвращает забранный код с остатком TTL. Новый код, выданный за это время, не затирается.
func (s *OTPService) restore(ctx context.Context, contact string, record otpRecord, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	if _, err := s.redis.SetNX(ctx, s.codeKey(contact), record, ttl); err != nil {
		s.log.WithError(err).Warn("Failed to restore otp")
	}
}

func (s *OTPService) burn(ctx context.Context, contact string) {
	for _, key := range []string{s.codeKey(contact), s.attemptsKey(contact)} {
		if err := s.redis.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Failed to delete otp key")
		}
	}
}

func (s *OTPService) findUser(ctx context.Context, contact string, channel models.NotificationChannel) (*models.User, error) {
	if channel == models.ChannelSMS {
		return s.auth.FindByContact(ctx, nil, &contact)
	}
	return s.auth.FindByContact(ctx, &contact, nil)
}

func (s *OTPService) codeKey(contact string) string {
	return redis.GenerateKey(s.keyPrefix, contact)
}

func (s *OTPService) attemptsKey(contact string) string {
	return redis.GenerateKey(s.keyPrefix, "attempts:"+contact)
}

func invalidOTP(msg string, err error) error {
	return apperror.WithCode(apperror.KindValidation, CodeInvalidOTP, msg, err)
}

func otpPurpose(p models.OTPPurpose) (models.OTPPurpose, error) {
	switch p {
	case "":
		return models.OTPPurposeLogin, nil
	case models.OTPPurposeLogin, models.OTPPurposePhoneVerify, models.OTPPurposeEmailVerify:
		return p, nil
	default:
		return "", apperror.Validation("invalid otp type", nil)
	}
}

// otpContact выбирает телефон, если он указан, иначе email
func otpContact(phone, email *string) (string, models.NotificationChannel, error) {
	if p := normalizePhone(phone); p != nil {
		return *p, models.ChannelSMS, nil
	}
	if e := normalizeEmail(email); e != nil {
		return *e, models.ChannelEmail, nil
	}
	return "", "", apperror.Validation("phone or email is required", nil)
}

func generateOTP() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpLength, n.Int64()), nil
}
