package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/config"
	"course-marketplace/internal/database"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	CodeUserExists         = "user_exists"
	CodeUserNotFound       = "user_not_found"
	CodeInvalidCredentials = "invalid_credentials"

	userColumns = `id, name, email, phone, password_hash, role, email_verified, phone_verified, created_at`

	minNameLength     = 2
	minPasswordLength = 6
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// AuthService регистрирует пользователей и выпускает сессии
type AuthService struct {
	db         *database.DB
	log        *logger.Logger
	tokens     *TokenIssuer
	bcryptCost int
}

// NewAuthService создаёт сервис аутентификации
func NewAuthService(db *database.DB, log *logger.Logger, tokens *TokenIssuer, cfg *config.AuthConfig) *AuthService {
	cost := bcrypt.DefaultCost
	if cfg != nil && cfg.BcryptCost >= bcrypt.MinCost && cfg.BcryptCost <= bcrypt.MaxCost {
		cost = cfg.BcryptCost
	}
	return &AuthService{db: db, log: log, tokens: tokens, bcryptCost: cost}
}

// Register создаёт пользователя и возвращает его вместе с токеном сессии
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	if req == nil {
		return nil, "", apperror.Validation("request body is required", nil)
	}
	user := &models.User{
		ID:   uuid.New(),
		Name: strings.TrimSpace(req.Name),
		Role: models.RoleUser,
	}
	user.Email = normalizeEmail(req.Email)
	user.Phone = normalizePhone(req.Phone)

	if err := validateRegistration(user, req.Password); err != nil {
		return nil, "", apperror.Validation(err.Error(), err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	query := `
		INSERT INTO users (id, name, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err = s.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, user.Phone, user.PasswordHash, user.Role).
		Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, "", apperror.WithCode(apperror.KindConflict, CodeUserExists, "user with this email or phone already exists", err)
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("user_id", user.ID).Info("User registered")
	return user, token, nil
}

// Login проверяет пароль. Идентификатор с @ считается email, иначе телефоном.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	if req == nil || strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		return nil, "", apperror.Validation("identifier and password are required", nil)
	}

	identifier := strings.TrimSpace(req.Identifier)
	var email, phone *string
	if strings.Contains(identifier, "@") {
		email = normalizeEmail(&identifier)
	} else {
		phone = normalizePhone(&identifier)
	}

	user, err := s.FindByContact(ctx, email, phone)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, "", invalidCredentials(err)
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", invalidCredentials(err)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("user_id", user.ID).Info("User logged in")
	return user, token, nil
}

// Authenticate проверяет токен и перечитывает пользователя из базы
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperror.Unauthorized("authentication required", nil)
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperror.Unauthorized("invalid or expired session", err)
	}

	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("invalid or expired session", err)
		}
		return nil, err
	}
	return user, nil
}

// IssueToken выпускает сессионный токен
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	return s.tokens.Issue(user)
}

// GetUserByID возвращает пользователя по ID
func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getUser(ctx, query, id)
}

// FindByContact ищет пользователя по email или телефону
func (s *AuthService) FindByContact(ctx context.Context, email, phone *string) (*models.User, error) {
	switch {
	case email != nil && *email != "":
		return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, *email)
	case phone != nil && *phone != "":
		return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, *phone)
	default:
		return nil, apperror.Validation("email or phone is required", nil)
	}
}

// MarkVerified отмечает телефон или email подтверждённым
func (s *AuthService) MarkVerified(ctx context.Context, userID uuid.UUID, purpose models.OTPPurpose) error {
	var query string
	switch purpose {
	case models.OTPPurposePhoneVerify:
		query = `UPDATE users SET phone_verified = TRUE, updated_at = NOW() WHERE id = $1`
	case models.OTPPurposeEmailVerify:
		query = `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`
	default:
		return nil
	}

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

func (s *AuthService) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Role, &u.EmailVerified, &u.PhoneVerified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithCode(apperror.KindNotFound, CodeUserNotFound, "user not found", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func invalidCredentials(err error) error {
	return apperror.WithCode(apperror.KindUnauthorized, CodeInvalidCredentials, "invalid credentials", err)
}

func validateRegistration(user *models.User, password string) error {
	if utf8.RuneCountInString(user.Name) < minNameLength {
		return fmt.Errorf("name must be at least %d characters", minNameLength)
	}
	if user.Email == nil && user.Phone == nil {
		return errors.New("email or phone is required")
	}
	if user.Email != nil {
		if addr, err := mail.ParseAddress(*user.Email); err != nil || addr.Address != *user.Email {
			return errors.New("invalid email")
		}
	}
	if user.Phone != nil && !phonePattern.MatchString(*user.Phone) {
		return errors.New("invalid phone number")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	v := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(*phone))
	if v == "" {
		return nil
	}
	return &v
}
