package handlers

import (
	"net/http"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
)

const (
	defaultCookieName = "auth-token"
	defaultSessionTTL = 7 * 24 * time.Hour
)

// AuthHandler обслуживает регистрацию, вход и одноразовые коды
type AuthHandler struct {
	auth         AuthService
	otp          OTPService
	log          *logger.Logger
	cookieName   string
	cookieSecure bool
	sessionTTL   time.Duration
}

// NewAuthHandler создает обработчик авторизации
func NewAuthHandler(auth AuthService, otp OTPService, cfg *config.AuthConfig, log *logger.Logger) *AuthHandler {
	h := &AuthHandler{
		auth:       auth,
		otp:        otp,
		log:        log,
		cookieName: defaultCookieName,
		sessionTTL: defaultSessionTTL,
	}
	if cfg != nil {
		if cfg.CookieName != "" {
			h.cookieName = cfg.CookieName
		}
		if cfg.TokenTTLHours > 0 {
			h.sessionTTL = time.Duration(cfg.TokenTTLHours) * time.Hour
		}
		h.cookieSecure = cfg.CookieSecure
	}
	return h
}

// Register создает пользователя и открывает сессию
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to register")
		return
	}

	user, token, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to register")
		return
	}

	h.setSessionCookie(w, token)
	h.log.WithField("user_id", user.ID).Info("User registered")
	writeJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"success": true, "user": user})
}

// Login открывает сессию по паролю
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to login")
		return
	}

	user, token, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to login")
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

// SendOTP отправляет одноразовый код на телефон или почту
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to send code")
		return
	}

	if err := h.otp.Send(r.Context(), &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to send code")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"success": true, "message": "Code sent"})
}

// VerifyOTP проверяет код и открывает сессию
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to verify code")
		return
	}

	user, token, err := h.otp.Verify(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to verify code")
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

// Logout удаляет cookie сессии
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"success": true})
}

// Me возвращает текущего пользователя
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"user": UserFromContext(r.Context())})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
