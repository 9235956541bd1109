package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"course-marketplace/internal/apperror"

	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// Константы
const (
	defaultCacheTTL = 15 * time.Minute
	maxPageSize     = 200
)

// ErrorResponse представляет структуру ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSONResponse отправляет JSON ответ
func writeJSONResponse(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	render.Status(r, statusCode)
	render.JSON(w, r, data)
}

// writeErrorResponse отправляет ответ с ошибкой
func writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message, code string) {
	writeJSONResponse(w, r, statusCode, ErrorResponse{Error: message, Code: code})
}

// decodeJSON читает тело запроса. Ошибка разбора превращается в validation.
func decodeJSON(r *http.Request, dest interface{}) error {
	if err := render.DecodeJSON(r.Body, dest); err != nil {
		return apperror.WithCode(apperror.KindValidation, "invalid_body", "Invalid request body", err)
	}
	return nil
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperror.WithCode(apperror.KindValidation, "invalid_id", "Invalid "+field, err)
	}
	return id, nil
}

// parsePagination разбирает limit/offset из query. Пустые значения дают нули,
// дальше сервис подставляет свои значения по умолчанию.
func parsePagination(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return 0, 0, err
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperror.WithCode(apperror.KindValidation, "invalid_query", "Invalid "+name, err)
	}
	return v, nil
}

// clientMessage достаёт сообщение прикладной ошибки без префиксов обёрток
func clientMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
