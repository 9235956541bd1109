package handlers

import (
	"net/http"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
)

// PromoHandler обслуживает промокоды
type PromoHandler struct {
	service PromoService
	log     *logger.Logger
}

// NewPromoHandler создает новый обработчик промокодов
func NewPromoHandler(service PromoService, log *logger.Logger) *PromoHandler {
	return &PromoHandler{service: service, log: log}
}

// ValidatePromoCode показывает скидку по коду без его списания
func (h *PromoHandler) ValidatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.ValidatePromoCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to validate promo code")
		return
	}

	preview, err := h.service.ValidatePromoCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to validate promo code")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"valid":     true,
		"promocode": preview,
	})
}

// ListPromoCodes возвращает промокоды со счётчиком заказов
func (h *PromoHandler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list promo codes")
		return
	}

	promos, err := h.service.ListPromoCodes(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list promo codes")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"promocodes": promos})
}

// CreatePromoCode создает промокод
func (h *PromoHandler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePromoCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create promo code")
		return
	}

	promo, err := h.service.CreatePromoCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create promo code")
		return
	}

	h.log.WithField("promo_code", promo.Code).Info("Promo code created")
	writeJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"promocode": promo})
}

// UpdatePromoCode включает или выключает промокод
func (h *PromoHandler) UpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePromoCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to update promo code")
		return
	}
	if req.IsActive == nil {
		writeServiceError(w, r, h.log, apperror.Validation("isActive is required", nil), "Failed to update promo code")
		return
	}

	promo, err := h.service.SetPromoCodeActive(r.Context(), req.ID, *req.IsActive)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to update promo code")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"promocode": promo})
}

// DeletePromoCode удаляет промокод по ?id=
func (h *PromoHandler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r.URL.Query().Get("id"), "promo code id")
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to delete promo code")
		return
	}

	if err := h.service.DeletePromoCode(r.Context(), id); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to delete promo code")
		return
	}

	h.log.WithField("promo_id", id).Info("Promo code deleted")
	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"success": true})
}
