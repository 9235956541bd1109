package handlers

import (
	"net/http"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/services"

	"github.com/go-chi/chi/v5"
)

// OrderHandler представляет обработчик заказов
type OrderHandler struct {
	orderService OrderService
	producer     EventProducer
	log          *logger.Logger
}

// NewOrderHandler создает новый обработчик заказов
func NewOrderHandler(orderService OrderService, producer EventProducer, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		producer:     producer,
		log:          log,
	}
}

// CreateOrder оформляет покупку курса текущим пользователем
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req models.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create order")
		return
	}

	buyer := models.Buyer{ID: user.ID, Name: user.Name, Email: user.Email}
	order, err := h.orderService.CreateOrder(r.Context(), buyer, &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to create order")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishOrderCreated(order); err != nil {
			// заказ уже оплачен, клиенту ошибку не возвращаем
			h.log.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order created event")
		}
	}

	h.log.WithField("order_id", order.ID).WithField("order_number", order.OrderNumber).Info("Order created successfully")
	writeJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"order": order})
}

// ListMyOrders возвращает заказы текущего пользователя
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	orders, err := h.orderService.ListUserOrders(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list orders")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"orders": orders})
}

// ListOrders возвращает заказы для администратора
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list orders")
		return
	}

	filter := models.OrderFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.Valid() {
			writeErrorResponse(w, r, http.StatusBadRequest, "Invalid order status", services.CodeInvalidStatus)
			return
		}
		filter.Status = &status
	}

	orders, err := h.orderService.ListOrders(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list orders")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"orders": orders})
}

// ListBuyers возвращает покупателей оплаченных курсов
func (h *OrderHandler) ListBuyers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list buyers")
		return
	}

	buyers, err := h.orderService.ListBuyers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list buyers")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"buyers": buyers})
}

// UpdateOrderStatus меняет статус заказа
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to update order status")
		return
	}

	order, previous, err := h.orderService.UpdateOrderStatus(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to update order status")
		return
	}

	if h.producer != nil && previous != order.Status {
		if err := h.producer.PublishOrderStatusChanged(order.ID, previous, order.Status); err != nil {
			h.log.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order status changed event")
		}
	}

	h.log.WithField("order_id", order.ID).
		WithField("old_status", previous).
		WithField("new_status", order.Status).
		Info("Order status updated")
	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"order": order})
}

// GetOrder отдаёт заказ владельцу или администратору
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	orderID, err := parseUUID(chi.URLParam(r, "id"), "order id")
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to get order")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to get order")
		return
	}

	if order.UserID != user.ID && !user.IsAdmin() {
		writeServiceError(w, r, h.log, apperror.Forbidden("Access to this order is denied", nil), "Failed to get order")
		return
	}

	writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{"order": order})
}
