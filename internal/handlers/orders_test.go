package handlers

import (
	"errors"
	"net/http"
	"testing"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/models"
	"course-marketplace/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testOrder(owner uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "SA-LX1ABC-0Z9Q",
		UserID:      owner,
		CourseID:    uuid.New(),
		Amount:      decimal.RequireFromString("100"),
		Discount:    decimal.RequireFromString("10"),
		FinalAmount: decimal.RequireFromString("90"),
		Status:      models.OrderStatusCompleted,
	}
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	d := newTestDeps()
	d.orders.order = testOrder(testUser.ID)
	h := d.handler()

	rr := do(t, h, http.MethodPost, "/api/orders", userToken, map[string]string{
		"courseId":  d.orders.order.CourseID.String(),
		"promocode": "SAVE10",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	order, ok := body["order"].(map[string]interface{})
	if !ok || order["orderNumber"] != "SA-LX1ABC-0Z9Q" || order["finalAmount"] != "90" {
		t.Fatalf("unexpected body %v", body)
	}
	if d.orders.lastBuyer.ID != testUser.ID || d.orders.lastBuyer.Email == nil {
		t.Fatalf("buyer not taken from session: %+v", d.orders.lastBuyer)
	}
	if d.producer.created != 1 {
		t.Fatalf("expected order.created published once, got %d", d.producer.created)
	}
}

func TestOrderHandler_CreateOrder_PublishFailureIgnored(t *testing.T) {
	d := newTestDeps()
	d.orders.order = testOrder(testUser.ID)
	d.producer.err = errors.New("kafka down")

	rr := do(t, d.handler(), http.MethodPost, "/api/orders", userToken, map[string]string{"courseId": uuid.NewString()})
	if rr.Code != http.StatusCreated {
		t.Fatalf("publish failure must not fail checkout, got %d", rr.Code)
	}
}

func TestOrderHandler_CreateOrder_Errors(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		body   interface{}
		err    error
		status int
		code   string
	}{
		{"anonymous", "", map[string]string{"courseId": uuid.NewString()}, nil, http.StatusUnauthorized, "unauthorized"},
		{"bad session", "forged", map[string]string{"courseId": uuid.NewString()}, nil, http.StatusUnauthorized, "unauthorized"},
		{"malformed body", userToken, "{", nil, http.StatusBadRequest, "invalid_body"},
		{"already purchased", userToken, map[string]string{"courseId": uuid.NewString()},
			apperror.WithCode(apperror.KindConflict, services.CodeAlreadyPurchased, "course already purchased", nil),
			http.StatusConflict, services.CodeAlreadyPurchased},
		{"course not found", userToken, map[string]string{"courseId": uuid.NewString()},
			apperror.WithCode(apperror.KindNotFound, services.CodeCourseNotFound, "course not found", nil),
			http.StatusNotFound, services.CodeCourseNotFound},
		{"promo expired", userToken, map[string]string{"courseId": uuid.NewString(), "promocode": "OLD"},
			apperror.WithCode(apperror.KindValidation, services.CodePromoExpired, "promo code expired", nil),
			http.StatusBadRequest, services.CodePromoExpired},
		{"database down", userToken, map[string]string{"courseId": uuid.NewString()},
			errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDeps()
			d.orders.err = tc.err
			rr := do(t, d.handler(), http.MethodPost, "/api/orders", tc.token, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if got := decodeBody(t, rr)["code"]; got != tc.code {
				t.Fatalf("expected code %q, got %v", tc.code, got)
			}
			if d.producer.created != 0 {
				t.Fatalf("no event expected on failure")
			}
		})
	}
}

func TestOrderHandler_InternalErrorHidesDetails(t *testing.T) {
	d := newTestDeps()
	d.orders.err = errors.New("pq: password authentication failed")

	rr := do(t, d.handler(), http.MethodGet, "/api/orders/my", userToken, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if msg := decodeBody(t, rr)["error"]; msg != "Failed to list orders" {
		t.Fatalf("internal details leaked: %v", msg)
	}
}

func TestOrderHandler_ListMyOrders(t *testing.T) {
	d := newTestDeps()
	d.orders.orders = []*models.Order{testOrder(testUser.ID)}

	rr := do(t, d.handler(), http.MethodGet, "/api/orders/my", userToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if d.orders.lastUser != testUser.ID {
		t.Fatalf("expected orders of session user")
	}
	if orders, ok := decodeBody(t, rr)["orders"].([]interface{}); !ok || len(orders) != 1 {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestOrderHandler_ListOrders_AdminOnly(t *testing.T) {
	d := newTestDeps()
	h := d.handler()

	if rr := do(t, h, http.MethodGet, "/api/orders", userToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for regular user, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/orders", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/api/orders?status=REFUNDED&limit=10&offset=20", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	f := d.orders.lastFilter
	if f.Status == nil || *f.Status != models.OrderStatusRefunded || f.Limit != 10 || f.Offset != 20 {
		t.Fatalf("unexpected filter %+v", f)
	}

	if rr := do(t, h, http.MethodGet, "/api/orders?status=LOST", adminToken, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/orders?limit=-1", adminToken, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rr.Code)
	}
}

func TestOrderHandler_ListBuyers(t *testing.T) {
	d := newTestDeps()
	d.orders.buyers = []*models.CourseBuyer{{UserID: testUser.ID, Name: "Anna", CourseID: uuid.New(), CourseTitle: "Go"}}
	h := d.handler()

	if rr := do(t, h, http.MethodGet, "/api/orders/buyers", userToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("buyers as user: expected 403, got %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/api/orders/buyers", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("buyers as admin: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	list, ok := decodeBody(t, rr)["buyers"].([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("unexpected buyers body %s", rr.Body.String())
	}
	if buyer, _ := list[0].(map[string]interface{}); buyer["courseTitle"] != "Go" {
		t.Fatalf("unexpected buyer %v", buyer)
	}
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	d := newTestDeps()
	d.orders.order = testOrder(testUser.ID)
	d.orders.previous = models.OrderStatusCompleted
	h := d.handler()

	rr := do(t, h, http.MethodPut, "/api/orders", adminToken, map[string]string{
		"id":     d.orders.order.ID.String(),
		"status": string(models.OrderStatusRefunded),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if d.producer.changed != 1 {
		t.Fatalf("expected status change event, got %d", d.producer.changed)
	}

	// повтор того же статуса события не порождает
	d.orders.previous = models.OrderStatusRefunded
	do(t, h, http.MethodPut, "/api/orders", adminToken, map[string]string{
		"id":     d.orders.order.ID.String(),
		"status": string(models.OrderStatusRefunded),
	})
	if d.producer.changed != 1 {
		t.Fatalf("no event expected for same status, got %d", d.producer.changed)
	}

	if rr := do(t, h, http.MethodPut, "/api/orders", userToken, map[string]string{"id": uuid.NewString()}); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for regular user, got %d", rr.Code)
	}

	d.orders.err = apperror.WithCode(apperror.KindConflict, services.CodeInvalidStatusTransition, "transition not allowed", nil)
	rr = do(t, h, http.MethodPut, "/api/orders", adminToken, map[string]string{"id": uuid.NewString(), "status": "PENDING"})
	if rr.Code != http.StatusConflict || decodeBody(t, rr)["code"] != services.CodeInvalidStatusTransition {
		t.Fatalf("expected 409 invalid_status_transition, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestOrderHandler_GetOrder(t *testing.T) {
	d := newTestDeps()
	d.orders.order = testOrder(testUser.ID)
	h := d.handler()
	path := "/api/orders/" + d.orders.order.ID.String()

	if rr := do(t, h, http.MethodGet, path, userToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, path, adminToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rr.Code)
	}

	d.orders.order = testOrder(uuid.New())
	if rr := do(t, h, http.MethodGet, path, userToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("stranger: expected 403, got %d", rr.Code)
	}

	if rr := do(t, h, http.MethodGet, "/api/orders/not-a-uuid", userToken, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rr.Code)
	}

	d.orders.err = apperror.WithCode(apperror.KindNotFound, services.CodeOrderNotFound, "order not found", nil)
	if rr := do(t, h, http.MethodGet, path, userToken, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
