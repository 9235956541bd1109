package handlers

import (
	"net/http"
	"testing"
	"time"

	"course-marketplace/internal/apperror"
	"course-marketplace/internal/models"
	"course-marketplace/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testPromo() *models.PromoCode {
	return &models.PromoCode{
		ID:        uuid.New(),
		Code:      "SAVE10",
		Type:      models.DiscountTypePercentage,
		Value:     decimal.RequireFromString("10"),
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestPromoHandler_Validate(t *testing.T) {
	d := newTestDeps()
	d.promos.preview = &models.PromoPreview{
		Code:     "SAVE10",
		Type:     models.DiscountTypePercentage,
		Value:    decimal.RequireFromString("10"),
		Discount: decimal.RequireFromString("25"),
	}
	h := d.handler()
	body := map[string]string{"code": "save10", "coursePrice": "250"}

	if rr := do(t, h, http.MethodPost, "/api/promocodes/validate", "", body); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}

	rr := do(t, h, http.MethodPost, "/api/promocodes/validate", userToken, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	promo, _ := resp["promocode"].(map[string]interface{})
	if resp["valid"] != true || promo["discount"] != "25" || promo["code"] != "SAVE10" {
		t.Fatalf("unexpected body %v", resp)
	}

	d.promos.err = apperror.WithCode(apperror.KindValidation, services.CodePromoBelowMinimum, "minimum purchase not reached", nil)
	rr = do(t, h, http.MethodPost, "/api/promocodes/validate", userToken, body)
	if rr.Code != http.StatusBadRequest || decodeBody(t, rr)["code"] != services.CodePromoBelowMinimum {
		t.Fatalf("expected 400 promo_below_minimum, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestPromoHandler_AdminCRUD(t *testing.T) {
	d := newTestDeps()
	d.promos.promo = testPromo()
	d.promos.list = []*models.PromoCode{d.promos.promo}
	h := d.handler()

	rr := do(t, h, http.MethodPost, "/api/promocodes", adminToken, map[string]interface{}{
		"code": "SAVE10", "type": "PERCENTAGE", "value": "10",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/api/promocodes?limit=5", adminToken, nil)
	if list, ok := decodeBody(t, rr)["promocodes"].([]interface{}); rr.Code != http.StatusOK || !ok || len(list) != 1 {
		t.Fatalf("list: unexpected response %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPut, "/api/promocodes", adminToken, map[string]interface{}{
		"id": d.promos.promo.ID.String(), "isActive": false,
	})
	if rr.Code != http.StatusOK || d.promos.lastActive == nil || *d.promos.lastActive {
		t.Fatalf("update: unexpected response %d, active=%v", rr.Code, d.promos.lastActive)
	}

	rr = do(t, h, http.MethodPut, "/api/promocodes", adminToken, map[string]interface{}{"id": d.promos.promo.ID.String()})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("update without isActive: expected 400, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodDelete, "/api/promocodes?id="+d.promos.promo.ID.String(), adminToken, nil)
	if rr.Code != http.StatusOK || decodeBody(t, rr)["success"] != true || d.promos.deleted != d.promos.promo.ID {
		t.Fatalf("delete: unexpected response %d %s", rr.Code, rr.Body.String())
	}

	if rr := do(t, h, http.MethodDelete, "/api/promocodes?id=oops", adminToken, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("delete with bad id: expected 400, got %d", rr.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if rr := do(t, h, method, "/api/promocodes", userToken, nil); rr.Code != http.StatusForbidden {
			t.Fatalf("%s as user: expected 403, got %d", method, rr.Code)
		}
	}
}

func TestPromoHandler_CreateDuplicate(t *testing.T) {
	d := newTestDeps()
	d.promos.err = apperror.WithCode(apperror.KindConflict, services.CodePromoCodeExists, "promo code already exists", nil)

	rr := do(t, d.handler(), http.MethodPost, "/api/promocodes", adminToken, map[string]interface{}{
		"code": "SAVE10", "type": "FIXED", "value": "5",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != services.CodePromoCodeExists || body["error"] != "promo code already exists" {
		t.Fatalf("unexpected error body %v", body)
	}
}
