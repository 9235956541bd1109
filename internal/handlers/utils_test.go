package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"course-marketplace/internal/apperror"
)

func TestWriteJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeJSONResponse(rr, req, http.StatusAccepted, map[string]string{"ok": "true"})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if body := rr.Body.String(); !strings.Contains(body, `"ok":"true"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestWriteServiceError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperror.NotFound("missing", nil), http.StatusNotFound},
		{apperror.Validation("bad", nil), http.StatusBadRequest},
		{apperror.Conflict("dup", nil), http.StatusConflict},
		{apperror.Unauthorized("login", nil), http.StatusUnauthorized},
		{apperror.Forbidden("admins", nil), http.StatusForbidden},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), newTestLogger(), tc.err, "Internal")
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
	}
}

func TestClientMessage_StripsWrapping(t *testing.T) {
	err := fmt.Errorf("create order: %w", apperror.WithCode(apperror.KindConflict, "already_purchased", "course already purchased", nil))
	if got := clientMessage(err); got != "course already purchased" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=1000&offset=5", nil)
	limit, offset, err := parsePagination(req)
	if err != nil || limit != maxPageSize || offset != 5 {
		t.Fatalf("unexpected pagination %d %d %v", limit, offset, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?offset=abc", nil)
	if _, _, err := parsePagination(req); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseUUID(t *testing.T) {
	if _, err := parseUUID("00000000-0000-0000-0000-000000000000", "id"); err == nil {
		t.Fatalf("nil uuid must be rejected")
	}
	if _, err := parseUUID("123e4567-e89b-12d3-a456-426614174000", "id"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
