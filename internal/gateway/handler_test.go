package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/my3rdstory/satoshop-sub001/internal/model"
)

func newTestHandler(t *testing.T) (*Handler, *Gateway) {
	t.Helper()
	g, _ := newTestGateway(2)
	return NewHandler(g, nil), g
}

func doPost(t *testing.T, h http.Handler, path string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(csrfHeader, token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleStartHappyPath(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	w := doPost(t, h.Routes(), "/api/checkout/start", nil, "tok-1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out model.StartResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Success || out.Transaction == nil {
		t.Fatalf("expected success with transaction, got %+v", out)
	}
	if out.Transaction.Invoice == nil {
		t.Fatal("expected invoice in start response")
	}
}

func TestMissingTokenRejectedBeforeWork(t *testing.T) {
	t.Parallel()

	h, g := newTestHandler(t)
	w := doPost(t, h.Routes(), "/api/checkout/start", nil, "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if g.HeldReservations() != 0 {
		t.Fatalf("rejected request must not reserve, got %d holds", g.HeldReservations())
	}
}

func TestHandleStartInventoryUnavailable(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(1)
	g.pool.TryAcquire() // exhaust stock
	h := NewHandler(g, nil)

	w := doPost(t, h.Routes(), "/api/checkout/start", nil, "tok-1")

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	var out model.StartResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Success {
		t.Fatal("expected failure envelope")
	}
	if out.ErrorCode != "inventory_unavailable" {
		t.Fatalf("expected inventory_unavailable, got %q", out.ErrorCode)
	}
	if out.Transaction != nil {
		t.Fatal("no transaction may be created")
	}
}

func TestVerifyUnknownTransaction(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	w := doPost(t, h.Routes(), "/api/checkout/txn-missing/verify", nil, "tok-1")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var out model.VerifyResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Success || out.Status != model.VerifyError {
		t.Fatalf("expected error envelope, got %+v", out)
	}
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(2)
	h := NewHandler(g, nil)
	routes := h.Routes()

	// start
	w := doPost(t, routes, "/api/checkout/start", nil, "tok-1")
	var started model.StartResponse
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	id := started.Transaction.ID

	// pending verify
	w = doPost(t, routes, "/api/checkout/"+id+"/verify", nil, "tok-1")
	var pending model.VerifyResponse
	if err := json.NewDecoder(w.Body).Decode(&pending); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if pending.Status != model.VerifyPending {
		t.Fatalf("expected pending, got %s", pending.Status)
	}

	// settle on the payment channel, then verify again
	if err := g.SettlePayment(id); err != nil {
		t.Fatalf("settle: %v", err)
	}
	w = doPost(t, routes, "/api/checkout/"+id+"/verify", nil, "tok-1")
	var paid model.VerifyResponse
	if err := json.NewDecoder(w.Body).Decode(&paid); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if paid.Status != model.VerifyPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	if paid.Transaction.RedirectURL == "" {
		t.Fatal("expected redirect target after commit")
	}
}

func TestHandleCancelInvalidJSON(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	w := doPost(t, h.Routes(), "/api/checkout/txn-1/cancel", []byte(`{"reason":`), "tok-1")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleCancelUnknownStillSucceeds(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	body, _ := json.Marshal(model.CancelRequest{Reason: "invoice_expired_client"})
	w := doPost(t, h.Routes(), "/api/checkout/txn-gone/cancel", body, "tok-1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out model.CancelResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Success {
		t.Fatal("cancel must be fail-open for unknown transactions")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/checkout/start", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
