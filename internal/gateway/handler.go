package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/my3rdstory/satoshop-sub001/internal/apperr"
	"github.com/my3rdstory/satoshop-sub001/internal/model"
)

// csrfHeader must carry a non-empty anti-forgery token on every
// mutating request.
const csrfHeader = "X-CSRF-Token"

// Handler exposes the checkout endpoints over HTTP.
type Handler struct {
	gw  *Gateway
	log *zap.Logger
}

// NewHandler wires the gateway to its HTTP surface.
//
// It panics if gw is nil.
func NewHandler(gw *Gateway, log *zap.Logger) *Handler {
	if gw == nil {
		panic("gateway.NewHandler: nil gateway")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{gw: gw, log: log}
}

// Routes returns the checkout route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/checkout/start", h.HandleStart)
	mux.HandleFunc("POST /api/checkout/{id}/verify", h.HandleVerify)
	mux.HandleFunc("POST /api/checkout/{id}/cancel", h.HandleCancel)
	return mux
}

// HandleStart reserves inventory and issues an invoice.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	txn, err := h.gw.StartCheckout(r.Context())
	if err != nil {
		resp := model.StartResponse{
			Success: false,
			Error:   err.Error(),
		}
		if errors.Is(err, apperr.ErrInventoryUnavailable) {
			resp.Error = "inventory unavailable"
			resp.ErrorCode = "inventory_unavailable"
		}
		writeJSON(w, apperr.HTTPStatus(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, model.StartResponse{
		Success:     true,
		Transaction: txn,
	})
}

// HandleVerify reports the payment status of a transaction.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	status, txn, err := h.gw.VerifyPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSON(w, apperr.HTTPStatus(err), model.VerifyResponse{
			Success: false,
			Status:  model.VerifyError,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, model.VerifyResponse{
		Success:     true,
		Status:      status,
		Transaction: txn,
	})
}

// HandleCancel abandons a transaction. Always succeeds from the
// client's point of view; the body records the reason.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	var req model.CancelRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.CancelResponse{
			Success: false,
			Error:   "invalid JSON",
		})
		return
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	txn, err := h.gw.CancelCheckout(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeJSON(w, apperr.HTTPStatus(err), model.CancelResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, model.CancelResponse{
		Success:     true,
		Transaction: txn,
	})
}

func (h *Handler) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get(csrfHeader) != "" {
		return true
	}
	h.log.Warn("request without anti-forgery token",
		zap.String("path", r.URL.Path),
	)
	writeJSON(w, http.StatusForbidden, model.StartResponse{
		Success: false,
		Error:   "anti-forgery token missing",
	})
	return false
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
