// Package apperr classifies checkout workflow errors into a small,
// stable taxonomy shared by the client and the gateway.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrMissingToken is raised before any network call when a mutating
	// request has no anti-forgery token.
	ErrMissingToken = errors.New("anti-forgery token missing")

	// ErrMalformedResponse marks a response body that could not be
	// decoded into the expected envelope.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNetwork marks a transient transport failure. Poll ticks absorb
	// it; start and cancel surface it once.
	ErrNetwork = errors.New("network failure")

	// ErrInventoryUnavailable is the distinguished start failure: the
	// product cannot be reserved, so retrying in place is pointless.
	ErrInventoryUnavailable = errors.New("inventory unavailable")

	// ErrInvoiceExpired is the expected terminal condition when the
	// payment window closes before payment.
	ErrInvoiceExpired = errors.New("invoice expired")

	// ErrServerRejected marks a generic server-side rejection; the
	// server message is surfaced verbatim alongside it.
	ErrServerRejected = errors.New("server rejected request")

	// ErrStaleTransaction marks a response for a transaction the client
	// no longer considers active. Always discarded, never surfaced.
	ErrStaleTransaction = errors.New("stale transaction response")
)

// Kind maps an error to a machine code used in logs and UI state.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrMalformedResponse):
		return "validation"

	case errors.Is(err, ErrInventoryUnavailable):
		return "inventory_unavailable"

	case errors.Is(err, ErrInvoiceExpired):
		return "invoice_expired"

	case errors.Is(err, ErrNetwork):
		return "network"

	case errors.Is(err, ErrServerRejected):
		return "server_rejected"

	case errors.Is(err, ErrStaleTransaction):
		return "stale"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// NextAction names the single concrete recovery affordance the UI
// offers for a terminal failure.
func NextAction(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInventoryUnavailable):
		return "return_to_product"

	case errors.Is(err, ErrInvoiceExpired):
		return "reload"

	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return "reload"

	default:
		return "retry"
	}
}

// HTTPStatus maps an error to the status code the gateway writes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrMissingToken):
		return http.StatusForbidden

	case errors.Is(err, ErrMalformedResponse):
		return http.StatusBadRequest

	case errors.Is(err, ErrInventoryUnavailable):
		return http.StatusConflict

	case errors.Is(err, ErrInvoiceExpired):
		return http.StatusGone

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
