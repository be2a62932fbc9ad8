package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("start: %w", ErrInventoryUnavailable)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "missing_token", err: ErrMissingToken, want: "validation"},
		{name: "malformed", err: ErrMalformedResponse, want: "validation"},
		{name: "inventory", err: ErrInventoryUnavailable, want: "inventory_unavailable"},
		{name: "inventory_wrapped", err: wrapped, want: "inventory_unavailable"},
		{name: "expired", err: ErrInvoiceExpired, want: "invoice_expired"},
		{name: "network", err: ErrNetwork, want: "network"},
		{name: "rejected", err: ErrServerRejected, want: "server_rejected"},
		{name: "stale", err: ErrStaleTransaction, want: "stale"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "unknown", err: errors.New("unknown"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNextAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "inventory", err: ErrInventoryUnavailable, want: "return_to_product"},
		{name: "expired", err: ErrInvoiceExpired, want: "reload"},
		{name: "network", err: ErrNetwork, want: "reload"},
		{name: "network_wrapped", err: fmt.Errorf("verify: %w", ErrNetwork), want: "reload"},
		{name: "rejected", err: ErrServerRejected, want: "retry"},
		{name: "unknown", err: errors.New("unknown"), want: "retry"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NextAction(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "missing_token", err: ErrMissingToken, want: http.StatusForbidden},
		{name: "malformed", err: ErrMalformedResponse, want: http.StatusBadRequest},
		{name: "inventory", err: ErrInventoryUnavailable, want: http.StatusConflict},
		{name: "expired", err: ErrInvoiceExpired, want: http.StatusGone},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("unknown"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
