// Package model defines the payment transaction data model and the
// request/response payloads exchanged with the checkout endpoints.
// It keeps transport-level types in one place for reuse.
package model

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status of a payment transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusCompleted  Status = "completed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is an ordinal checkpoint in the server-tracked progress of a
// payment transaction. Stages only move forward; cancellation starts a
// fresh transaction rather than rewinding.
type Stage int

const (
	StageReservation  Stage = 1 // inventory held for the payment window
	StageInvoice      Stage = 2 // invoice issued, awaiting payment
	StageConfirmation Stage = 3 // payment confirmation in progress
	StageSettlement   Stage = 4 // funds verified server-side
	StageConfirmed    Stage = 5 // order committed, redirect available
)

// VerifyState is the payment status reported by the verify endpoint.
type VerifyState string

const (
	VerifyPaid    VerifyState = "paid"
	VerifyPending VerifyState = "pending"
	VerifyExpired VerifyState = "expired"
	VerifyError   VerifyState = "error"
)

// Invoice is an opaque payment request plus an absolute expiry, issued
// by the payment-channel gateway. Immutable once issued; a new invoice
// supersedes rather than mutates the old one.
type Invoice struct {
	PaymentRequest      string    `json:"payment_request"`
	ExpiresAt           time.Time `json:"expires_at"`
	PreviousPaymentHash string    `json:"previous_payment_hash,omitempty"`
}

// LogEntry is one append-only stage/status event. Message is a machine
// code; the renderer maps it to user-facing text without discarding it.
// Detail is structured and its shape varies by stage.
type LogEntry struct {
	Stage     Stage           `json:"stage"`
	Status    Status          `json:"status"`
	Message   string          `json:"message"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is the client's read-only projection of a server-owned
// payment transaction, refreshed after every start/verify/cancel
// response.
type Transaction struct {
	ID           string     `json:"id"`
	CurrentStage Stage      `json:"current_stage"`
	Status       Status     `json:"status"`
	Invoice      *Invoice   `json:"invoice,omitempty"`
	Logs         []LogEntry `json:"logs"`
	RedirectURL  string     `json:"redirect_url,omitempty"`
}

// Terminal reports whether the transaction reached a terminal status.
func (t *Transaction) Terminal() bool {
	return t != nil && t.Status.Terminal()
}

// StartResponse is the envelope returned by the start endpoint.
// ErrorCode "inventory_unavailable" switches the client affordance to
// "return to product" instead of "retry".
type StartResponse struct {
	Success     bool         `json:"success"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Error       string       `json:"error,omitempty"`
	ErrorCode   string       `json:"error_code,omitempty"`
}

// VerifyResponse is the envelope returned by the verify endpoint.
type VerifyResponse struct {
	Success     bool         `json:"success"`
	Status      VerifyState  `json:"status"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// CancelRequest carries the client-supplied cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CancelResponse is the envelope returned by the cancel endpoint.
type CancelResponse struct {
	Success     bool         `json:"success"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Error       string       `json:"error,omitempty"`
}
