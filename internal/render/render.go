// Package render projects transaction state into user-facing form.
// Everything here is a pure function of its input: machine codes are
// translated but never discarded, and log order is preserved.
package render

import (
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/my3rdstory/satoshop-sub001/internal/model"
)

// walletScheme is prepended to a payment request for wallet deep-links
// when the request does not already carry it.
const walletScheme = "lightning:"

// qrSize is the pixel edge of the generated invoice QR code.
const qrSize = 256

// Line is one rendered log entry. Code keeps the original machine
// message for diagnostics; Text is the translated form.
type Line struct {
	Stage  model.Stage
	Status model.Status
	Code   string
	Text   string
	At     time.Time
}

// messages maps machine log codes to user-facing text. Unknown codes
// fall back to the code itself.
var messages = map[string]string{
	"reservation_started":   "Reserving your items",
	"reservation_held":      "Items reserved for the payment window",
	"invoice_issued":        "Lightning invoice issued",
	"invoice_superseded":    "Previous invoice replaced",
	"awaiting_payment":      "Waiting for payment",
	"payment_detected":      "Payment detected",
	"funds_verified":        "Funds verified",
	"order_confirmed":       "Order confirmed",
	"invoice_expired":       "Invoice expired",
	"reservation_released":  "Reservation released",
	"cancelled_by_customer": "Checkout cancelled",
}

var stageLabels = map[model.Stage]string{
	model.StageReservation:  "Reservation",
	model.StageInvoice:      "Invoice",
	model.StageConfirmation: "Payment",
	model.StageSettlement:   "Settlement",
	model.StageConfirmed:    "Confirmed",
}

// Translate returns the user-facing text for a machine log code.
func Translate(code string) string {
	if text, ok := messages[code]; ok {
		return text
	}
	return code
}

// Lines renders log entries newest-first without re-sorting the
// server-reported causal order or dropping entries.
func Lines(logs []model.LogEntry) []Line {
	out := make([]Line, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		e := logs[i]
		out = append(out, Line{
			Stage:  e.Stage,
			Status: e.Status,
			Code:   e.Message,
			Text:   Translate(e.Message),
			At:     e.CreatedAt,
		})
	}
	return out
}

// StageLabel names a stage for progress markers.
func StageLabel(s model.Stage) string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("Stage %d", int(s))
}

// StageMarkers renders the five-step progress row, marking stages up
// to and including current as done.
func StageMarkers(current model.Stage) []string {
	out := make([]string, 0, 5)
	for s := model.StageReservation; s <= model.StageConfirmed; s++ {
		marker := "[ ]"
		if s <= current {
			marker = "[x]"
		}
		out = append(out, marker+" "+StageLabel(s))
	}
	return out
}

// WalletURI builds the wallet deep-link for a payment request. The
// scheme prefix is added only when not already present; the payment
// request itself is never modified.
func WalletURI(paymentRequest string) string {
	if strings.HasPrefix(strings.ToLower(paymentRequest), walletScheme) {
		return paymentRequest
	}
	return walletScheme + paymentRequest
}

// InvoiceQR encodes the payment request, bit-exact, into a PNG QR code.
func InvoiceQR(paymentRequest string) ([]byte, error) {
	png, err := qrcode.Encode(paymentRequest, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render: encode invoice qr: %w", err)
	}
	return png, nil
}

// Countdown formats a remaining duration as mm:ss, clamped at zero.
func Countdown(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
