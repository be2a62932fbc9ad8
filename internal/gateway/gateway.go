// Package gateway is an in-process implementation of the checkout
// endpoints: inventory reservation, invoice issuance, payment
// verification, and order commit. It backs the demo binary and the
// end-to-end tests; real inventory and ledger storage live elsewhere.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/my3rdstory/satoshop-sub001/internal/apperr"
	"github.com/my3rdstory/satoshop-sub001/internal/gateway/reserve"
	"github.com/my3rdstory/satoshop-sub001/internal/model"
)

// Config holds the gateway tunables.
type Config struct {
	// InvoiceTTL is the payment window granted per invoice.
	InvoiceTTL time.Duration
	// Stock bounds concurrent inventory holds.
	Stock int
	// SweepInterval is the cadence of the expiry sweeper.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.InvoiceTTL <= 0 {
		c.InvoiceTTL = 2 * time.Minute
	}
	if c.Stock <= 0 {
		c.Stock = 10
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Second
	}
	return c
}

// record is the server-side state of one transaction.
type record struct {
	txn         *model.Transaction
	held        bool // reservation slot live
	paid        bool // payment settled, order commit pending
	paymentHash string
}

// Gateway owns all transactions. The single active transaction per
// checkout surface is tracked so a new start supersedes rather than
// duplicates the prior invoice.
type Gateway struct {
	log   *zap.Logger
	clock clock.Clock
	cfg   Config
	pool  *reserve.Pool

	mu       sync.Mutex
	records  map[string]*record
	active   string // id of the one non-terminal transaction
	orderSeq int
}

// New creates a gateway. A nil clock falls back to the wall clock; a
// nil logger to a nop logger.
func New(cfg Config, clk clock.Clock, log *zap.Logger) *Gateway {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		log:     log,
		clock:   clk,
		cfg:     cfg,
		pool:    reserve.New(cfg.Stock),
		records: map[string]*record{},
	}
}

// StartCheckout atomically reserves inventory and issues an invoice,
// returning the new transaction. An open prior transaction is
// superseded: its invoice expires, its hold is released, and the new
// invoice records the superseded payment hash.
func (g *Gateway) StartCheckout(ctx context.Context) (*model.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prevHash := g.supersedeActiveLocked()

	var invoice *model.Invoice
	reserved := false

	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if !g.pool.TryAcquire() {
			return fmt.Errorf("reserve: %w", apperr.ErrInventoryUnavailable)
		}
		reserved = true
		return nil
	})
	eg.Go(func() error {
		inv, err := g.issueInvoice(prevHash)
		if err != nil {
			return fmt.Errorf("issue invoice: %w", err)
		}
		invoice = inv
		return nil
	})
	if err := eg.Wait(); err != nil {
		// reservation and issuance fail together
		if reserved {
			g.pool.Release()
		}
		return nil, err
	}

	now := g.clock.Now()
	txn := &model.Transaction{
		ID:           "txn-" + uuid.NewString(),
		CurrentStage: model.StageInvoice,
		Status:       model.StatusProcessing,
		Invoice:      invoice,
		Logs: []model.LogEntry{
			logEntry(model.StageReservation, model.StatusProcessing, "reservation_held", nil, now),
			logEntry(model.StageInvoice, model.StatusProcessing, "invoice_issued", detail{"expires_at": invoice.ExpiresAt.Format(time.RFC3339)}, now),
		},
	}

	g.records[txn.ID] = &record{
		txn:         txn,
		held:        true,
		paymentHash: paymentHash(invoice.PaymentRequest),
	}
	g.active = txn.ID

	g.log.Info("checkout started",
		zap.String("txn_id", txn.ID),
		zap.Time("invoice_expires_at", invoice.ExpiresAt),
	)
	return cloneTxn(txn), nil
}

// VerifyPayment reports the current payment status of a transaction,
// advancing it server-side: first verify moves into the confirmation
// stage; a settled payment commits the order and yields the redirect
// target.
func (g *Gateway) VerifyPayment(ctx context.Context, txnID string) (model.VerifyState, *model.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[txnID]
	if !ok {
		return model.VerifyError, nil, fmt.Errorf("verify: %w: unknown transaction", apperr.ErrServerRejected)
	}
	txn := rec.txn
	now := g.clock.Now()

	if txn.Status == model.StatusCompleted {
		return model.VerifyPaid, cloneTxn(txn), nil
	}
	if txn.Status == model.StatusFailed {
		return model.VerifyExpired, cloneTxn(txn), nil
	}

	if !rec.paid && txn.Invoice != nil && now.After(txn.Invoice.ExpiresAt) {
		g.expireLocked(rec, now)
		return model.VerifyExpired, cloneTxn(txn), nil
	}

	if rec.paid {
		g.commitLocked(rec, now)
		return model.VerifyPaid, cloneTxn(txn), nil
	}

	if txn.CurrentStage < model.StageConfirmation {
		txn.CurrentStage = model.StageConfirmation
		txn.Logs = append(txn.Logs,
			logEntry(model.StageConfirmation, model.StatusProcessing, "awaiting_payment", nil, now))
	}
	return model.VerifyPending, cloneTxn(txn), nil
}

// CancelCheckout abandons a transaction. Idempotent and fail-open: an
// unknown or already-terminal transaction is a successful no-op, since
// client and server state legitimately diverge around cancellation.
func (g *Gateway) CancelCheckout(ctx context.Context, txnID, reason string) (*model.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[txnID]
	if !ok {
		return nil, nil
	}
	txn := rec.txn
	if txn.Status.Terminal() {
		return cloneTxn(txn), nil
	}

	now := g.clock.Now()
	g.releaseLocked(rec)
	txn.Status = model.StatusFailed
	txn.Logs = append(txn.Logs,
		logEntry(txn.CurrentStage, model.StatusFailed, "cancelled_by_customer", detail{"reason": reason}, now),
		logEntry(model.StageReservation, model.StatusFailed, "reservation_released", nil, now),
	)
	if g.active == txnID {
		g.active = ""
	}

	g.log.Info("checkout cancelled",
		zap.String("txn_id", txnID),
		zap.String("reason", reason),
	)
	return cloneTxn(txn), nil
}

// SettlePayment marks a transaction's invoice as paid on the payment
// channel. The order commits on the next verify, which is where the
// redirect target appears.
func (g *Gateway) SettlePayment(txnID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[txnID]
	if !ok {
		return fmt.Errorf("settle: %w: unknown transaction", apperr.ErrServerRejected)
	}
	if rec.txn.Status.Terminal() {
		return fmt.Errorf("settle: %w: transaction is terminal", apperr.ErrServerRejected)
	}
	if rec.txn.Invoice != nil && g.clock.Now().After(rec.txn.Invoice.ExpiresAt) {
		return fmt.Errorf("settle: %w", apperr.ErrInvoiceExpired)
	}
	rec.paid = true
	return nil
}

// RunSweeper expires overdue invoices until ctx is done, releasing
// their holds so stock never dangles behind a dead payment window.
func (g *Gateway) RunSweeper(ctx context.Context) {
	ticker := g.clock.Ticker(g.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *Gateway) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for _, rec := range g.records {
		if rec.txn.Status.Terminal() || rec.paid {
			continue
		}
		if rec.txn.Invoice != nil && now.After(rec.txn.Invoice.ExpiresAt) {
			g.expireLocked(rec, now)
		}
	}
}

// HeldReservations returns the number of live inventory holds.
func (g *Gateway) HeldReservations() int {
	return g.pool.Held()
}

func (g *Gateway) expireLocked(rec *record, now time.Time) {
	g.releaseLocked(rec)
	rec.txn.Status = model.StatusFailed
	rec.txn.Logs = append(rec.txn.Logs,
		logEntry(rec.txn.CurrentStage, model.StatusFailed, "invoice_expired", nil, now),
		logEntry(model.StageReservation, model.StatusFailed, "reservation_released", nil, now),
	)
	if g.active == rec.txn.ID {
		g.active = ""
	}
	g.log.Info("invoice expired", zap.String("txn_id", rec.txn.ID))
}

func (g *Gateway) commitLocked(rec *record, now time.Time) {
	txn := rec.txn
	g.orderSeq++
	// the hold is consumed by the committed order
	if rec.held {
		g.pool.Release()
		rec.held = false
	}
	txn.CurrentStage = model.StageConfirmed
	txn.Status = model.StatusCompleted
	txn.RedirectURL = fmt.Sprintf("/orders/%d/", g.orderSeq)
	txn.Logs = append(txn.Logs,
		logEntry(model.StageSettlement, model.StatusProcessing, "funds_verified", detail{"payment_hash": rec.paymentHash}, now),
		logEntry(model.StageConfirmed, model.StatusCompleted, "order_confirmed", detail{"redirect_url": txn.RedirectURL}, now),
	)
	if g.active == txn.ID {
		g.active = ""
	}

	g.log.Info("order committed",
		zap.String("txn_id", txn.ID),
		zap.String("redirect_url", txn.RedirectURL),
	)
}

func (g *Gateway) releaseLocked(rec *record) {
	if rec.held {
		g.pool.Release()
		rec.held = false
	}
}

// supersedeActiveLocked expires the open transaction, if any, and
// returns its payment hash for the superseding invoice.
func (g *Gateway) supersedeActiveLocked() string {
	if g.active == "" {
		return ""
	}
	rec, ok := g.records[g.active]
	g.active = ""
	if !ok || rec.txn.Status.Terminal() {
		return ""
	}

	now := g.clock.Now()
	g.releaseLocked(rec)
	rec.txn.Status = model.StatusFailed
	rec.txn.Logs = append(rec.txn.Logs,
		logEntry(rec.txn.CurrentStage, model.StatusFailed, "invoice_superseded", nil, now))

	g.log.Info("invoice superseded", zap.String("txn_id", rec.txn.ID))
	return rec.paymentHash
}

func (g *Gateway) issueInvoice(prevHash string) (*model.Invoice, error) {
	// stand-in payment request; real issuance belongs to the payment
	// channel gateway
	req := "lnbc1p" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return &model.Invoice{
		PaymentRequest:      req,
		ExpiresAt:           g.clock.Now().Add(g.cfg.InvoiceTTL),
		PreviousPaymentHash: prevHash,
	}, nil
}

type detail map[string]string

func logEntry(stage model.Stage, status model.Status, message string, d detail, at time.Time) model.LogEntry {
	entry := model.LogEntry{
		Stage:     stage,
		Status:    status,
		Message:   message,
		CreatedAt: at,
	}
	if d != nil {
		raw, err := json.Marshal(d)
		if err == nil {
			entry.Detail = raw
		}
	}
	return entry
}

func paymentHash(paymentRequest string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(paymentRequest)).String()
}

// cloneTxn copies a transaction so handler responses never alias
// gateway-owned state.
func cloneTxn(t *model.Transaction) *model.Transaction {
	if t == nil {
		return nil
	}
	out := *t
	if t.Invoice != nil {
		inv := *t.Invoice
		out.Invoice = &inv
	}
	out.Logs = append([]model.LogEntry(nil), t.Logs...)
	return &out
}
