package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/my3rdstory/satoshop-sub001/internal/apperr"
	"github.com/my3rdstory/satoshop-sub001/internal/countdown"
	"github.com/my3rdstory/satoshop-sub001/internal/model"
	"github.com/my3rdstory/satoshop-sub001/internal/poll"
	"github.com/my3rdstory/satoshop-sub001/internal/render"
	"github.com/my3rdstory/satoshop-sub001/internal/tracker"
)

// ErrStartPending is returned when a start is requested while another
// start call is still in flight. The triggering control stays disabled
// until the first one resolves.
var ErrStartPending = errors.New("start already in flight")

// API is the checkout endpoint contract the orchestrator drives.
type API interface {
	Start(ctx context.Context) (*model.StartResponse, error)
	Verify(ctx context.Context, txnID string) (*model.VerifyResponse, error)
	Cancel(ctx context.Context, txnID, reason string) (*model.CancelResponse, error)
}

// UI is the rendering surface. Implementations render as a pure
// function of what they are handed and never call back into the
// orchestrator.
type UI interface {
	ShowInvoice(inv model.Invoice, walletURI string)
	ShowProgress(stage model.Stage, lines []render.Line)
	ShowCountdown(remaining time.Duration)
	ShowError(kind, nextAction, message string)
	Navigate(url string)
	Reset()
	Reload()
}

// Config holds the orchestrator's explicit timing and retry policy.
type Config struct {
	PollInterval    time.Duration
	MaxPollFailures int
	SettleDelay     time.Duration
	ReloadDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPollFailures <= 0 {
		c.MaxPollFailures = 3
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.ReloadDelay <= 0 {
		c.ReloadDelay = 3 * time.Second
	}
	return c
}

// Orchestrator owns the lifecycle of exactly one active payment
// transaction per checkout surface. All mutation flows through its
// handlers; the mutex serializes the logically concurrent timer tick,
// poll tick, and in-flight calls.
type Orchestrator struct {
	api   API
	ui    UI
	clock clock.Clock
	log   *zap.Logger
	cfg   Config
	tr    *tracker.Tracker

	sched *poll.Scheduler
	timer *countdown.Timer

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	epoch        uint64 // bumped on every reset; guards stale responses
	startPending bool
}

// New creates an orchestrator. A nil clock falls back to the wall
// clock; a nil logger to a nop logger; a nil tracker is allocated.
func New(api API, ui UI, clk clock.Clock, log *zap.Logger, cfg Config, tr *tracker.Tracker) *Orchestrator {
	if api == nil {
		panic("flow.New: nil api")
	}
	if ui == nil {
		panic("flow.New: nil ui")
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if tr == nil {
		tr = &tracker.Tracker{}
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		api:    api,
		ui:     ui,
		clock:  clk,
		log:    log,
		cfg:    cfg,
		tr:     tr,
		sched:  poll.New(clk, cfg.PollInterval, tr),
		timer:  countdown.New(clk, tr),
		ctx:    ctx,
		cancel: cancel,
	}
}

// State returns a snapshot of the workflow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Tracker exposes the background-activity counters.
func (o *Orchestrator) Tracker() *tracker.Tracker { return o.tr }

// Start opens a new payment transaction. Only one start call may be in
// flight at a time; a second concurrent call returns ErrStartPending.
// On success the invoice renders and the countdown and verify schedule
// launch. On failure the reason surfaces once; error code
// "inventory_unavailable" yields the return-to-product affordance.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.startPending {
		o.mu.Unlock()
		return ErrStartPending
	}
	o.startPending = true
	o.state.Phase = PhaseStarting
	epoch := o.epoch
	o.mu.Unlock()

	resp, err := o.api.Start(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.startPending = false

	if o.epoch != epoch {
		// a cancel superseded this call while it was outstanding
		o.log.Debug("discarding stale start response")
		return fmt.Errorf("start: %w", apperr.ErrStaleTransaction)
	}

	if err != nil {
		o.apply(StartFailed{Code: apperr.Kind(err), Reason: err.Error()})
		return err
	}
	if !resp.Success {
		code := resp.ErrorCode
		if code == "" {
			code = "server_rejected"
		}
		o.apply(StartFailed{Code: code, Reason: resp.Error})
		if code == "inventory_unavailable" {
			return fmt.Errorf("start: %w", apperr.ErrInventoryUnavailable)
		}
		return fmt.Errorf("start: %w: %s", apperr.ErrServerRejected, resp.Error)
	}

	o.apply(StartSucceeded{Txn: resp.Transaction})
	return nil
}

// Cancel abandons the active transaction with the given reason. It is
// idempotent and fail-open: the local reset happens regardless of what
// the server answers, and server errors are never surfaced.
func (o *Orchestrator) Cancel(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.apply(CancelRequested{Reason: reason})
}

// Resume requests an immediate verify tick, used when the page regains
// foreground so a payment completed in an external wallet while
// backgrounded is picked up without waiting out the interval.
func (o *Orchestrator) Resume() {
	o.sched.Poke()
}

// Close tears down all background activity on page exit. The active
// transaction is left to server-side expiry.
func (o *Orchestrator) Close() {
	o.cancel()
	o.sched.Stop()
	o.timer.Stop()
}

// pollTick is the scheduled verify invocation.
func (o *Orchestrator) pollTick(ctx context.Context) {
	o.mu.Lock()
	// re-check terminal status immediately before acting
	if o.state.Phase != PhaseAwaitingPayment {
		o.mu.Unlock()
		return
	}
	id := o.state.ActiveID()
	epoch := o.epoch
	o.mu.Unlock()

	resp, err := o.api.Verify(ctx, id)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch || o.state.ActiveID() != id {
		o.log.Debug("discarding stale verify response", zap.String("txn_id", id))
		return
	}

	if err != nil {
		if errors.Is(err, apperr.ErrNetwork) {
			o.log.Warn("verify tick failed", zap.String("txn_id", id), zap.Error(err))
			o.apply(VerifyTickFailed{})
			return
		}
		o.apply(VerifyFailed{Code: apperr.Kind(err), Action: apperr.NextAction(err)})
		return
	}
	o.apply(VerifyResult{Resp: resp})
}

// settleCheck runs once after the settle delay when "paid" arrived
// without a redirect target.
func (o *Orchestrator) settleCheck() {
	o.mu.Lock()
	if o.state.Phase != PhaseSettling {
		o.mu.Unlock()
		return
	}
	id := o.state.ActiveID()
	epoch := o.epoch
	o.mu.Unlock()

	resp, err := o.api.Verify(o.ctx, id)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch || o.state.ActiveID() != id {
		return
	}
	if err == nil {
		o.apply(VerifyResult{Resp: resp})
	}
	o.apply(SettleElapsed{})
	if o.state.Phase == PhaseSettling {
		// recoverable anomaly, not fatal: keep the paid state and let
		// the user reload for the redirect
		o.log.Warn("redirect target still missing after settle delay",
			zap.String("txn_id", id))
	}
}

// apply reduces one event and executes the resulting effects.
// Callers must hold o.mu.
func (o *Orchestrator) apply(ev Event) {
	next, effects := Reduce(o.state, ev, Policy{MaxPollFailures: o.cfg.MaxPollFailures})
	o.log.Debug("workflow transition",
		zap.String("from", o.state.Phase.String()),
		zap.String("to", next.Phase.String()),
		zap.Int("effects", len(effects)),
	)
	o.state = next

	for _, eff := range effects {
		o.run(eff)
	}
}

// run executes one effect. Callers must hold o.mu; the scheduler and
// timer callbacks re-acquire it on their own goroutines.
func (o *Orchestrator) run(eff Effect) {
	switch eff := eff.(type) {
	case ShowInvoice:
		o.ui.ShowInvoice(eff.Invoice, render.WalletURI(eff.Invoice.PaymentRequest))

	case RefreshProgress:
		o.ui.ShowProgress(eff.Txn.CurrentStage, render.Lines(eff.Txn.Logs))

	case StartCountdown:
		// a superseding invoice restarts the countdown at its own
		// expiry; the owner id pins the expiry callback to this
		// transaction so a timer that already claimed expiry while the
		// supersede was applying cannot fire against the fresh state
		owner := o.state.ActiveID()
		o.timer.Stop()
		o.timer.Start(o.ctx, eff.ExpiresAt, o.onCountdownTick, func() { o.onCountdownExpired(owner) })

	case StopCountdown:
		o.timer.Stop()

	case StartPolling:
		o.sched.Start(o.ctx, o.pollTick)

	case StopPolling:
		o.sched.Stop()

	case CancelServer:
		o.cancelServer(eff.TxnID, eff.Reason)

	case Navigate:
		o.ui.Navigate(eff.URL)

	case Reset:
		o.ui.Reset()

	case Reload:
		o.clock.AfterFunc(o.cfg.ReloadDelay, o.ui.Reload)

	case ShowError:
		if eff.Message != "" {
			o.log.Warn("server error surfaced",
				zap.String("kind", eff.Kind),
				zap.String("message", eff.Message),
			)
		}
		o.ui.ShowError(eff.Kind, eff.NextAction, eff.Message)

	case ScheduleSettleCheck:
		o.clock.AfterFunc(o.cfg.SettleDelay, func() { go o.settleCheck() })
	}
}

// cancelServer fires a best-effort cancel. Failure is logged, never
// surfaced; the server reconciles on its own schedule.
func (o *Orchestrator) cancelServer(txnID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := o.api.Cancel(ctx, txnID, reason); err != nil {
			o.log.Warn("best-effort cancel failed",
				zap.String("txn_id", txnID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}()
}

func (o *Orchestrator) onCountdownTick(remaining time.Duration) {
	o.ui.ShowCountdown(remaining)
}

// onCountdownExpired applies a local expiry observation, discarding it
// when the timer's owning transaction is no longer the active one —
// the same staleness rule pollTick applies to verify responses.
func (o *Orchestrator) onCountdownExpired(owner string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.ActiveID() != owner {
		o.log.Debug("discarding stale countdown expiry", zap.String("txn_id", owner))
		return
	}
	o.epoch++
	o.apply(CountdownExpired{})
}
