// Package flow drives the payment transaction workflow: a pure state
// machine fed by server responses, and an orchestrator that executes
// the side effects it emits.
//
// The machine never advances a stage on its own; transitions are driven
// exclusively by what the server reports, so client optimism can never
// split-brain against server truth.
package flow

import (
	"time"

	"github.com/my3rdstory/satoshop-sub001/internal/model"
)

// Phase is the client-side lifecycle position of the workflow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseAwaitingPayment
	PhaseSettling
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseAwaitingPayment:
		return "awaiting_payment"
	case PhaseSettling:
		return "settling"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy holds the explicit workflow thresholds.
type Policy struct {
	// MaxPollFailures is the consecutive verify failures absorbed
	// before the workflow downgrades to an explicit error state.
	MaxPollFailures int
}

// State is the client-side workflow state. It is a value; Reduce
// returns a new one rather than mutating in place.
type State struct {
	Phase        Phase
	Txn          *model.Transaction
	PollFailures int
}

// ActiveID returns the id of the transaction the client considers
// active, or "" when none is.
func (s State) ActiveID() string {
	if s.Txn == nil {
		return ""
	}
	return s.Txn.ID
}

// Event is an input to the state machine.
type Event interface{ event() }

// StartSucceeded carries the transaction returned by a successful start.
type StartSucceeded struct{ Txn *model.Transaction }

// StartFailed carries the classified reason a start did not produce a
// transaction. Code "inventory_unavailable" switches the affordance to
// returning to the product instead of retrying.
type StartFailed struct {
	Code   string
	Reason string
}

// VerifyResult carries a decoded verify envelope.
type VerifyResult struct{ Resp *model.VerifyResponse }

// VerifyTickFailed marks one transient verify failure; the next
// scheduled tick retries until the policy threshold is reached.
type VerifyTickFailed struct{}

// VerifyFailed marks a non-transient verify failure. Terminal for the
// transaction; no automatic retry loop.
type VerifyFailed struct {
	Code   string
	Action string
}

// CancelRequested is an explicit user cancellation.
type CancelRequested struct{ Reason string }

// CountdownExpired reports the local countdown reaching zero. The
// server alone decides real expiry, so this only triggers best-effort
// cleanup and a resynchronizing reload.
type CountdownExpired struct{}

// SettleElapsed reports that the bounded settle delay after "paid" has
// passed.
type SettleElapsed struct{}

func (StartSucceeded) event()   {}
func (StartFailed) event()      {}
func (VerifyResult) event()     {}
func (VerifyTickFailed) event() {}
func (VerifyFailed) event()     {}
func (CancelRequested) event()  {}
func (CountdownExpired) event() {}
func (SettleElapsed) event()    {}

// Effect is a side effect the orchestrator must execute after a
// reduction. The machine itself performs none of them.
type Effect interface{ effect() }

// ShowInvoice renders a freshly issued invoice.
type ShowInvoice struct{ Invoice model.Invoice }

// RefreshProgress re-renders stage markers and the log.
type RefreshProgress struct{ Txn *model.Transaction }

// StartCountdown launches the expiry countdown for the active invoice.
type StartCountdown struct{ ExpiresAt time.Time }

// StopCountdown halts the countdown.
type StopCountdown struct{}

// StartPolling launches the verify schedule for a transaction.
type StartPolling struct{ TxnID string }

// StopPolling halts the verify schedule.
type StopPolling struct{}

// CancelServer issues a fire-and-forget cancel for a transaction.
// Failures are not surfaced; the server's state may already have
// diverged by the time it arrives.
type CancelServer struct {
	TxnID  string
	Reason string
}

// Navigate sends the user to the confirmed order.
type Navigate struct{ URL string }

// Reset clears all local workflow state in the UI.
type Reset struct{}

// Reload schedules a full page reload to resynchronize with
// server-authoritative state.
type Reload struct{}

// ShowError surfaces a terminal failure with its single concrete next
// action: "retry", "return_to_product", or "reload". Message carries
// the server's error text verbatim when one arrived; translation
// happens at render time, never here.
type ShowError struct {
	Kind       string
	NextAction string
	Message    string
}

// ScheduleSettleCheck arms the bounded wait for a redirect target
// after a paid status arrived without one.
type ScheduleSettleCheck struct{}

func (ShowInvoice) effect()         {}
func (RefreshProgress) effect()     {}
func (StartCountdown) effect()      {}
func (StopCountdown) effect()       {}
func (StartPolling) effect()        {}
func (StopPolling) effect()         {}
func (CancelServer) effect()        {}
func (Navigate) effect()            {}
func (Reset) effect()               {}
func (Reload) effect()              {}
func (ShowError) effect()           {}
func (ScheduleSettleCheck) effect() {}

// reasonInvoiceExpired is sent when the server reports expiry;
// reasonExpiredClient when only the local countdown observed it.
const (
	reasonInvoiceExpired = "invoice_expired"
	reasonExpiredClient  = "invoice_expired_client"
)

// Reduce applies one event to the state and returns the successor
// state plus the side effects to execute, in order. Events that do not
// apply in the current phase are no-ops: a tick firing just after a
// terminal response must change nothing.
func Reduce(s State, ev Event, p Policy) (State, []Effect) {
	switch ev := ev.(type) {
	case StartSucceeded:
		return reduceStartSucceeded(s, ev)
	case StartFailed:
		return reduceStartFailed(s, ev)
	case VerifyResult:
		return reduceVerifyResult(s, ev)
	case VerifyTickFailed:
		return reduceVerifyTickFailed(s, p)
	case VerifyFailed:
		return reduceVerifyFailed(s, ev)
	case CancelRequested:
		return reduceCancel(s, ev)
	case CountdownExpired:
		return reduceCountdownExpired(s)
	case SettleElapsed:
		return reduceSettleElapsed(s)
	default:
		return s, nil
	}
}

func reduceStartSucceeded(s State, ev StartSucceeded) (State, []Effect) {
	if s.Phase != PhaseIdle && s.Phase != PhaseStarting {
		return s, nil
	}
	txn := ev.Txn
	if txn == nil || txn.Invoice == nil {
		s.Phase = PhaseFailed
		s.Txn = nil
		return s, []Effect{
			StopPolling{},
			StopCountdown{},
			ShowError{Kind: "validation", NextAction: "retry"},
		}
	}

	s.Phase = PhaseAwaitingPayment
	s.Txn = txn
	s.PollFailures = 0
	return s, []Effect{
		RefreshProgress{Txn: txn},
		ShowInvoice{Invoice: *txn.Invoice},
		StartCountdown{ExpiresAt: txn.Invoice.ExpiresAt},
		StartPolling{TxnID: txn.ID},
	}
}

func reduceStartFailed(s State, ev StartFailed) (State, []Effect) {
	if s.Phase != PhaseIdle && s.Phase != PhaseStarting {
		return s, nil
	}
	s.Phase = PhaseFailed
	s.Txn = nil

	action := "retry"
	if ev.Code == "inventory_unavailable" {
		action = "return_to_product"
	}
	// a superseding start can fail while the prior transaction's
	// schedule and countdown are still live; both stops are no-ops
	// when nothing is running
	return s, []Effect{
		StopPolling{},
		StopCountdown{},
		ShowError{Kind: ev.Code, NextAction: action, Message: ev.Reason},
	}
}

func reduceVerifyResult(s State, ev VerifyResult) (State, []Effect) {
	if s.Phase != PhaseAwaitingPayment && s.Phase != PhaseSettling {
		return s, nil
	}
	resp := ev.Resp
	if resp == nil {
		return s, nil
	}

	if !resp.Success || resp.Status == model.VerifyError {
		s.Phase = PhaseFailed
		return s, []Effect{
			StopPolling{},
			StopCountdown{},
			ShowError{Kind: "server_rejected", NextAction: "retry", Message: resp.Error},
		}
	}

	switch resp.Status {
	case model.VerifyPaid:
		if resp.Transaction != nil {
			s.Txn = resp.Transaction
		}
		effects := []Effect{StopPolling{}, StopCountdown{}}
		if resp.Transaction != nil {
			effects = append(effects, RefreshProgress{Txn: resp.Transaction})
		}
		if s.Txn != nil && s.Txn.RedirectURL != "" {
			s.Phase = PhaseCompleted
			return s, append(effects, Navigate{URL: s.Txn.RedirectURL})
		}
		// paid without a redirect target yet: wait out the settle delay
		if s.Phase == PhaseAwaitingPayment {
			effects = append(effects, ScheduleSettleCheck{})
		}
		s.Phase = PhaseSettling
		return s, effects

	case model.VerifyPending:
		if s.Phase != PhaseAwaitingPayment {
			return s, nil
		}
		s.PollFailures = 0
		if resp.Transaction != nil {
			s.Txn = resp.Transaction
			return s, []Effect{RefreshProgress{Txn: resp.Transaction}}
		}
		return s, nil

	case model.VerifyExpired:
		id := s.ActiveID()
		s = State{Phase: PhaseIdle}
		effects := []Effect{StopPolling{}, StopCountdown{}}
		if id != "" {
			effects = append(effects, CancelServer{TxnID: id, Reason: reasonInvoiceExpired})
		}
		return s, append(effects, Reset{}, Reload{})

	default:
		return s, nil
	}
}

func reduceVerifyTickFailed(s State, p Policy) (State, []Effect) {
	if s.Phase != PhaseAwaitingPayment {
		return s, nil
	}
	s.PollFailures++
	if s.PollFailures < p.MaxPollFailures {
		// absorbed; the next scheduled tick retries
		return s, nil
	}
	s.Phase = PhaseFailed
	return s, []Effect{
		StopPolling{},
		StopCountdown{},
		ShowError{Kind: "network", NextAction: "reload"},
	}
}

func reduceVerifyFailed(s State, ev VerifyFailed) (State, []Effect) {
	if s.Phase != PhaseAwaitingPayment && s.Phase != PhaseSettling {
		return s, nil
	}
	s.Phase = PhaseFailed
	action := ev.Action
	if action == "" {
		action = "retry"
	}
	return s, []Effect{
		StopPolling{},
		StopCountdown{},
		ShowError{Kind: ev.Code, NextAction: action},
	}
}

// reduceCancel is idempotent: cancelling twice, or cancelling an
// already-terminal transaction, produces the same client-visible reset
// with no error. Explicit cancellation resets in place; only expiry
// reloads.
func reduceCancel(s State, ev CancelRequested) (State, []Effect) {
	id := s.ActiveID()
	s = State{Phase: PhaseIdle}

	effects := []Effect{StopPolling{}, StopCountdown{}}
	if id != "" {
		effects = append(effects, CancelServer{TxnID: id, Reason: ev.Reason})
	}
	return s, append(effects, Reset{})
}

func reduceCountdownExpired(s State) (State, []Effect) {
	if s.Phase != PhaseAwaitingPayment {
		return s, nil
	}
	id := s.ActiveID()
	s = State{Phase: PhaseIdle}

	// the countdown stopped itself; expiry is re-confirmed via reload,
	// never assumed from the local clock alone
	effects := []Effect{StopPolling{}}
	if id != "" {
		effects = append(effects, CancelServer{TxnID: id, Reason: reasonExpiredClient})
	}
	return s, append(effects, Reset{}, Reload{})
}

func reduceSettleElapsed(s State) (State, []Effect) {
	if s.Phase != PhaseSettling {
		return s, nil
	}
	if s.Txn != nil && s.Txn.RedirectURL != "" {
		s.Phase = PhaseCompleted
		return s, []Effect{Navigate{URL: s.Txn.RedirectURL}}
	}
	// recoverable anomaly: stay settled-but-unredirected; the
	// orchestrator logs it
	return s, nil
}
