package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/internal/pricing"
	"outbound-platform/pkg/logger"
)

// Charger posts call charges to the balance ledger.
type Charger interface {
	Charge(ctx context.Context, req ledger.ChargeRequest) (ledger.Transaction, bool, error)
}

// RateResolver returns the tenant rate in effect at a time.
type RateResolver interface {
	RateFor(ctx context.Context, tenantID string, at time.Time) (pricing.Rate, error)
}

// LeadWriter is the write side of the lead store used by automation callbacks.
type LeadWriter interface {
	RecordAttempt(ctx context.Context, tenantID, leadID string) (leads.Lead, error)
	UpdateStatus(ctx context.Context, tenantID, leadID string, u leads.StatusUpdate) (leads.Lead, error)
}

// errNoChange aborts a store update without it being a failure.
var errNoChange = errors.New("campaign: no change")

// Reconciler applies callbacks from the automation service. Every callback may be
// delivered more than once.
type Reconciler struct {
	store   Store
	charger Charger
	rates   RateResolver
	leads   LeadWriter
	clock   func() time.Time
}

func NewReconciler(store Store, charger Charger, rates RateResolver, leadWriter LeadWriter) *Reconciler {
	return &Reconciler{store: store, charger: charger, rates: rates, leads: leadWriter, clock: time.Now}
}

func validCompletionStatus(s string) bool {
	return s == "finished" || s == "completed"
}

// Complete applies an end-of-run callback.
//
// The run token defaults to the current run. A token that was already applied is answered
// with the recorded result; a token from an older run is acknowledged without effect.
func (r *Reconciler) Complete(ctx context.Context, cb Completion) (CompletionResult, error) {
	if strings.TrimSpace(cb.TenantID) == "" || cb.CallsMade < 0 || !validCompletionStatus(cb.Status) {
		logger.From(ctx).Warn("invalid completion callback",
			"tenant_id", cb.TenantID, "calls_made", cb.CallsMade, "status", cb.Status)
		return CompletionResult{}, ErrInvalidCallback
	}
	ctx, log := logger.ForTenant(ctx, cb.TenantID)
	now := r.clock().UTC()

	var res CompletionResult
	_, err := r.store.Update(ctx, cb.TenantID, func(ctl *Control) error {
		// never started: nothing to complete
		if ctl.RunToken == "" {
			res = CompletionResult{Success: true, CallsMade: cb.CallsMade, Replayed: true}
			return errNoChange
		}
		token := cb.RunToken
		if token == "" {
			token = ctl.RunToken
		}
		if token != "" && token == ctl.LastCompletedRunToken {
			res = CompletionResult{Success: true, CallsMade: ctl.LastCallsMade, Replayed: true}
			return errNoChange
		}
		if token != ctl.RunToken {
			res = CompletionResult{Success: true, CallsMade: cb.CallsMade, Replayed: true}
			return errNoChange
		}

		ctl.Status = StatusStopped
		ctl.QueueLength = cb.CallsMade
		ctl.LastCompletedRunToken = token
		ctl.LastCallsMade = cb.CallsMade
		ctl.UpdatedAt = now
		res = CompletionResult{Success: true, CallsMade: cb.CallsMade}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return CompletionResult{}, fmt.Errorf("apply completion: %w", err)
	}

	if res.Replayed {
		log.Info("completion callback ignored", "run_token", cb.RunToken, "calls_made", res.CallsMade)
	} else {
		log.Info("campaign completed", "run_token", cb.RunToken, "calls_made", res.CallsMade)
	}
	return res, nil
}

// RecordCall bills one finished call and counts the attempt against its lead. A retried
// event is charged once and counted once.
func (r *Reconciler) RecordCall(ctx context.Context, ev CallEvent) (ledger.Transaction, error) {
	if strings.TrimSpace(ev.TenantID) == "" || strings.TrimSpace(ev.CallID) == "" || ev.DurationSeconds < 0 {
		return ledger.Transaction{}, ErrInvalidCallback
	}
	if ev.RatePerMinute != nil && ev.RatePerMinute.IsNegative() {
		return ledger.Transaction{}, ErrInvalidCallback
	}
	ctx, log := logger.ForTenant(ctx, ev.TenantID)

	var rate pricing.Rate
	if ev.RatePerMinute != nil {
		rate.BilledRatePerMinute = *ev.RatePerMinute
	} else {
		var err error
		rate, err = r.rates.RateFor(ctx, ev.TenantID, r.clock().UTC())
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("resolve rate: %w", err)
		}
	}

	txn, applied, err := r.charger.Charge(ctx, ledger.ChargeRequest{
		TenantID:        ev.TenantID,
		CallID:          ev.CallID,
		DurationSeconds: ev.DurationSeconds,
		RatePerMinute:   rate.BilledRatePerMinute,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !applied || ev.LeadID == "" {
		return txn, nil
	}

	if _, err := r.leads.RecordAttempt(ctx, ev.TenantID, ev.LeadID); err != nil {
		// The charge stands; an unknown lead only loses its attempt count.
		log.Warn("lead attempt not recorded", "lead_id", ev.LeadID, "call_id", ev.CallID, "err", err)
	}
	return txn, nil
}

// UpdateLeadStatus applies a lead classification from the automation service.
func (r *Reconciler) UpdateLeadStatus(ctx context.Context, ev LeadStatusEvent) (leads.Lead, error) {
	status := leads.Status(ev.Status)
	if strings.TrimSpace(ev.TenantID) == "" || strings.TrimSpace(ev.LeadID) == "" || !status.Valid() {
		return leads.Lead{}, ErrInvalidCallback
	}
	return r.leads.UpdateStatus(ctx, ev.TenantID, ev.LeadID, leads.StatusUpdate{
		Status:      status,
		IsQualified: ev.IsQualified,
	})
}
