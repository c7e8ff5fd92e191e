package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LeadCounter is the read side of the lead eligibility selector.
type LeadCounter interface {
	CountCallable(ctx context.Context, tenantID string) (int, error)
}

// SpendReader returns the positive total of call charges in [from, to).
type SpendReader interface {
	CallSpend(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error)
}

// Gate decides whether a stopped campaign may start now.
//
// Priority:
//  1. Calling window (skipped when bypass_restrictions is set)
//  2. Daily spend limit
//  3. Callable leads
//
// Gate has no side effects; the caller holds the tenant lock.
type Gate struct {
	Leads LeadCounter
	Spend SpendReader
}

// Check returns the queue length for a run starting at now, or the first failing reason.
func (g Gate) Check(ctx context.Context, c Control, now time.Time) (int, error) {
	if !c.BypassRestrictions && !c.InWindow(now) {
		return 0, ErrOutsideSchedule
	}

	from, to, _ := c.LocalDay(now)
	spent, err := g.Spend.CallSpend(ctx, c.TenantID, from, to)
	if err != nil {
		return 0, fmt.Errorf("spend to date: %w", err)
	}
	if spent.Abs().GreaterThanOrEqual(c.DailySpendLimit) {
		return 0, ErrBudgetExhausted
	}

	callable, err := g.Leads.CountCallable(ctx, c.TenantID)
	if err != nil {
		return 0, fmt.Errorf("count callable leads: %w", err)
	}
	if callable <= 0 {
		return 0, ErrNoEligibleLeads
	}
	return min(c.DailyCallLimit, callable), nil
}
