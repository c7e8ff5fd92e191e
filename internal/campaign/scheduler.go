package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outbound-platform/pkg/logger"
)

// Scheduler starts scheduled campaigns once per tenant-local day when their window opens.
type Scheduler struct {
	ctrl  *Controller
	store Store
}

func NewScheduler(ctrl *Controller, store Store) *Scheduler {
	return &Scheduler{ctrl: ctrl, store: store}
}

// TickResult counts what one tick did.
type TickResult struct {
	Started int
	Skipped int
	Failed  int
}

// Tick tries every eligible tenant. Budget and lead failures use up the day's attempt;
// schedule and dispatch failures are retried on the next tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var res TickResult
	controls, err := s.store.ListScheduled(ctx)
	if err != nil {
		return res, fmt.Errorf("list scheduled campaigns: %w", err)
	}

	for _, c := range controls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, _, day := c.LocalDay(now)
		if c.LastAutoStartDate == day || !c.InWindow(now) {
			res.Skipped++
			continue
		}

		log := logger.From(ctx).With("tenant_id", c.TenantID)
		_, err := s.ctrl.Start(ctx, c.TenantID)
		switch {
		case err == nil:
			res.Started++
		case errors.Is(err, ErrBudgetExhausted), errors.Is(err, ErrNoEligibleLeads), errors.Is(err, ErrAlreadyRunning):
			log.Info("scheduled start skipped for today", "reason", err.Error())
			res.Skipped++
		default:
			log.Warn("scheduled start failed", "err", err)
			res.Failed++
			continue
		}

		if err := s.markDay(ctx, c.TenantID, day); err != nil {
			log.Error("record auto start date failed", "err", err)
		}
	}
	return res, nil
}

func (s *Scheduler) markDay(ctx context.Context, tenantID, day string) error {
	_, err := s.store.Update(ctx, tenantID, func(ctl *Control) error {
		ctl.LastAutoStartDate = day
		return nil
	})
	return err
}
