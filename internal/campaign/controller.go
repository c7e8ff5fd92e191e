package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/pkg/logger"
	"outbound-platform/pkg/utils"

	"github.com/google/uuid"
)

// Dispatcher delivers the start command to the automation service.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd StartCommand) error
}

var errRunChanged = errors.New("campaign: run changed")

// Controller owns the stopped/running state machine of each tenant's campaign.
type Controller struct {
	store      Store
	gate       Gate
	dispatcher Dispatcher
	audit      *audit.Service
	clock      func() time.Time
}

func NewController(store Store, leads LeadCounter, spend SpendReader, dispatcher Dispatcher, auditSvc *audit.Service) *Controller {
	return &Controller{
		store:      store,
		gate:       Gate{Leads: leads, Spend: spend},
		dispatcher: dispatcher,
		audit:      auditSvc,
		clock:      time.Now,
	}
}

func (c *Controller) GetControl(ctx context.Context, tenantID string) (Control, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Control{}, ErrInvalidArgument
	}
	return c.store.Get(ctx, tenantID)
}

// Start gates, persists the running state and then dispatches. The start command is sent
// only after the running state is committed; a failed dispatch is compensated.
func (c *Controller) Start(ctx context.Context, tenantID string) (Control, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Control{}, ErrInvalidArgument
	}
	ctx, log := logger.ForTenant(ctx, tenantID)
	now := c.clock().UTC()

	started, err := c.store.Update(ctx, tenantID, func(ctl *Control) error {
		if ctl.Status == StatusRunning {
			return ErrAlreadyRunning
		}
		queue, err := c.gate.Check(ctx, *ctl, now)
		if err != nil {
			return err
		}
		ctl.Status = StatusRunning
		ctl.QueueLength = queue
		ctl.RunToken = uuid.NewString()
		ctl.StartedAt = &now
		ctl.DispatchConfirmedAt = nil
		ctl.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Control{}, err
	}

	cmd := StartCommand{
		TenantID:       tenantID,
		QueueLength:    started.QueueLength,
		DailyCallLimit: started.DailyCallLimit,
		RunToken:       started.RunToken,
	}
	if err := c.dispatcher.Dispatch(ctx, cmd); err != nil {
		log.Error("start dispatch failed", "run_token", cmd.RunToken, "err", err)
		c.compensate(context.WithoutCancel(ctx), tenantID, cmd.RunToken)
		return Control{}, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	confirmedAt := c.clock().UTC()
	confirmed, err := c.store.Update(ctx, tenantID, func(ctl *Control) error {
		if ctl.Status != StatusRunning || ctl.RunToken != cmd.RunToken {
			return errRunChanged
		}
		ctl.DispatchConfirmedAt = &confirmedAt
		ctl.UpdatedAt = confirmedAt
		return nil
	})
	switch {
	case errors.Is(err, errRunChanged):
		// completion arrived before the confirmation write
		return c.store.Get(ctx, tenantID)
	case err != nil:
		// The run is live; the sweeper only stops unconfirmed runs after the stale timeout.
		log.Warn("dispatch confirmation not recorded", "run_token", cmd.RunToken, "err", err)
		return started, nil
	}

	log.Info("campaign started", "run_token", cmd.RunToken, "queue_length", cmd.QueueLength)
	return confirmed, nil
}

// compensate stops the run only if it is still the one that failed to dispatch.
func (c *Controller) compensate(ctx context.Context, tenantID, runToken string) {
	now := c.clock().UTC()
	_, err := c.store.Update(ctx, tenantID, func(ctl *Control) error {
		if ctl.Status != StatusRunning || ctl.RunToken != runToken {
			return errRunChanged
		}
		ctl.Status = StatusStopped
		ctl.QueueLength = 0
		ctl.UpdatedAt = now
		return nil
	})
	if err != nil && !errors.Is(err, errRunChanged) {
		logger.From(ctx).Error("compensating stop failed", "run_token", runToken, "err", err)
	}
}

// Stop is unconditional and idempotent. The run token is kept so a late completion for
// the stopped run is still recognized.
func (c *Controller) Stop(ctx context.Context, tenantID string) (Control, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Control{}, ErrInvalidArgument
	}
	now := c.clock().UTC()
	return c.store.Update(ctx, tenantID, func(ctl *Control) error {
		ctl.Status = StatusStopped
		ctl.QueueLength = 0
		ctl.UpdatedAt = now
		return nil
	})
}

// ForceStop is Stop performed by platform staff on behalf of a tenant.
func (c *Controller) ForceStop(ctx context.Context, tenantID string, actor audit.Actor) (Control, error) {
	prev, err := c.store.Get(ctx, tenantID)
	if err != nil {
		return Control{}, err
	}
	ctl, err := c.Stop(ctx, tenantID)
	if err != nil {
		return Control{}, err
	}
	if c.audit != nil {
		c.audit.Record(ctx, tenantID, audit.EventTypeCampaignForceStop, actor, "campaign force stopped", map[string]any{
			"previous_status": string(prev.Status),
			"run_token":       prev.RunToken,
		})
	}
	return ctl, nil
}

// UpdateSettings replaces the tenant-editable configuration. It does not touch run state.
func (c *Controller) UpdateSettings(ctx context.Context, tenantID string, s Settings) (Control, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Control{}, ErrInvalidArgument
	}
	if err := utils.ValidateStruct(s); err != nil {
		return Control{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.DailySpendLimit.LessThan(MinDailySpendLimit) || s.DailySpendLimit.GreaterThan(MaxDailySpendLimit) {
		return Control{}, fmt.Errorf("%w: daily_spend_limit must be between %s and %s",
			ErrInvalidSettings, MinDailySpendLimit, MaxDailySpendLimit)
	}

	now := c.clock().UTC()
	return c.store.Update(ctx, tenantID, func(ctl *Control) error {
		if err := ctl.applySettings(s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		ctl.UpdatedAt = now
		return nil
	})
}

// SetBypass toggles the calling-window override. Admin only; always audited.
func (c *Controller) SetBypass(ctx context.Context, tenantID string, enabled bool, actor audit.Actor) (Control, error) {
	if strings.TrimSpace(tenantID) == "" || actor.UserID == "" {
		return Control{}, ErrInvalidArgument
	}
	now := c.clock().UTC()
	ctl, err := c.store.Update(ctx, tenantID, func(ctl *Control) error {
		ctl.BypassRestrictions = enabled
		ctl.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Control{}, err
	}
	if c.audit != nil {
		c.audit.Record(ctx, tenantID, audit.EventTypeBypassChanged, actor, "calling window bypass changed", map[string]any{
			"enabled": enabled,
		})
	}
	return ctl, nil
}

// SweepStale stops runs persisted as running whose dispatch was never confirmed within
// olderThan, e.g. after a crash between commit and dispatch. It returns how many it stopped.
func (c *Controller) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := c.clock().UTC()
	cutoff := now.Add(-olderThan)
	ids, err := c.store.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale runs: %w", err)
	}

	stopped := 0
	for _, id := range ids {
		var token string
		_, err := c.store.Update(ctx, id, func(ctl *Control) error {
			if !ctl.staleAt(cutoff) {
				return errRunChanged
			}
			token = ctl.RunToken
			ctl.Status = StatusStopped
			ctl.QueueLength = 0
			ctl.UpdatedAt = now
			return nil
		})
		if errors.Is(err, errRunChanged) {
			continue
		}
		if err != nil {
			logger.From(ctx).Error("stale run sweep failed", "tenant_id", id, "err", err)
			continue
		}
		logger.From(ctx).Warn("stale run stopped", "tenant_id", id, "run_token", token)
		stopped++
	}
	return stopped, nil
}
