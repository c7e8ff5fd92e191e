package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("pricing: invalid rate")

// RateRepository returns the most recent rate row active at a time.
type RateRepository interface {
	FindRate(ctx context.Context, tenantID string, at time.Time) (TenantRate, bool, error)
	InsertRate(ctx context.Context, r TenantRate) error
}

// Service resolves tenant rates, falling back to platform defaults.
type Service struct {
	repo     RateRepository
	defaults Rate
	clock    func() time.Time
}

func NewService(repo RateRepository, defaultBilled, defaultCost decimal.Decimal) *Service {
	return &Service{
		repo:     repo,
		defaults: Rate{BilledRatePerMinute: defaultBilled, PlatformCostPerMinute: defaultCost, Default: true},
		clock:    time.Now,
	}
}

// RateFor resolves the rate in effect at at (now when zero).
func (s *Service) RateFor(ctx context.Context, tenantID string, at time.Time) (Rate, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Rate{}, ErrInvalidRate
	}
	if at.IsZero() {
		at = s.clock().UTC()
	}
	r, ok, err := s.repo.FindRate(ctx, tenantID, at)
	if err != nil {
		return Rate{}, err
	}
	if !ok {
		return s.defaults, nil
	}
	return Rate{BilledRatePerMinute: r.BilledRatePerMinute, PlatformCostPerMinute: r.PlatformCostPerMinute}, nil
}

// SetRate schedules a new rate from effectiveFrom (now when zero). It supersedes older rows
// by recency; older rows are kept for history.
func (s *Service) SetRate(ctx context.Context, tenantID string, billed, cost decimal.Decimal, effectiveFrom time.Time) (TenantRate, error) {
	if strings.TrimSpace(tenantID) == "" || !billed.IsPositive() || cost.IsNegative() {
		return TenantRate{}, ErrInvalidRate
	}
	now := s.clock().UTC()
	if effectiveFrom.IsZero() {
		effectiveFrom = now
	}
	r := TenantRate{
		ID:                    uuid.NewString(),
		TenantID:              tenantID,
		BilledRatePerMinute:   billed,
		PlatformCostPerMinute: cost,
		EffectiveFrom:         effectiveFrom.UTC(),
		CreatedAt:             now,
	}
	if err := s.repo.InsertRate(ctx, r); err != nil {
		return TenantRate{}, err
	}
	return r, nil
}
