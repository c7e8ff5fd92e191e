package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// TenantRate is the per-minute price a tenant pays and what the platform pays upstream,
// valid from EffectiveFrom until EffectiveTo (open-ended when nil).
type TenantRate struct {
	ID                    string          `json:"id"`
	TenantID              string          `json:"tenant_id"`
	BilledRatePerMinute   decimal.Decimal `json:"billed_rate_per_minute"`
	PlatformCostPerMinute decimal.Decimal `json:"platform_cost_per_minute"`
	EffectiveFrom         time.Time       `json:"effective_from"`
	EffectiveTo           *time.Time      `json:"effective_to,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

func (r TenantRate) ActiveAt(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || at.Before(*r.EffectiveTo)
}

// Rate is the resolved pricing for a tenant at a point in time.
type Rate struct {
	BilledRatePerMinute   decimal.Decimal `json:"billed_rate_per_minute"`
	PlatformCostPerMinute decimal.Decimal `json:"platform_cost_per_minute"`
	// Default is true when no tenant row matched and configured defaults were used.
	Default bool `json:"default"`
}
