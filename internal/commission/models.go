package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCredited  ReferralStatus = "credited"
)

// Referral moves pending -> completed -> credited and never back.
type Referral struct {
	ID           string          `json:"id"`
	ReferrerID   string          `json:"referrer_id"`
	RefereeID    string          `json:"referee_id"`
	Code         string          `json:"code"`
	Status       ReferralStatus  `json:"status"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreditedAt   *time.Time      `json:"credited_at,omitempty"`
}

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// Payout is one referrer's commission for one month. (ReferrerID, PeriodMonth) is unique.
type Payout struct {
	ID          string          `json:"id"`
	ReferrerID  string          `json:"referrer_id"`
	PeriodMonth string          `json:"period_month"`
	Amount      decimal.Decimal `json:"amount"`
	Status      PayoutStatus    `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	PaidVia     string          `json:"paid_via,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PlanType string

const (
	PlanFlat      PlanType = "flat"
	PlanRecurring PlanType = "recurring"
)

// Plan overrides per-referral credit amounts for a referrer.
//
// flat: FlatAmount for each newly completed referral.
// recurring: RecurringAmount per referral per month, for RecurringMonths months starting
// with the month the referral completed.
type Plan struct {
	ReferrerID      string          `json:"referrer_id"`
	Type            PlanType        `json:"type"`
	FlatAmount      decimal.Decimal `json:"flat_amount"`
	RecurringAmount decimal.Decimal `json:"recurring_amount"`
	RecurringMonths int             `json:"recurring_months"`
}

// Stats is derived from referrals and payouts and can be recomputed at any time.
type Stats struct {
	ReferrerID         string          `json:"referrer_id"`
	LifetimeReferrals  int             `json:"lifetime_referrals"`
	CompletedReferrals int             `json:"completed_referrals"`
	TotalEarned        decimal.Decimal `json:"total_earned"`
	PendingPayout      decimal.Decimal `json:"pending_payout"`
	PaidOut            decimal.Decimal `json:"paid_out"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type GenerateResult struct {
	PeriodMonth string   `json:"period_month"`
	Created     []Payout `json:"created"`
	// Skipped counts referrers that already had a payout for the period or earned nothing.
	Skipped int `json:"skipped"`
}
