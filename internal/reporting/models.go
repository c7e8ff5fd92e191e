package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SpendSummaryRequest asks for a tenant's ledger activity in [From, To).
// Timezone buckets the daily breakdown; empty means UTC.
type SpendSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
	Timezone string    `json:"timezone,omitempty"`
}

// SpendSummary is derived from immutable balance transactions only.
// All amounts are positive magnitudes except NetChange.
type SpendSummary struct {
	TenantID string    `json:"tenant_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`

	CallsBilled  int             `json:"calls_billed"`
	CallCharges  decimal.Decimal `json:"call_charges"`
	Refills      decimal.Decimal `json:"refills"`
	AdminCredits decimal.Decimal `json:"admin_credits"`
	AdminDebits  decimal.Decimal `json:"admin_debits"`
	NetChange    decimal.Decimal `json:"net_change"`

	// Nil when the range has no transactions.
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`

	Daily []DailySpend `json:"daily"`
}

type DailySpend struct {
	Date        string          `json:"date"`
	CallsBilled int             `json:"calls_billed"`
	CallCharges decimal.Decimal `json:"call_charges"`
}
