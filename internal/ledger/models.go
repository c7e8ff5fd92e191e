package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the tenant's spendable balance. It is a projection of the transaction log:
// Balance always equals the BalanceAfter of the tenant's latest transaction.
type Account struct {
	TenantID            string          `json:"tenant_id"`
	Balance             decimal.Decimal `json:"balance"`
	AutoRefillEnabled   bool            `json:"auto_refill_enabled"`
	AutoRefillThreshold decimal.Decimal `json:"auto_refill_threshold"`
	AutoRefillAmount    decimal.Decimal `json:"auto_refill_amount"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// NeedsRefill reports whether the balance has dropped below an enabled auto-refill threshold.
func (a Account) NeedsRefill() bool {
	return a.AutoRefillEnabled && a.AutoRefillAmount.IsPositive() && a.Balance.LessThan(a.AutoRefillThreshold)
}

// Transaction is an immutable, append-only ledger row.
type Transaction struct {
	ID       string          `json:"id"`
	TenantID string          `json:"tenant_id"`
	Seq      int64           `json:"seq"`
	Type     TransactionType `json:"type"`

	// Amount is signed: credits positive, debits negative.
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`

	// ExternalRef is the call id or payment reference. Unique per tenant when set.
	ExternalRef string `json:"external_ref,omitempty"`
	Description string `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type TransactionType string

const (
	TypeAdminCredit TransactionType = "admin_credit"
	TypeAdminDebit  TransactionType = "admin_debit"
	TypeCallCharge  TransactionType = "call_charge"
	TypeRefill      TransactionType = "refill"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeAdminCredit, TypeAdminDebit, TypeCallCharge, TypeRefill:
		return true
	default:
		return false
	}
}

// Posting is a balance change about to be written.
type Posting struct {
	TenantID    string
	Type        TransactionType
	Amount      decimal.Decimal
	ExternalRef string
	Description string
	At          time.Time
}

// PostResult is what a repository returns after applying a Posting.
// Replayed is true when ExternalRef matched an earlier transaction and nothing was written.
type PostResult struct {
	Transaction Transaction
	Account     Account
	Replayed    bool
}

// RefillSettings are the tenant-editable auto-refill knobs.
type RefillSettings struct {
	Enabled   bool            `json:"enabled"`
	Threshold decimal.Decimal `json:"threshold"`
	Amount    decimal.Decimal `json:"amount"`
}

// RefillRequested is emitted when a charge leaves the balance below the refill threshold.
type RefillRequested struct {
	TenantID     string          `json:"tenant_id"`
	RefillAmount decimal.Decimal `json:"refill_amount"`
	Balance      decimal.Decimal `json:"balance"`
	RequestedAt  time.Time       `json:"requested_at"`
}

// ListFilter narrows ListTransactions. Zero values mean unbounded.
type ListFilter struct {
	From  time.Time
	To    time.Time
	Type  TransactionType
	Limit int
}

// Expense is the margin breakdown for a refill.
type Expense struct {
	MinutesPurchased decimal.Decimal `json:"minutes_purchased"`
	ActualExpense    decimal.Decimal `json:"actual_expense"`
	Margin           decimal.Decimal `json:"margin"`
}
