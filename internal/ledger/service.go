package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("ledger: not found")
	ErrInvalidArgument = errors.New("ledger: invalid argument")
	ErrInvalidRate     = errors.New("ledger: invalid rate")
	// ErrLedgerIntegrity means the balance no longer matches the transaction log.
	// It needs reconciliation, not a retry.
	ErrLedgerIntegrity = errors.New("ledger: integrity violation")
)

var sixty = decimal.NewFromInt(60)

// Repository persists accounts and transactions.
//
// Post must, in one atomic unit: lock (or lazily create) the tenant account, return the
// existing transaction if ExternalRef was already posted, otherwise append a transaction
// with BalanceAfter = balance + Amount and store that as the new balance.
type Repository interface {
	Post(ctx context.Context, p Posting) (PostResult, error)
	GetAccount(ctx context.Context, tenantID string) (Account, error)
	UpdateRefillSettings(ctx context.Context, tenantID string, s RefillSettings, now time.Time) (Account, error)
	ListTransactions(ctx context.Context, tenantID string, f ListFilter) ([]Transaction, error)
	SumAmounts(ctx context.Context, tenantID string, f ListFilter) (decimal.Decimal, error)
}

// RefillPublisher hands refill requests to the payment collaborator.
type RefillPublisher interface {
	PublishRefill(ctx context.Context, ev RefillRequested) error
}

// Service owns the spendable-balance invariant:
// - no balance change without a transaction row
// - transactions are never updated or deleted
// - charges and refills keyed by an external ref are applied at most once
type Service struct {
	repo    Repository
	refills RefillPublisher
	audit   *audit.Service
	clock   func() time.Time
}

func NewService(repo Repository, refills RefillPublisher, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, refills: refills, audit: auditSvc, clock: time.Now}
}

// ChargeRequest is one completed call to bill.
type ChargeRequest struct {
	TenantID        string
	CallID          string
	DurationSeconds int
	RatePerMinute   decimal.Decimal
}

// CallCharge returns the signed amount for a call: -(seconds/60 * rate) rounded half-up to cents.
func CallCharge(durationSeconds int, ratePerMinute decimal.Decimal) decimal.Decimal {
	cost := decimal.NewFromInt(int64(durationSeconds)).Mul(ratePerMinute).Div(sixty)
	// Round is half away from zero; cost is non-negative so that is half-up.
	return cost.Round(2).Neg()
}

// Charge debits a call. Replays with the same CallID return the original transaction
// and applied=false.
func (s *Service) Charge(ctx context.Context, req ChargeRequest) (Transaction, bool, error) {
	if strings.TrimSpace(req.TenantID) == "" || req.DurationSeconds < 0 || req.RatePerMinute.IsNegative() {
		return Transaction{}, false, ErrInvalidArgument
	}

	amount := CallCharge(req.DurationSeconds, req.RatePerMinute)
	res, err := s.repo.Post(ctx, Posting{
		TenantID:    req.TenantID,
		Type:        TypeCallCharge,
		Amount:      amount,
		ExternalRef: req.CallID,
		Description: fmt.Sprintf("%ds @ %s/min", req.DurationSeconds, req.RatePerMinute.StringFixed(2)),
		At:          s.clock().UTC(),
	})
	if err != nil {
		return Transaction{}, false, fmt.Errorf("post charge: %w", err)
	}
	if res.Replayed {
		logger.From(ctx).Info("duplicate call charge ignored", "tenant_id", req.TenantID, "call_id", req.CallID)
		return res.Transaction, false, nil
	}

	s.maybeRequestRefill(ctx, res.Account)
	return res.Transaction, true, nil
}

func (s *Service) maybeRequestRefill(ctx context.Context, acct Account) {
	if s.refills == nil || !acct.NeedsRefill() {
		return
	}
	ev := RefillRequested{
		TenantID:     acct.TenantID,
		RefillAmount: acct.AutoRefillAmount,
		Balance:      acct.Balance,
		RequestedAt:  s.clock().UTC(),
	}
	// The charge is already committed; a lost refill request is retried by the next charge.
	if err := s.refills.PublishRefill(ctx, ev); err != nil {
		logger.From(ctx).Error("refill request failed", "tenant_id", acct.TenantID, "err", err)
	}
}

// AdjustBalance applies a privileged manual credit (amount > 0) or debit (amount < 0).
func (s *Service) AdjustBalance(ctx context.Context, tenantID string, amount decimal.Decimal, reason string, actor audit.Actor) (Transaction, Account, error) {
	if strings.TrimSpace(tenantID) == "" || amount.IsZero() || actor.UserID == "" || actor.Role == "" {
		return Transaction{}, Account{}, ErrInvalidArgument
	}
	amount = amount.Round(2)
	if amount.IsZero() {
		return Transaction{}, Account{}, ErrInvalidArgument
	}

	typ := TypeAdminCredit
	if amount.IsNegative() {
		typ = TypeAdminDebit
	}
	res, err := s.repo.Post(ctx, Posting{
		TenantID:    tenantID,
		Type:        typ,
		Amount:      amount,
		Description: reason,
		At:          s.clock().UTC(),
	})
	if err != nil {
		return Transaction{}, Account{}, fmt.Errorf("post adjustment: %w", err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, tenantID, audit.EventTypeBalanceAdjusted, actor, reason, map[string]any{
			"transaction_id": res.Transaction.ID,
			"amount":         amount.StringFixed(2),
			"balance_after":  res.Transaction.BalanceAfter.StringFixed(2),
		})
	}
	if typ == TypeAdminDebit {
		s.maybeRequestRefill(ctx, res.Account)
	}
	return res.Transaction, res.Account, nil
}

// Refill credits a captured payment. paymentRef makes it idempotent.
func (s *Service) Refill(ctx context.Context, tenantID string, amount decimal.Decimal, paymentRef string) (Transaction, bool, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(paymentRef) == "" || !amount.IsPositive() {
		return Transaction{}, false, ErrInvalidArgument
	}
	res, err := s.repo.Post(ctx, Posting{
		TenantID:    tenantID,
		Type:        TypeRefill,
		Amount:      amount.Round(2),
		ExternalRef: paymentRef,
		Description: "auto refill",
		At:          s.clock().UTC(),
	})
	if err != nil {
		return Transaction{}, false, fmt.Errorf("post refill: %w", err)
	}
	return res.Transaction, !res.Replayed, nil
}

// GetAccount returns the tenant account, a zero balance if none exists yet.
func (s *Service) GetAccount(ctx context.Context, tenantID string) (Account, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Account{}, ErrInvalidArgument
	}
	return s.repo.GetAccount(ctx, tenantID)
}

func (s *Service) UpdateRefillSettings(ctx context.Context, tenantID string, in RefillSettings) (Account, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Account{}, ErrInvalidArgument
	}
	if in.Threshold.IsNegative() || in.Amount.IsNegative() {
		return Account{}, ErrInvalidArgument
	}
	if in.Enabled && !in.Amount.IsPositive() {
		return Account{}, ErrInvalidArgument
	}
	in.Threshold = in.Threshold.Round(2)
	in.Amount = in.Amount.Round(2)
	return s.repo.UpdateRefillSettings(ctx, tenantID, in, s.clock().UTC())
}

func (s *Service) ListTransactions(ctx context.Context, tenantID string, f ListFilter) ([]Transaction, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidArgument
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, ErrInvalidArgument
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.ListTransactions(ctx, tenantID, f)
}

// CallSpend is the positive total of call charges in [from, to).
func (s *Service) CallSpend(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error) {
	if strings.TrimSpace(tenantID) == "" || !to.After(from) {
		return decimal.Zero, ErrInvalidArgument
	}
	sum, err := s.repo.SumAmounts(ctx, tenantID, ListFilter{From: from, To: to, Type: TypeCallCharge})
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Neg(), nil
}

// VerifyConsistency checks that the transaction log sums to the stored balance.
func (s *Service) VerifyConsistency(ctx context.Context, tenantID string) error {
	acct, err := s.GetAccount(ctx, tenantID)
	if err != nil {
		return err
	}
	sum, err := s.repo.SumAmounts(ctx, tenantID, ListFilter{})
	if err != nil {
		return err
	}
	if !sum.Equal(acct.Balance) {
		return fmt.Errorf("%w: tenant %s balance %s, transactions sum %s", ErrLedgerIntegrity, tenantID, acct.Balance, sum)
	}
	return nil
}

// ComputeExpense is the margin breakdown for selling refillAmount at billedRate
// while paying platformCost per minute.
func ComputeExpense(refillAmount, billedRate, platformCost decimal.Decimal) (Expense, error) {
	if !billedRate.IsPositive() {
		return Expense{}, ErrInvalidRate
	}
	if refillAmount.IsNegative() || platformCost.IsNegative() {
		return Expense{}, ErrInvalidArgument
	}
	// multiply first to keep half-cent ties exact
	expense := refillAmount.Mul(platformCost).Div(billedRate).Round(2)
	return Expense{
		MinutesPurchased: refillAmount.Div(billedRate).Round(2),
		ActualExpense:    expense,
		Margin:           refillAmount.Sub(expense),
	}, nil
}
