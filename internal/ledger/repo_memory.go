package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepo is an in-memory Repository for tests. A single mutex stands in for the
// per-tenant row lock.
type MemoryRepo struct {
	mu       sync.Mutex
	seq      int64
	accounts map[string]Account
	txns     []Transaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: map[string]Account{}}
}

func (r *MemoryRepo) Post(ctx context.Context, p Posting) (PostResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[p.TenantID]
	if !ok {
		acct = Account{TenantID: p.TenantID, UpdatedAt: p.At}
	}

	if p.ExternalRef != "" {
		for _, t := range r.txns {
			if t.TenantID == p.TenantID && t.ExternalRef == p.ExternalRef {
				r.accounts[p.TenantID] = acct
				return PostResult{Transaction: t, Account: acct, Replayed: true}, nil
			}
		}
	}

	r.seq++
	acct.Balance = acct.Balance.Add(p.Amount)
	acct.UpdatedAt = p.At
	t := Transaction{
		ID:           uuid.NewString(),
		TenantID:     p.TenantID,
		Seq:          r.seq,
		Type:         p.Type,
		Amount:       p.Amount,
		BalanceAfter: acct.Balance,
		ExternalRef:  p.ExternalRef,
		Description:  p.Description,
		CreatedAt:    p.At,
	}
	r.txns = append(r.txns, t)
	r.accounts[p.TenantID] = acct
	return PostResult{Transaction: t, Account: acct}, nil
}

func (r *MemoryRepo) GetAccount(ctx context.Context, tenantID string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[tenantID]; ok {
		return a, nil
	}
	return Account{TenantID: tenantID}, nil
}

func (r *MemoryRepo) UpdateRefillSettings(ctx context.Context, tenantID string, s RefillSettings, now time.Time) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[tenantID]
	if !ok {
		a = Account{TenantID: tenantID}
	}
	a.AutoRefillEnabled = s.Enabled
	a.AutoRefillThreshold = s.Threshold
	a.AutoRefillAmount = s.Amount
	a.UpdatedAt = now
	r.accounts[tenantID] = a
	return a, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, tenantID string, f ListFilter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0)
	for _, t := range r.txns {
		if matches(t, tenantID, f) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) SumAmounts(ctx context.Context, tenantID string, f ListFilter) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, t := range r.txns {
		if matches(t, tenantID, f) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

// Corrupt overwrites a stored balance without a transaction. Tests use it to
// exercise integrity checks.
func (r *MemoryRepo) Corrupt(tenantID string, balance decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.accounts[tenantID]
	a.TenantID = tenantID
	a.Balance = balance
	r.accounts[tenantID] = a
}

func matches(t Transaction, tenantID string, f ListFilter) bool {
	if t.TenantID != tenantID {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.CreatedAt.Before(f.To) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}
