package commission

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu        sync.Mutex
	referrals map[string]Referral
	plans     map[string]Plan
	payouts   []Payout
	stats     map[string]Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		referrals: map[string]Referral{},
		plans:     map[string]Plan{},
		stats:     map[string]Stats{},
	}
}

func (m *MemoryStore) CreateReferral(ctx context.Context, r Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.referrals {
		if existing.RefereeID == r.RefereeID {
			return ErrDuplicate
		}
	}
	m.referrals[r.ID] = r
	return nil
}

func (m *MemoryStore) CompleteReferral(ctx context.Context, refereeID string, at time.Time) (Referral, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.referrals {
		if r.RefereeID != refereeID {
			continue
		}
		if r.Status != ReferralPending {
			return r, false, nil
		}
		t := at
		r.Status = ReferralCompleted
		r.CompletedAt = &t
		m.referrals[id] = r
		return r, true, nil
	}
	return Referral{}, false, nil
}

func (m *MemoryStore) ListSettleable(ctx context.Context, snapshot, recurringSince time.Time) ([]Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Referral
	for _, r := range m.referrals {
		if r.CompletedAt == nil || r.CompletedAt.After(snapshot) {
			continue
		}
		switch r.Status {
		case ReferralCompleted:
			out = append(out, r)
		case ReferralCredited:
			if !recurringSince.IsZero() && !r.CompletedAt.Before(recurringSince) {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return out, nil
}

func (m *MemoryStore) ListPlans(ctx context.Context) ([]Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryStore) UpsertPlan(ctx context.Context, p Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ReferrerID] = p
	return nil
}

func (m *MemoryStore) CreatePayout(ctx context.Context, p Payout, creditReferralIDs []string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payouts {
		if existing.ReferrerID == p.ReferrerID && existing.PeriodMonth == p.PeriodMonth {
			return false, nil
		}
	}
	m.payouts = append(m.payouts, p)
	for _, id := range creditReferralIDs {
		r, ok := m.referrals[id]
		if !ok || r.Status != ReferralCompleted {
			continue
		}
		t := at
		r.Status = ReferralCredited
		r.CreditedAt = &t
		m.referrals[id] = r
	}
	return true, nil
}

func (m *MemoryStore) MarkPaid(ctx context.Context, referrerID, method, reference string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, p := range m.payouts {
		if p.ReferrerID != referrerID || p.Status != PayoutPending {
			continue
		}
		t := at
		p.Status = PayoutPaid
		p.PaidAt = &t
		p.PaidVia = method
		p.Reference = reference
		m.payouts[i] = p
		n++
	}
	return n, nil
}

func (m *MemoryStore) ListPayouts(ctx context.Context, referrerID string) ([]Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payout, 0)
	for _, p := range m.payouts {
		if p.ReferrerID == referrerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodMonth > out[j].PeriodMonth })
	return out, nil
}

func (m *MemoryStore) RefreshStats(ctx context.Context, referrerID string, at time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		ReferrerID:    referrerID,
		TotalEarned:   decimal.Zero,
		PendingPayout: decimal.Zero,
		PaidOut:       decimal.Zero,
		UpdatedAt:     at,
	}
	for _, r := range m.referrals {
		if r.ReferrerID != referrerID {
			continue
		}
		st.LifetimeReferrals++
		if r.Status != ReferralPending {
			st.CompletedReferrals++
		}
	}
	for _, p := range m.payouts {
		if p.ReferrerID != referrerID {
			continue
		}
		st.TotalEarned = st.TotalEarned.Add(p.Amount)
		if p.Status == PayoutPaid {
			st.PaidOut = st.PaidOut.Add(p.Amount)
		} else {
			st.PendingPayout = st.PendingPayout.Add(p.Amount)
		}
	}
	m.stats[referrerID] = st
	return st, nil
}
