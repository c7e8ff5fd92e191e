package leads

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	leads map[string]Lead // key: tenant_id|id
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{leads: map[string]Lead{}} }

func key(tenantID, leadID string) string { return tenantID + "|" + leadID }

func (r *MemoryRepo) Create(ctx context.Context, l Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[key(l.TenantID, l.ID)]; ok {
		return ErrInvalidArgument
	}
	r.leads[key(l.TenantID, l.ID)] = l
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, leadID string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[key(tenantID, leadID)]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) CountCallable(ctx context.Context, tenantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.leads {
		if l.TenantID == tenantID && l.Callable() {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ListCallable(ctx context.Context, tenantID string, limit int) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lead
	for _, l := range r.leads {
		if l.TenantID == tenantID && l.Callable() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastCalledAt, out[j].LastCalledAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, tenantID, leadID string, u StatusUpdate, now time.Time) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[key(tenantID, leadID)]
	if !ok {
		return Lead{}, ErrNotFound
	}
	l.Status = u.Status
	if u.IsQualified != nil {
		l.IsQualified = *u.IsQualified
	}
	l.UpdatedAt = now
	r.leads[key(tenantID, leadID)] = l
	return l, nil
}

func (r *MemoryRepo) RecordAttempt(ctx context.Context, tenantID, leadID string, at time.Time) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[key(tenantID, leadID)]
	if !ok {
		return Lead{}, ErrNotFound
	}
	l.CallAttemptsToday++
	t := at
	l.LastCalledAt = &t
	l.UpdatedAt = at
	r.leads[key(tenantID, leadID)] = l
	return l, nil
}

func (r *MemoryRepo) ResetDailyAttempts(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, l := range r.leads {
		if l.CallAttemptsToday != 0 {
			l.CallAttemptsToday = 0
			r.leads[k] = l
			n++
		}
	}
	return n, nil
}
