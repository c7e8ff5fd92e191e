package pricing

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory RateRepository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	Rates []TenantRate
}

func (r *MemoryRepo) FindRate(ctx context.Context, tenantID string, at time.Time) (TenantRate, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best TenantRate
	found := false
	for _, p := range r.Rates {
		if p.TenantID != tenantID || !p.ActiveAt(at) {
			continue
		}
		if !found || p.EffectiveFrom.After(best.EffectiveFrom) {
			best = p
			found = true
		}
	}
	return best, found, nil
}

func (r *MemoryRepo) InsertRate(ctx context.Context, rate TenantRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rates = append(r.Rates, rate)
	return nil
}
