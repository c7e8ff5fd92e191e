package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// ListByTenant walks the log backwards so the newest events come first.
func (r *MemoryRepo) ListByTenant(ctx context.Context, tenantID string, f ListFilter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for i := len(r.events) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := r.events[i]
		if e.TenantID != tenantID || (f.Type != "" && e.Type != f.Type) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Events returns every appended event in order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
