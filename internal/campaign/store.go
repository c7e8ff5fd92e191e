package campaign

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists one Control per tenant.
//
// Update is the single-writer path: it locks the tenant row (creating it with defaults
// on first use), hands the current value to fn and writes it back only if fn returns nil.
// When fn fails nothing is written and fn's error is returned unchanged.
type Store interface {
	Get(ctx context.Context, tenantID string) (Control, error)
	Update(ctx context.Context, tenantID string, fn func(*Control) error) (Control, error)
	// ListScheduled returns stopped controls with scheduling enabled.
	ListScheduled(ctx context.Context) ([]Control, error)
	// ListStale returns tenants with an unconfirmed run started before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// MemoryStore is an in-process Store. One mutex covers every tenant.
type MemoryStore struct {
	mu       sync.Mutex
	controls map[string]Control
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{controls: map[string]Control{}}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (Control, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controls[tenantID]; ok {
		return c, nil
	}
	return DefaultControl(tenantID), nil
}

func (s *MemoryStore) Update(ctx context.Context, tenantID string, fn func(*Control) error) (Control, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[tenantID]
	if !ok {
		c = DefaultControl(tenantID)
	}
	if err := fn(&c); err != nil {
		return Control{}, err
	}
	c.TenantID = tenantID
	s.controls[tenantID] = c
	return c, nil
}

func (s *MemoryStore) ListScheduled(ctx context.Context) ([]Control, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Control, 0)
	for _, c := range s.controls {
		if c.ScheduleEnabled && c.Status == StatusStopped {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (s *MemoryStore) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0)
	for id, c := range s.controls {
		if c.staleAt(cutoff) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// staleAt reports a run that was persisted but never confirmed by the automation service.
func (c Control) staleAt(cutoff time.Time) bool {
	return c.Status == StatusRunning &&
		c.DispatchConfirmedAt == nil &&
		c.StartedAt != nil &&
		c.StartedAt.Before(cutoff)
}
