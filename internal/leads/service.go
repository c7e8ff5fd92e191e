package leads

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("leads: not found")
	ErrInvalidArgument = errors.New("leads: invalid argument")
)

// Repository is the lead store. Every method is tenant-scoped.
type Repository interface {
	Create(ctx context.Context, l Lead) error
	Get(ctx context.Context, tenantID, leadID string) (Lead, error)
	CountCallable(ctx context.Context, tenantID string) (int, error)
	ListCallable(ctx context.Context, tenantID string, limit int) ([]Lead, error)
	UpdateStatus(ctx context.Context, tenantID, leadID string, u StatusUpdate, now time.Time) (Lead, error)
	RecordAttempt(ctx context.Context, tenantID, leadID string, at time.Time) (Lead, error)
	ResetDailyAttempts(ctx context.Context) (int64, error)
}

// Service is the lead eligibility selector plus the writes the automation service makes.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, l Lead) (Lead, error) {
	if strings.TrimSpace(l.TenantID) == "" || strings.TrimSpace(l.ID) == "" || strings.TrimSpace(l.Phone) == "" {
		return Lead{}, ErrInvalidArgument
	}
	if l.Status == "" {
		l.Status = StatusNew
	}
	if !l.Status.Valid() {
		return Lead{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if err := s.repo.Create(ctx, l); err != nil {
		return Lead{}, err
	}
	return l, nil
}

// CountCallable is the size of the tenant's callable set.
func (s *Service) CountCallable(ctx context.Context, tenantID string) (int, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, ErrInvalidArgument
	}
	return s.repo.CountCallable(ctx, tenantID)
}

// ListCallable returns up to limit callable leads, least recently called first.
func (s *Service) ListCallable(ctx context.Context, tenantID string, limit int) ([]Lead, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 600 {
		limit = 600
	}
	return s.repo.ListCallable(ctx, tenantID, limit)
}

func (s *Service) UpdateStatus(ctx context.Context, tenantID, leadID string, u StatusUpdate) (Lead, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(leadID) == "" || !u.Status.Valid() {
		return Lead{}, ErrInvalidArgument
	}
	return s.repo.UpdateStatus(ctx, tenantID, leadID, u, s.clock().UTC())
}

// RecordAttempt counts one dial against today's attempts.
func (s *Service) RecordAttempt(ctx context.Context, tenantID, leadID string) (Lead, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(leadID) == "" {
		return Lead{}, ErrInvalidArgument
	}
	return s.repo.RecordAttempt(ctx, tenantID, leadID, s.clock().UTC())
}

// ResetDailyAttempts zeroes every attempt counter. Run once per day.
func (s *Service) ResetDailyAttempts(ctx context.Context) (int64, error) {
	return s.repo.ResetDailyAttempts(ctx)
}
