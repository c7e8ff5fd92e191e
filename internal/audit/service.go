package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"outbound-platform/pkg/logger"

	"github.com/google/uuid"
)

// Repository is append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByTenant(ctx context.Context, tenantID string, f ListFilter) ([]Event, error)
}

// ListFilter narrows a tenant's trail. Limit is clamped by List.
type ListFilter struct {
	Type  EventType
	Limit int
}

const maxListLimit = 200

// Service writes the internal audit trail. Records are not exposed to tenants.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event for actor and logs instead of failing when the write does not
// go through. Audit must not block the action it describes.
func (s *Service) Record(ctx context.Context, tenantID string, typ EventType, actor Actor, message string, metadata map[string]any) {
	meta := ""
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}
	err := s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        typ,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		Message:     message,
		Metadata:    meta,
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "tenant_id", tenantID, "err", err)
	}
}

// List returns the tenant's newest events first. Staff tooling only.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if tenantID == "" {
		return nil, ErrInvalidEvent
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.repo.ListByTenant(ctx, tenantID, f)
}
