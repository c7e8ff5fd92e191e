package audit

import "time"

// Event is an immutable audit record of a privileged action.
// Events are never updated or deleted. tenant_id is the tenant acted upon.
type Event struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	Type     EventType `json:"type"`

	ActorUserID string `json:"actor_user_id,omitempty"`
	// ActorRole may include hidden roles.
	ActorRole string `json:"actor_role,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message string `json:"message,omitempty"`
	// Metadata is a JSON object, stored as JSONB.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeBalanceAdjusted    EventType = "balance_adjusted"
	EventTypeImpersonation      EventType = "impersonation_started"
	EventTypeCampaignForceStop  EventType = "campaign_force_stopped"
	EventTypeBypassChanged      EventType = "campaign_bypass_changed"
	EventTypeCommissionPaid     EventType = "commission_marked_paid"
	EventTypeCommissionGenerate EventType = "commission_generated"
)

// Actor identifies who performed an action.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
