package leads

import "time"

// MaxAttemptsPerDay caps how often one lead is dialed per day.
const MaxAttemptsPerDay = 2

type Status string

const (
	StatusNew           Status = "new"
	StatusCallbackLater Status = "callback_later"
	StatusUnclassified  Status = "unclassified"
	StatusNoShow        Status = "no_show"
	StatusQualifiedOut  Status = "qualified_out"
	StatusNotInterested Status = "not_interested"
	StatusDoNotCall     Status = "do_not_call"
)

// dialableStatuses are the statuses a lead may be called in.
var dialableStatuses = []Status{StatusNew, StatusCallbackLater, StatusUnclassified}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusCallbackLater, StatusUnclassified, StatusNoShow,
		StatusQualifiedOut, StatusNotInterested, StatusDoNotCall:
		return true
	default:
		return false
	}
}

func (s Status) Dialable() bool {
	for _, d := range dialableStatuses {
		if s == d {
			return true
		}
	}
	return false
}

type Lead struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	Name              string     `json:"name,omitempty"`
	Phone             string     `json:"phone"`
	Status            Status     `json:"status"`
	IsQualified       bool       `json:"is_qualified"`
	CallAttemptsToday int        `json:"call_attempts_today"`
	LastCalledAt      *time.Time `json:"last_called_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Callable reports whether the lead belongs in the next campaign run.
func (l Lead) Callable() bool {
	return l.IsQualified && l.Status.Dialable() && l.CallAttemptsToday < MaxAttemptsPerDay
}

// StatusUpdate is what the automation service reports about a lead after a call.
type StatusUpdate struct {
	Status      Status
	IsQualified *bool
}
