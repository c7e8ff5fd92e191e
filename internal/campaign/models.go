package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Limits on the tenant-editable guardrails.
const (
	MinDailyCallLimit = 1
	MaxDailyCallLimit = 600
)

var (
	MinDailySpendLimit = decimal.NewFromInt(1)
	MaxDailySpendLimit = decimal.NewFromInt(1000)
)

// Control is the per-tenant campaign state and configuration.
// status=running means a start command was issued for RunToken and no completion has
// been reconciled for it yet.
type Control struct {
	TenantID string `json:"tenant_id"`
	Status   Status `json:"status"`

	ScheduleEnabled   bool      `json:"schedule_enabled"`
	ScheduleDays      Weekdays  `json:"schedule_days"`
	ScheduleStartTime TimeOfDay `json:"schedule_start_time"`
	ScheduleEndTime   TimeOfDay `json:"schedule_end_time"`
	Timezone          string    `json:"timezone"`

	DailySpendLimit    decimal.Decimal `json:"daily_spend_limit"`
	DailyCallLimit     int             `json:"daily_call_limit"`
	BypassRestrictions bool            `json:"bypass_restrictions"`
	QueueLength        int             `json:"queue_length"`

	RunToken            string     `json:"run_token,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	DispatchConfirmedAt *time.Time `json:"dispatch_confirmed_at,omitempty"`

	// Last-applied completion marker.
	LastCompletedRunToken string `json:"last_completed_run_token,omitempty"`
	LastCallsMade         int    `json:"last_calls_made"`

	// LastAutoStartDate is the tenant-local date (YYYY-MM-DD) the scheduler last handled.
	LastAutoStartDate string `json:"last_auto_start_date,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultControl is what a tenant gets before saving any settings.
func DefaultControl(tenantID string) Control {
	return Control{
		TenantID:          tenantID,
		Status:            StatusStopped,
		ScheduleDays:      NewWeekdays(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
		ScheduleStartTime: TimeOfDay(9 * 60),
		ScheduleEndTime:   TimeOfDay(17 * 60),
		Timezone:          "UTC",
		DailySpendLimit:   decimal.NewFromInt(50),
		DailyCallLimit:    100,
	}
}

// Location returns the tenant timezone, UTC when unset or unknown.
func (c Control) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Settings is the tenant-editable configuration. Unknown fields are rejected at the
// HTTP boundary; ranges are enforced here.
type Settings struct {
	ScheduleEnabled   bool            `json:"schedule_enabled"`
	ScheduleDays      []int           `json:"schedule_days" validate:"required,min=1,max=7,unique,dive,min=0,max=6"`
	ScheduleStartTime string          `json:"schedule_start_time" validate:"required,datetime=15:04"`
	ScheduleEndTime   string          `json:"schedule_end_time" validate:"required,datetime=15:04"`
	Timezone          string          `json:"timezone" validate:"required,timezone"`
	DailySpendLimit   decimal.Decimal `json:"daily_spend_limit"`
	DailyCallLimit    int             `json:"daily_call_limit" validate:"min=1,max=600"`
}

// StartCommand is sent to the automation service.
type StartCommand struct {
	TenantID       string `json:"tenantId"`
	QueueLength    int    `json:"queueLength"`
	DailyCallLimit int    `json:"dailyCallLimit"`
	RunToken       string `json:"runToken"`
}

// Completion is the automation service's end-of-run callback.
type Completion struct {
	TenantID  string `json:"tenantId"`
	RunToken  string `json:"runToken,omitempty"`
	CallsMade int    `json:"callsMade"`
	Status    string `json:"status"`
}

type CompletionResult struct {
	Success   bool `json:"success"`
	CallsMade int  `json:"callsMade"`
	// Replayed is true when the callback had already been applied or refers to an older run.
	Replayed bool `json:"-"`
}

// CallEvent is one finished call reported by the automation service.
type CallEvent struct {
	TenantID        string           `json:"tenantId"`
	CallID          string           `json:"callId"`
	LeadID          string           `json:"leadId,omitempty"`
	DurationSeconds int              `json:"durationSeconds"`
	RatePerMinute   *decimal.Decimal `json:"billedRatePerMinute,omitempty"`
}

// LeadStatusEvent is the automation service's classification of a lead after a call.
type LeadStatusEvent struct {
	TenantID    string `json:"tenantId"`
	LeadID      string `json:"leadId"`
	Status      string `json:"status"`
	IsQualified *bool  `json:"isQualified,omitempty"`
}
