package campaign

import "errors"

var (
	ErrAlreadyRunning  = errors.New("campaign: already running")
	ErrOutsideSchedule = errors.New("campaign: outside calling schedule")
	ErrBudgetExhausted = errors.New("campaign: daily spend limit reached")
	ErrNoEligibleLeads = errors.New("campaign: no eligible leads")
	ErrDispatchFailed  = errors.New("campaign: dispatch to automation service failed")
	ErrInvalidCallback = errors.New("campaign: invalid callback")
	ErrInvalidSettings = errors.New("campaign: invalid settings")
	ErrInvalidArgument = errors.New("campaign: invalid argument")
)
