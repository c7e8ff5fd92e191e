package httpapi

import (
	"errors"
	"net/http"

	"outbound-platform/internal/billing"
	"outbound-platform/internal/campaign"
	"outbound-platform/internal/commission"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/internal/pricing"
	"outbound-platform/internal/reporting"
	"outbound-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, campaign.ErrAlreadyRunning),
		errors.Is(err, commission.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrOutsideSchedule),
		errors.Is(err, campaign.ErrNoEligibleLeads):
		return http.StatusUnprocessableEntity
	case errors.Is(err, campaign.ErrBudgetExhausted):
		return http.StatusPaymentRequired
	case errors.Is(err, campaign.ErrDispatchFailed):
		return http.StatusBadGateway
	case errors.Is(err, campaign.ErrInvalidCallback),
		errors.Is(err, campaign.ErrInvalidSettings),
		errors.Is(err, campaign.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidRate),
		errors.Is(err, leads.ErrInvalidArgument),
		errors.Is(err, pricing.ErrInvalidRate),
		errors.Is(err, commission.ErrInvalidPeriod),
		errors.Is(err, commission.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, billing.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, leads.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, billing.ErrNoCustomer):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as JSON. Internal errors are logged and their text is not exposed.
func fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	log := logger.FromGin(c)
	if status >= http.StatusInternalServerError {
		if status == http.StatusBadGateway {
			log.Warn(op+" failed", "err", err)
			c.AbortWithStatusJSON(status, gin.H{"error": campaign.ErrDispatchFailed.Error()})
			return
		}
		log.Error(op+" failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	log.Info(op+" rejected", "status", status, "err", err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
