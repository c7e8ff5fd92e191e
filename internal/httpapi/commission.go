package httpapi

import (
	"net/http"
	"strings"

	"outbound-platform/internal/commission"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// A referrer is a tenant, so referrer-facing routes use the caller's tenant.

func (h Handlers) CommissionStats(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	st, err := h.Commission.Stats(c.Request.Context(), tid)
	if err != nil {
		fail(c, "commission stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) ListCommissionPayouts(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	payouts, err := h.Commission.ListPayouts(c.Request.Context(), tid)
	if err != nil {
		fail(c, "list payouts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}

type generateRequest struct {
	PeriodMonth string `json:"period_month" binding:"required"`
}

func (h Handlers) GenerateCommissions(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Commission.GenerateMonthly(c.Request.Context(), req.PeriodMonth)
	if err != nil {
		fail(c, "generate commissions", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type markPaidRequest struct {
	Method    string `json:"method" binding:"required,max=64"`
	Reference string `json:"reference" binding:"max=255"`
}

func (h Handlers) MarkCommissionPaid(c *gin.Context) {
	referrer := strings.TrimSpace(c.Param("referrer_id"))
	var req markPaidRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.Commission.MarkPaid(c.Request.Context(), referrer, req.Method, req.Reference, actor(c))
	if err != nil {
		fail(c, "mark commissions paid", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrer_id": referrer, "marked_paid": n})
}

type createReferralRequest struct {
	ReferrerID   string          `json:"referrer_id" binding:"required"`
	RefereeID    string          `json:"referee_id" binding:"required"`
	Code         string          `json:"code" binding:"max=64"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

func (h Handlers) CreateReferral(c *gin.Context) {
	var req createReferralRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Commission.CreateReferral(c.Request.Context(), req.ReferrerID, req.RefereeID, req.Code, req.CreditAmount)
	if err != nil {
		fail(c, "create referral", err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// CompleteReferral is called when the referee's subscription becomes active.
func (h Handlers) CompleteReferral(c *gin.Context) {
	r, changed, err := h.Commission.CompleteReferral(c.Request.Context(), c.Param("referee_id"))
	if err != nil {
		fail(c, "complete referral", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referral": r, "changed": changed})
}

type planRequest struct {
	Type            commission.PlanType `json:"type" binding:"required,oneof=flat recurring"`
	FlatAmount      decimal.Decimal     `json:"flat_amount"`
	RecurringAmount decimal.Decimal     `json:"recurring_amount"`
	RecurringMonths int                 `json:"recurring_months" binding:"min=0,max=120"`
}

func (h Handlers) SetCommissionPlan(c *gin.Context) {
	referrer := strings.TrimSpace(c.Param("referrer_id"))
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	p := commission.Plan{
		ReferrerID:      referrer,
		Type:            req.Type,
		FlatAmount:      req.FlatAmount,
		RecurringAmount: req.RecurringAmount,
		RecurringMonths: req.RecurringMonths,
	}
	if err := h.Commission.SetPlan(c.Request.Context(), p); err != nil {
		fail(c, "set commission plan", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
