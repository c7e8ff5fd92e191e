package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"outbound-platform/internal/ledger"
	"outbound-platform/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h Handlers) GetBalance(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	acct, err := h.Ledger.GetAccount(c.Request.Context(), tid)
	if err != nil {
		fail(c, "get balance", err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// ListTransactions supports ?from=&to= (RFC3339), ?type= and ?limit=.
func (h Handlers) ListTransactions(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	var f ledger.ListFilter
	var err error
	if f.From, err = parseTimeQuery(c, "from"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	if f.To, err = parseTimeQuery(c, "to"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}
	f.Type = ledger.TransactionType(c.Query("type"))
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
	}

	txns, err := h.Ledger.ListTransactions(c.Request.Context(), tid, f)
	if err != nil {
		fail(c, "list transactions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

type refillSettingsRequest struct {
	Enabled   bool            `json:"enabled"`
	Threshold decimal.Decimal `json:"threshold"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h Handlers) UpdateRefillSettings(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	var req refillSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	acct, err := h.Ledger.UpdateRefillSettings(c.Request.Context(), tid, ledger.RefillSettings{
		Enabled:   req.Enabled,
		Threshold: req.Threshold,
		Amount:    req.Amount,
	})
	if err != nil {
		fail(c, "update refill settings", err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// GetExpense prices ?refill_amount= against the tenant's current rate.
func (h Handlers) GetExpense(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	amount, err := decimal.NewFromString(c.Query("refill_amount"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refill_amount must be a decimal"})
		return
	}
	rate, err := h.Pricing.RateFor(c.Request.Context(), tid, h.now())
	if err != nil {
		fail(c, "resolve rate", err)
		return
	}
	exp, err := ledger.ComputeExpense(amount, rate.BilledRatePerMinute, rate.PlatformCostPerMinute)
	if err != nil {
		fail(c, "compute expense", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refill_amount":            amount.StringFixed(2),
		"billed_rate_per_minute":   rate.BilledRatePerMinute,
		"platform_cost_per_minute": rate.PlatformCostPerMinute,
		"minutes_purchased":        exp.MinutesPurchased,
		"actual_expense":           exp.ActualExpense,
		"margin":                   exp.Margin,
	})
}

// SpendSummary reports ledger activity for ?from=&to= (defaults to the last 7 days)
// bucketed by ?tz=.
func (h Handlers) SpendSummary(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}
	if to.IsZero() {
		to = h.now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}

	out, err := h.Reporting.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		TenantID: tid,
		Range:    reporting.TimeRange{From: from, To: to},
		Timezone: c.Query("tz"),
	})
	if err != nil {
		fail(c, "spend summary", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
