package httpapi

import (
	"net/http"
	"strconv"

	"outbound-platform/internal/leads"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createLeadRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone" binding:"required,e164"`
	IsQualified bool   `json:"is_qualified"`
}

func (h Handlers) CreateLead(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	var req createLeadRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.Leads.Create(c.Request.Context(), leads.Lead{
		ID:          uuid.NewString(),
		TenantID:    tid,
		Name:        req.Name,
		Phone:       req.Phone,
		Status:      leads.StatusNew,
		IsQualified: req.IsQualified,
	})
	if err != nil {
		fail(c, "create lead", err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h Handlers) CountCallableLeads(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	n, err := h.Leads.CountCallable(c.Request.Context(), tid)
	if err != nil {
		fail(c, "count callable leads", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"callable": n})
}

// ListCallableLeads previews the next run's queue, least recently called first.
func (h Handlers) ListCallableLeads(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 600 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 600"})
			return
		}
		limit = n
	}
	out, err := h.Leads.ListCallable(c.Request.Context(), tid, limit)
	if err != nil {
		fail(c, "list callable leads", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": out})
}
