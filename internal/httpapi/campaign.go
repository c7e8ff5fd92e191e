package httpapi

import (
	"net/http"

	"outbound-platform/internal/campaign"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetCampaign(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	ctrl, err := h.Campaigns.GetControl(c.Request.Context(), tid)
	if err != nil {
		fail(c, "get campaign", err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

// StartCampaign starts a run. The response carries the queue length sent to the
// automation service.
func (h Handlers) StartCampaign(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	ctrl, err := h.Campaigns.Start(c.Request.Context(), tid)
	if err != nil {
		fail(c, "start campaign", err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

func (h Handlers) StopCampaign(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	ctrl, err := h.Campaigns.Stop(c.Request.Context(), tid)
	if err != nil {
		fail(c, "stop campaign", err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

func (h Handlers) UpdateCampaignSettings(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	var s campaign.Settings
	if !bindJSON(c, &s) {
		return
	}
	ctrl, err := h.Campaigns.UpdateSettings(c.Request.Context(), tid, s)
	if err != nil {
		fail(c, "update campaign settings", err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}
