package httpapi

import (
	"outbound-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RegisterV1 mounts the authenticated API. v1 must already run auth.RequireAccessToken.
func RegisterV1(v1 *gin.RouterGroup, h Handlers) {
	v1.GET("/me", h.Me)

	tenant := v1.Group("")
	tenant.Use(rbac.RequireTenant())

	campaigns := tenant.Group("/campaign")
	{
		campaigns.GET("", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleAnalyst, rbac.RoleSupport), h.GetCampaign)
		operate := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager)
		campaigns.POST("/start", operate, h.StartCampaign)
		campaigns.POST("/stop", operate, h.StopCampaign)
		campaigns.PUT("/settings", operate, h.UpdateCampaignSettings)
	}

	billingGroup := tenant.Group("/billing")
	{
		read := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance, rbac.RoleAnalyst, rbac.RoleSupport)
		billingGroup.GET("/balance", read, h.GetBalance)
		billingGroup.GET("/transactions", read, h.ListTransactions)
		billingGroup.GET("/expense", read, h.GetExpense)
		billingGroup.GET("/summary", read, h.SpendSummary)
		billingGroup.PUT("/refill-settings", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance), h.UpdateRefillSettings)
	}

	leadsGroup := tenant.Group("/leads")
	{
		leadsGroup.POST("", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager), h.CreateLead)
		view := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleAnalyst)
		leadsGroup.GET("/callable", view, h.CountCallableLeads)
		leadsGroup.GET("/queue", view, h.ListCallableLeads)
	}

	commissions := tenant.Group("/commissions")
	commissions.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance))
	{
		commissions.GET("/stats", h.CommissionStats)
		commissions.GET("/payouts", h.ListCommissionPayouts)
	}

	// Platform staff only. Impersonation tokens cannot reach admin routes, so a
	// capability cannot be used to mint another one.
	admin := v1.Group("/admin")
	admin.Use(rbac.DenyImpersonation(), rbac.RequireAnyRole(rbac.RoleSupport))
	{
		admin.POST("/impersonate", h.Impersonate)

		t := admin.Group("/tenants/:tenant_id")
		t.POST("/balance-adjustments", h.AdminAdjustBalance)
		t.PUT("/campaign/bypass", h.AdminSetBypass)
		t.POST("/campaign/force-stop", h.AdminForceStop)
		t.PUT("/rate", h.AdminSetRate)
		t.PUT("/billing-customer", h.AdminLinkBillingCustomer)
		t.GET("/ledger/verify", h.AdminVerifyLedger)
		t.GET("/audit", h.AdminListAudit)

		// money leaves the platform: super_admin only
		cm := admin.Group("/commissions", rbac.RequireAnyRole())
		cm.POST("/generate", h.GenerateCommissions)
		cm.POST("/referrals", h.CreateReferral)
		cm.POST("/referrals/:referee_id/complete", h.CompleteReferral)
		cm.PUT("/:referrer_id/plan", h.SetCommissionPlan)
		cm.POST("/:referrer_id/mark-paid", h.MarkCommissionPaid)
	}
}
