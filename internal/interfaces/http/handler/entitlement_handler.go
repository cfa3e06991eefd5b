package handler

import (
	"github.com/gin-gonic/gin"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// EntitlementHandler handles quota and feature administration requests.
// Every route resolves the target account through the tenant guard, so
// cross-tenant references and unknown identities never reach a service.
type EntitlementHandler struct {
	BaseHandler
	guard *appent.TenantGuardService
	admin *appent.AdminService
	usage *appent.UsageService
}

// NewEntitlementHandler creates a new entitlement handler
func NewEntitlementHandler(
	guard *appent.TenantGuardService,
	admin *appent.AdminService,
	usage *appent.UsageService,
) *EntitlementHandler {
	return &EntitlementHandler{
		guard: guard,
		admin: admin,
		usage: usage,
	}
}

// ============================================================================
// Request/Response DTOs
// ============================================================================

// SetQuotaOverrideRequest represents a request to pin a quota limit
//
//	@Description	Request to override a quota limit for one account
type SetQuotaOverrideRequest struct {
	Limit  *int64 `json:"limit" binding:"required,min=0" example:"5000"`
	Reason string `json:"reason" binding:"max=500" example:"Enterprise trial extension"`
}

// SetFeatureOverrideRequest represents a request to pin a feature verdict
//
//	@Description	Request to override a feature flag for one account
type SetFeatureOverrideRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
}

// QuotaListResponse represents resolved quota state for an account
//
//	@Description	Resolved quota limits with current usage
type QuotaListResponse struct {
	AccountID string                       `json:"account_id"`
	PlanCode  string                       `json:"plan_code"`
	Status    string                       `json:"subscription_status"`
	Quotas    []appent.QuotaEntitlementDTO `json:"quotas"`
}

// FeatureListResponse represents resolved feature state for an account
//
//	@Description	Resolved feature verdicts
type FeatureListResponse struct {
	AccountID string                         `json:"account_id"`
	PlanCode  string                         `json:"plan_code"`
	Features  []appent.FeatureEntitlementDTO `json:"features"`
}

// ============================================================================
// Quota endpoints
// ============================================================================

// GetQuotas godoc
//
//	@ID				getQuotas
//	@Summary		Get resolved quotas for a user
//	@Description	Returns every quota type with its effective limit, source, and current usage
//	@Tags			quotas
//	@Produce		json
//	@Param			userId	path		string	true	"Platform user ID or legacy API token"
//	@Success		200		{object}	APIResponse[QuotaListResponse]
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/quotas/{userId} [get]
func (h *EntitlementHandler) GetQuotas(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}

	summary, err := h.admin.Summary(c.Request.Context(), account)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, QuotaListResponse{
		AccountID: summary.AccountID.String(),
		PlanCode:  summary.PlanCode,
		Status:    summary.Status,
		Quotas:    summary.Quotas,
	})
}

// SetQuotaOverride godoc
//
//	@ID				setQuotaOverride
//	@Summary		Override a quota limit
//	@Description	Pins an explicit limit for one quota type on one account, superseding the plan default
//	@Tags			quotas
//	@Accept			json
//	@Produce		json
//	@Param			userId		path		string					true	"Platform user ID or legacy API token"
//	@Param			quotaType	path		string					true	"Quota type"
//	@Param			request		body		SetQuotaOverrideRequest	true	"Override to apply"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/quotas/{userId}/{quotaType} [put]
func (h *EntitlementHandler) SetQuotaOverride(c *gin.Context) {
	quotaType, err := entitlement.ParseQuotaType(c.Param("quotaType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req SetQuotaOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.admin.SetQuotaOverride(c.Request.Context(), account, quotaType, *req.Limit, req.Reason, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RemoveQuotaOverride godoc
//
//	@ID				removeQuotaOverride
//	@Summary		Remove a quota override
//	@Description	Drops the pinned limit so the plan default applies again
//	@Tags			quotas
//	@Produce		json
//	@Param			userId		path	string	true	"Platform user ID or legacy API token"
//	@Param			quotaType	path	string	true	"Quota type"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/quotas/{userId}/{quotaType}/override [delete]
func (h *EntitlementHandler) RemoveQuotaOverride(c *gin.Context) {
	quotaType, err := entitlement.ParseQuotaType(c.Param("quotaType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.admin.RemoveQuotaOverride(c.Request.Context(), account, quotaType, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ResetQuotas godoc
//
//	@ID				resetQuotas
//	@Summary		Reset billing-cycle quota counters
//	@Description	Zeroes the cycle-bound counters for the account. Daily, monthly, and lifetime counters are not touched.
//	@Tags			quotas
//	@Produce		json
//	@Param			userId	path	string	true	"Platform user ID or legacy API token"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/quotas/{userId}/reset [post]
func (h *EntitlementHandler) ResetQuotas(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.usage.ResetCycleCounters(c.Request.Context(), account, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ============================================================================
// Feature endpoints
// ============================================================================

// GetFeatures godoc
//
//	@ID				getFeatures
//	@Summary		Get resolved features for a user
//	@Description	Returns every known feature with its effective verdict and source
//	@Tags			features
//	@Produce		json
//	@Param			userId	path		string	true	"Platform user ID or legacy API token"
//	@Success		200		{object}	APIResponse[FeatureListResponse]
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/features/{userId} [get]
func (h *EntitlementHandler) GetFeatures(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}

	summary, err := h.admin.Summary(c.Request.Context(), account)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, FeatureListResponse{
		AccountID: summary.AccountID.String(),
		PlanCode:  summary.PlanCode,
		Features:  summary.Features,
	})
}

// SetFeatureOverride godoc
//
//	@ID				setFeatureOverride
//	@Summary		Override a feature flag
//	@Description	Pins a feature on or off for one account, superseding the plan default
//	@Tags			features
//	@Accept			json
//	@Produce		json
//	@Param			userId		path	string						true	"Platform user ID or legacy API token"
//	@Param			featureName	path	string						true	"Feature name"
//	@Param			request		body	SetFeatureOverrideRequest	true	"Override to apply"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/features/{userId}/{featureName} [put]
func (h *EntitlementHandler) SetFeatureOverride(c *gin.Context) {
	feature, err := entitlement.ParseFeatureKey(c.Param("featureName"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req SetFeatureOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.admin.SetFeatureOverride(c.Request.Context(), account, feature, *req.Enabled, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RemoveFeatureOverride godoc
//
//	@ID				removeFeatureOverride
//	@Summary		Remove a feature override
//	@Description	Drops the pinned verdict so the plan default applies again
//	@Tags			features
//	@Produce		json
//	@Param			userId		path	string	true	"Platform user ID or legacy API token"
//	@Param			featureName	path	string	true	"Feature name"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/features/{userId}/{featureName}/override [delete]
func (h *EntitlementHandler) RemoveFeatureOverride(c *gin.Context) {
	feature, err := entitlement.ParseFeatureKey(c.Param("featureName"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.admin.RemoveFeatureOverride(c.Request.Context(), account, feature, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

