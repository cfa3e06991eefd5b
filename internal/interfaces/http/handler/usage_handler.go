package handler

import (
	"github.com/gin-gonic/gin"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// UsageHandler serves usage counter reads and post-hoc usage reports.
// Reports come from the proxy layer after a metered action completed with
// an actual consumed amount that differs from the reserved one, or for
// reversible resources like storage bytes.
type UsageHandler struct {
	BaseHandler
	guard *appent.TenantGuardService
	usage *appent.UsageService
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(guard *appent.TenantGuardService, usage *appent.UsageService) *UsageHandler {
	return &UsageHandler{guard: guard, usage: usage}
}

// ReportUsageRequest represents a post-hoc usage adjustment
//
//	@Description	Usage report from the proxy layer
type ReportUsageRequest struct {
	UserID    string `json:"user_id" binding:"required,max=255" example:"8f14e45f-ceea-467f-a1d6-d8f0e8692021"`
	QuotaType string `json:"quota_type" binding:"required" example:"max_storage_mb"`
	Amount    int64  `json:"amount" binding:"required,min=1" example:"1048576"`
}

// GetUsage godoc
//
//	@ID				getUsage
//	@Summary		Get usage counters for a user
//	@Description	Returns every tracked counter with period rollover already applied
//	@Tags			usage
//	@Produce		json
//	@Param			userId	path		string	true	"Platform user ID or legacy API token"
//	@Success		200		{object}	APIResponse[[]appent.UsageSnapshotDTO]
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/usage/{userId} [get]
func (h *UsageHandler) GetUsage(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}

	snapshot, err := h.usage.Snapshot(c.Request.Context(), account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// ReportUsage godoc
//
//	@ID				reportUsage
//	@Summary		Record consumed usage
//	@Description	Adds the actual consumed amount to the counter. Use this for amounts known only after the action, not as a substitute for reserve.
//	@Tags			internal
//	@Accept			json
//	@Produce		json
//	@Param			request	body	ReportUsageRequest	true	"Usage to record"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/internal/usage/report [post]
func (h *UsageHandler) ReportUsage(c *gin.Context) {
	req, account, quotaType, ok := h.bindReport(c)
	if !ok {
		return
	}

	if err := h.usage.Increment(c.Request.Context(), account, quotaType, req.Amount); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ReleaseUsage godoc
//
//	@ID				releaseUsage
//	@Summary		Subtract released usage
//	@Description	Subtracts from the counter when a counted resource is freed, such as a deleted upload. Only reversible quota types accept this; counters clamp at zero.
//	@Tags			internal
//	@Accept			json
//	@Produce		json
//	@Param			request	body	ReportUsageRequest	true	"Usage to subtract"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/internal/usage/release [post]
func (h *UsageHandler) ReleaseUsage(c *gin.Context) {
	req, account, quotaType, ok := h.bindReport(c)
	if !ok {
		return
	}

	if err := h.usage.Decrement(c.Request.Context(), account, quotaType, req.Amount); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *UsageHandler) bindReport(c *gin.Context) (ReportUsageRequest, *entitlement.Account, entitlement.QuotaType, bool) {
	var req ReportUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return req, nil, "", false
	}

	quotaType, err := entitlement.ParseQuotaType(req.QuotaType)
	if err != nil {
		h.HandleError(c, err)
		return req, nil, "", false
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return req, nil, "", false
	}

	account, err := h.guard.ResolveAccount(c.Request.Context(), tenantID, req.UserID)
	if err != nil {
		h.HandleError(c, err)
		return req, nil, "", false
	}
	return req, account, quotaType, true
}
