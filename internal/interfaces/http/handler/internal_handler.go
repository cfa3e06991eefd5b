package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/infrastructure/telemetry"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// InternalHandler serves the service-to-service enforcement surface.
// These endpoints sit on the hot path of every proxied message, so they
// resolve the account once, skip the admin summary machinery, and record
// decision metrics inline.
type InternalHandler struct {
	BaseHandler
	guard    *appent.TenantGuardService
	enforcer *appent.EnforcerService
	gate     *appent.FeatureGateService
	metrics  *telemetry.EntitlementMetrics
}

// NewInternalHandler creates a new internal enforcement handler.
// metrics may be nil when telemetry is disabled.
func NewInternalHandler(
	guard *appent.TenantGuardService,
	enforcer *appent.EnforcerService,
	gate *appent.FeatureGateService,
	metrics *telemetry.EntitlementMetrics,
) *InternalHandler {
	return &InternalHandler{
		guard:    guard,
		enforcer: enforcer,
		gate:     gate,
		metrics:  metrics,
	}
}

// QuotaActionRequest represents a quota check, reserve, or release call
//
//	@Description	Quota enforcement request from the proxy layer
type QuotaActionRequest struct {
	UserID    string `json:"user_id" binding:"required,max=255" example:"8f14e45f-ceea-467f-a1d6-d8f0e8692021"`
	QuotaType string `json:"quota_type" binding:"required" example:"max_messages_per_day"`
	Amount    int64  `json:"amount" binding:"omitempty,min=1" example:"1"`
}

// ReserveQuota godoc
//
//	@ID				reserveQuota
//	@Summary		Atomically reserve quota units
//	@Description	Consumes the requested units if the effective limit allows it. Denials consume nothing and return 429.
//	@Tags			internal
//	@Accept			json
//	@Produce		json
//	@Param			request	body		QuotaActionRequest	true	"Reservation to attempt"
//	@Success		200		{object}	APIResponse[appent.QuotaCheckResultDTO]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/internal/quota/reserve [post]
func (h *InternalHandler) ReserveQuota(c *gin.Context) {
	req, account, quotaType, ok := h.bindQuotaAction(c)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.enforcer.Reserve(c.Request.Context(), account, quotaType, req.Amount)
	if h.metrics != nil {
		h.metrics.RecordResolveDuration(c.Request.Context(), time.Since(start))
	}
	if err != nil {
		var quotaErr *appent.QuotaExceededError
		if h.metrics != nil && errors.As(err, &quotaErr) {
			h.metrics.RecordReservation(c.Request.Context(), string(quotaType), "denied")
		}
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordReservation(c.Request.Context(), string(quotaType), "granted")
	}
	h.Success(c, result)
}

// ReleaseQuota godoc
//
//	@ID				releaseQuota
//	@Summary		Return previously reserved quota units
//	@Description	Compensates a reservation whose downstream action failed. Releasing is idempotent at the counter level and never fails on underflow.
//	@Tags			internal
//	@Accept			json
//	@Produce		json
//	@Param			request	body	QuotaActionRequest	true	"Reservation to undo"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/internal/quota/release [post]
func (h *InternalHandler) ReleaseQuota(c *gin.Context) {
	req, account, quotaType, ok := h.bindQuotaAction(c)
	if !ok {
		return
	}

	if err := h.enforcer.Release(c.Request.Context(), account, quotaType, req.Amount); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CheckQuota godoc
//
//	@ID				checkQuota
//	@Summary		Check quota headroom without consuming
//	@Description	Advisory check. A positive answer is not an admission guarantee under concurrency; use reserve for that.
//	@Tags			internal
//	@Accept			json
//	@Produce		json
//	@Param			request	body		QuotaActionRequest	true	"Check to perform"
//	@Success		200		{object}	APIResponse[appent.QuotaCheckResultDTO]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/internal/quota/check [post]
func (h *InternalHandler) CheckQuota(c *gin.Context) {
	req, account, quotaType, ok := h.bindQuotaAction(c)
	if !ok {
		return
	}

	result, err := h.enforcer.Check(c.Request.Context(), account, quotaType, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CheckFeature godoc
//
//	@ID				checkFeature
//	@Summary		Check a feature verdict
//	@Description	Returns whether the feature is enabled for the account and where the verdict came from
//	@Tags			internal
//	@Produce		json
//	@Param			userId	path		string	true	"Platform user ID or legacy API token"
//	@Param			feature	path		string	true	"Feature name"
//	@Success		200		{object}	APIResponse[appent.FeatureCheckResultDTO]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/internal/features/{userId}/{feature} [get]
func (h *InternalHandler) CheckFeature(c *gin.Context) {
	feature, err := entitlement.ParseFeatureKey(c.Param("feature"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}

	result, err := h.gate.Check(c.Request.Context(), account, feature)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		decision := "disabled"
		if result.Enabled {
			decision = "enabled"
		}
		h.metrics.RecordFeatureCheck(c.Request.Context(), string(feature), decision)
	}
	h.Success(c, result)
}

// bindQuotaAction parses the shared quota action body and resolves the
// target account. On failure the response is already written.
func (h *InternalHandler) bindQuotaAction(c *gin.Context) (QuotaActionRequest, *entitlement.Account, entitlement.QuotaType, bool) {
	var req QuotaActionRequest
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
