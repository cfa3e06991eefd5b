package handler

import (
	"github.com/gin-gonic/gin"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/interfaces/http/dto"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// AuditHandler serves the administrative audit trail
type AuditHandler struct {
	BaseHandler
	guard           *appent.TenantGuardService
	audit           *appent.AuditService
	defaultPageSize int
}

// NewAuditHandler creates a new audit handler.
// defaultPageSize is used when the request does not carry an explicit limit.
func NewAuditHandler(guard *appent.TenantGuardService, audit *appent.AuditService, defaultPageSize int) *AuditHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	return &AuditHandler{guard: guard, audit: audit, defaultPageSize: defaultPageSize}
}

// ListAuditEntries godoc
//
//	@ID				listAuditEntries
//	@Summary		List audit entries for a user
//	@Description	Returns administrative actions recorded against the account, newest first
//	@Tags			audit
//	@Produce		json
//	@Param			userId	path		string	true	"Platform user ID or legacy API token"
//	@Param			limit	query		int		false	"Page size"	default(50)
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	APIResponse[appent.AuditPageDTO]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/{userId} [get]
func (h *AuditHandler) ListAuditEntries(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = h.defaultPageSize
	}

	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}

	page, err := h.audit.List(c.Request.Context(), account.TenantID, account.ID, req.Limit, req.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, page)
}
