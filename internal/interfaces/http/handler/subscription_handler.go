package handler

import (
	"github.com/gin-gonic/gin"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// SubscriptionHandler handles plan assignment and subscription lifecycle requests
type SubscriptionHandler struct {
	BaseHandler
	guard *appent.TenantGuardService
	admin *appent.AdminService
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(guard *appent.TenantGuardService, admin *appent.AdminService) *SubscriptionHandler {
	return &SubscriptionHandler{guard: guard, admin: admin}
}

// AssignPlanRequest represents a request to move an account to a plan
//
//	@Description	Request to assign a plan to an account
type AssignPlanRequest struct {
	PlanCode string `json:"plan_code" binding:"required,max=100" example:"pro"`
}

// GetSubscription godoc
//
//	@ID				getSubscription
//	@Summary		Get an account's subscription
//	@Description	Returns the current plan, status, and billing cycle boundaries
//	@Tags			subscriptions
//	@Produce		json
//	@Param			userId	path		string	true	"Platform user ID or legacy API token"
//	@Success		200		{object}	APIResponse[appent.SubscriptionDTO]
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/subscriptions/{userId} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}

	sub, err := h.admin.Subscription(c.Request.Context(), account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// AssignPlan godoc
//
//	@ID				assignPlan
//	@Summary		Assign a plan to an account
//	@Description	Moves the account to the named plan. The billing cycle anchor is reset and plan defaults apply immediately; overrides are untouched.
//	@Tags			subscriptions
//	@Accept			json
//	@Produce		json
//	@Param			userId	path		string				true	"Platform user ID or legacy API token"
//	@Param			request	body		AssignPlanRequest	true	"Plan to assign"
//	@Success		200		{object}	APIResponse[appent.SubscriptionDTO]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/subscriptions/{userId}/plan [put]
func (h *SubscriptionHandler) AssignPlan(c *gin.Context) {
	var req AssignPlanRequest
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

	sub, err := h.admin.AssignPlan(c.Request.Context(), account, req.PlanCode, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// Suspend godoc
//
//	@ID				suspendSubscription
//	@Summary		Suspend an account's subscription
//	@Description	Suspended accounts fail all quota reservations and disable all features until resumed
//	@Tags			subscriptions
//	@Produce		json
//	@Param			userId	path	string	true	"Platform user ID or legacy API token"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/subscriptions/{userId}/suspend [post]
func (h *SubscriptionHandler) Suspend(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.admin.Suspend(c.Request.Context(), account, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Resume godoc
//
//	@ID				resumeSubscription
//	@Summary		Resume a suspended subscription
//	@Description	Restores the account to active. Usage counters keep their values; the billing cycle is not reset.
//	@Tags			subscriptions
//	@Produce		json
//	@Param			userId	path	string	true	"Platform user ID or legacy API token"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/subscriptions/{userId}/resume [post]
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	account, ok := h.resolveTarget(c, h.guard)
	if !ok {
		return
	}
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Actor identity missing from token")
		return
	}

	if err := h.admin.Resume(c.Request.Context(), account, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

