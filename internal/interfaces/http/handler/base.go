package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/relaypoint/backend/internal/interfaces/http/dto"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.GetHeader(RequestIDKey); id != "" {
		return id
	}
	return ""
}

// getTenantID extracts the tenant ID from JWT claims or returns error
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetJWTTenantID(c)
	if tenantIDStr == "" {
		return uuid.Nil, errors.New("tenant ID not found in context")
	}
	return uuid.Parse(tenantIDStr)
}

// getActor builds the audit actor from JWT claims and request metadata
func getActor(c *gin.Context) (appent.Actor, error) {
	actorIDStr := middleware.GetJWTActorID(c)
	if actorIDStr == "" {
		return appent.Actor{}, errors.New("actor ID not found in context")
	}
	actorID, err := uuid.Parse(actorIDStr)
	if err != nil {
		return appent.Actor{}, err
	}
	return appent.Actor{
		ID:        actorID,
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, nil
}

// resolveTarget runs the tenant guard for the :userId path parameter.
// On failure it writes the error response and returns false.
func (h *BaseHandler) resolveTarget(c *gin.Context, guard *appent.TenantGuardService) (*entitlement.Account, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return nil, false
	}

	account, err := guard.ResolveAccount(c.Request.Context(), tenantID, c.Param("userId"))
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return account, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	requestID := getRequestID(c)
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	))
}

// HandleError converts application and domain errors to HTTP responses.
// Entitlement verdicts carry their own status codes; domain errors go
// through the code mapping; anything else is a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	var quotaErr *appent.QuotaExceededError
	if errors.As(err, &quotaErr) {
		c.JSON(quotaErr.HTTPStatusCode(), dto.NewErrorResponseWithRequestID(
			dto.ErrCodeQuotaExceeded, quotaErr.Message, requestID))
		return
	}

	var featureErr *appent.FeatureDisabledError
	if errors.As(err, &featureErr) {
		c.JSON(featureErr.HTTPStatusCode(), dto.NewErrorResponseWithRequestID(
			dto.ErrCodeFeatureDisabled, featureErr.Message, requestID))
		return
	}

	var deniedErr *appent.AccessDeniedError
	if errors.As(err, &deniedErr) {
		c.JSON(deniedErr.HTTPStatusCode(), dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, deniedErr.Message, requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
