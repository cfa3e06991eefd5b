package entitlement

import (
	"fmt"
	"net/http"

	"github.com/relaypoint/backend/internal/domain/entitlement"
)

// QuotaExceededError is returned when a reservation would push a counter
// past its effective limit. The request that received it was not counted.
type QuotaExceededError struct {
	QuotaType    entitlement.QuotaType
	CurrentUsage int64
	Limit        int64
	Requested    int64
	Message      string
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return e.Message
}

// HTTPStatusCode returns the HTTP status code for this error (429 Too Many Requests)
func (e *QuotaExceededError) HTTPStatusCode() int {
	return http.StatusTooManyRequests
}

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(quotaType entitlement.QuotaType, currentUsage, limit, requested int64) *QuotaExceededError {
	return &QuotaExceededError{
		QuotaType:    quotaType,
		CurrentUsage: currentUsage,
		Limit:        limit,
		Requested:    requested,
		Message: fmt.Sprintf(
			"Quota exceeded for %s: usage %d + requested %d exceeds limit %d",
			quotaType.DisplayName(), currentUsage, requested, limit,
		),
	}
}

// FeatureDisabledError is returned when a gated capability is not part of
// the account's effective entitlements. The message is written for the
// end user and names the capability, not the plan internals.
type FeatureDisabledError struct {
	Feature entitlement.FeatureKey
	Message string
}

// Error implements the error interface
func (e *FeatureDisabledError) Error() string {
	return e.Message
}

// HTTPStatusCode returns the HTTP status code for this error (403 Forbidden)
func (e *FeatureDisabledError) HTTPStatusCode() int {
	return http.StatusForbidden
}

// NewFeatureDisabledError creates a new FeatureDisabledError
func NewFeatureDisabledError(feature entitlement.FeatureKey) *FeatureDisabledError {
	return &FeatureDisabledError{
		Feature: feature,
		Message: fmt.Sprintf(
			"%s is not available on your current plan. Upgrade to enable it.",
			feature.DisplayName(),
		),
	}
}

// AccessDeniedError is returned when a caller references an account that
// exists under a different tenant. It carries the same HTTP status as a
// plain miss so probing cannot distinguish "not yours" from "not there".
type AccessDeniedError struct {
	Message string
}

// Error implements the error interface
func (e *AccessDeniedError) Error() string {
	return e.Message
}

// HTTPStatusCode returns the HTTP status code for this error (404 Not Found)
func (e *AccessDeniedError) HTTPStatusCode() int {
	return http.StatusNotFound
}

// NewAccessDeniedError creates a new AccessDeniedError
func NewAccessDeniedError() *AccessDeniedError {
	return &AccessDeniedError{Message: "User not found"}
}
