package handler

import "github.com/relaypoint/backend/internal/interfaces/http/dto"

// The types below exist for the swagger annotations on the handlers;
// the handlers themselves respond through the dto constructors.

// APIResponse is the standard envelope with a typed data field.
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the envelope of a failed request.
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// SuccessResponse acknowledges an operation that returns no data.
// @Description Simple success response without data
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// EnabledData carries a feature gate verdict.
// @Description Feature verdict
type EnabledData struct {
	Enabled bool `json:"enabled"`
}
