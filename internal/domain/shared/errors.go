package shared

// DomainError carries a stable machine-readable code alongside the
// human message. Layers above translate the code into an HTTP status,
// the message goes to the client unchanged.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string { return e.Message }

// NewDomainError builds an error for a code not covered by the
// sentinels below, such as QUOTA_EXCEEDED with a per-call message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinel errors shared across repositories and services. Callers
// compare with errors.Is, so these must stay singletons.
var (
	ErrNotFound            = &DomainError{Code: "NOT_FOUND", Message: "Resource not found"}
	ErrAlreadyExists       = &DomainError{Code: "ALREADY_EXISTS", Message: "Resource already exists"}
	ErrInvalidInput        = &DomainError{Code: "INVALID_INPUT", Message: "Invalid input provided"}
	ErrConcurrencyConflict = &DomainError{Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process"}
	ErrUnauthorized        = &DomainError{Code: "UNAUTHORIZED", Message: "Not authorized to perform this action"}
	ErrForbidden           = &DomainError{Code: "FORBIDDEN", Message: "Access to this resource is forbidden"}
	ErrInvalidState        = &DomainError{Code: "INVALID_STATE", Message: "Operation not allowed in current state"}
	ErrStorageUnavailable  = &DomainError{Code: "STORAGE_UNAVAILABLE", Message: "Underlying data store did not respond"}
)
