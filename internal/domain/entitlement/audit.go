package entitlement

import (
	"maps"

	"github.com/google/uuid"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// AuditAction enumerates the entitlement-changing administrative actions.
// Unknown actions are rejected at the call site, never silently recorded.
type AuditAction string

const (
	AuditQuotaOverrideSet      AuditAction = "quota_override_set"
	AuditQuotaOverrideRemoved  AuditAction = "quota_override_removed"
	AuditQuotaCountersReset    AuditAction = "quota_counters_reset"
	AuditFeatureOverrideSet    AuditAction = "feature_override_set"
	AuditFeatureOverrideRemove AuditAction = "feature_override_removed"
	AuditPlanAssigned          AuditAction = "plan_assigned"
	AuditSubscriptionSuspended AuditAction = "subscription_suspended"
	AuditSubscriptionResumed   AuditAction = "subscription_resumed"
	AuditAccountProvisioned    AuditAction = "account_provisioned"
)

// String returns the string representation of AuditAction
func (a AuditAction) String() string {
	return string(a)
}

// IsValid returns true if the action belongs to the enumerated set
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditQuotaOverrideSet, AuditQuotaOverrideRemoved, AuditQuotaCountersReset,
		AuditFeatureOverrideSet, AuditFeatureOverrideRemove, AuditPlanAssigned,
		AuditSubscriptionSuspended, AuditSubscriptionResumed, AuditAccountProvisioned:
		return true
	}
	return false
}

// AuditLogEntry is the append-only record of one administrative action.
// Entries are never mutated or deleted by application code, and an audit
// write failure never rolls back the action it describes.
type AuditLogEntry struct {
	shared.TenantEntity
	ActorID         uuid.UUID
	Action          AuditAction
	TargetAccountID uuid.UUID
	Details         map[string]any
	SourceIP        string
	UserAgent       string
}

// NewAuditLogEntry creates an audit entry
func NewAuditLogEntry(
	tenantID, actorID uuid.UUID,
	action AuditAction,
	targetAccountID uuid.UUID,
	details map[string]any,
	sourceIP, userAgent string,
) (*AuditLogEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_AUDIT_ACTION", "Unknown audit action: "+string(action))
	}
	if targetAccountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Target account ID cannot be empty")
	}

	return &AuditLogEntry{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		ActorID:         actorID,
		Action:          action,
		TargetAccountID: targetAccountID,
		Details:         details,
		SourceIP:        sourceIP,
		UserAgent:       userAgent,
	}, nil
}

// GetDetails returns a copy of the detail blob
func (l *AuditLogEntry) GetDetails() map[string]any {
	if l.Details == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(l.Details))
	maps.Copy(result, l.Details)
	return result
}
