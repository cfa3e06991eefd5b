package entitlement

import (
	"github.com/google/uuid"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// QuotaOverride is an admin-set limit that takes precedence over the plan
// default for one account and one quota type. At most one row exists per
// (tenant, account, quota type); deleting it reverts to the plan default.
// Overrides are not retroactive: usage recorded before a lowered override
// stays recorded.
type QuotaOverride struct {
	shared.TenantEntity
	AccountID uuid.UUID
	QuotaType QuotaType
	Limit     int64
	Reason    string
	CreatedBy uuid.UUID
}

// NewQuotaOverride creates a quota override
func NewQuotaOverride(tenantID, accountID uuid.UUID, quotaType QuotaType, limit int64, reason string, createdBy uuid.UUID) (*QuotaOverride, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if !quotaType.IsValid() {
		return nil, shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(quotaType))
	}
	if limit < 0 {
		return nil, shared.NewDomainError("INVALID_LIMIT", "Override limit cannot be negative")
	}

	return &QuotaOverride{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		QuotaType:    quotaType,
		Limit:        limit,
		Reason:       reason,
		CreatedBy:    createdBy,
	}, nil
}

// UpdateLimit replaces the override limit
func (o *QuotaOverride) UpdateLimit(limit int64, reason string, updatedBy uuid.UUID) error {
	if limit < 0 {
		return shared.NewDomainError("INVALID_LIMIT", "Override limit cannot be negative")
	}
	o.Limit = limit
	o.Reason = reason
	o.CreatedBy = updatedBy
	o.Touch()
	return nil
}

// FeatureOverride toggles one capability for one account regardless of
// plan membership. Presence of a row overrides the plan's feature set in
// either direction.
type FeatureOverride struct {
	shared.TenantEntity
	AccountID uuid.UUID
	Feature   FeatureKey
	Enabled   bool
	CreatedBy uuid.UUID
}

// NewFeatureOverride creates a feature override
func NewFeatureOverride(tenantID, accountID uuid.UUID, feature FeatureKey, enabled bool, createdBy uuid.UUID) (*FeatureOverride, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if !feature.IsValid() {
		return nil, shared.NewDomainError("INVALID_FEATURE_NAME", "Unknown feature: "+string(feature))
	}

	return &FeatureOverride{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		Feature:      feature,
		Enabled:      enabled,
		CreatedBy:    createdBy,
	}, nil
}

// SetEnabled flips the override value
func (o *FeatureOverride) SetEnabled(enabled bool, updatedBy uuid.UUID) {
	o.Enabled = enabled
	o.CreatedBy = updatedBy
	o.Touch()
}
