package entitlement

import "github.com/relaypoint/backend/internal/domain/shared"

// FeatureKey identifies one gated capability. Like QuotaType the set is
// closed; unknown keys are a validation error at the boundary.
type FeatureKey string

const (
	FeatureScheduledMessages FeatureKey = "scheduled_messages"
	FeatureAdvancedReports   FeatureKey = "advanced_reports"
	FeaturePageBuilder       FeatureKey = "page_builder"
	FeatureMediaStorage      FeatureKey = "media_storage"
	FeatureNocoDBIntegration FeatureKey = "nocodb_integration"
	FeatureAPIAccess         FeatureKey = "api_access"
	FeatureCustomBranding    FeatureKey = "custom_branding"
	FeaturePrioritySupport   FeatureKey = "priority_support"
)

// String returns the string representation of FeatureKey
func (f FeatureKey) String() string {
	return string(f)
}

// IsValid returns true if the feature key belongs to the enumerated set
func (f FeatureKey) IsValid() bool {
	switch f {
	case FeatureScheduledMessages, FeatureAdvancedReports, FeaturePageBuilder,
		FeatureMediaStorage, FeatureNocoDBIntegration, FeatureAPIAccess,
		FeatureCustomBranding, FeaturePrioritySupport:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the feature
func (f FeatureKey) DisplayName() string {
	switch f {
	case FeatureScheduledMessages:
		return "Scheduled messages"
	case FeatureAdvancedReports:
		return "Advanced reports"
	case FeaturePageBuilder:
		return "Page builder"
	case FeatureMediaStorage:
		return "Media storage"
	case FeatureNocoDBIntegration:
		return "NocoDB integration"
	case FeatureAPIAccess:
		return "API access"
	case FeatureCustomBranding:
		return "Custom branding"
	case FeaturePrioritySupport:
		return "Priority support"
	default:
		return string(f)
	}
}

// AllFeatureKeys returns every enumerated feature key in a stable order
func AllFeatureKeys() []FeatureKey {
	return []FeatureKey{
		FeatureScheduledMessages,
		FeatureAdvancedReports,
		FeaturePageBuilder,
		FeatureMediaStorage,
		FeatureNocoDBIntegration,
		FeatureAPIAccess,
		FeatureCustomBranding,
		FeaturePrioritySupport,
	}
}

// ParseFeatureKey validates a raw string against the enumerated set
func ParseFeatureKey(raw string) (FeatureKey, error) {
	f := FeatureKey(raw)
	if !f.IsValid() {
		return "", shared.NewDomainError("INVALID_FEATURE_NAME", "Unknown feature: "+raw)
	}
	return f, nil
}
