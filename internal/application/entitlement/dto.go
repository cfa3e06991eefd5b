package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/relaypoint/backend/internal/domain/entitlement"
)

// Actor identifies the administrator performing a mutation, plus the
// request metadata recorded in the audit trail.
type Actor struct {
	ID        uuid.UUID
	SourceIP  string
	UserAgent string
}

// QuotaEntitlementDTO is one resolved quota limit with its usage state
type QuotaEntitlementDTO struct {
	QuotaType    string    `json:"quota_type"`
	DisplayName  string    `json:"display_name"`
	Limit        int64     `json:"limit"`
	Source       string    `json:"source"`
	CurrentUsage int64     `json:"current_usage"`
	Remaining    int64     `json:"remaining"`
	PeriodStart  time.Time `json:"period_start"`
	Period       string    `json:"period"`
}

// FeatureEntitlementDTO is one resolved feature verdict
type FeatureEntitlementDTO struct {
	Feature     string `json:"feature"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
	Source      string `json:"source"`
}

// EntitlementSummaryDTO is the full entitlement state of one account
type EntitlementSummaryDTO struct {
	AccountID uuid.UUID               `json:"account_id"`
	PlanCode  string                  `json:"plan_code"`
	Status    string                  `json:"subscription_status"`
	Quotas    []QuotaEntitlementDTO   `json:"quotas"`
	Features  []FeatureEntitlementDTO `json:"features"`
}

// QuotaCheckResultDTO is the outcome of a non-consuming quota check
type QuotaCheckResultDTO struct {
	Allowed      bool   `json:"allowed"`
	QuotaType    string `json:"quota_type"`
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
	Remaining    int64  `json:"remaining"`
	Source       string `json:"source"`
}

// FeatureCheckResultDTO is the outcome of a feature check
type FeatureCheckResultDTO struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
	Source  string `json:"source"`
}

// UsageSnapshotDTO is one usage counter as seen at read time, after lazy
// rollover was applied
type UsageSnapshotDTO struct {
	QuotaType   string    `json:"quota_type"`
	Usage       int64     `json:"usage"`
	Limit       int64     `json:"limit"`
	Remaining   int64     `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
}

// SubscriptionDTO describes an account's subscription
type SubscriptionDTO struct {
	AccountID   uuid.UUID  `json:"account_id"`
	PlanID      uuid.UUID  `json:"plan_id"`
	PlanCode    string     `json:"plan_code"`
	Status      string     `json:"status"`
	CycleAnchor time.Time  `json:"cycle_anchor"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// AuditEntryDTO is one audit trail record
type AuditEntryDTO struct {
	ID              uuid.UUID      `json:"id"`
	ActorID         uuid.UUID      `json:"actor_id"`
	Action          string         `json:"action"`
	TargetAccountID uuid.UUID      `json:"target_account_id"`
	Details         map[string]any `json:"details"`
	SourceIP        string         `json:"source_ip,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// AuditPageDTO is a paginated audit trail slice
type AuditPageDTO struct {
	Entries []AuditEntryDTO `json:"entries"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func toAuditEntryDTO(e *entitlement.AuditLogEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:              e.ID,
		ActorID:         e.ActorID,
		Action:          e.Action.String(),
		TargetAccountID: e.TargetAccountID,
		Details:         e.GetDetails(),
		SourceIP:        e.SourceIP,
		CreatedAt:       e.CreatedAt,
	}
}
