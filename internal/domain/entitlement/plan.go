package entitlement

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UnlimitedLimit marks a quota with no cap in a plan definition.
const UnlimitedLimit int64 = -1

// Plan is a named bundle of default quota limits and enabled features,
// assignable to a subscription. A plan is owned by a tenant, or global
// (TenantID nil) for the base platform tiers.
type Plan struct {
	shared.BaseEntity
	TenantID     *uuid.UUID
	Code         string
	Name         string
	QuotaLimits  map[QuotaType]int64
	Features     map[FeatureKey]bool
	MonthlyPrice decimal.Decimal
	IsActive     bool
}

// NewPlan creates a new plan with empty limits and features
func NewPlan(code, name string, monthlyPrice decimal.Decimal) (*Plan, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, shared.NewDomainError("INVALID_PLAN_CODE", "Plan code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PLAN_NAME", "Plan name cannot be empty")
	}
	if monthlyPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PLAN_PRICE", "Plan price cannot be negative")
	}

	return &Plan{
		BaseEntity:   shared.NewBaseEntity(),
		Code:         code,
		Name:         name,
		QuotaLimits:  make(map[QuotaType]int64),
		Features:     make(map[FeatureKey]bool),
		MonthlyPrice: monthlyPrice,
		IsActive:     true,
	}, nil
}

// NewTenantPlan creates a plan owned by a specific tenant
func NewTenantPlan(tenantID uuid.UUID, code, name string, monthlyPrice decimal.Decimal) (*Plan, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	plan, err := NewPlan(code, name, monthlyPrice)
	if err != nil {
		return nil, err
	}
	plan.TenantID = &tenantID
	return plan, nil
}

// IsGlobal returns true if the plan is a base platform tier
func (p *Plan) IsGlobal() bool {
	return p.TenantID == nil
}

// SetQuotaLimit sets the plan default for a quota type
func (p *Plan) SetQuotaLimit(q QuotaType, limit int64) error {
	if !q.IsValid() {
		return shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(q))
	}
	if limit < UnlimitedLimit {
		return shared.NewDomainError("INVALID_LIMIT", "Limit must be -1 (unlimited) or non-negative")
	}
	if p.QuotaLimits == nil {
		p.QuotaLimits = make(map[QuotaType]int64)
	}
	p.QuotaLimits[q] = limit
	p.Touch()
	return nil
}

// QuotaLimit returns the plan default and whether the plan declares one
func (p *Plan) QuotaLimit(q QuotaType) (int64, bool) {
	limit, ok := p.QuotaLimits[q]
	return limit, ok
}

// EnableFeature adds a feature to the plan's feature set
func (p *Plan) EnableFeature(f FeatureKey) error {
	if !f.IsValid() {
		return shared.NewDomainError("INVALID_FEATURE_NAME", "Unknown feature: "+string(f))
	}
	if p.Features == nil {
		p.Features = make(map[FeatureKey]bool)
	}
	p.Features[f] = true
	p.Touch()
	return nil
}

// DisableFeature removes a feature from the plan's feature set
func (p *Plan) DisableFeature(f FeatureKey) {
	delete(p.Features, f)
	p.Touch()
}

// HasFeature returns true if the plan lists the feature as enabled
func (p *Plan) HasFeature(f FeatureKey) bool {
	return p.Features[f]
}

// FeatureKeys returns the enabled features in enumeration order
func (p *Plan) FeatureKeys() []FeatureKey {
	var out []FeatureKey
	for _, f := range AllFeatureKeys() {
		if p.Features[f] {
			out = append(out, f)
		}
	}
	return out
}

// Deactivate retires the plan; existing subscriptions keep referencing it
func (p *Plan) Deactivate() {
	p.IsActive = false
	p.UpdatedAt = time.Now()
}

// Built-in platform tier codes
const (
	PlanCodeFree     = "free"
	PlanCodePro      = "pro"
	PlanCodeBusiness = "business"
)

// DefaultPlans returns the built-in global tiers. They are seeded at
// install time and used as the provisioning default for new accounts.
func DefaultPlans() []*Plan {
	free, _ := NewPlan(PlanCodeFree, "Free", decimal.Zero)
	free.QuotaLimits = map[QuotaType]int64{
		QuotaMessagesPerDay:    100,
		QuotaMessagesPerMonth:  1000,
		QuotaStorageMB:         100,
		QuotaBotCallsPerDay:    50,
		QuotaBotCallsPerMonth:  500,
		QuotaBotMsgsPerDay:     50,
		QuotaBotMsgsPerMonth:   500,
		QuotaBotTokensPerDay:   10000,
		QuotaBotTokensPerMonth: 100000,
	}
	free.Features = map[FeatureKey]bool{
		FeatureMediaStorage: true,
	}

	pro, _ := NewPlan(PlanCodePro, "Pro", decimal.NewFromInt(29))
	pro.QuotaLimits = map[QuotaType]int64{
		QuotaMessagesPerDay:    1000,
		QuotaMessagesPerMonth:  20000,
		QuotaStorageMB:         5000,
		QuotaBotCallsPerDay:    500,
		QuotaBotCallsPerMonth:  10000,
		QuotaBotMsgsPerDay:     500,
		QuotaBotMsgsPerMonth:   10000,
		QuotaBotTokensPerDay:   200000,
		QuotaBotTokensPerMonth: 2000000,
	}
	pro.Features = map[FeatureKey]bool{
		FeatureScheduledMessages: true,
		FeatureMediaStorage:      true,
		FeatureAPIAccess:         true,
		FeaturePageBuilder:       true,
	}

	business, _ := NewPlan(PlanCodeBusiness, "Business", decimal.NewFromInt(99))
	business.QuotaLimits = map[QuotaType]int64{
		QuotaMessagesPerDay:    10000,
		QuotaMessagesPerMonth:  UnlimitedLimit,
		QuotaStorageMB:         50000,
		QuotaBotCallsPerDay:    5000,
		QuotaBotCallsPerMonth:  UnlimitedLimit,
		QuotaBotMsgsPerDay:     5000,
		QuotaBotMsgsPerMonth:   UnlimitedLimit,
		QuotaBotTokensPerDay:   2000000,
		QuotaBotTokensPerMonth: UnlimitedLimit,
	}
	business.Features = map[FeatureKey]bool{
		FeatureScheduledMessages: true,
		FeatureAdvancedReports:   true,
		FeaturePageBuilder:       true,
		FeatureMediaStorage:      true,
		FeatureNocoDBIntegration: true,
		FeatureAPIAccess:         true,
		FeatureCustomBranding:    true,
		FeaturePrioritySupport:   true,
	}

	return []*Plan{free, pro, business}
}
