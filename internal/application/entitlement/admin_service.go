package entitlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// AdminService carries the administrative mutations: overrides, plan
// assignment and subscription lifecycle. Every mutation invalidates the
// account's cached entitlements and leaves an audit entry.
type AdminService struct {
	planRepo         entitlement.PlanRepository
	subRepo          entitlement.SubscriptionRepository
	quotaOverrides   entitlement.QuotaOverrideRepository
	featureOverrides entitlement.FeatureOverrideRepository
	resolver         *ResolverService
	usage            *UsageService
	audit            *AuditService
	logger           *zap.Logger
}

// NewAdminService creates a new AdminService
func NewAdminService(
	planRepo entitlement.PlanRepository,
	subRepo entitlement.SubscriptionRepository,
	quotaOverrides entitlement.QuotaOverrideRepository,
	featureOverrides entitlement.FeatureOverrideRepository,
	resolver *ResolverService,
	usage *UsageService,
	audit *AuditService,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		planRepo:         planRepo,
		subRepo:          subRepo,
		quotaOverrides:   quotaOverrides,
		featureOverrides: featureOverrides,
		resolver:         resolver,
		usage:            usage,
		audit:            audit,
		logger:           logger,
	}
}

// Summary returns the full entitlement state of an account: resolved
// limits with provenance, feature verdicts and live usage.
func (s *AdminService) Summary(ctx context.Context, account *entitlement.Account) (*EntitlementSummaryDTO, error) {
	resolved, err := s.resolver.Resolve(ctx, account)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.usage.Snapshot(ctx, account)
	if err != nil {
		return nil, err
	}
	usageByType := make(map[string]UsageSnapshotDTO, len(snapshots))
	for _, snap := range snapshots {
		usageByType[snap.QuotaType] = snap
	}

	summary := &EntitlementSummaryDTO{
		AccountID: account.ID,
		PlanCode:  resolved.PlanCode,
		Quotas:    make([]QuotaEntitlementDTO, 0, len(entitlement.AllQuotaTypes())),
		Features:  make([]FeatureEntitlementDTO, 0, len(entitlement.AllFeatureKeys())),
	}
	if sub, err := s.resolver.Subscription(ctx, account); err == nil {
		summary.Status = sub.Status.String()
	}

	for _, q := range entitlement.AllQuotaTypes() {
		limit := resolved.Limits[q]
		snap := usageByType[string(q)]
		summary.Quotas = append(summary.Quotas, QuotaEntitlementDTO{
			QuotaType:    string(q),
			DisplayName:  q.DisplayName(),
			Limit:        limit.Limit,
			Source:       string(limit.Source),
			CurrentUsage: snap.Usage,
			Remaining:    snap.Remaining,
			PeriodStart:  snap.PeriodStart,
			Period:       q.Period().String(),
		})
	}
	for _, f := range entitlement.AllFeatureKeys() {
		verdict := resolved.Features[f]
		summary.Features = append(summary.Features, FeatureEntitlementDTO{
			Feature:     string(f),
			DisplayName: f.DisplayName(),
			Enabled:     verdict.Enabled,
			Source:      string(verdict.Source),
		})
	}
	return summary, nil
}

// SetQuotaOverride creates or replaces the per-account limit for one
// quota type. The override is not retroactive: usage already recorded
// stays recorded even if the new limit sits below it.
func (s *AdminService) SetQuotaOverride(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, limit int64, reason string, actor Actor) error {
	override, err := entitlement.NewQuotaOverride(account.TenantID, account.ID, quotaType, limit, reason, actor.ID)
	if err != nil {
		return err
	}
	if err := s.quotaOverrides.Upsert(ctx, override); err != nil {
		s.logger.Error("Failed to upsert quota override", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	s.resolver.Invalidate(ctx, account.TenantID, account.ID)
	s.audit.Record(account.TenantID, actor, entitlement.AuditQuotaOverrideSet, account.ID, map[string]any{
		"quota_type": string(quotaType),
		"limit":      limit,
		"reason":     reason,
	})
	return nil
}

// RemoveQuotaOverride deletes the override, reverting the quota type to
// its plan default. Removing a missing override succeeds silently.
func (s *AdminService) RemoveQuotaOverride(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, actor Actor) error {
	if !quotaType.IsValid() {
		return shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(quotaType))
	}
	if err := s.quotaOverrides.Delete(ctx, account.TenantID, account.ID, quotaType); err != nil {
		s.logger.Error("Failed to delete quota override", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	s.resolver.Invalidate(ctx, account.TenantID, account.ID)
	s.audit.Record(account.TenantID, actor, entitlement.AuditQuotaOverrideRemoved, account.ID, map[string]any{
		"quota_type": string(quotaType),
	})
	return nil
}

// SetFeatureOverride forces one feature on or off for an account,
// regardless of plan membership.
func (s *AdminService) SetFeatureOverride(ctx context.Context, account *entitlement.Account, feature entitlement.FeatureKey, enabled bool, actor Actor) error {
	override, err := entitlement.NewFeatureOverride(account.TenantID, account.ID, feature, enabled, actor.ID)
	if err != nil {
		return err
	}
	if err := s.featureOverrides.Upsert(ctx, override); err != nil {
		s.logger.Error("Failed to upsert feature override", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	s.resolver.Invalidate(ctx, account.TenantID, account.ID)
	s.audit.Record(account.TenantID, actor, entitlement.AuditFeatureOverrideSet, account.ID, map[string]any{
		"feature": string(feature),
		"enabled": enabled,
	})
	return nil
}

// RemoveFeatureOverride deletes the override, reverting the feature to
// plan membership. Removing a missing override succeeds silently.
func (s *AdminService) RemoveFeatureOverride(ctx context.Context, account *entitlement.Account, feature entitlement.FeatureKey, actor Actor) error {
	if !feature.IsValid() {
		return shared.NewDomainError("INVALID_FEATURE_NAME", "Unknown feature: "+string(feature))
	}
	if err := s.featureOverrides.Delete(ctx, account.TenantID, account.ID, feature); err != nil {
		s.logger.Error("Failed to delete feature override", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	s.resolver.Invalidate(ctx, account.TenantID, account.ID)
	s.audit.Record(account.TenantID, actor, entitlement.AuditFeatureOverrideRemove, account.ID, map[string]any{
		"feature": string(feature),
	})
	return nil
}

// AssignPlan moves the account's subscription to the plan with the given
// code. Accounts without a subscription get a fresh trial on that plan.
// The billing cycle re-anchors at today; counters stamped before the new
// anchor reconcile to zero on their next access, so the new plan starts
// a fresh cycle window.
func (s *AdminService) AssignPlan(ctx context.Context, account *entitlement.Account, planCode string, actor Actor) (*SubscriptionDTO, error) {
	plan, err := s.planRepo.FindByCode(ctx, account.TenantID, planCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("PLAN_NOT_FOUND", "Plan not found: "+planCode)
		}
		s.logger.Error("Plan lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}
	if !plan.IsActive {
		return nil, shared.NewDomainError("INVALID_STATE", "Plan is not active: "+planCode)
	}

	sub, err := s.subRepo.FindByAccount(ctx, account.TenantID, account.ID)
	switch {
	case err == nil:
		if err := sub.ChangePlan(plan.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		sub, err = entitlement.NewSubscription(account.TenantID, account.ID, plan.ID)
		if err != nil {
			return nil, err
		}
	default:
		s.logger.Error("Subscription lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	if err := s.subRepo.Save(ctx, sub); err != nil {
		s.logger.Error("Failed to save subscription", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	s.resolver.Invalidate(ctx, account.TenantID, account.ID)
	s.audit.Record(account.TenantID, actor, entitlement.AuditPlanAssigned, account.ID, map[string]any{
		"plan_code": plan.Code,
		"plan_id":   plan.ID.String(),
	})

	return s.toSubscriptionDTO(sub, plan.Code), nil
}

// Suspend pauses entitlements for the account
func (s *AdminService) Suspend(ctx context.Context, account *entitlement.Account, actor Actor) error {
	return s.transition(ctx, account, actor, entitlement.AuditSubscriptionSuspended, func(sub *entitlement.Subscription) error {
		return sub.Suspend()
	})
}

// Resume reinstates a suspended subscription
func (s *AdminService) Resume(ctx context.Context, account *entitlement.Account, actor Actor) error {
	return s.transition(ctx, account, actor, entitlement.AuditSubscriptionResumed, func(sub *entitlement.Subscription) error {
		return sub.Resume()
	})
}

// Subscription returns the account's subscription state
func (s *AdminService) Subscription(ctx context.Context, account *entitlement.Account) (*SubscriptionDTO, error) {
	sub, err := s.resolver.Subscription(ctx, account)
	if err != nil {
		return nil, err
	}
	planCode := ""
	if plan, err := s.planRepo.FindByID(ctx, sub.PlanID); err == nil {
		planCode = plan.Code
	}
	return s.toSubscriptionDTO(sub, planCode), nil
}

func (s *AdminService) transition(ctx context.Context, account *entitlement.Account, actor Actor, action entitlement.AuditAction, apply func(*entitlement.Subscription) error) error {
	sub, err := s.resolver.Subscription(ctx, account)
	if err != nil {
		return err
	}
	if err := apply(sub); err != nil {
		return err
	}
	if err := s.subRepo.Save(ctx, sub); err != nil {
		s.logger.Error("Failed to save subscription", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	s.resolver.Invalidate(ctx, account.TenantID, account.ID)
	s.audit.Record(account.TenantID, actor, action, account.ID, map[string]any{
		"status": sub.Status.String(),
	})
	return nil
}

func (s *AdminService) toSubscriptionDTO(sub *entitlement.Subscription, planCode string) *SubscriptionDTO {
	return &SubscriptionDTO{
		AccountID:   sub.AccountID,
		PlanID:      sub.PlanID,
		PlanCode:    planCode,
		Status:      sub.Status.String(),
		CycleAnchor: sub.CycleAnchor,
		CancelledAt: sub.CancelledAt,
	}
}
