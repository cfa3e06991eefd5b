package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/relaypoint/backend/internal/infrastructure/telemetry"
)

// ResolverService computes effective entitlements for an account by
// walking the resolution chain: per-account override, then plan default,
// then the system fallback. A suspended or cancelled subscription resolves
// conservatively: every feature is off and every quota sits at the system
// fallback, overrides included.
//
// Resolution reads through a cache; any cache failure degrades to a
// database read. Database failures fail closed.
type ResolverService struct {
	planRepo         entitlement.PlanRepository
	subRepo          entitlement.SubscriptionRepository
	quotaOverrides   entitlement.QuotaOverrideRepository
	featureOverrides entitlement.FeatureOverrideRepository
	cache            entitlement.EntitlementCache
	cacheTTL         time.Duration
	logger           *zap.Logger
}

// NewResolverService creates a new ResolverService
func NewResolverService(
	planRepo entitlement.PlanRepository,
	subRepo entitlement.SubscriptionRepository,
	quotaOverrides entitlement.QuotaOverrideRepository,
	featureOverrides entitlement.FeatureOverrideRepository,
	cache entitlement.EntitlementCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ResolverService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &ResolverService{
		planRepo:         planRepo,
		subRepo:          subRepo,
		quotaOverrides:   quotaOverrides,
		featureOverrides: featureOverrides,
		cache:            cache,
		cacheTTL:         cacheTTL,
		logger:           logger,
	}
}

// Resolve returns the full resolved entitlement snapshot for an account
func (s *ResolverService) Resolve(ctx context.Context, account *entitlement.Account) (*entitlement.ResolvedEntitlements, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "entitlement", "resolve",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, account.TenantID),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, account.ID))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, account.TenantID, account.ID)
		if err != nil {
			s.logger.Warn("Entitlement cache read failed", zap.Error(err))
		} else if cached != nil {
			telemetry.SetAttribute(span, telemetry.SpanAttrSource, "cache")
			telemetry.SetAttribute(span, telemetry.SpanAttrPlanCode, cached.PlanCode)
			return cached, nil
		}
	}

	resolved, err := s.resolveFromStore(ctx, account)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrSource, "store")
	telemetry.SetAttribute(span, telemetry.SpanAttrPlanCode, resolved.PlanCode)

	if s.cache != nil {
		if err := s.cache.Set(ctx, account.TenantID, account.ID, resolved, s.cacheTTL); err != nil {
			s.logger.Warn("Entitlement cache write failed", zap.Error(err))
		}
	}
	return resolved, nil
}

// EffectiveLimit returns the effective limit for one quota type
func (s *ResolverService) EffectiveLimit(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType) (entitlement.ResolvedLimit, error) {
	if !quotaType.IsValid() {
		return entitlement.ResolvedLimit{}, shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(quotaType))
	}
	resolved, err := s.Resolve(ctx, account)
	if err != nil {
		return entitlement.ResolvedLimit{}, err
	}
	return resolved.Limits[quotaType], nil
}

// IsFeatureEnabled returns the effective verdict for one feature
func (s *ResolverService) IsFeatureEnabled(ctx context.Context, account *entitlement.Account, feature entitlement.FeatureKey) (entitlement.ResolvedFeature, error) {
	if !feature.IsValid() {
		return entitlement.ResolvedFeature{}, shared.NewDomainError("INVALID_FEATURE_NAME", "Unknown feature: "+string(feature))
	}
	resolved, err := s.Resolve(ctx, account)
	if err != nil {
		return entitlement.ResolvedFeature{}, err
	}
	return resolved.Features[feature], nil
}

// Subscription returns the account's subscription, needed by callers that
// compute billing-cycle windows.
func (s *ResolverService) Subscription(ctx context.Context, account *entitlement.Account) (*entitlement.Subscription, error) {
	sub, err := s.subRepo.FindByAccount(ctx, account.TenantID, account.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		s.logger.Error("Subscription lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}
	return sub, nil
}

// Invalidate drops the cached snapshot for an account. Called after every
// mutation that changes the account's entitlements.
func (s *ResolverService) Invalidate(ctx context.Context, tenantID, accountID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, accountID); err != nil {
		s.logger.Warn("Entitlement cache invalidation failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
	}
}

func (s *ResolverService) resolveFromStore(ctx context.Context, account *entitlement.Account) (*entitlement.ResolvedEntitlements, error) {
	resolved := &entitlement.ResolvedEntitlements{
		AccountID: account.ID,
		Limits:    make(map[entitlement.QuotaType]entitlement.ResolvedLimit, len(entitlement.AllQuotaTypes())),
		Features:  make(map[entitlement.FeatureKey]entitlement.ResolvedFeature, len(entitlement.AllFeatureKeys())),
		CachedAt:  time.Now(),
	}

	sub, err := s.subRepo.FindByAccount(ctx, account.TenantID, account.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Subscription lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	var plan *entitlement.Plan
	if sub != nil {
		resolved.Entitled = sub.IsEntitled()
		plan, err = s.planRepo.FindByID(ctx, sub.PlanID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("Plan lookup failed", zap.Error(err))
			return nil, shared.ErrStorageUnavailable
		}
		if plan != nil {
			resolved.PlanCode = plan.Code
		}
	}

	// Non-entitled accounts get the conservative floor: no features, all
	// quotas at the system fallback. Overrides do not apply.
	if !resolved.Entitled {
		for _, q := range entitlement.AllQuotaTypes() {
			resolved.Limits[q] = entitlement.ResolvedLimit{Limit: q.FallbackLimit(), Source: entitlement.SourceDefault}
		}
		for _, f := range entitlement.AllFeatureKeys() {
			resolved.Features[f] = entitlement.ResolvedFeature{Enabled: false, Source: entitlement.SourceDefault}
		}
		return resolved, nil
	}

	quotaOv, err := s.quotaOverrides.FindByAccount(ctx, account.TenantID, account.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Quota override lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}
	featOv, err := s.featureOverrides.FindByAccount(ctx, account.TenantID, account.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Feature override lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	quotaOvByType := make(map[entitlement.QuotaType]*entitlement.QuotaOverride, len(quotaOv))
	for _, o := range quotaOv {
		quotaOvByType[o.QuotaType] = o
	}
	featOvByKey := make(map[entitlement.FeatureKey]*entitlement.FeatureOverride, len(featOv))
	for _, o := range featOv {
		featOvByKey[o.Feature] = o
	}

	for _, q := range entitlement.AllQuotaTypes() {
		if o, ok := quotaOvByType[q]; ok {
			resolved.Limits[q] = entitlement.ResolvedLimit{Limit: o.Limit, Source: entitlement.SourceOverride}
			continue
		}
		if plan != nil {
			if limit, ok := plan.QuotaLimit(q); ok {
				resolved.Limits[q] = entitlement.ResolvedLimit{Limit: limit, Source: entitlement.SourcePlan}
				continue
			}
		}
		resolved.Limits[q] = entitlement.ResolvedLimit{Limit: q.FallbackLimit(), Source: entitlement.SourceDefault}
	}

	for _, f := range entitlement.AllFeatureKeys() {
		if o, ok := featOvByKey[f]; ok {
			resolved.Features[f] = entitlement.ResolvedFeature{Enabled: o.Enabled, Source: entitlement.SourceOverride}
			continue
		}
		if plan != nil && plan.HasFeature(f) {
			resolved.Features[f] = entitlement.ResolvedFeature{Enabled: true, Source: entitlement.SourcePlan}
			continue
		}
		resolved.Features[f] = entitlement.ResolvedFeature{Enabled: false, Source: entitlement.SourceDefault}
	}

	return resolved, nil
}
