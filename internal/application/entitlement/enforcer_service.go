package entitlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/relaypoint/backend/internal/infrastructure/telemetry"
)

// EnforcerService is the admission gate for quota-consuming actions.
//
// Reserve is the only correct way to consume quota: it increments the
// counter only if the result stays within the effective limit, as one
// atomic conditional update. Check remains available as an advisory
// pre-flight but its answer can be stale the instant it returns.
//
// The enforcer fails closed. If the store cannot answer, the request is
// denied, never waved through.
type EnforcerService struct {
	resolver  *ResolverService
	usage     *UsageService
	usageRepo entitlement.QuotaUsageRepository
	logger    *zap.Logger
}

// NewEnforcerService creates a new EnforcerService
func NewEnforcerService(
	resolver *ResolverService,
	usage *UsageService,
	usageRepo entitlement.QuotaUsageRepository,
	logger *zap.Logger,
) *EnforcerService {
	return &EnforcerService{
		resolver:  resolver,
		usage:     usage,
		usageRepo: usageRepo,
		logger:    logger,
	}
}

// Check answers whether amount more units would fit right now. It does
// not consume anything and gives no admission guarantee under
// concurrency; use Reserve to actually consume.
func (s *EnforcerService) Check(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, amount int64) (*QuotaCheckResultDTO, error) {
	if amount <= 0 {
		amount = 1
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "check",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, account.TenantID),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, account.ID),
		telemetry.WithAttribute(telemetry.SpanAttrQuotaType, string(quotaType)),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, amount))
	defer span.End()

	limit, err := s.resolver.EffectiveLimit(ctx, account, quotaType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrSource, string(limit.Source))

	current, err := s.currentUsage(ctx, account, quotaType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &QuotaCheckResultDTO{
		QuotaType:    string(quotaType),
		CurrentUsage: current,
		Limit:        limit.Limit,
		Source:       string(limit.Source),
	}
	if limit.Limit == entitlement.UnlimitedLimit {
		result.Allowed = true
		result.Remaining = entitlement.UnlimitedLimit
	} else {
		result.Allowed = current+amount <= limit.Limit
		result.Remaining = limit.Limit - current
		if result.Remaining < 0 {
			result.Remaining = 0
		}
	}
	if result.Allowed {
		telemetry.SetAttribute(span, telemetry.SpanAttrDecision, "allowed")
	} else {
		telemetry.SetAttribute(span, telemetry.SpanAttrDecision, "denied")
	}
	return result, nil
}

// Reserve consumes amount units, or consumes nothing and returns
// QuotaExceededError. Concurrent reservations on the same counter cannot
// jointly exceed the limit.
func (s *EnforcerService) Reserve(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, amount int64) (*QuotaCheckResultDTO, error) {
	if amount <= 0 {
		amount = 1
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "reserve",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, account.TenantID),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, account.ID),
		telemetry.WithAttribute(telemetry.SpanAttrQuotaType, string(quotaType)),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, amount))
	defer span.End()

	limit, err := s.resolver.EffectiveLimit(ctx, account, quotaType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrSource, string(limit.Source))

	if err := s.usage.prepareCounter(ctx, account, quotaType); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	granted, err := s.usageRepo.ReserveUsage(ctx, account.TenantID, account.ID, quotaType, amount, limit.Limit)
	if err != nil {
		s.logger.Error("Quota reservation failed, denying",
			zap.String("tenant_id", account.TenantID.String()),
			zap.String("account_id", account.ID.String()),
			zap.String("quota_type", string(quotaType)),
			zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, shared.ErrStorageUnavailable
	}

	current, readErr := s.currentUsage(ctx, account, quotaType)
	if readErr != nil {
		// the reservation outcome stands; the readback is cosmetic
		current = -1
	}

	if !granted {
		s.logger.Info("Quota reservation denied",
			zap.String("tenant_id", account.TenantID.String()),
			zap.String("account_id", account.ID.String()),
			zap.String("quota_type", string(quotaType)),
			zap.Int64("amount", amount),
			zap.Int64("limit", limit.Limit))
		telemetry.SetAttribute(span, telemetry.SpanAttrDecision, "denied")
		reported := current
		if reported < 0 {
			// the readback failed; don't surface its sentinel to callers
			reported = limit.Limit
		}
		return nil, NewQuotaExceededError(quotaType, reported, limit.Limit, amount)
	}

	result := &QuotaCheckResultDTO{
		Allowed:      true,
		QuotaType:    string(quotaType),
		CurrentUsage: current,
		Limit:        limit.Limit,
		Source:       string(limit.Source),
	}
	if limit.Limit == entitlement.UnlimitedLimit {
		result.Remaining = entitlement.UnlimitedLimit
	} else if current >= 0 {
		result.Remaining = limit.Limit - current
		if result.Remaining < 0 {
			result.Remaining = 0
		}
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrDecision, "granted")
	telemetry.SetAttribute(span, telemetry.SpanAttrRemaining, result.Remaining)
	return result, nil
}

// Release returns amount previously taken by a reservation whose
// underlying action failed. It bypasses the reversibility rule because it
// compensates a reservation, it does not record organic usage shrinking.
func (s *EnforcerService) Release(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, amount int64) error {
	if amount <= 0 {
		amount = 1
	}
	if !quotaType.IsValid() {
		return shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(quotaType))
	}
	if err := s.usageRepo.SubtractUsage(ctx, account.TenantID, account.ID, quotaType, amount); err != nil {
		s.logger.Error("Quota release failed",
			zap.String("quota_type", string(quotaType)),
			zap.Error(err))
		return shared.ErrStorageUnavailable
	}
	return nil
}

func (s *EnforcerService) currentUsage(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType) (int64, error) {
	row, err := s.usageRepo.Find(ctx, account.TenantID, account.ID, quotaType)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		s.logger.Error("Usage read failed", zap.Error(err))
		return 0, shared.ErrStorageUnavailable
	}

	sub, err := s.resolver.Subscription(ctx, account)
	cycleStart := time.Time{}
	if err == nil {
		cycleStart = sub.CycleAnchor
	}
	if row.IsStale(time.Now(), cycleStart) {
		return 0, nil
	}
	return row.CurrentUsage, nil
}
