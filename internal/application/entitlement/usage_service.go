package entitlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// UsageService owns the usage counters. Daily and monthly rollover is
// lazy: every read and write first reconciles the counter's window
// against the expected one and zeroes stale counters in place. There is
// no background sweep. Cycle counters never roll over on their own; they
// are zeroed only by ResetCycleCounters, which also advances the billing
// cycle anchor.
type UsageService struct {
	usageRepo entitlement.QuotaUsageRepository
	subRepo   entitlement.SubscriptionRepository
	resolver  *ResolverService
	audit     *AuditService
	logger    *zap.Logger
}

// NewUsageService creates a new UsageService
func NewUsageService(
	usageRepo entitlement.QuotaUsageRepository,
	subRepo entitlement.SubscriptionRepository,
	resolver *ResolverService,
	audit *AuditService,
	logger *zap.Logger,
) *UsageService {
	return &UsageService{
		usageRepo: usageRepo,
		subRepo:   subRepo,
		resolver:  resolver,
		audit:     audit,
		logger:    logger,
	}
}

// Snapshot returns the current usage of every quota type for an account,
// with effective limits applied. Counters that never recorded usage read
// as zero.
func (s *UsageService) Snapshot(ctx context.Context, account *entitlement.Account) ([]UsageSnapshotDTO, error) {
	resolved, err := s.resolver.Resolve(ctx, account)
	if err != nil {
		return nil, err
	}
	cycleStart := s.cycleStart(ctx, account)
	now := time.Now()

	rows, err := s.usageRepo.FindByAccount(ctx, account.TenantID, account.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Usage lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}
	byType := make(map[entitlement.QuotaType]*entitlement.QuotaUsage, len(rows))
	for _, r := range rows {
		byType[r.QuotaType] = r
	}

	out := make([]UsageSnapshotDTO, 0, len(entitlement.AllQuotaTypes()))
	for _, q := range entitlement.AllQuotaTypes() {
		limit := resolved.Limits[q].Limit
		expected := entitlement.PeriodStartFor(q, now, cycleStart)

		usage := int64(0)
		periodStart := expected
		if row, ok := byType[q]; ok {
			if row.IsStale(now, cycleStart) {
				// reconcile the stored row so later writes start clean
				if _, err := s.usageRepo.RolloverIfStale(ctx, account.TenantID, account.ID, q, expected); err != nil {
					s.logger.Error("Lazy rollover failed", zap.String("quota_type", string(q)), zap.Error(err))
					return nil, shared.ErrStorageUnavailable
				}
			} else {
				usage = row.CurrentUsage
				periodStart = row.PeriodStart
			}
		}

		remaining := limit - usage
		if limit == entitlement.UnlimitedLimit {
			remaining = entitlement.UnlimitedLimit
		} else if remaining < 0 {
			remaining = 0
		}

		out = append(out, UsageSnapshotDTO{
			QuotaType:   string(q),
			Usage:       usage,
			Limit:       limit,
			Remaining:   remaining,
			PeriodStart: periodStart,
		})
	}
	return out, nil
}

// Increment unconditionally adds amount to a counter. It is the
// recording path for flows that already performed their own enforcement;
// enforcement and recording in one step is Reserve on the enforcer.
func (s *UsageService) Increment(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, amount int64) error {
	if amount <= 0 {
		amount = 1
	}
	if err := s.prepareCounter(ctx, account, quotaType); err != nil {
		return err
	}
	if err := s.usageRepo.AddUsage(ctx, account.TenantID, account.ID, quotaType, amount); err != nil {
		s.logger.Error("Usage increment failed",
			zap.String("quota_type", string(quotaType)),
			zap.Error(err))
		return shared.ErrStorageUnavailable
	}
	return nil
}

// Decrement subtracts amount from a counter, clamping at zero. Only
// reversible quota types (storage) accept decrements.
func (s *UsageService) Decrement(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType, amount int64) error {
	if amount <= 0 {
		amount = 1
	}
	if !quotaType.IsReversible() {
		return shared.NewDomainError("INVALID_STATE", "Quota type does not support decrement: "+string(quotaType))
	}
	if err := s.prepareCounter(ctx, account, quotaType); err != nil {
		return err
	}
	if err := s.usageRepo.SubtractUsage(ctx, account.TenantID, account.ID, quotaType, amount); err != nil {
		s.logger.Error("Usage decrement failed",
			zap.String("quota_type", string(quotaType)),
			zap.Error(err))
		return shared.ErrStorageUnavailable
	}
	return nil
}

// ResetCycleCounters zeroes every cycle-bound counter for an account and
// advances the subscription's cycle anchor to the boundary containing
// now. Called on subscription renewal; this is the only path that moves
// cycle counters to a new window. Daily and monthly counters are not
// touched, they roll over lazily on their own calendar.
func (s *UsageService) ResetCycleCounters(ctx context.Context, account *entitlement.Account, actor Actor) error {
	cycleStart := time.Time{}
	sub, err := s.subRepo.FindByAccount(ctx, account.TenantID, account.ID)
	switch {
	case err == nil:
		sub.AdvanceCycle(time.Now())
		if err := s.subRepo.Save(ctx, sub); err != nil {
			s.logger.Error("Failed to advance cycle anchor", zap.Error(err))
			return shared.ErrStorageUnavailable
		}
		s.resolver.Invalidate(ctx, account.TenantID, account.ID)
		cycleStart = sub.CycleAnchor
	case errors.Is(err, shared.ErrNotFound):
		// no subscription means no anchor to move; zero the counters only
	default:
		s.logger.Error("Subscription lookup failed", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	types := entitlement.CycleQuotaTypes()
	if err := s.usageRepo.ResetTypes(ctx, account.TenantID, account.ID, types, cycleStart); err != nil {
		s.logger.Error("Cycle counter reset failed", zap.Error(err))
		return shared.ErrStorageUnavailable
	}

	s.logger.Info("Cycle counters reset",
		zap.String("tenant_id", account.TenantID.String()),
		zap.String("account_id", account.ID.String()))

	names := make([]string, 0, len(types))
	for _, q := range types {
		names = append(names, string(q))
	}
	s.audit.Record(account.TenantID, actor, entitlement.AuditQuotaCountersReset, account.ID, map[string]any{
		"quota_types": names,
	})
	return nil
}

// prepareCounter makes sure the counter row exists and sits in the
// current window before an arithmetic write lands on it.
func (s *UsageService) prepareCounter(ctx context.Context, account *entitlement.Account, quotaType entitlement.QuotaType) error {
	if !quotaType.IsValid() {
		return shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(quotaType))
	}
	cycleStart := s.cycleStart(ctx, account)
	now := time.Now()

	row, err := entitlement.NewQuotaUsage(account.TenantID, account.ID, quotaType, now, cycleStart)
	if err != nil {
		return err
	}
	if err := s.usageRepo.EnsureRow(ctx, row); err != nil {
		s.logger.Error("Failed to ensure usage row", zap.Error(err))
		return shared.ErrStorageUnavailable
	}
	expected := entitlement.PeriodStartFor(quotaType, now, cycleStart)
	if quotaType.Period() == entitlement.PeriodLifetime {
		return nil
	}
	if _, err := s.usageRepo.RolloverIfStale(ctx, account.TenantID, account.ID, quotaType, expected); err != nil {
		s.logger.Error("Lazy rollover failed", zap.Error(err))
		return shared.ErrStorageUnavailable
	}
	return nil
}

// cycleStart returns the account's billing cycle anchor, the fixed start
// of the running cycle window. It never advances here; only an explicit
// cycle reset (or a plan change) moves it. Accounts without a
// subscription anchor at the zero time, which keeps their cycle counters
// accumulating until a plan is assigned.
func (s *UsageService) cycleStart(ctx context.Context, account *entitlement.Account) time.Time {
	sub, err := s.resolver.Subscription(ctx, account)
	if err != nil {
		return time.Time{}
	}
	return sub.CycleAnchor
}
