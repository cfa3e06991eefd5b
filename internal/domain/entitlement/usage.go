package entitlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// QuotaUsage is the running counter for one (tenant, account, quota type)
// triple. Rows are created lazily on first use. The counter is never
// negative; it may exceed a limit that was lowered after the usage was
// recorded, because overrides are not retroactive.
//
// Rollover is lazy for daily and monthly counters: every read and write
// first checks PeriodStart against the expected current window and resets
// the counter if stale. There is no background sweep. Cycle counters are
// different: their window start is the subscription's cycle anchor, which
// moves only through an explicit cycle reset, so they keep accumulating
// across month boundaries until billing confirms a renewal.
type QuotaUsage struct {
	shared.TenantEntity
	AccountID    uuid.UUID
	QuotaType    QuotaType
	CurrentUsage int64
	PeriodStart  time.Time
}

// NewQuotaUsage creates a zeroed counter for the current window
func NewQuotaUsage(tenantID, accountID uuid.UUID, quotaType QuotaType, now, cycleStart time.Time) (*QuotaUsage, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if !quotaType.IsValid() {
		return nil, shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+string(quotaType))
	}

	return &QuotaUsage{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		QuotaType:    quotaType,
		CurrentUsage: 0,
		PeriodStart:  PeriodStartFor(quotaType, now, cycleStart),
	}, nil
}

// IsStale reports whether the stored window predates the current one.
// Cycle counters go stale only after an explicit cycle reset moved the
// anchor past the stored window, never by the passage of time alone;
// lifetime counters never go stale.
func (u *QuotaUsage) IsStale(now, cycleStart time.Time) bool {
	switch u.QuotaType.Period() {
	case PeriodDaily, PeriodMonthly:
		return u.PeriodStart.Before(PeriodStartFor(u.QuotaType, now, cycleStart))
	case PeriodCycle:
		return u.PeriodStart.Before(cycleStart)
	default:
		return false
	}
}

// Rollover resets the counter for the current window. Callers must check
// IsStale first; Rollover unconditionally zeroes the counter.
func (u *QuotaUsage) Rollover(now, cycleStart time.Time) {
	u.CurrentUsage = 0
	u.PeriodStart = PeriodStartFor(u.QuotaType, now, cycleStart)
	u.Touch()
}

// Add increases the counter by amount
func (u *QuotaUsage) Add(amount int64) error {
	if amount < 0 {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	u.CurrentUsage += amount
	u.Touch()
	return nil
}

// Subtract decreases the counter, clamping at zero. Only reversible quota
// types (storage) accept decrements.
func (u *QuotaUsage) Subtract(amount int64) error {
	if amount < 0 {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	if !u.QuotaType.IsReversible() {
		return shared.NewDomainError("INVALID_STATE", "Quota type does not support decrement: "+string(u.QuotaType))
	}
	u.CurrentUsage -= amount
	if u.CurrentUsage < 0 {
		u.CurrentUsage = 0
	}
	u.Touch()
	return nil
}

// Remaining returns how much headroom the counter has against limit
// (-1 = unlimited yields -1)
func (u *QuotaUsage) Remaining(limit int64) int64 {
	if limit == UnlimitedLimit {
		return UnlimitedLimit
	}
	remaining := limit - u.CurrentUsage
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsageSnapshot is the read model returned by usage queries
type UsageSnapshot struct {
	QuotaType   QuotaType
	Usage       int64
	PeriodStart time.Time
}
