package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository persists accounts
type AccountRepository interface {
	// Save creates a new account
	Save(ctx context.Context, account *Account) error

	// FindByID finds an account by its internal ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)

	// FindByRef resolves a user reference (platform user id or legacy
	// token) to an account, searching across tenants. The caller is
	// responsible for comparing the returned account's tenant.
	FindByRef(ctx context.Context, ref UserRef) (*Account, error)
}

// PlanRepository persists plans
type PlanRepository interface {
	// Save creates or updates a plan
	Save(ctx context.Context, plan *Plan) error

	// FindByID finds a plan by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)

	// FindByCode finds a plan by code, preferring a tenant-owned plan
	// over a global one with the same code
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Plan, error)

	// FindActive lists the active plans visible to a tenant
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]*Plan, error)
}

// SubscriptionRepository persists subscriptions
type SubscriptionRepository interface {
	// Save creates or updates a subscription
	Save(ctx context.Context, sub *Subscription) error

	// FindByAccount finds the current subscription for an account
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*Subscription, error)
}

// QuotaOverrideRepository persists per-account quota overrides
type QuotaOverrideRepository interface {
	// Upsert creates or replaces the override for the triple
	Upsert(ctx context.Context, override *QuotaOverride) error

	// Find returns the override for the triple, or shared.ErrNotFound
	Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType) (*QuotaOverride, error)

	// FindByAccount lists all overrides for an account
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*QuotaOverride, error)

	// Delete removes the override for the triple. Deleting a missing
	// override is a no-op, not an error.
	Delete(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType) error
}

// FeatureOverrideRepository persists per-account feature overrides
type FeatureOverrideRepository interface {
	// Upsert creates or replaces the override for the pair
	Upsert(ctx context.Context, override *FeatureOverride) error

	// Find returns the override for the pair, or shared.ErrNotFound
	Find(ctx context.Context, tenantID, accountID uuid.UUID, feature FeatureKey) (*FeatureOverride, error)

	// FindByAccount lists all overrides for an account
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*FeatureOverride, error)

	// Delete removes the override for the pair; missing rows are a no-op
	Delete(ctx context.Context, tenantID, accountID uuid.UUID, feature FeatureKey) error
}

// QuotaUsageRepository persists usage counters. All mutating operations
// are single-row atomic updates: operations on the same (account, quota
// type) pair are linearizable through row-level atomicity, operations on
// different pairs proceed in parallel.
type QuotaUsageRepository interface {
	// Find returns the counter row, or shared.ErrNotFound before first use
	Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType) (*QuotaUsage, error)

	// FindByAccount lists all counter rows for an account
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*QuotaUsage, error)

	// EnsureRow creates the zeroed counter row for the current window if
	// it does not exist yet. Concurrent callers collapse via the unique
	// (tenant, account, quota type) index.
	EnsureRow(ctx context.Context, usage *QuotaUsage) error

	// RolloverIfStale resets the counter to zero for the new window, as a
	// conditional single-row update guarded on period_start. Concurrent
	// rollovers collapse to one winner. Returns true if a reset happened.
	RolloverIfStale(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType, newPeriodStart time.Time) (bool, error)

	// AddUsage unconditionally increases the counter by amount
	AddUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType, amount int64) error

	// SubtractUsage decreases the counter by amount, clamping at zero
	SubtractUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType, amount int64) error

	// ReserveUsage increases the counter by amount only if the result
	// stays within limit, as one indivisible conditional update. Returns
	// true if the reservation was granted. A limit of -1 always grants.
	ReserveUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType QuotaType, amount, limit int64) (bool, error)

	// ResetTypes zeroes the counters for the given types and stamps the
	// new period start. Used by explicit cycle resets.
	ResetTypes(ctx context.Context, tenantID, accountID uuid.UUID, types []QuotaType, periodStart time.Time) error
}

// AuditLogRepository persists the append-only audit trail
type AuditLogRepository interface {
	// Append writes one entry; entries are never updated or deleted
	Append(ctx context.Context, entry *AuditLogEntry) error

	// FindByTarget lists entries for a target account, newest first
	FindByTarget(ctx context.Context, tenantID, targetAccountID uuid.UUID, limit, offset int) ([]*AuditLogEntry, int64, error)
}

// IdentityProvider is the upstream identity service consulted when a user
// reference has no local account yet. Identities can be created there
// before any tenant-scoped record exists, so a miss locally is not
// authoritative.
type IdentityProvider interface {
	// LookupUser resolves a reference upstream; shared.ErrNotFound means
	// the identity does not exist anywhere.
	LookupUser(ctx context.Context, ref UserRef) (*DirectoryUser, error)
}
