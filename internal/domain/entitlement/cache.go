package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResolvedEntitlements is the cacheable snapshot of everything the
// resolution chain produces for one account: effective limits and feature
// verdicts after overrides and plan defaults are merged.
//
// Cache keys follow the pattern:
//   - entitlement:{tenant_id}:{account_id}
type ResolvedEntitlements struct {
	AccountID uuid.UUID                      `json:"account_id"`
	PlanCode  string                         `json:"plan_code"`
	Entitled  bool                           `json:"entitled"`
	Limits    map[QuotaType]ResolvedLimit    `json:"limits"`
	Features  map[FeatureKey]ResolvedFeature `json:"features"`
	CachedAt  time.Time                      `json:"cached_at"`
}

// LimitSource names which layer of the resolution chain produced a value.
type LimitSource string

const (
	SourceOverride LimitSource = "override"
	SourcePlan     LimitSource = "plan"
	SourceDefault  LimitSource = "default"
)

// ResolvedLimit is one quota limit with its provenance.
type ResolvedLimit struct {
	Limit  int64       `json:"limit"`
	Source LimitSource `json:"source"`
}

// ResolvedFeature is one feature verdict with its provenance.
type ResolvedFeature struct {
	Enabled bool        `json:"enabled"`
	Source  LimitSource `json:"source"`
}

// EntitlementCache caches resolved entitlements in front of the database.
// A cache failure is never fatal: callers fall through to the repositories
// on any error. Only storage failures fail closed, cache failures do not.
type EntitlementCache interface {
	// Get retrieves the cached snapshot for an account.
	// Returns nil, nil on a cache miss.
	Get(ctx context.Context, tenantID, accountID uuid.UUID) (*ResolvedEntitlements, error)

	// Set stores the snapshot with the specified TTL.
	// If ttl is 0, the implementation uses its default TTL.
	Set(ctx context.Context, tenantID, accountID uuid.UUID, resolved *ResolvedEntitlements, ttl time.Duration) error

	// Invalidate removes the snapshot for one account. Called after any
	// admin mutation that changes the account's entitlements.
	Invalidate(ctx context.Context, tenantID, accountID uuid.UUID) error

	// InvalidateTenant removes all snapshots for a tenant. Called after
	// plan-level changes that affect every subscriber.
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error

	// Close releases any resources held by the cache.
	Close() error
}
