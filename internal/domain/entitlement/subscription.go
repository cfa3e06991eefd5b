package entitlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle state
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionSuspended, SubscriptionCancelled:
		return true
	}
	return false
}

// Subscription links one account (within one tenant) to exactly one plan.
// Subscriptions are never physically deleted; cancellation is a status
// transition so the billing history stays intact.
type Subscription struct {
	shared.TenantEntity
	AccountID   uuid.UUID
	PlanID      uuid.UUID
	Status      SubscriptionStatus
	CycleAnchor time.Time
	CancelledAt *time.Time
}

// NewSubscription creates a trial subscription anchored at now
func NewSubscription(tenantID, accountID, planID uuid.UUID) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}

	now := time.Now()
	anchor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return &Subscription{
		TenantEntity: shared.NewTenantEntity(tenantID),
		AccountID:    accountID,
		PlanID:       planID,
		Status:       SubscriptionTrial,
		CycleAnchor:  anchor,
	}, nil
}

// IsEntitled returns true if the subscription grants plan entitlements.
// Suspended and cancelled subscriptions fail conservative: every feature
// resolves to false and every quota to the system fallback.
func (s *Subscription) IsEntitled() bool {
	return s.Status == SubscriptionTrial || s.Status == SubscriptionActive
}

// Activate transitions a trial or suspended subscription to active
func (s *Subscription) Activate() error {
	if s.Status == SubscriptionCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot activate a cancelled subscription")
	}
	s.Status = SubscriptionActive
	s.Touch()
	return nil
}

// Suspend pauses entitlements without losing the plan link
func (s *Subscription) Suspend() error {
	if s.Status == SubscriptionCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot suspend a cancelled subscription")
	}
	if s.Status == SubscriptionSuspended {
		return shared.NewDomainError("INVALID_STATE", "Subscription is already suspended")
	}
	s.Status = SubscriptionSuspended
	s.Touch()
	return nil
}

// Resume reinstates a suspended subscription
func (s *Subscription) Resume() error {
	if s.Status != SubscriptionSuspended {
		return shared.NewDomainError("INVALID_STATE", "Only suspended subscriptions can be resumed")
	}
	s.Status = SubscriptionActive
	s.Touch()
	return nil
}

// Cancel soft-cancels the subscription
func (s *Subscription) Cancel() error {
	if s.Status == SubscriptionCancelled {
		return shared.NewDomainError("INVALID_STATE", "Subscription is already cancelled")
	}
	now := time.Now()
	s.Status = SubscriptionCancelled
	s.CancelledAt = &now
	s.Touch()
	return nil
}

// ChangePlan moves the subscription to a different plan. The cycle anchor
// is reset so cycle counters start a fresh window on the new plan.
func (s *Subscription) ChangePlan(planID uuid.UUID) error {
	if planID == uuid.Nil {
		return shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}
	if s.Status == SubscriptionCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot change plan on a cancelled subscription")
	}
	s.PlanID = planID
	now := time.Now()
	s.CycleAnchor = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	s.Touch()
	return nil
}

// AdvanceCycle moves the anchor to the start of the billing cycle
// containing now. The anchor IS the cycle window start: counters keyed to
// it never move on their own, so an un-renewed subscription keeps
// accumulating into the same window until billing confirms a renewal and
// this is called. Cycles are month-long windows anchored on the anchor's
// day of month; anchors on days past the end of a short month clamp to
// its last day (an anchor on Jan 31 yields Feb 28 / Mar 31 boundaries).
func (s *Subscription) AdvanceCycle(now time.Time) {
	if now.Before(s.CycleAnchor) {
		return
	}

	anchorDay := s.CycleAnchor.Day()
	start := cycleBoundary(now.Year(), now.Month(), anchorDay, s.CycleAnchor.Location())
	if start.After(now) {
		prev := now.AddDate(0, -1, 0)
		start = cycleBoundary(prev.Year(), prev.Month(), anchorDay, s.CycleAnchor.Location())
	}
	if start.Before(s.CycleAnchor) {
		return
	}
	s.CycleAnchor = start
	s.Touch()
}

// cycleBoundary returns the cycle start for a given year/month, clamping
// the anchor day to the month's length.
func cycleBoundary(year int, month time.Month, day int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
