package entitlement

import (
	"time"

	"github.com/relaypoint/backend/internal/domain/shared"
)

// QuotaType identifies one metered resource. The set is closed: requests
// naming a type outside it are a validation error, never a silent default.
type QuotaType string

const (
	QuotaMessagesPerDay    QuotaType = "max_messages_per_day"
	QuotaMessagesPerMonth  QuotaType = "max_messages_per_month"
	QuotaStorageMB         QuotaType = "max_storage_mb"
	QuotaBotCallsPerDay    QuotaType = "max_bot_calls_per_day"
	QuotaBotCallsPerMonth  QuotaType = "max_bot_calls_per_month"
	QuotaBotMsgsPerDay     QuotaType = "max_bot_messages_per_day"
	QuotaBotMsgsPerMonth   QuotaType = "max_bot_messages_per_month"
	QuotaBotTokensPerDay   QuotaType = "max_bot_tokens_per_day"
	QuotaBotTokensPerMonth QuotaType = "max_bot_tokens_per_month"
)

// PeriodKind determines when a usage counter for a quota type resets.
type PeriodKind string

const (
	// PeriodDaily counters reset lazily at platform-local midnight.
	PeriodDaily PeriodKind = "DAILY"

	// PeriodMonthly counters reset lazily at the start of the calendar month.
	PeriodMonthly PeriodKind = "MONTHLY"

	// PeriodCycle counters reset only on an explicit cycle reset, which is
	// driven by subscription renewal. They never roll over lazily.
	PeriodCycle PeriodKind = "CYCLE"

	// PeriodLifetime counters never reset; they are gauges that grow on
	// consumption and shrink on release (storage).
	PeriodLifetime PeriodKind = "LIFETIME"
)

// String returns the string representation of PeriodKind
func (p PeriodKind) String() string {
	return string(p)
}

// quotaTypeSpec binds a quota type to its reset semantics and the
// conservative system fallback used when neither an override nor a plan
// default applies.
type quotaTypeSpec struct {
	period   PeriodKind
	fallback int64
	display  string
}

var quotaTypeSpecs = map[QuotaType]quotaTypeSpec{
	QuotaMessagesPerDay:    {PeriodDaily, 100, "Messages per day"},
	QuotaMessagesPerMonth:  {PeriodMonthly, 1000, "Messages per month"},
	QuotaStorageMB:         {PeriodLifetime, 100, "Storage (MB)"},
	QuotaBotCallsPerDay:    {PeriodDaily, 50, "Bot calls per day"},
	QuotaBotCallsPerMonth:  {PeriodCycle, 500, "Bot calls per cycle"},
	QuotaBotMsgsPerDay:     {PeriodDaily, 50, "Bot messages per day"},
	QuotaBotMsgsPerMonth:   {PeriodCycle, 500, "Bot messages per cycle"},
	QuotaBotTokensPerDay:   {PeriodDaily, 10000, "Bot tokens per day"},
	QuotaBotTokensPerMonth: {PeriodCycle, 100000, "Bot tokens per cycle"},
}

// String returns the string representation of QuotaType
func (q QuotaType) String() string {
	return string(q)
}

// IsValid returns true if the quota type belongs to the enumerated set
func (q QuotaType) IsValid() bool {
	_, ok := quotaTypeSpecs[q]
	return ok
}

// Period returns the reset semantics for the quota type
func (q QuotaType) Period() PeriodKind {
	return quotaTypeSpecs[q].period
}

// FallbackLimit returns the system-wide conservative default limit
func (q QuotaType) FallbackLimit() int64 {
	return quotaTypeSpecs[q].fallback
}

// DisplayName returns a human-readable name for the quota type
func (q QuotaType) DisplayName() string {
	if s, ok := quotaTypeSpecs[q]; ok {
		return s.display
	}
	return string(q)
}

// IsCycleBound returns true if the counter resets with the billing cycle
func (q QuotaType) IsCycleBound() bool {
	return q.Period() == PeriodCycle
}

// IsReversible returns true if previously counted usage can be returned
// (storage: deleting an uploaded file frees its bytes). Only reversible
// types accept decrements.
func (q QuotaType) IsReversible() bool {
	return q.Period() == PeriodLifetime
}

// AllQuotaTypes returns every enumerated quota type in a stable order
func AllQuotaTypes() []QuotaType {
	return []QuotaType{
		QuotaMessagesPerDay,
		QuotaMessagesPerMonth,
		QuotaStorageMB,
		QuotaBotCallsPerDay,
		QuotaBotCallsPerMonth,
		QuotaBotMsgsPerDay,
		QuotaBotMsgsPerMonth,
		QuotaBotTokensPerDay,
		QuotaBotTokensPerMonth,
	}
}

// CycleQuotaTypes returns the quota types reset by a cycle counter reset
func CycleQuotaTypes() []QuotaType {
	var out []QuotaType
	for _, q := range AllQuotaTypes() {
		if q.IsCycleBound() {
			out = append(out, q)
		}
	}
	return out
}

// ParseQuotaType validates a raw string against the enumerated set
func ParseQuotaType(raw string) (QuotaType, error) {
	q := QuotaType(raw)
	if !q.IsValid() {
		return "", shared.NewDomainError("INVALID_QUOTA_TYPE", "Unknown quota type: "+raw)
	}
	return q, nil
}

// PeriodStartFor computes the start of the current counting window for a
// quota type. Cycle types are anchored to cycleStart (the subscription's
// cycle anchor, which moves only on an explicit cycle reset); lifetime
// types have a fixed zero window.
func PeriodStartFor(q QuotaType, now time.Time, cycleStart time.Time) time.Time {
	switch q.Period() {
	case PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case PeriodCycle:
		return cycleStart
	default:
		return time.Time{}
	}
}
