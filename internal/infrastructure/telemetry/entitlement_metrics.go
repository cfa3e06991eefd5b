package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil indicates a metrics instance was constructed without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// EntitlementMetrics tracks quota enforcement and entitlement resolution
// activity. All recorders are safe to call on a no-op meter, so callers do
// not need to branch on whether metrics are enabled.
type EntitlementMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	reservationTotal    *Counter
	featureCheckTotal   *Counter
	accountsProvisioned *Counter
	cacheLookupTotal    *Counter
	resolveDuration     *Histogram
}

// EntitlementMetricsConfig holds configuration for entitlement metrics.
type EntitlementMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewEntitlementMetrics creates an EntitlementMetrics instance.
func NewEntitlementMetrics(cfg EntitlementMetricsConfig) (*EntitlementMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	em := &EntitlementMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	em.reservationTotal, err = NewCounter(
		cfg.Meter,
		"relaypoint_quota_reservation_total",
		"Total quota reservation attempts, labelled by quota type and decision",
		"{reservations}",
	)
	if err != nil {
		return nil, err
	}

	em.featureCheckTotal, err = NewCounter(
		cfg.Meter,
		"relaypoint_feature_check_total",
		"Total feature gate checks, labelled by feature and decision",
		"{checks}",
	)
	if err != nil {
		return nil, err
	}

	em.accountsProvisioned, err = NewCounter(
		cfg.Meter,
		"relaypoint_account_provisioned_total",
		"Total accounts auto-provisioned from the identity directory",
		"{accounts}",
	)
	if err != nil {
		return nil, err
	}

	em.cacheLookupTotal, err = NewCounter(
		cfg.Meter,
		"relaypoint_entitlement_cache_lookup_total",
		"Total entitlement cache lookups, labelled by decision (hit or miss)",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	em.resolveDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "relaypoint_entitlement_resolve_duration_seconds",
		Description: "Duration of full entitlement resolution (cache miss path)",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return em, nil
}

// RecordReservation records a quota reservation attempt. decision is
// "granted" or "denied".
func (em *EntitlementMetrics) RecordReservation(ctx context.Context, quotaType, decision string) {
	em.reservationTotal.Inc(ctx,
		AttrQuotaType.String(quotaType),
		AttrDecision.String(decision),
	)
}

// RecordFeatureCheck records a feature gate check. decision is "enabled"
// or "disabled".
func (em *EntitlementMetrics) RecordFeatureCheck(ctx context.Context, feature, decision string) {
	em.featureCheckTotal.Inc(ctx,
		AttrFeature.String(feature),
		AttrDecision.String(decision),
	)
}

// RecordAccountProvisioned records an account created from an upstream
// identity lookup.
func (em *EntitlementMetrics) RecordAccountProvisioned(ctx context.Context) {
	em.accountsProvisioned.Inc(ctx)
}

// RecordCacheLookup records an entitlement cache lookup outcome.
func (em *EntitlementMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	decision := "miss"
	if hit {
		decision = "hit"
	}
	em.cacheLookupTotal.Inc(ctx, AttrDecision.String(decision))
}

// RecordResolveDuration records the time spent resolving entitlements
// from plan, subscription, and overrides.
func (em *EntitlementMetrics) RecordResolveDuration(ctx context.Context, d time.Duration) {
	em.resolveDuration.RecordDuration(ctx, d)
}
