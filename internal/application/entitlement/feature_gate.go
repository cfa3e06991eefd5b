package entitlement

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/infrastructure/telemetry"
)

// FeatureGateService answers boolean capability questions. A feature is
// on only if an override says so, or the plan includes it; everything
// else, including any doubt, resolves to off.
type FeatureGateService struct {
	resolver *ResolverService
	logger   *zap.Logger
}

// NewFeatureGateService creates a new FeatureGateService
func NewFeatureGateService(resolver *ResolverService, logger *zap.Logger) *FeatureGateService {
	return &FeatureGateService{
		resolver: resolver,
		logger:   logger,
	}
}

// Check returns the verdict and its provenance for one feature
func (s *FeatureGateService) Check(ctx context.Context, account *entitlement.Account, feature entitlement.FeatureKey) (*FeatureCheckResultDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "feature", "check",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, account.TenantID),
		telemetry.WithAttribute(telemetry.SpanAttrFeature, string(feature)))
	defer span.End()

	verdict, err := s.resolver.IsFeatureEnabled(ctx, account, feature)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrSource, string(verdict.Source))
	telemetry.SetAttribute(span, telemetry.SpanAttrDecision, decisionLabel(verdict.Enabled))
	return &FeatureCheckResultDTO{
		Feature: string(feature),
		Enabled: verdict.Enabled,
		Source:  string(verdict.Source),
	}, nil
}

// Require returns nil if the feature is enabled, FeatureDisabledError
// otherwise. Gated flows call it as their first step.
func (s *FeatureGateService) Require(ctx context.Context, account *entitlement.Account, feature entitlement.FeatureKey) error {
	verdict, err := s.resolver.IsFeatureEnabled(ctx, account, feature)
	if err != nil {
		return err
	}
	if !verdict.Enabled {
		return NewFeatureDisabledError(feature)
	}
	return nil
}

func decisionLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
