package entitlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	t.Run("valid plan", func(t *testing.T) {
		p, err := NewPlan("Starter", "Starter tier", decimal.NewFromInt(9))
		require.NoError(t, err)
		assert.Equal(t, "starter", p.Code)
		assert.True(t, p.IsActive)
		assert.True(t, p.IsGlobal())
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := NewPlan("", "x", decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := NewPlan("x", "x", decimal.NewFromInt(-1))
		assert.Error(t, err)
	})

	t.Run("tenant plan is not global", func(t *testing.T) {
		tenantID := uuid.New()
		p, err := NewTenantPlan(tenantID, "custom", "Custom", decimal.Zero)
		require.NoError(t, err)
		assert.False(t, p.IsGlobal())
		assert.Equal(t, tenantID, *p.TenantID)
	})
}

func TestPlanLimitsAndFeatures(t *testing.T) {
	p, err := NewPlan("pro", "Pro", decimal.NewFromInt(29))
	require.NoError(t, err)

	t.Run("set and read a limit", func(t *testing.T) {
		require.NoError(t, p.SetQuotaLimit(QuotaMessagesPerDay, 1000))
		limit, ok := p.QuotaLimit(QuotaMessagesPerDay)
		assert.True(t, ok)
		assert.Equal(t, int64(1000), limit)
	})

	t.Run("undeclared limit reports absence", func(t *testing.T) {
		_, ok := p.QuotaLimit(QuotaBotTokensPerDay)
		assert.False(t, ok)
	})

	t.Run("unlimited is a legal plan value", func(t *testing.T) {
		require.NoError(t, p.SetQuotaLimit(QuotaMessagesPerMonth, UnlimitedLimit))
		limit, ok := p.QuotaLimit(QuotaMessagesPerMonth)
		assert.True(t, ok)
		assert.Equal(t, UnlimitedLimit, limit)
	})

	t.Run("limit below -1 rejected", func(t *testing.T) {
		assert.Error(t, p.SetQuotaLimit(QuotaMessagesPerDay, -2))
	})

	t.Run("unknown quota type rejected", func(t *testing.T) {
		assert.Error(t, p.SetQuotaLimit(QuotaType("bogus"), 10))
	})

	t.Run("feature membership", func(t *testing.T) {
		require.NoError(t, p.EnableFeature(FeatureAPIAccess))
		assert.True(t, p.HasFeature(FeatureAPIAccess))
		assert.False(t, p.HasFeature(FeaturePrioritySupport))

		p.DisableFeature(FeatureAPIAccess)
		assert.False(t, p.HasFeature(FeatureAPIAccess))
	})

	t.Run("unknown feature rejected", func(t *testing.T) {
		assert.Error(t, p.EnableFeature(FeatureKey("warp_drive")))
	})
}

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()
	require.Len(t, plans, 3)

	byCode := make(map[string]*Plan, len(plans))
	for _, p := range plans {
		byCode[p.Code] = p
		assert.True(t, p.IsGlobal())
		assert.True(t, p.IsActive)
		// every default tier declares every quota type
		for _, q := range AllQuotaTypes() {
			_, ok := p.QuotaLimit(q)
			assert.True(t, ok, "%s missing %s", p.Code, q)
		}
	}

	free := byCode[PlanCodeFree]
	require.NotNil(t, free)
	assert.True(t, free.MonthlyPrice.IsZero())
	// free tier limits equal the system fallbacks
	for _, q := range AllQuotaTypes() {
		limit, _ := free.QuotaLimit(q)
		assert.Equal(t, q.FallbackLimit(), limit, "free limit for %s", q)
	}

	business := byCode[PlanCodeBusiness]
	require.NotNil(t, business)
	assert.Len(t, business.FeatureKeys(), len(AllFeatureKeys()))
}
