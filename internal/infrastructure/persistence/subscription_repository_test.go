package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

func TestSubscriptionRepository(t *testing.T) {
	db := setupEntitlementTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	accountID := uuid.New()

	t.Run("saves and reads back a trial subscription", func(t *testing.T) {
		sub, err := entitlement.NewSubscription(tenantID, accountID, uuid.New())
		require.NoError(t, err)

		require.NoError(t, repo.Save(ctx, sub))

		found, err := repo.FindByAccount(ctx, tenantID, accountID)
		require.NoError(t, err)
		assert.Equal(t, entitlement.SubscriptionTrial, found.Status)
		assert.Equal(t, sub.PlanID, found.PlanID)
		assert.Nil(t, found.CancelledAt)
	})

	t.Run("save replaces the account's subscription in place", func(t *testing.T) {
		newPlanID := uuid.New()
		sub, err := entitlement.NewSubscription(tenantID, accountID, newPlanID)
		require.NoError(t, err)
		require.NoError(t, sub.Activate())

		require.NoError(t, repo.Save(ctx, sub))

		found, err := repo.FindByAccount(ctx, tenantID, accountID)
		require.NoError(t, err)
		assert.Equal(t, newPlanID, found.PlanID)
		assert.Equal(t, entitlement.SubscriptionActive, found.Status)
	})

	t.Run("status transitions persist", func(t *testing.T) {
		found, err := repo.FindByAccount(ctx, tenantID, accountID)
		require.NoError(t, err)

		require.NoError(t, found.Suspend())
		require.NoError(t, repo.Save(ctx, found))

		reloaded, err := repo.FindByAccount(ctx, tenantID, accountID)
		require.NoError(t, err)
		assert.Equal(t, entitlement.SubscriptionSuspended, reloaded.Status)
		assert.False(t, reloaded.IsEntitled())
	})

	t.Run("missing subscription reports not found", func(t *testing.T) {
		_, err := repo.FindByAccount(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lookup is tenant scoped", func(t *testing.T) {
		_, err := repo.FindByAccount(ctx, uuid.New(), accountID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
