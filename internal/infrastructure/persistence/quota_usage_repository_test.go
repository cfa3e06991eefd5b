package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

func setupEntitlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&AccountModel{},
		&PlanModel{},
		&SubscriptionModel{},
		&QuotaOverrideModel{},
		&FeatureOverrideModel{},
		&QuotaUsageModel{},
		&AuditLogModel{},
	)
	require.NoError(t, err)

	return db
}

func newUsageRow(t *testing.T, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) *entitlement.QuotaUsage {
	t.Helper()
	usage, err := entitlement.NewQuotaUsage(tenantID, accountID, quotaType, time.Now(), time.Now().AddDate(0, 0, -3))
	require.NoError(t, err)
	return usage
}

func TestQuotaUsageRepository_EnsureRow(t *testing.T) {
	db := setupEntitlementTestDB(t)
	repo := NewQuotaUsageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	accountID := uuid.New()

	t.Run("creates a zeroed counter on first use", func(t *testing.T) {
		usage := newUsageRow(t, tenantID, accountID, entitlement.QuotaMessagesPerDay)

		err := repo.EnsureRow(ctx, usage)
		require.NoError(t, err)

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay)
		require.NoError(t, err)
		assert.Equal(t, int64(0), found.CurrentUsage)
		assert.Equal(t, entitlement.QuotaMessagesPerDay, found.QuotaType)
	})

	t.Run("second ensure keeps the existing counter", func(t *testing.T) {
		err := repo.AddUsage(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay, 7)
		require.NoError(t, err)

		again := newUsageRow(t, tenantID, accountID, entitlement.QuotaMessagesPerDay)
		err = repo.EnsureRow(ctx, again)
		require.NoError(t, err)

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay)
		require.NoError(t, err)
		assert.Equal(t, int64(7), found.CurrentUsage)
	})

	t.Run("find before first use reports not found", func(t *testing.T) {
		_, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaStorageMB)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestQuotaUsageRepository_Arithmetic(t *testing.T) {
	db := setupEntitlementTestDB(t)
	repo := NewQuotaUsageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	accountID := uuid.New()

	require.NoError(t, repo.EnsureRow(ctx, newUsageRow(t, tenantID, accountID, entitlement.QuotaStorageMB)))

	t.Run("add accumulates", func(t *testing.T) {
		require.NoError(t, repo.AddUsage(ctx, tenantID, accountID, entitlement.QuotaStorageMB, 100))
		require.NoError(t, repo.AddUsage(ctx, tenantID, accountID, entitlement.QuotaStorageMB, 50))

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaStorageMB)
		require.NoError(t, err)
		assert.Equal(t, int64(150), found.CurrentUsage)
	})

	t.Run("subtract decreases", func(t *testing.T) {
		require.NoError(t, repo.SubtractUsage(ctx, tenantID, accountID, entitlement.QuotaStorageMB, 30))

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaStorageMB)
		require.NoError(t, err)
		assert.Equal(t, int64(120), found.CurrentUsage)
	})

	t.Run("subtract clamps at zero", func(t *testing.T) {
		require.NoError(t, repo.SubtractUsage(ctx, tenantID, accountID, entitlement.QuotaStorageMB, 10_000))

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaStorageMB)
		require.NoError(t, err)
		assert.Equal(t, int64(0), found.CurrentUsage)
	})

	t.Run("add on a missing row reports not found", func(t *testing.T) {
		err := repo.AddUsage(ctx, tenantID, uuid.New(), entitlement.QuotaStorageMB, 5)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestQuotaUsageRepository_RolloverIfStale(t *testing.T) {
	db := setupEntitlementTestDB(t)
	repo := NewQuotaUsageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	accountID := uuid.New()

	yesterday := time.Now().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	today := yesterday.AddDate(0, 0, 1)

	usage := newUsageRow(t, tenantID, accountID, entitlement.QuotaMessagesPerDay)
	usage.PeriodStart = yesterday
	require.NoError(t, repo.EnsureRow(ctx, usage))
	require.NoError(t, repo.AddUsage(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay, 42))

	t.Run("stale window resets the counter", func(t *testing.T) {
		reset, err := repo.RolloverIfStale(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay, today)
		require.NoError(t, err)
		assert.True(t, reset)

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay)
		require.NoError(t, err)
		assert.Equal(t, int64(0), found.CurrentUsage)
		assert.True(t, found.PeriodStart.Equal(today))
	})

	t.Run("second rollover for the same window is a no-op", func(t *testing.T) {
		require.NoError(t, repo.AddUsage(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay, 5))

		reset, err := repo.RolloverIfStale(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay, today)
		require.NoError(t, err)
		assert.False(t, reset)

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaMessagesPerDay)
		require.NoError(t, err)
		assert.Equal(t, int64(5), found.CurrentUsage)
	})
}

func TestQuotaUsageRepository_ReserveUsage(t *testing.T) {
	db := setupEntitlementTestDB(t)
	repo := NewQuotaUsageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	accountID := uuid.New()

	require.NoError(t, repo.EnsureRow(ctx, newUsageRow(t, tenantID, accountID, entitlement.QuotaBotCallsPerDay)))

	t.Run("grants up to the limit", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			granted, err := repo.ReserveUsage(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay, 1, 10)
			require.NoError(t, err)
			assert.True(t, granted)
		}

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay)
		require.NoError(t, err)
		assert.Equal(t, int64(10), found.CurrentUsage)
	})

	t.Run("denies past the limit without touching the counter", func(t *testing.T) {
		granted, err := repo.ReserveUsage(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay, 1, 10)
		require.NoError(t, err)
		assert.False(t, granted)

		found, err := repo.Find(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay)
		require.NoError(t, err)
		assert.Equal(t, int64(10), found.CurrentUsage)
	})

	t.Run("denies a batch that would overshoot even with headroom", func(t *testing.T) {
		require.NoError(t, repo.SubtractUsage(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay, 3))

		granted, err := repo.ReserveUsage(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay, 4, 10)
		require.NoError(t, err)
		assert.False(t, granted)

		granted, err = repo.ReserveUsage(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay, 3, 10)
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("unlimited always grants", func(t *testing.T) {
		granted, err := repo.ReserveUsage(ctx, tenantID, accountID, entitlement.QuotaBotCallsPerDay, 1_000_000, entitlement.UnlimitedLimit)
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("missing row surfaces as not found, not denial", func(t *testing.T) {
		_, err := repo.ReserveUsage(ctx, tenantID, uuid.New(), entitlement.QuotaBotCallsPerDay, 1, 10)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestQuotaUsageRepository_ResetTypes(t *testing.T) {
	db := setupEntitlementTestDB(t)
	repo := NewQuotaUsageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	accountID := uuid.New()

	for _, qt := range []entitlement.QuotaType{
		entitlement.QuotaMessagesPerMonth,
		entitlement.QuotaBotCallsPerMonth,
		entitlement.QuotaStorageMB,
	} {
		require.NoError(t, repo.EnsureRow(ctx, newUsageRow(t, tenantID, accountID, qt)))
		require.NoError(t, repo.AddUsage(ctx, tenantID, accountID, qt, 11))
	}

	cycleStart := time.Now().Truncate(24 * time.Hour)
	err := repo.ResetTypes(ctx, tenantID, accountID, entitlement.CycleQuotaTypes(), cycleStart)
	require.NoError(t, err)

	t.Run("cycle counters are zeroed onto the new window", func(t *testing.T) {
		for _, qt := range entitlement.CycleQuotaTypes() {
			found, err := repo.Find(ctx, tenantID, accountID, qt)
			if err != nil {
				// types never used have no row, which is fine
				assert.ErrorIs(t, err, shared.ErrNotFound)
				continue
			}
			assert.Equal(t, int64(0), found.CurrentUsage, string(qt))
			assert.True(t, found.PeriodStart.Equal(cycleStart), string(qt))
		}
	})

	t.Run("monthly and lifetime counters are untouched", func(t *testing.T) {
		for _, qt := range []entitlement.QuotaType{
			entitlement.QuotaMessagesPerMonth,
			entitlement.QuotaStorageMB,
		} {
			found, err := repo.Find(ctx, tenantID, accountID, qt)
			require.NoError(t, err)
			assert.Equal(t, int64(11), found.CurrentUsage, string(qt))
		}
	})
}

// TestQuotaUsageRepository_ReserveUsage_SingleStatement pins the shape of
// a reservation: one conditional UPDATE whose RowsAffected decides the
// outcome, with no read-then-write window.
func TestQuotaUsageRepository_ReserveUsage_SingleStatement(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	updatePattern := `UPDATE "quota_usage" SET "current_usage"=current_usage \+ \$1 WHERE tenant_id = \$2 AND account_id = \$3 AND quota_type = \$4 AND \(\$5 = -1 OR current_usage \+ \$6 <= \$7\)`

	t.Run("grant is a single UPDATE touching one row", func(t *testing.T) {
		db, mock, sqlDB := mockDatabase(t)
		defer sqlDB.Close()

		mock.ExpectExec(updatePattern).
			WithArgs(int64(5), tenantID, accountID, "max_messages_per_day", int64(100), int64(5), int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewQuotaUsageRepository(db.DB)
		granted, err := repo.ReserveUsage(context.Background(), tenantID, accountID, entitlement.QuotaMessagesPerDay, 5, 100)
		require.NoError(t, err)
		assert.True(t, granted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denial is RowsAffected zero with the row still present", func(t *testing.T) {
		db, mock, sqlDB := mockDatabase(t)
		defer sqlDB.Close()

		mock.ExpectExec(updatePattern).
			WithArgs(int64(5), tenantID, accountID, "max_messages_per_day", int64(100), int64(5), int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "quota_usage" WHERE tenant_id = \$1 AND account_id = \$2 AND quota_type = \$3`).
			WithArgs(tenantID, accountID, "max_messages_per_day").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		repo := NewQuotaUsageRepository(db.DB)
		granted, err := repo.ReserveUsage(context.Background(), tenantID, accountID, entitlement.QuotaMessagesPerDay, 5, 100)
		require.NoError(t, err)
		assert.False(t, granted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
