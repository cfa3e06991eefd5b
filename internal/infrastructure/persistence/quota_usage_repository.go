package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// QuotaUsageModel is the GORM model for usage counters. One row per
// (tenant, account, quota type) triple, created lazily on first use.
type QuotaUsageModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_quota_usage_triple"`
	AccountID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_quota_usage_triple"`
	QuotaType    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_quota_usage_triple"`
	CurrentUsage int64     `gorm:"not null;default:0"`
	PeriodStart  time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (QuotaUsageModel) TableName() string {
	return "quota_usage"
}

// ToEntity converts the model to a domain entity
func (m *QuotaUsageModel) ToEntity() *entitlement.QuotaUsage {
	return &entitlement.QuotaUsage{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			TenantID: m.TenantID,
		},
		AccountID:    m.AccountID,
		QuotaType:    entitlement.QuotaType(m.QuotaType),
		CurrentUsage: m.CurrentUsage,
		PeriodStart:  m.PeriodStart,
	}
}

// QuotaUsageModelFromEntity creates a model from a domain entity
func QuotaUsageModelFromEntity(e *entitlement.QuotaUsage) *QuotaUsageModel {
	return &QuotaUsageModel{
		ID:           e.ID,
		TenantID:     e.TenantID,
		AccountID:    e.AccountID,
		QuotaType:    string(e.QuotaType),
		CurrentUsage: e.CurrentUsage,
		PeriodStart:  e.PeriodStart,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// QuotaUsageRepository implements the entitlement.QuotaUsageRepository
// interface. Every mutation is a single-row UPDATE, so concurrent calls
// on the same triple serialize on the row lock and each one observes the
// counter value the previous one left behind.
type QuotaUsageRepository struct {
	db *gorm.DB
}

// NewQuotaUsageRepository creates a new quota usage repository
func NewQuotaUsageRepository(db *gorm.DB) *QuotaUsageRepository {
	return &QuotaUsageRepository{db: db}
}

// Find returns the counter row for the triple
func (r *QuotaUsageRepository) Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) (*entitlement.QuotaUsage, error) {
	var model QuotaUsageModel
	err := r.scoped(ctx, tenantID, accountID, quotaType).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByAccount lists all counter rows for an account
func (r *QuotaUsageRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.QuotaUsage, error) {
	var models []QuotaUsageModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	usages := make([]*entitlement.QuotaUsage, 0, len(models))
	for i := range models {
		usages = append(usages, models[i].ToEntity())
	}
	return usages, nil
}

// EnsureRow inserts the zeroed counter if the triple has no row yet.
// Concurrent first-use callers collapse on the unique index.
func (r *QuotaUsageRepository) EnsureRow(ctx context.Context, usage *entitlement.QuotaUsage) error {
	model := QuotaUsageModelFromEntity(usage)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "account_id"}, {Name: "quota_type"}},
			DoNothing: true,
		}).
		Create(model).Error
}

// RolloverIfStale zeroes the counter and stamps the new window, guarded
// on period_start so concurrent rollovers collapse to one winner
func (r *QuotaUsageRepository) RolloverIfStale(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, newPeriodStart time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&QuotaUsageModel{}).
		Where("tenant_id = ? AND account_id = ? AND quota_type = ? AND period_start < ?",
			tenantID, accountID, string(quotaType), newPeriodStart).
		Updates(map[string]any{
			"current_usage": 0,
			"period_start":  newPeriodStart,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AddUsage unconditionally increases the counter
func (r *QuotaUsageRepository) AddUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount int64) error {
	result := r.scoped(ctx, tenantID, accountID, quotaType).
		Model(&QuotaUsageModel{}).
		UpdateColumn("current_usage", gorm.Expr("current_usage + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SubtractUsage decreases the counter, clamping at zero in the statement
// itself so a concurrent decrement cannot drive it negative
func (r *QuotaUsageRepository) SubtractUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount int64) error {
	result := r.scoped(ctx, tenantID, accountID, quotaType).
		Model(&QuotaUsageModel{}).
		UpdateColumn("current_usage",
			gorm.Expr("CASE WHEN current_usage > ? THEN current_usage - ? ELSE 0 END", amount, amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReserveUsage increments the counter only if the result stays within
// limit. The check and the increment are one UPDATE statement, so two
// racing reservations cannot both read the old value and both pass; the
// database applies them in some order and the second sees the first's
// write. RowsAffected distinguishes a denial from a missing row.
func (r *QuotaUsageRepository) ReserveUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount, limit int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&QuotaUsageModel{}).
		Where("tenant_id = ? AND account_id = ? AND quota_type = ? AND (? = -1 OR current_usage + ? <= ?)",
			tenantID, accountID, string(quotaType), limit, amount, limit).
		UpdateColumn("current_usage", gorm.Expr("current_usage + ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// No row touched: either the reservation was denied or the counter
	// row is missing. Callers ensure the row first, so a missing row is
	// a storage-level error, not a quota denial.
	var count int64
	err := r.scoped(ctx, tenantID, accountID, quotaType).
		Model(&QuotaUsageModel{}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, shared.ErrNotFound
	}
	return false, nil
}

// ResetTypes zeroes the counters for the given types and stamps the new
// period start. Rows that do not exist yet are left to lazy creation.
func (r *QuotaUsageRepository) ResetTypes(ctx context.Context, tenantID, accountID uuid.UUID, types []entitlement.QuotaType, periodStart time.Time) error {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return r.db.WithContext(ctx).
		Model(&QuotaUsageModel{}).
		Where("tenant_id = ? AND account_id = ? AND quota_type IN ?", tenantID, accountID, names).
		Updates(map[string]any{
			"current_usage": 0,
			"period_start":  periodStart,
		}).Error
}

func (r *QuotaUsageRepository) scoped(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND quota_type = ?", tenantID, accountID, string(quotaType))
}
