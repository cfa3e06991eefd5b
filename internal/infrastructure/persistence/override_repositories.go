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

// QuotaOverrideModel is the GORM model for per-account quota overrides.
// The unique triple index makes Upsert a true replace.
type QuotaOverrideModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_quota_overrides_triple"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_quota_overrides_triple"`
	QuotaType string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_quota_overrides_triple"`
	LimitVal  int64     `gorm:"column:limit_value;not null"`
	Reason    string    `gorm:"type:text"`
	CreatedBy uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (QuotaOverrideModel) TableName() string {
	return "quota_overrides"
}

// ToEntity converts the model to a domain entity
func (m *QuotaOverrideModel) ToEntity() *entitlement.QuotaOverride {
	return &entitlement.QuotaOverride{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			TenantID: m.TenantID,
		},
		AccountID: m.AccountID,
		QuotaType: entitlement.QuotaType(m.QuotaType),
		Limit:     m.LimitVal,
		Reason:    m.Reason,
		CreatedBy: m.CreatedBy,
	}
}

// QuotaOverrideModelFromEntity creates a model from a domain entity
func QuotaOverrideModelFromEntity(e *entitlement.QuotaOverride) *QuotaOverrideModel {
	return &QuotaOverrideModel{
		ID:        e.ID,
		TenantID:  e.TenantID,
		AccountID: e.AccountID,
		QuotaType: string(e.QuotaType),
		LimitVal:  e.Limit,
		Reason:    e.Reason,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// QuotaOverrideRepository implements the entitlement.QuotaOverrideRepository interface
type QuotaOverrideRepository struct {
	db *gorm.DB
}

// NewQuotaOverrideRepository creates a new quota override repository
func NewQuotaOverrideRepository(db *gorm.DB) *QuotaOverrideRepository {
	return &QuotaOverrideRepository{db: db}
}

// Upsert creates or replaces the override for the triple
func (r *QuotaOverrideRepository) Upsert(ctx context.Context, override *entitlement.QuotaOverride) error {
	model := QuotaOverrideModelFromEntity(override)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "account_id"}, {Name: "quota_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"limit_value", "reason", "created_by", "updated_at",
			}),
		}).
		Create(model).Error
}

// Find returns the override for the triple
func (r *QuotaOverrideRepository) Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) (*entitlement.QuotaOverride, error) {
	var model QuotaOverrideModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND quota_type = ?", tenantID, accountID, string(quotaType)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByAccount lists all overrides for an account
func (r *QuotaOverrideRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.QuotaOverride, error) {
	var models []QuotaOverrideModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	overrides := make([]*entitlement.QuotaOverride, 0, len(models))
	for i := range models {
		overrides = append(overrides, models[i].ToEntity())
	}
	return overrides, nil
}

// Delete removes the override for the triple; deleting a missing row is
// a no-op
func (r *QuotaOverrideRepository) Delete(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND quota_type = ?", tenantID, accountID, string(quotaType)).
		Delete(&QuotaOverrideModel{}).Error
}

// FeatureOverrideModel is the GORM model for per-account feature overrides
type FeatureOverrideModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_feature_overrides_pair"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_feature_overrides_pair"`
	Feature   string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_feature_overrides_pair"`
	Enabled   bool      `gorm:"not null"`
	CreatedBy uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (FeatureOverrideModel) TableName() string {
	return "feature_overrides"
}

// ToEntity converts the model to a domain entity
func (m *FeatureOverrideModel) ToEntity() *entitlement.FeatureOverride {
	return &entitlement.FeatureOverride{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			TenantID: m.TenantID,
		},
		AccountID: m.AccountID,
		Feature:   entitlement.FeatureKey(m.Feature),
		Enabled:   m.Enabled,
		CreatedBy: m.CreatedBy,
	}
}

// FeatureOverrideModelFromEntity creates a model from a domain entity
func FeatureOverrideModelFromEntity(e *entitlement.FeatureOverride) *FeatureOverrideModel {
	return &FeatureOverrideModel{
		ID:        e.ID,
		TenantID:  e.TenantID,
		AccountID: e.AccountID,
		Feature:   string(e.Feature),
		Enabled:   e.Enabled,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// FeatureOverrideRepository implements the entitlement.FeatureOverrideRepository interface
type FeatureOverrideRepository struct {
	db *gorm.DB
}

// NewFeatureOverrideRepository creates a new feature override repository
func NewFeatureOverrideRepository(db *gorm.DB) *FeatureOverrideRepository {
	return &FeatureOverrideRepository{db: db}
}

// Upsert creates or replaces the override for the pair
func (r *FeatureOverrideRepository) Upsert(ctx context.Context, override *entitlement.FeatureOverride) error {
	model := FeatureOverrideModelFromEntity(override)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "account_id"}, {Name: "feature"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"enabled", "created_by", "updated_at",
			}),
		}).
		Create(model).Error
}

// Find returns the override for the pair
func (r *FeatureOverrideRepository) Find(ctx context.Context, tenantID, accountID uuid.UUID, feature entitlement.FeatureKey) (*entitlement.FeatureOverride, error) {
	var model FeatureOverrideModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND feature = ?", tenantID, accountID, string(feature)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByAccount lists all overrides for an account
func (r *FeatureOverrideRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.FeatureOverride, error) {
	var models []FeatureOverrideModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	overrides := make([]*entitlement.FeatureOverride, 0, len(models))
	for i := range models {
		overrides = append(overrides, models[i].ToEntity())
	}
	return overrides, nil
}

// Delete removes the override for the pair; deleting a missing row is a
// no-op
func (r *FeatureOverrideRepository) Delete(ctx context.Context, tenantID, accountID uuid.UUID, feature entitlement.FeatureKey) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ? AND feature = ?", tenantID, accountID, string(feature)).
		Delete(&FeatureOverrideModel{}).Error
}
