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

// SubscriptionModel is the GORM model for subscriptions
type SubscriptionModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_account"`
	AccountID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_account"`
	PlanID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status      string     `gorm:"type:varchar(20);not null;default:'trial'"`
	CycleAnchor time.Time  `gorm:"not null"`
	CancelledAt *time.Time `gorm:""`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToEntity converts the model to a domain entity
func (m *SubscriptionModel) ToEntity() *entitlement.Subscription {
	return &entitlement.Subscription{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			TenantID: m.TenantID,
		},
		AccountID:   m.AccountID,
		PlanID:      m.PlanID,
		Status:      entitlement.SubscriptionStatus(m.Status),
		CycleAnchor: m.CycleAnchor,
		CancelledAt: m.CancelledAt,
	}
}

// SubscriptionModelFromEntity creates a model from a domain entity
func SubscriptionModelFromEntity(e *entitlement.Subscription) *SubscriptionModel {
	return &SubscriptionModel{
		ID:          e.ID,
		TenantID:    e.TenantID,
		AccountID:   e.AccountID,
		PlanID:      e.PlanID,
		Status:      string(e.Status),
		CycleAnchor: e.CycleAnchor,
		CancelledAt: e.CancelledAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// SubscriptionRepository implements the entitlement.SubscriptionRepository interface
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save creates or updates a subscription. One subscription per account,
// enforced by the unique (tenant, account) index.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *entitlement.Subscription) error {
	model := SubscriptionModelFromEntity(sub)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "account_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByAccount retrieves the subscription for an account
func (r *SubscriptionRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*entitlement.Subscription, error) {
	var model SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}
