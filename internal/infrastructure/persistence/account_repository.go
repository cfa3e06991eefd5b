package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// AccountModel is the GORM model for accounts
type AccountModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	OwnerUserID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_accounts_owner,where:owner_user_id IS NOT NULL"`
	APIToken    *string    `gorm:"type:varchar(128);uniqueIndex:idx_accounts_token,where:api_token IS NOT NULL"`
	DisplayName string     `gorm:"type:varchar(200)"`
	Status      string     `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (AccountModel) TableName() string {
	return "accounts"
}

// ToEntity converts the model to a domain entity
func (m *AccountModel) ToEntity() *entitlement.Account {
	ownerID := uuid.Nil
	if m.OwnerUserID != nil {
		ownerID = *m.OwnerUserID
	}
	token := ""
	if m.APIToken != nil {
		token = *m.APIToken
	}
	return &entitlement.Account{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			TenantID: m.TenantID,
		},
		OwnerUserID: ownerID,
		APIToken:    token,
		DisplayName: m.DisplayName,
		Status:      entitlement.AccountStatus(m.Status),
	}
}

// AccountModelFromEntity creates a model from a domain entity
func AccountModelFromEntity(e *entitlement.Account) *AccountModel {
	m := &AccountModel{
		ID:          e.ID,
		TenantID:    e.TenantID,
		DisplayName: e.DisplayName,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.OwnerUserID != uuid.Nil {
		owner := e.OwnerUserID
		m.OwnerUserID = &owner
	}
	if e.APIToken != "" {
		token := e.APIToken
		m.APIToken = &token
	}
	return m
}

// AccountRepository implements the entitlement.AccountRepository interface
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Save persists a new account. The partial unique indexes on owner and
// token turn concurrent provisioning races into ErrAlreadyExists.
func (r *AccountRepository) Save(ctx context.Context, account *entitlement.Account) error {
	model := AccountModelFromEntity(account)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID retrieves an account by its ID within a tenant
func (r *AccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entitlement.Account, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByRef resolves a user reference across tenants. Tenant comparison
// is the caller's job; returning the row regardless lets the guard log
// cross-tenant lookups instead of silently missing them.
func (r *AccountRepository) FindByRef(ctx context.Context, ref entitlement.UserRef) (*entitlement.Account, error) {
	var model AccountModel
	query := r.db.WithContext(ctx)
	switch ref.Kind {
	case entitlement.RefPlatformUserID:
		query = query.Where("owner_user_id = ?", ref.UserID)
	case entitlement.RefLegacyToken:
		query = query.Where("api_token = ?", ref.Token)
	default:
		return nil, shared.NewDomainError("INVALID_IDENTITY", "Unknown reference kind")
	}
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}
