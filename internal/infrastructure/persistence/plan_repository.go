package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

var planLogger = zap.L().Named("persistence.plan")

// PlanModel is the GORM model for plans. Limits and features are stored
// as JSONB blobs; the enumerated keys live in the domain, not the schema.
type PlanModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID        *uuid.UUID      `gorm:"type:uuid;index;uniqueIndex:idx_plans_tenant_code"`
	Code            string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_plans_tenant_code"`
	Name            string          `gorm:"type:varchar(200);not null"`
	QuotaLimitsJSON string          `gorm:"column:quota_limits;type:jsonb;not null;default:'{}'"`
	FeaturesJSON    string          `gorm:"column:features;type:jsonb;not null;default:'{}'"`
	MonthlyPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	IsActive        bool            `gorm:"not null;default:true"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (PlanModel) TableName() string {
	return "plans"
}

// ToEntity converts the model to a domain entity
func (m *PlanModel) ToEntity() *entitlement.Plan {
	plan := &entitlement.Plan{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:     m.TenantID,
		Code:         m.Code,
		Name:         m.Name,
		QuotaLimits:  make(map[entitlement.QuotaType]int64),
		Features:     make(map[entitlement.FeatureKey]bool),
		MonthlyPrice: m.MonthlyPrice,
		IsActive:     m.IsActive,
	}

	if m.QuotaLimitsJSON != "" {
		var limits map[string]int64
		if err := json.Unmarshal([]byte(m.QuotaLimitsJSON), &limits); err != nil {
			planLogger.Warn("failed to parse quota_limits JSON",
				zap.String("plan_code", m.Code),
				zap.Error(err))
		} else {
			for raw, limit := range limits {
				if q, err := entitlement.ParseQuotaType(raw); err == nil {
					plan.QuotaLimits[q] = limit
				}
			}
		}
	}
	if m.FeaturesJSON != "" {
		var features map[string]bool
		if err := json.Unmarshal([]byte(m.FeaturesJSON), &features); err != nil {
			planLogger.Warn("failed to parse features JSON",
				zap.String("plan_code", m.Code),
				zap.Error(err))
		} else {
			for raw, enabled := range features {
				if f, err := entitlement.ParseFeatureKey(raw); err == nil && enabled {
					plan.Features[f] = true
				}
			}
		}
	}
	return plan
}

// PlanModelFromEntity creates a model from a domain entity
func PlanModelFromEntity(e *entitlement.Plan) *PlanModel {
	limits := make(map[string]int64, len(e.QuotaLimits))
	for q, limit := range e.QuotaLimits {
		limits[string(q)] = limit
	}
	features := make(map[string]bool, len(e.Features))
	for f, enabled := range e.Features {
		features[string(f)] = enabled
	}
	limitsJSON, _ := json.Marshal(limits)
	featuresJSON, _ := json.Marshal(features)

	return &PlanModel{
		ID:              e.ID,
		TenantID:        e.TenantID,
		Code:            e.Code,
		Name:            e.Name,
		QuotaLimitsJSON: string(limitsJSON),
		FeaturesJSON:    string(featuresJSON),
		MonthlyPrice:    e.MonthlyPrice,
		IsActive:        e.IsActive,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// PlanRepository implements the entitlement.PlanRepository interface
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Save creates or updates a plan
func (r *PlanRepository) Save(ctx context.Context, plan *entitlement.Plan) error {
	model := PlanModelFromEntity(plan)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByID retrieves a plan by ID
func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*entitlement.Plan, error) {
	var model PlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByCode retrieves a plan by code, preferring a tenant-owned plan
// over a global one with the same code
func (r *PlanRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entitlement.Plan, error) {
	var models []PlanModel
	err := r.db.WithContext(ctx).
		Where("code = ? AND (tenant_id = ? OR tenant_id IS NULL)", code, tenantID).
		Order("tenant_id NULLS LAST").
		Limit(2).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, shared.ErrNotFound
	}
	return models[0].ToEntity(), nil
}

// FindActive lists the active plans visible to a tenant: its own plans
// plus the global tiers
func (r *PlanRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]*entitlement.Plan, error) {
	var models []PlanModel
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND (tenant_id = ? OR tenant_id IS NULL)", true, tenantID).
		Order("monthly_price ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	plans := make([]*entitlement.Plan, 0, len(models))
	for i := range models {
		plans = append(plans, models[i].ToEntity())
	}
	return plans, nil
}
