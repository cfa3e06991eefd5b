package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

var auditLogger = zap.L().Named("persistence.audit")

// AuditLogModel is the GORM model for the append-only audit trail
type AuditLogModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_target"`
	ActorID         uuid.UUID `gorm:"type:uuid"`
	Action          string    `gorm:"type:varchar(50);not null"`
	TargetAccountID uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_target"`
	DetailsJSON     string    `gorm:"column:details;type:jsonb"`
	SourceIP        string    `gorm:"type:varchar(64)"`
	UserAgent       string    `gorm:"type:varchar(255)"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (AuditLogModel) TableName() string {
	return "audit_log"
}

// ToEntity converts the model to a domain entity. A corrupt details blob
// is logged and surfaced as an empty map rather than failing the read.
func (m *AuditLogModel) ToEntity() *entitlement.AuditLogEntry {
	details := make(map[string]any)
	if m.DetailsJSON != "" {
		if err := json.Unmarshal([]byte(m.DetailsJSON), &details); err != nil {
			auditLogger.Warn("Failed to unmarshal audit details",
				zap.String("entry_id", m.ID.String()),
				zap.Error(err))
		}
	}
	return &entitlement.AuditLogEntry{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			TenantID: m.TenantID,
		},
		ActorID:         m.ActorID,
		Action:          entitlement.AuditAction(m.Action),
		TargetAccountID: m.TargetAccountID,
		Details:         details,
		SourceIP:        m.SourceIP,
		UserAgent:       m.UserAgent,
	}
}

// AuditLogModelFromEntity creates a model from a domain entity
func AuditLogModelFromEntity(e *entitlement.AuditLogEntry) (*AuditLogModel, error) {
	detailsJSON := ""
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		detailsJSON = string(data)
	}
	return &AuditLogModel{
		ID:              e.ID,
		TenantID:        e.TenantID,
		ActorID:         e.ActorID,
		Action:          string(e.Action),
		TargetAccountID: e.TargetAccountID,
		DetailsJSON:     detailsJSON,
		SourceIP:        e.SourceIP,
		UserAgent:       e.UserAgent,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}, nil
}

// AuditLogRepository implements the entitlement.AuditLogRepository
// interface. Rows are insert-only; there is no update or delete path.
type AuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append writes one entry
func (r *AuditLogRepository) Append(ctx context.Context, entry *entitlement.AuditLogEntry) error {
	model, err := AuditLogModelFromEntity(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByTarget lists entries for a target account, newest first
func (r *AuditLogRepository) FindByTarget(ctx context.Context, tenantID, targetAccountID uuid.UUID, limit, offset int) ([]*entitlement.AuditLogEntry, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&AuditLogModel{}).
		Where("tenant_id = ? AND target_account_id = ?", tenantID, targetAccountID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var models []AuditLogModel
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND target_account_id = ?", tenantID, targetAccountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*entitlement.AuditLogEntry, 0, len(models))
	for i := range models {
		entries = append(entries, models[i].ToEntity())
	}
	return entries, total, nil
}
