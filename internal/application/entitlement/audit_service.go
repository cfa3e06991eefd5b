package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

const auditWriteTimeout = 5 * time.Second

// AuditService records administrative actions. Writes are best-effort:
// a failed audit write is logged and dropped, it never fails or rolls
// back the action it describes.
type AuditService struct {
	auditRepo entitlement.AuditLogRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo entitlement.AuditLogRepository, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record asynchronously appends one audit entry. Invalid entries are
// logged and dropped; they never surface to the caller.
func (s *AuditService) Record(
	tenantID uuid.UUID,
	actor Actor,
	action entitlement.AuditAction,
	targetAccountID uuid.UUID,
	details map[string]any,
) {
	entry, err := entitlement.NewAuditLogEntry(
		tenantID, actor.ID, action, targetAccountID, details,
		actor.SourceIP, actor.UserAgent,
	)
	if err != nil {
		s.logger.Warn("Dropping invalid audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
		return
	}

	// Detached from the request context so a cancelled request still
	// leaves its trace.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		if err := s.auditRepo.Append(ctx, entry); err != nil {
			s.logger.Warn("Failed to write audit entry",
				zap.String("tenant_id", tenantID.String()),
				zap.String("action", string(action)),
				zap.String("target_account_id", targetAccountID.String()),
				zap.Error(err))
		}
	}()
}

// List returns a page of audit entries for a target account, newest first
func (s *AuditService) List(ctx context.Context, tenantID, targetAccountID uuid.UUID, limit, offset int) (*AuditPageDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.auditRepo.FindByTarget(ctx, tenantID, targetAccountID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list audit entries", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	page := &AuditPageDTO{
		Entries: make([]AuditEntryDTO, 0, len(entries)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, e := range entries {
		page.Entries = append(page.Entries, toAuditEntryDTO(e))
	}
	return page, nil
}
