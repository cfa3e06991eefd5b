package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// TenantGuardService resolves raw user identifiers to canonical accounts
// and enforces tenant isolation. Every read and write path passes through
// it before touching any entitlement data.
//
// An identifier that resolves to an account under a different tenant is
// reported exactly like a missing one, so a caller cannot discover which
// identifiers exist on other tenants. The mismatch itself is logged as a
// security event.
type TenantGuardService struct {
	accountRepo entitlement.AccountRepository
	planRepo    entitlement.PlanRepository
	subRepo     entitlement.SubscriptionRepository
	identity    entitlement.IdentityProvider
	audit       *AuditService
	logger      *zap.Logger
}

// NewTenantGuardService creates a new TenantGuardService
func NewTenantGuardService(
	accountRepo entitlement.AccountRepository,
	planRepo entitlement.PlanRepository,
	subRepo entitlement.SubscriptionRepository,
	identity entitlement.IdentityProvider,
	audit *AuditService,
	logger *zap.Logger,
) *TenantGuardService {
	return &TenantGuardService{
		accountRepo: accountRepo,
		planRepo:    planRepo,
		subRepo:     subRepo,
		identity:    identity,
		audit:       audit,
		logger:      logger,
	}
}

// ResolveAccount resolves a raw identifier within a tenant. Identifiers
// unknown locally are looked up in the upstream identity service and, if
// the identity exists, provisioned as a free-plan trial account under the
// requesting tenant.
func (s *TenantGuardService) ResolveAccount(ctx context.Context, tenantID uuid.UUID, rawRef string) (*entitlement.Account, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	ref, err := entitlement.ParseUserRef(rawRef)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.FindByRef(ctx, ref)
	if err == nil {
		if account.TenantID != tenantID {
			s.logger.Warn("Cross-tenant account access attempt",
				zap.String("tenant_id", tenantID.String()),
				zap.String("owning_tenant_id", account.TenantID.String()),
				zap.String("ref_kind", string(ref.Kind)))
			return nil, NewAccessDeniedError()
		}
		if !account.IsActive() {
			s.logger.Info("Rejected request for disabled account",
				zap.String("tenant_id", tenantID.String()),
				zap.String("account_id", account.ID.String()))
			return nil, NewAccessDeniedError()
		}
		return account, nil
	}

	if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Account lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	return s.provision(ctx, tenantID, ref)
}

// provision creates a local account for an identity that exists upstream
// but has no tenant-scoped record yet.
func (s *TenantGuardService) provision(ctx context.Context, tenantID uuid.UUID, ref entitlement.UserRef) (*entitlement.Account, error) {
	dirUser, err := s.identity.LookupUser(ctx, ref)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, NewAccessDeniedError()
		}
		s.logger.Error("Upstream identity lookup failed", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	token := ""
	if ref.Kind == entitlement.RefLegacyToken {
		token = ref.Token
	}
	account, err := entitlement.NewAccount(tenantID, dirUser.UserID, token, dirUser.DisplayName)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Save(ctx, account); err != nil {
		// concurrent provisioning of the same identity collapses here
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.lookupExisting(ctx, tenantID, ref)
		}
		s.logger.Error("Failed to provision account", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	freePlan, err := s.planRepo.FindByCode(ctx, tenantID, entitlement.PlanCodeFree)
	if err != nil {
		s.logger.Error("Free plan missing during provisioning", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}
	sub, err := entitlement.NewSubscription(tenantID, account.ID, freePlan.ID)
	if err != nil {
		return nil, err
	}
	if err := s.subRepo.Save(ctx, sub); err != nil {
		s.logger.Error("Failed to create subscription during provisioning", zap.Error(err))
		return nil, shared.ErrStorageUnavailable
	}

	s.logger.Info("Auto-provisioned account",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("plan_code", freePlan.Code))

	s.audit.Record(tenantID, Actor{}, entitlement.AuditAccountProvisioned, account.ID, map[string]any{
		"ref_kind":  string(ref.Kind),
		"plan_code": freePlan.Code,
	})

	return account, nil
}

func (s *TenantGuardService) lookupExisting(ctx context.Context, tenantID uuid.UUID, ref entitlement.UserRef) (*entitlement.Account, error) {
	account, err := s.accountRepo.FindByRef(ctx, ref)
	if err != nil {
		return nil, shared.ErrStorageUnavailable
	}
	if account.TenantID != tenantID {
		return nil, NewAccessDeniedError()
	}
	return account, nil
}
