package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/relaypoint/backend/internal/domain/entitlement"
)

// Mock implementations shared by the service tests

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Save(ctx context.Context, account *entitlement.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entitlement.Account, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Account), args.Error(1)
}

func (m *mockAccountRepository) FindByRef(ctx context.Context, ref entitlement.UserRef) (*entitlement.Account, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Account), args.Error(1)
}

type mockPlanRepository struct {
	mock.Mock
}

func (m *mockPlanRepository) Save(ctx context.Context, plan *entitlement.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *mockPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*entitlement.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Plan), args.Error(1)
}

func (m *mockPlanRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entitlement.Plan, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Plan), args.Error(1)
}

func (m *mockPlanRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]*entitlement.Plan, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entitlement.Plan), args.Error(1)
}

type mockSubscriptionRepository struct {
	mock.Mock
}

func (m *mockSubscriptionRepository) Save(ctx context.Context, sub *entitlement.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*entitlement.Subscription, error) {
	args := m.Called(ctx, tenantID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

type mockQuotaOverrideRepository struct {
	mock.Mock
}

func (m *mockQuotaOverrideRepository) Upsert(ctx context.Context, override *entitlement.QuotaOverride) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

func (m *mockQuotaOverrideRepository) Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) (*entitlement.QuotaOverride, error) {
	args := m.Called(ctx, tenantID, accountID, quotaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.QuotaOverride), args.Error(1)
}

func (m *mockQuotaOverrideRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.QuotaOverride, error) {
	args := m.Called(ctx, tenantID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entitlement.QuotaOverride), args.Error(1)
}

func (m *mockQuotaOverrideRepository) Delete(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) error {
	args := m.Called(ctx, tenantID, accountID, quotaType)
	return args.Error(0)
}

type mockFeatureOverrideRepository struct {
	mock.Mock
}

func (m *mockFeatureOverrideRepository) Upsert(ctx context.Context, override *entitlement.FeatureOverride) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

func (m *mockFeatureOverrideRepository) Find(ctx context.Context, tenantID, accountID uuid.UUID, feature entitlement.FeatureKey) (*entitlement.FeatureOverride, error) {
	args := m.Called(ctx, tenantID, accountID, feature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.FeatureOverride), args.Error(1)
}

func (m *mockFeatureOverrideRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.FeatureOverride, error) {
	args := m.Called(ctx, tenantID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entitlement.FeatureOverride), args.Error(1)
}

func (m *mockFeatureOverrideRepository) Delete(ctx context.Context, tenantID, accountID uuid.UUID, feature entitlement.FeatureKey) error {
	args := m.Called(ctx, tenantID, accountID, feature)
	return args.Error(0)
}

type mockQuotaUsageRepository struct {
	mock.Mock
}

func (m *mockQuotaUsageRepository) Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) (*entitlement.QuotaUsage, error) {
	args := m.Called(ctx, tenantID, accountID, quotaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.QuotaUsage), args.Error(1)
}

func (m *mockQuotaUsageRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.QuotaUsage, error) {
	args := m.Called(ctx, tenantID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entitlement.QuotaUsage), args.Error(1)
}

func (m *mockQuotaUsageRepository) EnsureRow(ctx context.Context, usage *entitlement.QuotaUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *mockQuotaUsageRepository) RolloverIfStale(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, newPeriodStart time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, accountID, quotaType, newPeriodStart)
	return args.Bool(0), args.Error(1)
}

func (m *mockQuotaUsageRepository) AddUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount int64) error {
	args := m.Called(ctx, tenantID, accountID, quotaType, amount)
	return args.Error(0)
}

func (m *mockQuotaUsageRepository) SubtractUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount int64) error {
	args := m.Called(ctx, tenantID, accountID, quotaType, amount)
	return args.Error(0)
}

func (m *mockQuotaUsageRepository) ReserveUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount, limit int64) (bool, error) {
	args := m.Called(ctx, tenantID, accountID, quotaType, amount, limit)
	return args.Bool(0), args.Error(1)
}

func (m *mockQuotaUsageRepository) ResetTypes(ctx context.Context, tenantID, accountID uuid.UUID, types []entitlement.QuotaType, periodStart time.Time) error {
	args := m.Called(ctx, tenantID, accountID, types, periodStart)
	return args.Error(0)
}

type mockAuditLogRepository struct {
	mock.Mock
}

func (m *mockAuditLogRepository) Append(ctx context.Context, entry *entitlement.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAuditLogRepository) FindByTarget(ctx context.Context, tenantID, targetAccountID uuid.UUID, limit, offset int) ([]*entitlement.AuditLogEntry, int64, error) {
	args := m.Called(ctx, tenantID, targetAccountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*entitlement.AuditLogEntry), args.Get(1).(int64), args.Error(2)
}

type mockIdentityProvider struct {
	mock.Mock
}

func (m *mockIdentityProvider) LookupUser(ctx context.Context, ref entitlement.UserRef) (*entitlement.DirectoryUser, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.DirectoryUser), args.Error(1)
}

type mockEntitlementCache struct {
	mock.Mock
}

func (m *mockEntitlementCache) Get(ctx context.Context, tenantID, accountID uuid.UUID) (*entitlement.ResolvedEntitlements, error) {
	args := m.Called(ctx, tenantID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.ResolvedEntitlements), args.Error(1)
}

func (m *mockEntitlementCache) Set(ctx context.Context, tenantID, accountID uuid.UUID, resolved *entitlement.ResolvedEntitlements, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, accountID, resolved, ttl)
	return args.Error(0)
}

func (m *mockEntitlementCache) Invalidate(ctx context.Context, tenantID, accountID uuid.UUID) error {
	args := m.Called(ctx, tenantID, accountID)
	return args.Error(0)
}

func (m *mockEntitlementCache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockEntitlementCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
