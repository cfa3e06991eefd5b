package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appent "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
)

// In-memory repository fakes shared by the handler tests. They cover just
// enough of the repository contracts for full request flows without a
// database.

type memAccountRepo struct {
	mu       sync.Mutex
	accounts []*entitlement.Account
}

func (r *memAccountRepo) Save(ctx context.Context, account *entitlement.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == account.ID {
			return shared.ErrAlreadyExists
		}
	}
	r.accounts = append(r.accounts, account)
	return nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entitlement.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.TenantID == tenantID && a.ID == id {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memAccountRepo) FindByRef(ctx context.Context, ref entitlement.UserRef) (*entitlement.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if ref.Matches(a) {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

type memPlanRepo struct {
	plans []*entitlement.Plan
}

func (r *memPlanRepo) Save(ctx context.Context, plan *entitlement.Plan) error {
	r.plans = append(r.plans, plan)
	return nil
}

func (r *memPlanRepo) FindByID(ctx context.Context, id uuid.UUID) (*entitlement.Plan, error) {
	for _, p := range r.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPlanRepo) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entitlement.Plan, error) {
	for _, p := range r.plans {
		if p.Code == code && (p.IsGlobal() || *p.TenantID == tenantID) {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPlanRepo) FindActive(ctx context.Context, tenantID uuid.UUID) ([]*entitlement.Plan, error) {
	return r.plans, nil
}

type memSubRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*entitlement.Subscription
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: make(map[uuid.UUID]*entitlement.Subscription)}
}

func (r *memSubRepo) Save(ctx context.Context, sub *entitlement.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.AccountID] = sub
	return nil
}

func (r *memSubRepo) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*entitlement.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[accountID]
	if !ok || sub.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return sub, nil
}

type overrideKey struct {
	accountID uuid.UUID
	name      string
}

type memQuotaOverrideRepo struct {
	mu        sync.Mutex
	overrides map[overrideKey]*entitlement.QuotaOverride
}

func newMemQuotaOverrideRepo() *memQuotaOverrideRepo {
	return &memQuotaOverrideRepo{overrides: make(map[overrideKey]*entitlement.QuotaOverride)}
}

func (r *memQuotaOverrideRepo) Upsert(ctx context.Context, o *entitlement.QuotaOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[overrideKey{o.AccountID, string(o.QuotaType)}] = o
	return nil
}

func (r *memQuotaOverrideRepo) Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) (*entitlement.QuotaOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.overrides[overrideKey{accountID, string(quotaType)}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memQuotaOverrideRepo) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.QuotaOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.QuotaOverride
	for k, o := range r.overrides {
		if k.accountID == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memQuotaOverrideRepo) Delete(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := overrideKey{accountID, string(quotaType)}
	if _, ok := r.overrides[key]; !ok {
		return shared.ErrNotFound
	}
	delete(r.overrides, key)
	return nil
}

type memFeatureOverrideRepo struct {
	mu        sync.Mutex
	overrides map[overrideKey]*entitlement.FeatureOverride
}

func newMemFeatureOverrideRepo() *memFeatureOverrideRepo {
	return &memFeatureOverrideRepo{overrides: make(map[overrideKey]*entitlement.FeatureOverride)}
}

func (r *memFeatureOverrideRepo) Upsert(ctx context.Context, o *entitlement.FeatureOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[overrideKey{o.AccountID, string(o.Feature)}] = o
	return nil
}

func (r *memFeatureOverrideRepo) Find(ctx context.Context, tenantID, accountID uuid.UUID, feature entitlement.FeatureKey) (*entitlement.FeatureOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.overrides[overrideKey{accountID, string(feature)}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memFeatureOverrideRepo) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.FeatureOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.FeatureOverride
	for k, o := range r.overrides {
		if k.accountID == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memFeatureOverrideRepo) Delete(ctx context.Context, tenantID, accountID uuid.UUID, feature entitlement.FeatureKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := overrideKey{accountID, string(feature)}
	if _, ok := r.overrides[key]; !ok {
		return shared.ErrNotFound
	}
	delete(r.overrides, key)
	return nil
}

type memUsageRepo struct {
	mu   sync.Mutex
	rows map[overrideKey]*entitlement.QuotaUsage
}

func newMemUsageRepo() *memUsageRepo {
	return &memUsageRepo{rows: make(map[overrideKey]*entitlement.QuotaUsage)}
}

func (r *memUsageRepo) Find(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType) (*entitlement.QuotaUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[overrideKey{accountID, string(quotaType)}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return row, nil
}

func (r *memUsageRepo) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]*entitlement.QuotaUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.QuotaUsage
	for k, row := range r.rows {
		if k.accountID == accountID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memUsageRepo) EnsureRow(ctx context.Context, usage *entitlement.QuotaUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := overrideKey{usage.AccountID, string(usage.QuotaType)}
	if _, ok := r.rows[key]; !ok {
		r.rows[key] = usage
	}
	return nil
}

func (r *memUsageRepo) RolloverIfStale(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, newPeriodStart time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[overrideKey{accountID, string(quotaType)}]
	if !ok || !row.PeriodStart.Before(newPeriodStart) {
		return false, nil
	}
	row.CurrentUsage = 0
	row.PeriodStart = newPeriodStart
	return true, nil
}

func (r *memUsageRepo) AddUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[overrideKey{accountID, string(quotaType)}]
	if !ok {
		return shared.ErrNotFound
	}
	row.CurrentUsage += amount
	return nil
}

func (r *memUsageRepo) SubtractUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[overrideKey{accountID, string(quotaType)}]
	if !ok {
		return nil
	}
	row.CurrentUsage -= amount
	if row.CurrentUsage < 0 {
		row.CurrentUsage = 0
	}
	return nil
}

func (r *memUsageRepo) ReserveUsage(ctx context.Context, tenantID, accountID uuid.UUID, quotaType entitlement.QuotaType, amount, limit int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[overrideKey{accountID, string(quotaType)}]
	if !ok {
		return false, shared.ErrNotFound
	}
	if limit != entitlement.UnlimitedLimit && row.CurrentUsage+amount > limit {
		return false, nil
	}
	row.CurrentUsage += amount
	return true, nil
}

func (r *memUsageRepo) ResetTypes(ctx context.Context, tenantID, accountID uuid.UUID, types []entitlement.QuotaType, periodStart time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, qt := range types {
		if row, ok := r.rows[overrideKey{accountID, string(qt)}]; ok {
			row.CurrentUsage = 0
			row.PeriodStart = periodStart
		}
	}
	return nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*entitlement.AuditLogEntry
}

func (r *memAuditRepo) Append(ctx context.Context, entry *entitlement.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) FindByTarget(ctx context.Context, tenantID, targetAccountID uuid.UUID, limit, offset int) ([]*entitlement.AuditLogEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*entitlement.AuditLogEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.TargetAccountID == targetAccountID {
			matched = append(matched, e)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

type stubIdentityProvider struct {
	users map[string]*entitlement.DirectoryUser
}

func (p *stubIdentityProvider) LookupUser(ctx context.Context, ref entitlement.UserRef) (*entitlement.DirectoryUser, error) {
	user, ok := p.users[ref.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

// handlerEnv wires real services over the in-memory fakes for end-to-end
// handler tests.
type handlerEnv struct {
	tenantID uuid.UUID
	actorID  uuid.UUID
	userID   uuid.UUID
	account  *entitlement.Account
	freePlan *entitlement.Plan
	proPlan  *entitlement.Plan

	accounts  *memAccountRepo
	usageRows *memUsageRepo
	auditRows *memAuditRepo
	identity  *stubIdentityProvider

	guard    *appent.TenantGuardService
	admin    *appent.AdminService
	usage    *appent.UsageService
	enforcer *appent.EnforcerService
	gate     *appent.FeatureGateService
	audit    *appent.AuditService
}

func newHandlerEnv() *handlerEnv {
	logger := zap.NewNop()
	tenantID := uuid.New()
	userID := uuid.New()

	freePlan, err := entitlement.NewPlan(entitlement.PlanCodeFree, "Free", decimal.Zero)
	if err != nil {
		panic(err)
	}
	if err := freePlan.SetQuotaLimit(entitlement.QuotaMessagesPerDay, 10); err != nil {
		panic(err)
	}

	proPlan, err := entitlement.NewPlan("pro", "Pro", decimal.NewFromInt(49))
	if err != nil {
		panic(err)
	}
	if err := proPlan.SetQuotaLimit(entitlement.QuotaMessagesPerDay, 1000); err != nil {
		panic(err)
	}
	if err := proPlan.EnableFeature(entitlement.FeatureAPIAccess); err != nil {
		panic(err)
	}

	account, err := entitlement.NewAccount(tenantID, userID, "", "Handler Test User")
	if err != nil {
		panic(err)
	}
	sub, err := entitlement.NewSubscription(tenantID, account.ID, freePlan.ID)
	if err != nil {
		panic(err)
	}

	accounts := &memAccountRepo{accounts: []*entitlement.Account{account}}
	plans := &memPlanRepo{plans: []*entitlement.Plan{freePlan, proPlan}}
	subs := newMemSubRepo()
	subs.subs[account.ID] = sub
	quotaOverrides := newMemQuotaOverrideRepo()
	featureOverrides := newMemFeatureOverrideRepo()
	usageRows := newMemUsageRepo()
	auditRows := &memAuditRepo{}
	identity := &stubIdentityProvider{users: map[string]*entitlement.DirectoryUser{
		userID.String(): {UserID: userID, DisplayName: "Handler Test User"},
	}}

	auditSvc := appent.NewAuditService(auditRows, logger)
	resolver := appent.NewResolverService(plans, subs, quotaOverrides, featureOverrides, nil, time.Second, logger)
	usageSvc := appent.NewUsageService(usageRows, subs, resolver, auditSvc, logger)

	return &handlerEnv{
		tenantID:  tenantID,
		actorID:   uuid.New(),
		userID:    userID,
		account:   account,
		freePlan:  freePlan,
		proPlan:   proPlan,
		accounts:  accounts,
		usageRows: usageRows,
		auditRows: auditRows,
		identity:  identity,
		guard:     appent.NewTenantGuardService(accounts, plans, subs, identity, auditSvc, logger),
		admin:     appent.NewAdminService(plans, subs, quotaOverrides, featureOverrides, resolver, usageSvc, auditSvc, logger),
		usage:     usageSvc,
		enforcer:  appent.NewEnforcerService(resolver, usageSvc, usageRows, logger),
		gate:      appent.NewFeatureGateService(resolver, logger),
		audit:     auditSvc,
	}
}

// authenticated wraps a router with middleware that injects the env's
// tenant and actor, standing in for the JWT layer.
func (e *handlerEnv) authenticated() *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.JWTTenantIDKey, e.tenantID.String())
		c.Set(middleware.JWTActorIDKey, e.actorID.String())
		c.Next()
	})
	return router
}
