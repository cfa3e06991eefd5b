package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
)

type enforcerFixture struct {
	*resolverFixture
	usageRepo *mockQuotaUsageRepository
	auditRepo *mockAuditLogRepository
}

func newEnforcerFixture(t *testing.T) *enforcerFixture {
	return &enforcerFixture{
		resolverFixture: newResolverFixture(t),
		usageRepo:       new(mockQuotaUsageRepository),
		auditRepo:       new(mockAuditLogRepository),
	}
}

func (f *enforcerFixture) enforcer() *EnforcerService {
	resolver := f.resolverFixture.service()
	auditSvc := NewAuditService(f.auditRepo, zap.NewNop())
	usageSvc := NewUsageService(f.usageRepo, f.subRepo, resolver, auditSvc, zap.NewNop())
	return NewEnforcerService(resolver, usageSvc, f.usageRepo, zap.NewNop())
}

func (f *enforcerFixture) expectCounterPrep() {
	f.usageRepo.On("EnsureRow", mock.Anything, mock.AnythingOfType("*entitlement.QuotaUsage")).Return(nil)
	f.usageRepo.On("RolloverIfStale", mock.Anything, f.account.TenantID, f.account.ID,
		mock.AnythingOfType("entitlement.QuotaType"), mock.AnythingOfType("time.Time")).Return(false, nil)
}

func TestEnforcerReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("grants within limit", func(t *testing.T) {
		f := newEnforcerFixture(t)
		f.expectStoreReads(nil, nil)
		f.expectCounterPrep()
		f.usageRepo.On("ReserveUsage", mock.Anything, f.account.TenantID, f.account.ID,
			entitlement.QuotaMessagesPerDay, int64(1), int64(1000)).Return(true, nil)

		row, _ := entitlement.NewQuotaUsage(f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay, time.Now(), time.Now())
		require.NoError(t, row.Add(5))
		f.usageRepo.On("Find", mock.Anything, f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay).Return(row, nil)

		result, err := f.enforcer().Reserve(ctx, f.account, entitlement.QuotaMessagesPerDay, 1)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(1000), result.Limit)
	})

	t.Run("denies past limit with 429 error", func(t *testing.T) {
		f := newEnforcerFixture(t)
		f.expectStoreReads(nil, nil)
		f.expectCounterPrep()
		f.usageRepo.On("ReserveUsage", mock.Anything, f.account.TenantID, f.account.ID,
			entitlement.QuotaMessagesPerDay, int64(1), int64(1000)).Return(false, nil)

		row, _ := entitlement.NewQuotaUsage(f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay, time.Now(), time.Now())
		require.NoError(t, row.Add(1000))
		f.usageRepo.On("Find", mock.Anything, f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay).Return(row, nil)

		_, err := f.enforcer().Reserve(ctx, f.account, entitlement.QuotaMessagesPerDay, 1)
		require.Error(t, err)
		var exceeded *QuotaExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, 429, exceeded.HTTPStatusCode())
		assert.Equal(t, int64(1000), exceeded.Limit)
	})

	t.Run("denial with failed readback reports the limit, not a sentinel", func(t *testing.T) {
		f := newEnforcerFixture(t)
		f.expectStoreReads(nil, nil)
		f.expectCounterPrep()
		f.usageRepo.On("ReserveUsage", mock.Anything, f.account.TenantID, f.account.ID,
			entitlement.QuotaMessagesPerDay, int64(1), int64(1000)).Return(false, nil)
		f.usageRepo.On("Find", mock.Anything, f.account.TenantID, f.account.ID,
			entitlement.QuotaMessagesPerDay).Return(nil, errors.New("connection reset"))

		_, err := f.enforcer().Reserve(ctx, f.account, entitlement.QuotaMessagesPerDay, 1)
		var exceeded *QuotaExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, int64(1000), exceeded.CurrentUsage)
		assert.GreaterOrEqual(t, exceeded.CurrentUsage, int64(0))
	})

	t.Run("storage failure denies, never grants", func(t *testing.T) {
		f := newEnforcerFixture(t)
		f.expectStoreReads(nil, nil)
		f.expectCounterPrep()
		f.usageRepo.On("ReserveUsage", mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection reset"))

		_, err := f.enforcer().Reserve(ctx, f.account, entitlement.QuotaMessagesPerDay, 1)
		assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
	})
}

func TestEnforcerCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("advisory check reports headroom", func(t *testing.T) {
		f := newEnforcerFixture(t)
		f.expectStoreReads(nil, nil)
		row, _ := entitlement.NewQuotaUsage(f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay, time.Now(), time.Now())
		require.NoError(t, row.Add(990))
		f.usageRepo.On("Find", mock.Anything, f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay).Return(row, nil)

		result, err := f.enforcer().Check(ctx, f.account, entitlement.QuotaMessagesPerDay, 10)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(10), result.Remaining)

		result, err = f.enforcer().Check(ctx, f.account, entitlement.QuotaMessagesPerDay, 11)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})

	t.Run("missing counter reads as zero", func(t *testing.T) {
		f := newEnforcerFixture(t)
		f.expectStoreReads(nil, nil)
		f.usageRepo.On("Find", mock.Anything, f.account.TenantID, f.account.ID, entitlement.QuotaMessagesPerDay).
			Return(nil, shared.ErrNotFound)

		result, err := f.enforcer().Check(ctx, f.account, entitlement.QuotaMessagesPerDay, 1)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(0), result.CurrentUsage)
	})

	t.Run("unlimited always allows", func(t *testing.T) {
		f := newEnforcerFixture(t)
		require.NoError(t, f.plan.SetQuotaLimit(entitlement.QuotaMessagesPerDay, entitlement.UnlimitedLimit))
		f.expectStoreReads(nil, nil)
		f.usageRepo.On("Find", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.ErrNotFound)

		result, err := f.enforcer().Check(ctx, f.account, entitlement.QuotaMessagesPerDay, 1_000_000)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, entitlement.UnlimitedLimit, result.Remaining)
	})
}

// memUsageStore is an in-memory QuotaUsageRepository with the same
// atomicity contract the SQL implementation provides: reserve is one
// indivisible compare-and-add per counter.
type memUsageStore struct {
	mu       sync.Mutex
	counters map[entitlement.QuotaType]*entitlement.QuotaUsage
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{counters: make(map[entitlement.QuotaType]*entitlement.QuotaUsage)}
}

func (s *memUsageStore) Find(_ context.Context, _, _ uuid.UUID, q entitlement.QuotaType) (*entitlement.QuotaUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.counters[q]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (s *memUsageStore) FindByAccount(_ context.Context, _, _ uuid.UUID) ([]*entitlement.QuotaUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entitlement.QuotaUsage, 0, len(s.counters))
	for _, row := range s.counters {
		copied := *row
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memUsageStore) EnsureRow(_ context.Context, usage *entitlement.QuotaUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[usage.QuotaType]; !ok {
		copied := *usage
		s.counters[usage.QuotaType] = &copied
	}
	return nil
}

func (s *memUsageStore) RolloverIfStale(_ context.Context, _, _ uuid.UUID, q entitlement.QuotaType, newStart time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.counters[q]
	if !ok || !row.PeriodStart.Before(newStart) {
		return false, nil
	}
	row.CurrentUsage = 0
	row.PeriodStart = newStart
	return true, nil
}

func (s *memUsageStore) AddUsage(_ context.Context, _, _ uuid.UUID, q entitlement.QuotaType, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.counters[q]; ok {
		row.CurrentUsage += amount
	}
	return nil
}

func (s *memUsageStore) SubtractUsage(_ context.Context, _, _ uuid.UUID, q entitlement.QuotaType, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.counters[q]; ok {
		row.CurrentUsage -= amount
		if row.CurrentUsage < 0 {
			row.CurrentUsage = 0
		}
	}
	return nil
}

func (s *memUsageStore) ReserveUsage(_ context.Context, _, _ uuid.UUID, q entitlement.QuotaType, amount, limit int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.counters[q]
	if !ok {
		return false, shared.ErrNotFound
	}
	if limit != entitlement.UnlimitedLimit && row.CurrentUsage+amount > limit {
		return false, nil
	}
	row.CurrentUsage += amount
	return true, nil
}

func (s *memUsageStore) ResetTypes(_ context.Context, _, _ uuid.UUID, types []entitlement.QuotaType, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range types {
		if row, ok := s.counters[q]; ok {
			row.CurrentUsage = 0
			row.PeriodStart = periodStart
		}
	}
	return nil
}

func (s *memUsageStore) total(q entitlement.QuotaType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.counters[q]; ok {
		return row.CurrentUsage
	}
	return 0
}

// splitRaceStore drives the check-then-write race deterministically: no
// write proceeds until every expected checker has completed its read, so
// all checkers observe the counter as it was before any write landed.
type splitRaceStore struct {
	*memUsageStore
	reads sync.WaitGroup
}

func (s *splitRaceStore) Find(ctx context.Context, tenantID, accountID uuid.UUID, q entitlement.QuotaType) (*entitlement.QuotaUsage, error) {
	row, err := s.memUsageStore.Find(ctx, tenantID, accountID, q)
	s.reads.Done()
	return row, err
}

func (s *splitRaceStore) AddUsage(ctx context.Context, tenantID, accountID uuid.UUID, q entitlement.QuotaType, amount int64) error {
	s.reads.Wait()
	return s.memUsageStore.AddUsage(ctx, tenantID, accountID, q, amount)
}

// TestReserveUnderConcurrency demonstrates why admission goes through an
// atomic reserve. A naive read-check-write with the same store and the
// same limit oversubscribes under contention; reserve never does.
func TestReserveUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	const limit = int64(100)
	const workers = 50
	const attemptsPerWorker = 10

	buildFixture := func(t *testing.T, store entitlement.QuotaUsageRepository) (*EnforcerService, *entitlement.Account) {
		tenantID := uuid.New()
		account, err := entitlement.NewAccount(tenantID, uuid.New(), "", "Load test")
		require.NoError(t, err)

		plan, err := entitlement.NewPlan("pro", "Pro", decimal.NewFromInt(29))
		require.NoError(t, err)
		require.NoError(t, plan.SetQuotaLimit(entitlement.QuotaMessagesPerDay, limit))
		sub, err := entitlement.NewSubscription(tenantID, account.ID, plan.ID)
		require.NoError(t, err)

		planRepo := new(mockPlanRepository)
		subRepo := new(mockSubscriptionRepository)
		quotaOv := new(mockQuotaOverrideRepository)
		featOv := new(mockFeatureOverrideRepository)
		subRepo.On("FindByAccount", mock.Anything, tenantID, account.ID).Return(sub, nil)
		planRepo.On("FindByID", mock.Anything, plan.ID).Return(plan, nil)
		quotaOv.On("FindByAccount", mock.Anything, tenantID, account.ID).Return(nil, nil)
		featOv.On("FindByAccount", mock.Anything, tenantID, account.ID).Return(nil, nil)

		resolver := NewResolverService(planRepo, subRepo, quotaOv, featOv, nil, time.Minute, zap.NewNop())
		auditSvc := NewAuditService(new(mockAuditLogRepository), zap.NewNop())
		usageSvc := NewUsageService(store, subRepo, resolver, auditSvc, zap.NewNop())
		return NewEnforcerService(resolver, usageSvc, store, zap.NewNop()), account
	}

	t.Run("naive check-then-add exceeds the limit", func(t *testing.T) {
		const checkers = 10
		store := newMemUsageStore()
		raceStore := &splitRaceStore{memUsageStore: store}
		raceStore.reads.Add(checkers)
		enforcer, account := buildFixture(t, raceStore)

		// seed the counter one below the limit, bypassing the gated reads
		row, err := entitlement.NewQuotaUsage(account.TenantID, account.ID,
			entitlement.QuotaMessagesPerDay, time.Now(), time.Now())
		require.NoError(t, err)
		require.NoError(t, store.EnsureRow(ctx, row))
		require.NoError(t, store.AddUsage(ctx, account.TenantID, account.ID, entitlement.QuotaMessagesPerDay, limit-1))

		var wg sync.WaitGroup
		for i := 0; i < checkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := enforcer.Check(ctx, account, entitlement.QuotaMessagesPerDay, 1)
				if err != nil || !result.Allowed {
					return
				}
				// the racy write a caller would do after a green check
				_ = raceStore.AddUsage(ctx, account.TenantID, account.ID, entitlement.QuotaMessagesPerDay, 1)
			}()
		}
		wg.Wait()

		// every checker read the counter before any of them wrote, so
		// every checker was waved through and the limit is breached
		assert.Greater(t, store.total(entitlement.QuotaMessagesPerDay), limit)
	})

	t.Run("atomic reserve never exceeds the limit", func(t *testing.T) {
		store := newMemUsageStore()
		enforcer, account := buildFixture(t, store)

		var wg sync.WaitGroup
		var granted int64
		var mu sync.Mutex
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < attemptsPerWorker; j++ {
					if _, err := enforcer.Reserve(ctx, account, entitlement.QuotaMessagesPerDay, 1); err == nil {
						mu.Lock()
						granted++
						mu.Unlock()
					}
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, limit, granted, "exactly limit reservations granted")
		assert.Equal(t, limit, store.total(entitlement.QuotaMessagesPerDay))
		assert.LessOrEqual(t, store.total(entitlement.QuotaMessagesPerDay), limit)
	})
}
