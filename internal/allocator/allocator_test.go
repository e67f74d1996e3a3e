package allocator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/crm"
	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/store"
)

// Fixed clock matching the worked scenarios: Monday 2026-01-12.
var testNow = time.Date(2026, time.January, 12, 9, 30, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	advisers  []domain.Adviser
	meetings  map[string][]domain.Meeting
	deals     map[string][]domain.Deal
	leave     map[string][]domain.LeaveRequest
	closures  []domain.OfficeClosure
	overrides map[string][]domain.CapacityOverride
	prestart  int
	records   map[string]*domain.AllocationRecord
	putErr    error
	puts      int
}

func newFakeStore(advisers ...domain.Adviser) *fakeStore {
	return &fakeStore{
		advisers:  advisers,
		meetings:  map[string][]domain.Meeting{},
		deals:     map[string][]domain.Deal{},
		leave:     map[string][]domain.LeaveRequest{},
		overrides: map[string][]domain.CapacityOverride{},
		prestart:  3,
		records:   map[string]*domain.AllocationRecord{},
	}
}

func (f *fakeStore) ListAdvisers(_ context.Context, filter store.AdviserFilter) ([]domain.Adviser, error) {
	matched := []domain.Adviser{}
	for _, a := range f.advisers {
		if !filter.IncludeNotTaking && !a.TakingOnClients {
			continue
		}
		if filter.ServicePackage != "" && !a.SupportsServicePackage(filter.ServicePackage) {
			continue
		}
		if filter.HouseholdType != "" && !a.SupportsHouseholdType(filter.HouseholdType) {
			continue
		}
		matched = append(matched, a)
	}
	return matched, nil
}

func (f *fakeStore) GetMeetings(_ context.Context, adviserID string, _, _ time.Time) ([]domain.Meeting, error) {
	return f.meetings[adviserID], nil
}

func (f *fakeStore) GetDealsWithoutClarify(_ context.Context, adviserID string, _ time.Time) ([]domain.Deal, error) {
	return f.deals[adviserID], nil
}

func (f *fakeStore) GetLeaveRequests(_ context.Context, email string, _, _ time.Time) ([]domain.LeaveRequest, error) {
	return f.leave[email], nil
}

func (f *fakeStore) GetGlobalClosures(_ context.Context, _, _ time.Time) ([]domain.OfficeClosure, error) {
	return f.closures, nil
}

func (f *fakeStore) GetAdviserClosures(_ context.Context, _ string, _, _ time.Time) ([]domain.OfficeClosure, error) {
	return nil, nil
}

func (f *fakeStore) ListCapacityOverrides(_ context.Context, email string) ([]domain.CapacityOverride, error) {
	return f.overrides[email], nil
}

func (f *fakeStore) PrestartWeeks(context.Context) int { return f.prestart }

func (f *fakeStore) PutAllocationRecord(_ context.Context, record *domain.AllocationRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return "", f.putErr
	}
	if existing, ok := f.records[record.DealID]; ok {
		record.ID = existing.ID
	} else if record.ID == "" {
		record.ID = fmt.Sprintf("alloc-%d", len(f.records)+1)
	}
	clone := *record
	f.records[record.DealID] = &clone
	return record.ID, nil
}

type fakeCRM struct {
	mu        sync.Mutex
	deals     map[string]*domain.Deal
	ownerErr  error
	ownerSets map[string]string
}

func newFakeCRM(deals ...*domain.Deal) *fakeCRM {
	m := map[string]*domain.Deal{}
	for _, d := range deals {
		m[d.ID] = d
	}
	return &fakeCRM{deals: m, ownerSets: map[string]string{}}
}

func (f *fakeCRM) GetDeal(_ context.Context, dealID string) (*domain.Deal, error) {
	d, ok := f.deals[dealID]
	if !ok {
		return nil, fmt.Errorf("get deal: %w", crm.ErrNotFound)
	}
	return d, nil
}

func (f *fakeCRM) SetDealOwner(_ context.Context, dealID, adviserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ownerErr != nil {
		return f.ownerErr
	}
	f.ownerSets[dealID] = adviserID
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeNotifier) NotifyAllocation(context.Context, *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func seriesAAdviser(id, email string) domain.Adviser {
	return domain.Adviser{
		ID:                 id,
		Email:              email,
		ServicePackages:    []string{"Series A"},
		ClientLimitMonthly: 8,
		TakingOnClients:    true,
	}
}

func newTestAllocator(st Store, crmClient CRM, notifier Notifier) *Allocator {
	a := New(st, crmClient, notifier, Config{HorizonWeeks: 52, BufferWeeks: 2}, zap.NewNop())
	a.SetNowFunc(func() time.Time { return testNow })
	return a
}

func seriesADeal(id string) *domain.Deal {
	return &domain.Deal{ID: id, ServicePackage: "Series A"}
}

func TestAllocateHappyPathPicksLeastUtilised(t *testing.T) {
	// A has a clarify in W04, B has none; both open W05, B wins on
	// the utilisation ratio.
	a := seriesAAdviser("owner-a", "a@firm.example")
	b := seriesAAdviser("owner-b", "b@firm.example")
	st := newFakeStore(a, b)
	st.meetings["owner-a"] = []domain.Meeting{{
		AdviserID: "owner-a",
		Kind:      domain.MeetingClarify,
		StartDate: calendar.Date(2026, time.January, 21),
	}}
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	notifier := &fakeNotifier{}
	alloc := newTestAllocator(st, crmClient, notifier)

	result, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	require.NoError(t, err)
	assert.Equal(t, "b@firm.example", result.Adviser.Email)
	assert.Equal(t, calendar.Date(2026, time.January, 26), result.EarliestWeek)
	assert.Equal(t, "owner-b", crmClient.ownerSets["deal-1"])
	require.Contains(t, st.records, "deal-1")
	assert.Equal(t, 1, notifier.calls)
	assert.NotEmpty(t, result.Record.Extra)
}

func TestAllocateNoEligibleAdvisers(t *testing.T) {
	// Nobody supports Series Z; nothing is written anywhere.
	st := newFakeStore(seriesAAdviser("owner-a", "a@firm.example"))
	crmClient := newFakeCRM(&domain.Deal{ID: "deal-z", ServicePackage: "Series Z"})
	alloc := newTestAllocator(st, crmClient, nil)

	_, err := alloc.Allocate(context.Background(), Request{DealID: "deal-z"})

	assert.Equal(t, KindNoEligibleAdvisers, KindOf(err))
	assert.Empty(t, st.records)
	assert.Empty(t, crmClient.ownerSets)
}

func TestAllocateDealNotFound(t *testing.T) {
	alloc := newTestAllocator(newFakeStore(), newFakeCRM(), nil)

	_, err := alloc.Allocate(context.Background(), Request{DealID: "ghost"})

	assert.Equal(t, KindDealNotFound, KindOf(err))
}

func TestAllocateMissingDealID(t *testing.T) {
	alloc := newTestAllocator(newFakeStore(), newFakeCRM(), nil)

	_, err := alloc.Allocate(context.Background(), Request{})

	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestAllocateIdempotent(t *testing.T) {
	// Repeating the allocation with unchanged inputs picks the same
	// adviser and keeps the same record id.
	st := newFakeStore(
		seriesAAdviser("owner-a", "a@firm.example"),
		seriesAAdviser("owner-b", "b@firm.example"),
	)
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	alloc := newTestAllocator(st, crmClient, nil)

	first, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})
	require.NoError(t, err)
	second, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})
	require.NoError(t, err)

	assert.Equal(t, first.Adviser.Email, second.Adviser.Email)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Len(t, st.records, 1)
}

func TestAllocateEmailTieBreakIsDeterministic(t *testing.T) {
	// Identical load ties on week and ratio resolve lexicographically.
	st := newFakeStore(
		seriesAAdviser("owner-z", "zoe@firm.example"),
		seriesAAdviser("owner-m", "mia@firm.example"),
	)
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	alloc := newTestAllocator(st, crmClient, nil)

	for i := 0; i < 3; i++ {
		result, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})
		require.NoError(t, err)
		assert.Equal(t, "mia@firm.example", result.Adviser.Email)
	}
}

func TestAllocateNoAvailability(t *testing.T) {
	zero := seriesAAdviser("owner-a", "a@firm.example")
	zero.ClientLimitMonthly = 0
	st := newFakeStore(zero)
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	alloc := newTestAllocator(st, crmClient, nil)

	_, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	assert.Equal(t, KindNoAvailability, KindOf(err))
	assert.Empty(t, st.records)
}

func TestAllocateCrmPermanentRejection(t *testing.T) {
	st := newFakeStore(seriesAAdviser("owner-a", "a@firm.example"))
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	crmClient.ownerErr = fmt.Errorf("set owner: %w", crm.ErrPermanent)
	alloc := newTestAllocator(st, crmClient, nil)

	_, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	assert.Equal(t, KindCrmUpdateFailed, KindOf(err))
	// No allocation record on a failed CRM update.
	assert.Empty(t, st.records)
}

func TestAllocateCrmTransientFailure(t *testing.T) {
	st := newFakeStore(seriesAAdviser("owner-a", "a@firm.example"))
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	crmClient.ownerErr = fmt.Errorf("set owner: %w", crm.ErrTransient)
	alloc := newTestAllocator(st, crmClient, nil)

	_, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	assert.Equal(t, KindCrmUnavailable, KindOf(err))
	assert.Empty(t, st.records)
}

func TestAllocateRecordWriteFailure(t *testing.T) {
	st := newFakeStore(seriesAAdviser("owner-a", "a@firm.example"))
	st.putErr = errors.New("datastore down")
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	alloc := newTestAllocator(st, crmClient, nil)

	_, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	// 503 so the caller retries; the idempotent record write makes the
	// retry safe even though the CRM owner already changed.
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.Equal(t, "owner-a", crmClient.ownerSets["deal-1"])
}

func TestAllocateNotifierFailureDoesNotAbort(t *testing.T) {
	st := newFakeStore(seriesAAdviser("owner-a", "a@firm.example"))
	crmClient := newFakeCRM(seriesADeal("deal-1"))
	notifier := &fakeNotifier{err: errors.New("webhook down")}
	alloc := newTestAllocator(st, crmClient, notifier)

	result, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 1, notifier.calls)
}

func TestAllocateHouseholdFilter(t *testing.T) {
	single := seriesAAdviser("owner-s", "single@firm.example")
	single.HouseholdTypes = []string{"Single"}
	couple := seriesAAdviser("owner-c", "couple@firm.example")
	couple.HouseholdTypes = []string{"Couple"}
	st := newFakeStore(single, couple)
	crmClient := newFakeCRM(&domain.Deal{ID: "deal-1", ServicePackage: "Series A", HouseholdType: "Couple"})
	alloc := newTestAllocator(st, crmClient, nil)

	result, err := alloc.Allocate(context.Background(), Request{DealID: "deal-1"})

	require.NoError(t, err)
	assert.Equal(t, "couple@firm.example", result.Adviser.Email)
}

func TestEarliestAvailabilityListsAllCandidates(t *testing.T) {
	st := newFakeStore(
		seriesAAdviser("owner-a", "a@firm.example"),
		seriesAAdviser("owner-b", "b@firm.example"),
	)
	alloc := newTestAllocator(st, newFakeCRM(), nil)

	candidates, err := alloc.EarliestAvailability(context.Background(), store.AdviserFilter{ServicePackage: "Series A"})

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		require.NotNil(t, c.EarliestWeek)
		assert.Equal(t, calendar.Date(2026, time.January, 26), *c.EarliestWeek)
	}
}
