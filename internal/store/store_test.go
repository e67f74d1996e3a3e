package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/repository"
)

// memCache is an in-memory Cache for tests; TTLs are recorded but not
// enforced.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) GetJSON(_ context.Context, key string, out any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (m *memCache) SetJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) InvalidatePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

type countingCRM struct {
	mu       sync.Mutex
	advisers []domain.Adviser
	calls    int
}

func (c *countingCRM) ListAdvisers(context.Context) ([]domain.Adviser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.advisers, nil
}

func (c *countingCRM) ListMeetings(context.Context, string, time.Time, time.Time) ([]domain.Meeting, error) {
	return nil, nil
}

func (c *countingCRM) ListDealsWithoutFirstMeeting(context.Context, string, time.Time) ([]domain.Deal, error) {
	return nil, nil
}

type stubClosuresRepo struct {
	repository.ClosuresRepository
	listCalls int
	closures  []domain.OfficeClosure
	created   []*domain.OfficeClosure
}

func (s *stubClosuresRepo) ListGlobalClosures(context.Context, time.Time, time.Time) ([]domain.OfficeClosure, error) {
	s.listCalls++
	return s.closures, nil
}

func (s *stubClosuresRepo) CreateClosure(_ context.Context, c *domain.OfficeClosure) (string, error) {
	s.created = append(s.created, c)
	return "closure-1", nil
}

type stubLeaveRepo struct {
	repository.LeaveRepository
	employee *domain.Employee
	leave    []domain.LeaveRequest
}

func (s *stubLeaveRepo) GetEmployeeByEmail(context.Context, string) (*domain.Employee, error) {
	if s.employee == nil {
		return nil, repository.NotFound("leave.get_employee")
	}
	return s.employee, nil
}

func (s *stubLeaveRepo) ListLeaveRequests(context.Context, string, time.Time, time.Time) ([]domain.LeaveRequest, error) {
	return s.leave, nil
}

type stubAllocationsRepo struct {
	repository.AllocationsRepository
	putErr   error
	existing *domain.AllocationRecord
}

func (s *stubAllocationsRepo) PutAllocationRecord(_ context.Context, record *domain.AllocationRecord) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	return record.ID, nil
}

func (s *stubAllocationsRepo) GetAllocationByDeal(context.Context, string) (*domain.AllocationRecord, error) {
	if s.existing == nil {
		return nil, repository.NotFound("allocations.get_by_deal")
	}
	return s.existing, nil
}

func TestListAdvisersCachesCRM(t *testing.T) {
	crm := &countingCRM{advisers: []domain.Adviser{
		{Email: "a@firm.example", ServicePackages: []string{"Series A"}, TakingOnClients: true},
		{Email: "b@firm.example", ServicePackages: []string{"Seed"}, TakingOnClients: false},
	}}
	cache := newMemCache()
	st := New(Deps{CRM: crm, Cache: cache, Logger: zap.NewNop()})

	first, err := st.ListAdvisers(context.Background(), AdviserFilter{})
	require.NoError(t, err)
	assert.Len(t, first, 1) // b is not taking on clients

	_, err = st.ListAdvisers(context.Background(), AdviserFilter{IncludeNotTaking: true})
	require.NoError(t, err)
	assert.Equal(t, 1, crm.calls, "second read should hit the cache")

	// Every cache entry carries a TTL.
	assert.Equal(t, DefaultCacheTTL, cache.ttls[adviserRosterKey])
}

func TestListAdvisersFilter(t *testing.T) {
	crm := &countingCRM{advisers: []domain.Adviser{
		{Email: "a@firm.example", ServicePackages: []string{"Series A"}, HouseholdTypes: []string{"Single"}, TakingOnClients: true},
		{Email: "b@firm.example", ServicePackages: []string{"Series A"}, HouseholdTypes: []string{"Couple"}, TakingOnClients: true},
		{Email: "c@firm.example", ServicePackages: []string{"Seed"}, TakingOnClients: true},
	}}
	st := New(Deps{CRM: crm, Logger: zap.NewNop()})

	matched, err := st.ListAdvisers(context.Background(), AdviserFilter{
		ServicePackage: "series a",
		HouseholdType:  "couple",
	})

	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "b@firm.example", matched[0].Email)
}

func TestGlobalClosuresCacheInvalidatedOnWrite(t *testing.T) {
	closuresRepo := &stubClosuresRepo{closures: []domain.OfficeClosure{{Description: "Shutdown"}}}
	cache := newMemCache()
	st := New(Deps{Closures: closuresRepo, Cache: cache, Logger: zap.NewNop()})

	from := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	to := time.Date(2027, 1, 11, 0, 0, 0, 0, time.UTC)

	_, err := st.GetGlobalClosures(context.Background(), from, to)
	require.NoError(t, err)
	_, err = st.GetGlobalClosures(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, closuresRepo.listCalls)

	// An admin write clears the cached ranges but leaves the adviser
	// roster entry alone.
	require.NoError(t, cache.SetJSON(context.Background(), adviserRosterKey, []string{"sentinel"}, time.Minute))
	_, err = st.CreateClosure(context.Background(), &domain.OfficeClosure{Description: "New"})
	require.NoError(t, err)

	var roster []string
	assert.True(t, cache.GetJSON(context.Background(), adviserRosterKey, &roster),
		"closure invalidation must not sweep the roster")

	_, err = st.GetGlobalClosures(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, closuresRepo.listCalls)
}

func TestClosureRangeKeyShape(t *testing.T) {
	from := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	to := time.Date(2027, 1, 11, 0, 0, 0, 0, time.UTC)

	key := closureRangeKey(from, to)

	assert.Equal(t, "alloc:closures:global:2026-01-12:2027-01-11", key)
	assert.True(t, strings.HasPrefix(key, closureRangePrefix))
}

func TestGetLeaveRequestsUnknownEmployeeIsEmpty(t *testing.T) {
	st := New(Deps{Leave: &stubLeaveRepo{}, Logger: zap.NewNop()})

	leave, err := st.GetLeaveRequests(context.Background(), "nobody@firm.example",
		time.Now().UTC(), time.Now().UTC())

	require.NoError(t, err)
	assert.Empty(t, leave)
}

func TestPutAllocationRecordConflictResolvesToStored(t *testing.T) {
	existing := &domain.AllocationRecord{ID: "alloc-stored", DealID: "deal-1"}
	allocs := &stubAllocationsRepo{
		putErr:   repository.NewFailure(repository.KindConflict, "allocations.put", nil),
		existing: existing,
	}
	st := New(Deps{Allocations: allocs, Logger: zap.NewNop()})

	id, err := st.PutAllocationRecord(context.Background(), &domain.AllocationRecord{DealID: "deal-1"})

	require.NoError(t, err)
	assert.Equal(t, "alloc-stored", id)
}
